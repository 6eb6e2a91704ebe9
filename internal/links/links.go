// Package links extracts hyperlinks from markdown documents and lists the
// documents of a directory.
package links

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// linkPattern recognizes, in order of alternation, markdown links, angle
// bracket autolinks, and bare http(s) URLs. Markdown targets may contain one
// level of balanced parentheses.
var linkPattern = regexp.MustCompile(`\[[^\]\n]*\]\(((?:[^()\s]|\([^()\s]*\))+)\)|<(https?://[^>\s]+)>|(https?://[^\s<>]+)`)

const trailingPunctuation = ".,;:!?'\""

// Extract returns the links found in text in order of appearance. It never
// fails; text without links yields an empty slice.
func Extract(text string) []string {
	matches := linkPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		var link string
		switch {
		case m[2] != "":
			link = m[2]
		case m[1] != "":
			link = m[1]
		default:
			link = strings.TrimRight(m[3], trailingPunctuation)
		}
		if link == "" {
			continue
		}
		out = append(out, link)
	}
	return out
}

// FromFile reads path and extracts its links.
func FromFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	return Extract(string(data)), nil
}

// ListFiles returns the entry names of dir whose names end with suffix.
// Matching is case-sensitive; an empty or "*" suffix returns every entry.
func ListFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if suffix == "" || suffix == "*" || strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// FromDirectory maps every document in dir matching suffix to its links.
func FromDirectory(dir, suffix string) (map[string][]string, error) {
	names, err := ListFiles(dir, suffix)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(names))
	for _, name := range names {
		found, err := FromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out[name] = found
	}
	return out, nil
}
