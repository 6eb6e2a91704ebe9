// Package jobsource turns a directory of documents into capture jobs.
package jobsource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/link-archiver/internal/archive"
	"github.com/JakeFAU/link-archiver/internal/links"
)

// Build lists the documents in docsDir matching suffix and emits one job per
// link, in order of appearance within each document. Each document gets its
// own destination directory beneath outputDir, created if missing. A document
// that cannot be read fails the whole build.
func Build(docsDir, suffix, outputDir string) ([]archive.Job, error) {
	names, err := links.ListFiles(docsDir, suffix)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}

	var jobs []archive.Job
	for _, name := range names {
		found, err := links.FromFile(filepath.Join(docsDir, name))
		if err != nil {
			return nil, err
		}
		dest := DestinationDir(outputDir, name, suffix)
		if err := os.MkdirAll(dest, 0o750); err != nil {
			return nil, fmt.Errorf("create destination dir %s: %w", dest, err)
		}
		for _, link := range found {
			jobs = append(jobs, archive.Job{Link: link, DestinationDir: dest})
		}
	}
	return jobs, nil
}

// DestinationDir derives the output directory for a document name.
func DestinationDir(outputDir, docName, suffix string) string {
	base := docName
	if suffix != "" && suffix != "*" {
		base = strings.TrimSuffix(docName, suffix)
	}
	return filepath.Join(outputDir, base)
}
