// Package memory keeps artifacts in memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Store keeps artifacts in memory and returns memory:// URIs.
type Store struct {
	mu    sync.RWMutex
	data  map[string][]byte
	types map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		data:  make(map[string][]byte),
		types: make(map[string]string),
	}
}

// PutObject records the content of r under path.
func (s *Store) PutObject(_ context.Context, path string, contentType string, r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = body
	s.types[path] = contentType
	return "memory://" + path, nil
}

// Get returns the stored content and its content type.
func (s *Store) Get(path string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.data[path]
	return body, s.types[path], ok
}

// Paths lists stored paths in sorted order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for p := range s.data {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
