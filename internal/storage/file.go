package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps all entries in a single JSON document. Every mutation
// rewrites the document through a temp file and an atomic rename.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	items  map[string]string
	closed bool
}

// NewFileStore opens (or creates) the JSON document at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	items := make(map[string]string)
	data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal storage file: %w", err)
		}
	}

	return &FileStore{path: path, items: items}, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

func (s *FileStore) SetMany(_ context.Context, entries map[string]string) error {
	return s.mutate(func(next map[string]string) {
		for k, v := range entries {
			next[k] = v
		}
	})
}

func (s *FileStore) Delete(_ context.Context, keys ...string) error {
	return s.mutate(func(next map[string]string) {
		for _, k := range keys {
			delete(next, k)
		}
	})
}

func (s *FileStore) DeletePrefix(_ context.Context, prefix string) error {
	return s.mutate(func(next map[string]string) {
		for k := range next {
			if hasPrefix(k, prefix) {
				delete(next, k)
			}
		}
	})
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// mutate applies fn to a copy and swaps it in only once the copy is on disk,
// so a failed write leaves both memory and file unchanged.
func (s *FileStore) mutate(fn func(next map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	next := make(map[string]string, len(s.items))
	for k, v := range s.items {
		next[k] = v
	}
	fn(next)

	if err := s.write(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

func (s *FileStore) write(items map[string]string) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage file: %w", err)
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to save storage file: %w", err)
	}
	return nil
}
