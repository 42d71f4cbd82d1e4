package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileFormatVersion is written into every data file.
const fileFormatVersion = "1.0"

// ErrInvalidValue is returned when a FileStore value is not valid JSON.
var ErrInvalidValue = errors.New("storage: file store values must be valid JSON")

// FileStore keeps all values in a single JSON document on disk. Every
// write rewrites the document through a temp file and an atomic rename.
type FileStore struct {
	path    string
	mu      sync.Mutex
	version string
	values  map[string]json.RawMessage
}

// fileDocument is the on-disk layout.
type fileDocument struct {
	Version string                     `json:"version"`
	Values  map[string]json.RawMessage `json:"values"`
}

// NewFileStore opens the data file at path, creating it on first write.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		version: fileFormatVersion,
		values:  make(map[string]json.RawMessage),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load data from %s: %w", path, err)
	}
	return s, nil
}

// load reads the document from disk. A missing file is an empty store.
func (s *FileStore) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open data file: %w", err)
	}
	defer file.Close()

	var doc fileDocument
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode data file: %w", err)
	}

	if doc.Version != "" {
		s.version = doc.Version
	}
	if doc.Values != nil {
		s.values = doc.Values
	}
	return nil
}

// save writes the document to disk. Callers hold s.mu.
func (s *FileStore) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp data file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fileDocument{Version: s.version, Values: s.values}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get returns the value under key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

// Put stores value and flushes the document.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	return s.Update(ctx, key, func([]byte) ([]byte, error) {
		if value == nil {
			return []byte("null"), nil
		}
		return value, nil
	})
}

// Delete removes key and flushes the document when something changed.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.values[key]
	if !ok {
		return nil
	}
	delete(s.values, key)
	if err := s.save(); err != nil {
		s.values[key] = old
		return err
	}
	return nil
}

// Update applies fn under the store lock and flushes the result. When the
// flush fails the in-memory value is rolled back.
func (s *FileStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.values[key]
	next, err := fn(cloneBytes(old))
	if err != nil {
		return err
	}

	if next == nil {
		if !existed {
			return nil
		}
		delete(s.values, key)
	} else {
		if !json.Valid(next) {
			return fmt.Errorf("%w: key %s", ErrInvalidValue, key)
		}
		s.values[key] = cloneBytes(next)
	}

	if err := s.save(); err != nil {
		if existed {
			s.values[key] = old
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Keys lists keys with the given prefix.
func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedKeys(s.values, prefix), nil
}

// Close is a no-op; every write is already on disk.
func (s *FileStore) Close() error {
	return nil
}
