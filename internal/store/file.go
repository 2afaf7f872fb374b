package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend keeps the seen set as a flat JSON list of identities
type FileBackend struct {
	path string
}

// NewFileBackend stores the seen set at path
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the list; a missing file is an empty set
func (b *FileBackend) Load(ctx context.Context) ([]string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}
	return ids, nil
}

// Save rewrites the file with the full set
func (b *FileBackend) Save(ctx context.Context, ids []string, all []string) error {
	if all == nil {
		all = []string{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode seen listings: %w", err)
	}
	return b.write(data)
}

// Clear writes an empty list
func (b *FileBackend) Clear(ctx context.Context) error {
	return b.write([]byte("[]"))
}

// write replaces the file atomically so a crash never leaves half a list
func (b *FileBackend) write(data []byte) error {
	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", b.path, err)
	}
	return nil
}
