package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileStore is the durable fallback tier: one JSON file per key under
// a data directory. Full scans live in scan_history/<scan_id>.json,
// progress snapshots in scan_progress/, rolling lists at the root.
// TTLs are ignored; files live until explicitly deleted.
type FileStore struct {
	dir string
}

// NewFileStore roots a file store at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// pathFor maps a cache key onto its file location.
func (s *FileStore) pathFor(key string) string {
	switch {
	case strings.HasPrefix(key, "scan_progress:"):
		return filepath.Join(s.dir, "scan_progress", strings.TrimPrefix(key, "scan_progress:")+".json")
	case strings.HasPrefix(key, "scan:"):
		return filepath.Join(s.dir, "scan_history", strings.TrimPrefix(key, "scan:")+".json")
	default:
		return filepath.Join(s.dir, strings.ReplaceAll(key, ":", "_")+".json")
	}
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("file read failed: %w", err)
	}
	return data, nil
}

func (s *FileStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	path := s.pathFor(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, value, 0o644); err != nil {
		return fmt.Errorf("file write failed: %w", err)
	}

	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file delete failed: %w", err)
	}
	return nil
}

// Keys lists stored keys under a prefix, sorted ascending. Scan IDs
// are time-derived, so ascending order is oldest-first.
func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	var dir, keyPrefix string
	switch {
	case strings.HasPrefix(prefix, "scan_progress"):
		dir, keyPrefix = filepath.Join(s.dir, "scan_progress"), "scan_progress:"
	case strings.HasPrefix(prefix, "scan:"):
		dir, keyPrefix = filepath.Join(s.dir, "scan_history"), "scan:"
	default:
		dir, keyPrefix = s.dir, ""
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		key := keyPrefix + strings.TrimSuffix(entry.Name(), ".json")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}
