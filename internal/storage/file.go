package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultQuotaBytes caps the file store at roughly the capacity of a
// browser localStorage area, which this store replaces.
const DefaultQuotaBytes = 5 * 1024 * 1024

// FileStore keeps each key as a plain text file under a single directory.
type FileStore struct {
	dir        string
	quotaBytes int64
}

// NewFileStore creates the data directory if needed. A quota of zero
// selects DefaultQuotaBytes.
func NewFileStore(dir string, quotaBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if quotaBytes <= 0 {
		quotaBytes = DefaultQuotaBytes
	}
	return &FileStore{dir: dir, quotaBytes: quotaBytes}, nil
}

func (s *FileStore) path(key string) string {
	// Keys are fixed program-side names, but keep them path-safe anyway.
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, safe+".json")
}

// Get reads the value stored at key.
func (s *FileStore) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set writes the value at key atomically (temp file + rename). The write is
// rejected with ErrQuotaExceeded when the store's total size would pass the
// quota.
func (s *FileStore) Set(key, value string) error {
	if err := s.checkQuota(key, int64(len(value))); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

// Remove deletes the key's file if present.
func (s *FileStore) Remove(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// checkQuota sums the sizes of every other key's file plus the incoming
// value against the quota.
func (s *FileStore) checkQuota(key string, incoming int64) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to scan data directory: %w", err)
	}

	total := incoming
	own := filepath.Base(s.path(key))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == own {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}

	if total > s.quotaBytes {
		return ErrQuotaExceeded
	}
	return nil
}
