package kvstore

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps one JSON file per key under dir
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// fileEntry is the on-disk shape; the key is kept so Keys can enumerate
type fileEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewFileStore creates dir if needed
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = ".cache/dividend-analyzer"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Get retrieves a value by key
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false, fmt.Errorf("decode %s: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set writes the value through a temp file so readers never see partial data
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(fileEntry{Key: key, Value: value})
	if err != nil {
		return err
	}

	target := s.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Delete removes key
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Keys reads every entry file and returns its key
func (s *FileStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var entry fileEntry
		if err := json.Unmarshal(data, &entry); err != nil || entry.Key == "" {
			continue
		}
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(key string) string {
	hash := md5.Sum([]byte(key))
	return filepath.Join(s.dir, fmt.Sprintf("%x.json", hash))
}
