package kvstore

import (
	"fmt"
	"path/filepath"
	"strings"

	"dividend-analyzer/internal/interfaces"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// New opens the backend named by backend rooted at path.
// For sqlite, a path without an extension gets cache.db appended.
func New(backend, path string) (interfaces.KeyValueStore, error) {
	switch strings.ToLower(backend) {
	case BackendFile, "":
		return NewFileStore(path)
	case BackendSQLite:
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "cache.db")
		}
		return OpenSQLite(path)
	case BackendBadger:
		return OpenBadger(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: file, sqlite, badger, memory)", backend)
	}
}
