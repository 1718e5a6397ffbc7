package interfaces

import (
	"context"
	"time"

	"dividend-analyzer/internal/types"
)

// Fetcher retrieves a remote page as text
type Fetcher interface {
	// Fetch returns the body of targetURL or an error once every route failed
	Fetch(ctx context.Context, targetURL string) (string, error)
}

// KeyValueStore is the string-keyed persistence primitive the cache sits on
type KeyValueStore interface {
	// Get returns the value and whether the key exists
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any previous value
	Set(key, value string) error

	// Delete removes key; deleting a missing key is not an error
	Delete(key string) error

	// Keys enumerates every stored key
	Keys() ([]string, error)

	// Close releases the underlying resources
	Close() error
}

// RecordCache stores normalized records with expiry
type RecordCache interface {
	// Get returns the cached record, or false on miss, expiry or corruption
	Get(ctx context.Context, symbol string) (*types.NormalizedRecord, bool)

	// Put stores a record with the current time
	Put(ctx context.Context, symbol string, record *types.NormalizedRecord)

	// TimestampOf returns when the symbol was cached
	TimestampOf(ctx context.Context, symbol string) (time.Time, bool)

	// Clear removes every cached record
	Clear(ctx context.Context)
}

// ReferenceData is the bundled read-only dataset
type ReferenceData interface {
	// Lookup returns the record for symbol if it is bundled
	Lookup(symbol string) (*types.NormalizedRecord, bool)

	// Symbols lists the bundled codes in ascending order
	Symbols() []string
}

// RecordExtractor turns a finance page into a normalized record
type RecordExtractor interface {
	// Extract parses html for the given symbol
	Extract(ctx context.Context, html, symbol string) (*types.NormalizedRecord, error)

	// URL returns the page address for symbol
	URL(symbol string) string
}

// SourceResolver picks the tier that serves a symbol
type SourceResolver interface {
	// Resolve returns the record and the tier that served it
	Resolve(ctx context.Context, symbol string, tier types.Tier) (*types.Resolution, error)
}
