package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"dividend-analyzer/internal/interfaces"
	"dividend-analyzer/internal/logger"
	"dividend-analyzer/internal/store"
	"dividend-analyzer/internal/types"
)

const (
	DefaultPrefix     = "stock_data_"
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 30
	DefaultVersion    = "2.1"
)

// Options configures a Store. Zero values take the defaults above.
type Options struct {
	Prefix     string
	TTL        time.Duration
	MaxEntries int
	Version    string
	Now        func() time.Time
}

// Store caches normalized records on a string key/value store.
// Every failure of the underlying store is logged and reported as a miss.
type Store struct {
	kv         interfaces.KeyValueStore
	prefix     string
	ttl        time.Duration
	maxEntries int
	version    string
	now        func() time.Time

	mu sync.Mutex
}

func NewStore(kv interfaces.KeyValueStore, opts Options) *Store {
	s := &Store{
		kv:         kv,
		prefix:     opts.Prefix,
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		version:    opts.Version,
		now:        opts.Now,
	}
	if s.prefix == "" {
		s.prefix = DefaultPrefix
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.maxEntries <= 0 {
		s.maxEntries = DefaultMaxEntries
	}
	if s.version == "" {
		s.version = DefaultVersion
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func NewStoreFromConfig(kv interfaces.KeyValueStore, cfg *store.Config) *Store {
	return NewStore(kv, Options{
		Prefix:     cfg.Cache.Prefix,
		TTL:        cfg.CacheTTL(),
		MaxEntries: cfg.Cache.MaxEntries,
		Version:    cfg.Cache.Version,
	})
}

func (s *Store) key(symbol string) string {
	return s.prefix + symbol
}

// Get returns the cached record for symbol.
// Corrupt and expired entries are deleted on read.
func (s *Store) Get(ctx context.Context, symbol string) (*types.NormalizedRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.load(ctx, s.key(symbol))
	if !ok {
		return nil, false
	}
	if s.expired(entry) {
		logger.Debug(ctx, "Cache entry expired", "symbol", symbol)
		s.delete(ctx, s.key(symbol))
		return nil, false
	}
	return entry.Data, true
}

// Put stores record under symbol with the current time, then evicts
// the oldest entries above the ceiling. The entry just written is never evicted.
func (s *Store) Put(ctx context.Context, symbol string, record *types.NormalizedRecord) {
	if record == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := types.CacheEntry{
		Data:      record.Clone(),
		Timestamp: s.now().UnixMilli(),
		Version:   s.version,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		logger.Warn(ctx, "Cache save failed", "symbol", symbol, "error", err)
		return
	}
	if err := s.kv.Set(s.key(symbol), string(data)); err != nil {
		logger.Warn(ctx, "Cache save failed", "symbol", symbol, "error", err)
		return
	}
	s.evict(ctx, s.key(symbol))
}

// TimestampOf returns when symbol was cached. Expiry is not checked.
func (s *Store) TimestampOf(ctx context.Context, symbol string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.load(ctx, s.key(symbol))
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(entry.Timestamp), true
}

// Clear removes every key carrying the prefix
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.keys(ctx)
	if err != nil {
		return
	}
	for _, k := range keys {
		s.delete(ctx, k)
	}
	logger.Info(ctx, "Cache cleared", "entries", len(keys))
}

// Symbols lists the cached symbols in ascending order, expired ones included
func (s *Store) Symbols(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.keys(ctx)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.prefix))
	}
	sort.Strings(out)
	return out
}

// Purge deletes expired and unreadable entries and returns how many went
func (s *Store) Purge(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.keys(ctx)
	if err != nil {
		return 0
	}
	removed := 0
	for _, k := range keys {
		raw, ok, err := s.kv.Get(k)
		if err != nil || !ok {
			continue
		}
		var entry types.CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Data == nil || s.expired(entry) {
			s.delete(ctx, k)
			removed++
		}
	}
	if removed > 0 {
		logger.Info(ctx, "Cache purged", "removed", removed)
	}
	return removed
}

func (s *Store) expired(entry types.CacheEntry) bool {
	return s.now().Sub(time.UnixMilli(entry.Timestamp)) > s.ttl
}

// load reads and decodes key. Undecodable entries are deleted.
func (s *Store) load(ctx context.Context, key string) (types.CacheEntry, bool) {
	var entry types.CacheEntry

	raw, ok, err := s.kv.Get(key)
	if err != nil {
		logger.Warn(ctx, "Cache read failed", "key", key, "error", err)
		return entry, false
	}
	if !ok {
		return entry, false
	}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Data == nil {
		logger.Warn(ctx, "Corrupt cache entry removed", "key", key, "error", err)
		s.delete(ctx, key)
		return types.CacheEntry{}, false
	}
	return entry, true
}

func (s *Store) delete(ctx context.Context, key string) {
	if err := s.kv.Delete(key); err != nil {
		logger.Warn(ctx, "Cache delete failed", "key", key, "error", err)
	}
}

func (s *Store) keys(ctx context.Context) ([]string, error) {
	all, err := s.kv.Keys()
	if err != nil {
		logger.Warn(ctx, "Cache enumeration failed", "error", err)
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, s.prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// evict keeps at most maxEntries, dropping the oldest timestamps first.
// Entries without a readable timestamp sort as oldest. keep is the key just
// written and is never a candidate, so a same-millisecond tie cannot evict it.
func (s *Store) evict(ctx context.Context, keep string) {
	keys, err := s.keys(ctx)
	if err != nil || len(keys) <= s.maxEntries {
		return
	}

	type stamped struct {
		key string
		ts  int64
	}
	entries := make([]stamped, 0, len(keys))
	for _, k := range keys {
		if k == keep {
			continue
		}
		var ts int64
		if raw, ok, err := s.kv.Get(k); err == nil && ok {
			var stamp struct {
				Timestamp int64 `json:"timestamp"`
			}
			if json.Unmarshal([]byte(raw), &stamp) == nil {
				ts = stamp.Timestamp
			}
		}
		entries = append(entries, stamped{key: k, ts: ts})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ts < entries[j].ts })

	excess := len(keys) - s.maxEntries
	for _, e := range entries[:excess] {
		s.delete(ctx, e.key)
	}
	logger.Debug(ctx, "Cache evicted oldest entries", "removed", excess)
}
