package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend-analyzer/internal/interfaces"
	"dividend-analyzer/internal/kvstore"
	"dividend-analyzer/internal/logger"
	"dividend-analyzer/internal/trace"
	"dividend-analyzer/internal/types"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *kvstore.MemoryStore, *fakeClock) {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	return NewStore(kv, Options{Now: clock.Now}), kv, clock
}

func record(symbol string) *types.NormalizedRecord {
	return &types.NormalizedRecord{
		Symbol: symbol,
		Name:   "テスト " + symbol,
		Sector: "株探データ",
		YearlyData: []types.FiscalYearRow{
			{FiscalYear: "2023年03月", Sales: 1000, EPS: 50, Dividend: 20, PayoutRatio: 40},
			{FiscalYear: "2024年03月", Sales: 1100, EPS: 55, Dividend: 22, PayoutRatio: 40},
		},
	}
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, kv, clock := newTestStore(t)

	_, ok := s.Get(ctx, "9843")
	assert.False(t, ok)

	s.Put(ctx, "9843", record("9843"))

	got, ok := s.Get(ctx, "9843")
	require.True(t, ok)
	assert.Equal(t, "テスト 9843", got.Name)
	assert.Len(t, got.YearlyData, 2)

	raw, ok, err := kv.Get("stock_data_9843")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"version":"2.1"`)
	assert.Contains(t, raw, fmt.Sprintf(`"timestamp":%d`, clock.t.UnixMilli()))

	ts, ok := s.TimestampOf(ctx, "9843")
	require.True(t, ok)
	assert.True(t, ts.Equal(clock.t))
}

func TestStore_PutStoresCopy(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	rec := record("8591")
	s.Put(ctx, "8591", rec)
	rec.YearlyData[0].Sales = -1

	got, ok := s.Get(ctx, "8591")
	require.True(t, ok)
	assert.Equal(t, 1000.0, got.YearlyData[0].Sales)
}

func TestStore_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	s, kv, clock := newTestStore(t)
	s.Put(ctx, "2914", record("2914"))

	clock.Advance(24 * time.Hour)
	_, ok := s.Get(ctx, "2914")
	assert.True(t, ok, "entry is still served at exactly 24h")

	clock.Advance(time.Millisecond)
	_, ok = s.Get(ctx, "2914")
	assert.False(t, ok, "entry expires after 24h")

	_, exists, _ := kv.Get("stock_data_2914")
	assert.False(t, exists, "expired entry is deleted on read")
}

func TestStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	s, kv, clock := newTestStore(t)

	for i := 0; i < 30; i++ {
		s.Put(ctx, fmt.Sprintf("%04d", 1000+i), record("x"))
		clock.Advance(time.Minute)
	}
	keys, _ := kv.Keys()
	require.Len(t, keys, 30)

	s.Put(ctx, "9999", record("9999"))

	keys, _ = kv.Keys()
	assert.Len(t, keys, 30)
	_, ok := s.Get(ctx, "1000")
	assert.False(t, ok, "the oldest entry is evicted")
	_, ok = s.Get(ctx, "1001")
	assert.True(t, ok)
	_, ok = s.Get(ctx, "9999")
	assert.True(t, ok)
}

func TestStore_EvictionIgnoresOtherKeys(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set("unrelated", "keep me"))
	s := NewStore(kv, Options{MaxEntries: 2})

	s.Put(ctx, "1111", record("1111"))
	s.Put(ctx, "2222", record("2222"))
	s.Put(ctx, "3333", record("3333"))

	v, ok, _ := kv.Get("unrelated")
	assert.True(t, ok)
	assert.Equal(t, "keep me", v)
	assert.Len(t, s.Symbols(ctx), 2)
}

func TestStore_CorruptEntryRemoved(t *testing.T) {
	ctx := context.Background()
	s, kv, _ := newTestStore(t)
	require.NoError(t, kv.Set("stock_data_4502", "{broken"))

	_, ok := s.Get(ctx, "4502")
	assert.False(t, ok)

	_, exists, _ := kv.Get("stock_data_4502")
	assert.False(t, exists)
}

func TestStore_BackendFailureDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	s, kv, _ := newTestStore(t)
	s.Put(ctx, "9433", record("9433"))

	kv.Fail(errors.New("quota exceeded"))

	assert.NotPanics(t, func() {
		s.Put(ctx, "8766", record("8766"))
		_, ok := s.Get(ctx, "9433")
		assert.False(t, ok)
		_, ok = s.TimestampOf(ctx, "9433")
		assert.False(t, ok)
		assert.Empty(t, s.Symbols(ctx))
		assert.Zero(t, s.Purge(ctx))
		s.Clear(ctx)
	})

	kv.Fail(nil)
	_, ok := s.Get(ctx, "9433")
	assert.True(t, ok, "entry survives a transient backend failure")
}

func TestStore_ClearSymbolsPurge(t *testing.T) {
	ctx := context.Background()
	s, kv, clock := newTestStore(t)
	s.Put(ctx, "9843", record("9843"))
	clock.Advance(25 * time.Hour)
	s.Put(ctx, "2914", record("2914"))
	require.NoError(t, kv.Set("stock_data_0000", "garbage"))
	require.NoError(t, kv.Set("settings", "{}"))

	assert.Equal(t, []string{"0000", "2914", "9843"}, s.Symbols(ctx))

	assert.Equal(t, 2, s.Purge(ctx))
	assert.Equal(t, []string{"2914"}, s.Symbols(ctx))

	s.Clear(ctx)
	assert.Empty(t, s.Symbols(ctx))
	_, ok, _ := kv.Get("settings")
	assert.True(t, ok, "clear only touches prefixed keys")
}

func TestStore_FileBackend(t *testing.T) {
	ctx := context.Background()
	kv, err := kvstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	s := NewStore(kv, Options{})
	s.Put(ctx, "9843", record("9843"))

	reopened := NewStore(kv, Options{})
	got, ok := reopened.Get(ctx, "9843")
	require.True(t, ok)
	assert.Equal(t, "9843", got.Symbol)
}

// persistentBackends returns the on-disk stores the CLI can be configured with
func persistentBackends(t *testing.T) map[string]interfaces.KeyValueStore {
	t.Helper()
	dir := t.TempDir()

	file, err := kvstore.NewFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)
	sqlite, err := kvstore.OpenSQLite(filepath.Join(dir, "sqlite", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]interfaces.KeyValueStore{
		"file":   file,
		"sqlite": sqlite,
	}
}

func TestStore_SameInstantWriteSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	stores := persistentBackends(t)
	stores["memory"] = kvstore.NewMemoryStore()

	for name, kv := range stores {
		t.Run(name, func(t *testing.T) {
			s := NewStore(kv, Options{Now: func() time.Time { return frozen }})
			for i := 1; i <= 30; i++ {
				s.Put(ctx, fmt.Sprintf("%04d", i), record("x"))
			}

			// "0000" sorts first by key and ties every other timestamp
			s.Put(ctx, "0000", record("0000"))

			got, ok := s.Get(ctx, "0000")
			require.True(t, ok, "the entry just written is kept")
			assert.Equal(t, "0000", got.Symbol)
			assert.Len(t, s.Symbols(ctx), 30)
		})
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	symbols := make([]string, 12)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("%04d", 7000+i)
	}

	for name, kv := range persistentBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(kv, Options{MaxEntries: 5})

			var wg sync.WaitGroup
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < 20; i++ {
						sym := symbols[(g+i)%len(symbols)]
						s.Put(ctx, sym, record(sym))
						s.Get(ctx, sym)
						s.Put(ctx, sym, record(sym))
					}
				}(g)
			}
			wg.Wait()

			cached := s.Symbols(ctx)
			assert.NotEmpty(t, cached)
			assert.LessOrEqual(t, len(cached), 5)
			for _, sym := range cached {
				got, ok := s.Get(ctx, sym)
				require.True(t, ok, sym)
				assert.Equal(t, sym, got.Symbol)
				assert.Len(t, got.YearlyData, 2)
			}
		})
	}
}

func TestStore_ConcurrentWritesAreNotLost(t *testing.T) {
	ctx := context.Background()

	for name, kv := range persistentBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(kv, Options{})

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					sym := fmt.Sprintf("%04d", 6000+i)
					s.Put(ctx, sym, record(sym))
				}(i)
			}
			wg.Wait()

			assert.Len(t, s.Symbols(ctx), 20)
			for i := 0; i < 20; i++ {
				sym := fmt.Sprintf("%04d", 6000+i)
				got, ok := s.Get(ctx, sym)
				require.True(t, ok, sym)
				assert.Equal(t, sym, got.Symbol)
			}
		})
	}
}

func TestStore_WarningsCarryTraceIDs(t *testing.T) {
	var logs bytes.Buffer
	require.NoError(t, logger.InitWithConfig(logger.LogConfig{Level: "INFO", Format: "json", Output: &logs}))
	require.NoError(t, trace.InitWithWriter(true, io.Discard))
	t.Cleanup(func() {
		_ = trace.InitWithWriter(false, nil)
		_ = logger.InitWithConfig(logger.LogConfig{Level: "INFO", Output: io.Discard})
	})

	s, kv, _ := newTestStore(t)
	kv.Fail(errors.New("disk full"))

	ctx, span := trace.StartSpan(context.Background(), "cache-test")
	_, ok := s.Get(ctx, "9433")
	span.End()
	assert.False(t, ok)

	out := logs.String()
	assert.Contains(t, out, "Cache read failed")
	assert.Contains(t, out, `"trace_id":"`+span.SpanContext().TraceID().String()+`"`)
}
