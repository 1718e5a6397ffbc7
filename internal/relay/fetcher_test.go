package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const target = "https://kabutan.jp/stock/finance?code=9843"

var page = "<html><body>" + strings.Repeat("業績", 600) + "</body></html>"

type relayServer struct {
	*httptest.Server
	hits atomic.Int32
	last atomic.Value
}

func newRelayServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *relayServer {
	t.Helper()
	rs := &relayServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		rs.last.Store(r.URL.Query().Get("url"))
		handler(w, r)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *relayServer) relay(name string, format Format) Relay {
	return Relay{Name: name, URLTemplate: rs.URL + "/proxy?url={url}", Format: format}
}

func rawPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func TestFetcher_FirstRelaySucceeds(t *testing.T) {
	first := newRelayServer(t, rawPage)
	second := newRelayServer(t, rawPage)

	f := NewFetcher(Options{Relays: []Relay{first.relay("a", FormatRaw), second.relay("b", FormatRaw)}})
	html, err := f.Fetch(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, page, html)
	assert.Equal(t, int32(1), first.hits.Load())
	assert.Equal(t, int32(0), second.hits.Load(), "later relays are not contacted after a success")
	assert.Equal(t, target, first.last.Load(), "target is passed url-encoded")
}

func TestFetcher_FallsThroughFailures(t *testing.T) {
	down := newRelayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	short := newRelayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>error</html>"))
	})
	envelope := newRelayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"contents": page, "status": map[string]int{"http_code": 200}})
	})

	f := NewFetcher(Options{Relays: []Relay{
		down.relay("down", FormatRaw),
		short.relay("short", FormatRaw),
		envelope.relay("envelope", FormatJSON),
	}})
	html, err := f.Fetch(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, page, html)
	assert.Equal(t, int32(1), down.hits.Load(), "no retries within a relay")
	assert.Equal(t, int32(1), short.hits.Load())
	assert.Equal(t, int32(1), envelope.hits.Load())
}

func TestFetcher_AllRelaysFail(t *testing.T) {
	down := newRelayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	short := newRelayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tiny"))
	})

	f := NewFetcher(Options{Relays: []Relay{down.relay("down", FormatRaw), short.relay("short", FormatRaw)}})
	_, err := f.Fetch(context.Background(), target)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrAllProxiesFailed)
	assert.ErrorIs(t, err, ErrShortBody, "the last attempt's reason is preserved")

	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, "short", relayErr.Relay)
}

func TestFetcher_StatusError(t *testing.T) {
	notFound := newRelayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(page))
	})

	f := NewFetcher(Options{Relays: []Relay{notFound.relay("nf", FormatRaw)}})
	_, err := f.Fetch(context.Background(), target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "404")
}

func TestFetcher_PerAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := newRelayServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })
	fast := newRelayServer(t, rawPage)

	f := NewFetcher(Options{
		Relays:  []Relay{slow.relay("slow", FormatRaw), fast.relay("fast", FormatRaw)},
		Timeout: 200 * time.Millisecond,
	})

	start := time.Now()
	html, err := f.Fetch(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, page, html)
	assert.Less(t, time.Since(start), 5*time.Second, "a hung relay is abandoned after its timeout")
}

func TestFetcher_CancelledContextStopsBeforeNextRelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := newRelayServer(t, func(w http.ResponseWriter, _ *http.Request) {
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	})
	second := newRelayServer(t, rawPage)

	f := NewFetcher(Options{Relays: []Relay{first.relay("first", FormatRaw), second.relay("second", FormatRaw)}})
	_, err := f.Fetch(ctx, target)
	require.Error(t, err)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(0), second.hits.Load())
}

func TestFetcher_RateLimitHonoursContext(t *testing.T) {
	srv := newRelayServer(t, rawPage)
	f := NewFetcher(Options{Relays: []Relay{srv.relay("limited", FormatRaw)}, RatePerSecond: 0.001})

	_, err := f.Fetch(context.Background(), target)
	require.NoError(t, err, "the first request uses the initial burst")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProxiesFailed)
	assert.Equal(t, int32(1), srv.hits.Load())
}
