package relay

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"

	"dividend-analyzer/internal/logger"
	"dividend-analyzer/internal/store"
)

var (
	// ErrAllProxiesFailed is returned when every relay failed for a target
	ErrAllProxiesFailed = errors.New("all relays failed")
	// ErrUnexpectedStatus marks a non-2xx relay response
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrShortBody marks a page too small to be the real finance page
	ErrShortBody = errors.New("response too short")
)

const (
	DefaultTimeout       = 20 * time.Second
	DefaultMinBodyLength = 1000
)

// RelayError records why one relay attempt failed
type RelayError struct {
	Relay string
	Err   error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %s: %v", e.Relay, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// Options configures a Fetcher. Zero values take defaults; a zero
// RatePerSecond disables rate limiting.
type Options struct {
	Relays        []Relay
	Timeout       time.Duration
	MinBodyLength int
	UserAgent     string
	RatePerSecond float64
}

// Fetcher tries relays in order and returns the first acceptable page
type Fetcher struct {
	relays        []Relay
	timeout       time.Duration
	minBodyLength int
	userAgent     string
	limiter       *MultiRateLimiter
}

func NewFetcher(opts Options) *Fetcher {
	if len(opts.Relays) == 0 {
		opts.Relays = DefaultRelays()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinBodyLength <= 0 {
		opts.MinBodyLength = DefaultMinBodyLength
	}
	if opts.UserAgent == "" {
		opts.UserAgent = store.DefaultUserAgent
	}

	limiter := NewMultiRateLimiter()
	if opts.RatePerSecond > 0 {
		for _, r := range opts.Relays {
			limiter.AddLimiter(r.Name, opts.RatePerSecond, 1)
		}
	}

	return &Fetcher{
		relays:        opts.Relays,
		timeout:       opts.Timeout,
		minBodyLength: opts.MinBodyLength,
		userAgent:     opts.UserAgent,
		limiter:       limiter,
	}
}

// NewFetcherFromConfig builds a Fetcher from the fetch section of cfg
func NewFetcherFromConfig(cfg *store.Config) *Fetcher {
	return NewFetcher(Options{
		Relays:        FromConfig(cfg.Fetch.Relays),
		Timeout:       cfg.FetchTimeout(),
		MinBodyLength: cfg.Fetch.MinBodyLength,
		UserAgent:     cfg.Fetch.UserAgent,
		RatePerSecond: cfg.Fetch.RatePerSecond,
	})
}

// Relays returns the relay order in use
func (f *Fetcher) Relays() []Relay {
	return append([]Relay(nil), f.relays...)
}

// Fetch returns the page at targetURL through the first relay that succeeds.
// ctx is checked before each attempt; each attempt gets its own timeout.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	var lastErr error
	for _, r := range f.relays {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("fetch %s: %w", targetURL, err)
		}

		html, err := f.attempt(ctx, r, targetURL)
		if err == nil {
			logger.Info(ctx, "Fetched page through relay", "relay", r.Name, "chars", utf8.RuneCountInString(html))
			return html, nil
		}

		lastErr = &RelayError{Relay: r.Name, Err: err}
		logger.Warn(ctx, "Relay failed, trying next", "relay", r.Name, "error", err)
	}

	if lastErr == nil {
		return "", fmt.Errorf("%w: no relays configured", ErrAllProxiesFailed)
	}
	return "", fmt.Errorf("%w: %w", ErrAllProxiesFailed, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, r Relay, targetURL string) (string, error) {
	if err := f.limiter.Wait(ctx, r.Name); err != nil {
		return "", err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	status, body, err := f.get(attemptCtx, r.BuildURL(targetURL))
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("timed out after %s: %w", f.timeout, err)
		}
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w %d", ErrUnexpectedStatus, status)
	}

	html, err := r.Unwrap(body)
	if err != nil {
		return "", err
	}
	if n := utf8.RuneCountInString(html); n < f.minBodyLength {
		return "", fmt.Errorf("%w: %d characters, need %d", ErrShortBody, n, f.minBodyLength)
	}
	return html, nil
}

// get issues one GET with a fresh collector bound to ctx
func (f *Fetcher) get(ctx context.Context, relayURL string) (int, []byte, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(f.userAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(f.timeout)

	c.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
		req.Headers.Set("Accept-Language", "ja,en;q=0.8")
	})

	var (
		status int
		body   []byte
	)
	c.OnResponse(func(resp *colly.Response) {
		status = resp.StatusCode
		body = resp.Body
	})

	if err := c.Visit(relayURL); err != nil {
		return status, nil, err
	}
	return status, body, nil
}
