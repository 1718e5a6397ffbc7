package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dividend-analyzer/internal/interfaces"
	"dividend-analyzer/internal/logger"
	"dividend-analyzer/internal/types"
)

var (
	ErrAllSourcesExhausted = errors.New("all data sources exhausted")
	ErrCacheMiss           = errors.New("キャッシュにデータがありません")
	ErrNotInReference      = errors.New("サンプルデータがありません")
)

// TimestampLayout renders cache capture times in messages
const TimestampLayout = "2006/1/2 15:04:05"

// ExhaustedError is returned once every tier failed for a symbol.
// It matches ErrAllSourcesExhausted and the original failure with errors.Is.
type ExhaustedError struct {
	Symbol string
	Err    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("全てのデータソースからの取得に失敗しました。\n元のエラー: %v\n銘柄コード「%s」のデータが見つかりません。", e.Err, e.Symbol)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrAllSourcesExhausted, e.Err}
}

// Resolver serves a symbol from the live page, the cache or the reference set
type Resolver struct {
	fetcher   interfaces.Fetcher
	extractor interfaces.RecordExtractor
	cache     interfaces.RecordCache
	reference interfaces.ReferenceData
}

var _ interfaces.SourceResolver = (*Resolver)(nil)

func New(fetcher interfaces.Fetcher, extractor interfaces.RecordExtractor, cache interfaces.RecordCache, reference interfaces.ReferenceData) *Resolver {
	return &Resolver{
		fetcher:   fetcher,
		extractor: extractor,
		cache:     cache,
		reference: reference,
	}
}

// Resolve tries tier first and, when it fails, the remaining lower tiers.
// Online is never retried by the fallback. A cancelled ctx stops the cascade.
func (r *Resolver) Resolve(ctx context.Context, symbol string, tier types.Tier) (*types.Resolution, error) {
	if tier == "" {
		tier = types.TierOnline
	}

	res, err := r.fromTier(ctx, symbol, tier)
	if err == nil {
		logger.Tier(ctx, symbol, string(res.Tier), res.Warning, "message", res.Message)
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	logger.Warn(ctx, "Data source failed, trying fallback", "symbol", symbol, "tier", tier, "error", err)

	res, fbErr := r.fallback(ctx, symbol, tier, err)
	if fbErr != nil {
		logger.ErrorWithErr(ctx, "All data sources failed", fbErr, "symbol", symbol)
		return nil, fbErr
	}
	logger.Tier(ctx, symbol, string(res.Tier), res.Warning, "message", res.Message)
	return res, nil
}

func (r *Resolver) fromTier(ctx context.Context, symbol string, tier types.Tier) (*types.Resolution, error) {
	switch tier {
	case types.TierOnline:
		return r.online(ctx, symbol)

	case types.TierCache:
		rec, ok := r.cache.Get(ctx, symbol)
		if !ok {
			return nil, ErrCacheMiss
		}
		res := r.cached(ctx, symbol, rec)
		res.Message = fmt.Sprintf("キャッシュデータを表示（%s保存分）", formatCachedAt(res.CachedAt))
		return res, nil

	case types.TierLocal:
		rec, ok := r.reference.Lookup(symbol)
		if !ok {
			return nil, fmt.Errorf("銘柄コード「%s」の%w", symbol, ErrNotInReference)
		}
		return &types.Resolution{Record: rec, Tier: types.TierLocal, Message: "サンプルデータを表示しています"}, nil

	default:
		return nil, fmt.Errorf("不明なデータソースです: %s", tier)
	}
}

// online fetches the finance page, parses it and writes the result back to the cache
func (r *Resolver) online(ctx context.Context, symbol string) (*types.Resolution, error) {
	html, err := r.fetcher.Fetch(ctx, r.extractor.URL(symbol))
	if err != nil {
		return nil, err
	}
	rec, err := r.extractor.Extract(ctx, html, symbol)
	if err != nil {
		return nil, fmt.Errorf("parse finance page for %s: %w", symbol, err)
	}

	r.cache.Put(ctx, symbol, rec)
	return &types.Resolution{Record: rec, Tier: types.TierOnline}, nil
}

func (r *Resolver) cached(ctx context.Context, symbol string, rec *types.NormalizedRecord) *types.Resolution {
	res := &types.Resolution{Record: rec, Tier: types.TierCache}
	if ts, ok := r.cache.TimestampOf(ctx, symbol); ok {
		res.CachedAt = &ts
	}
	return res
}

// fallback walks Cache then Local, skipping the tier that already failed
func (r *Resolver) fallback(ctx context.Context, symbol string, failed types.Tier, original error) (*types.Resolution, error) {
	if failed != types.TierCache {
		if rec, ok := r.cache.Get(ctx, symbol); ok {
			res := r.cached(ctx, symbol, rec)
			res.Warning = true
			res.Message = fmt.Sprintf("⚠ %s取得に失敗。キャッシュデータ（%s保存分）を表示しています", tierLabel(failed), formatCachedAt(res.CachedAt))
			return res, nil
		}
	}

	if failed != types.TierLocal {
		if rec, ok := r.reference.Lookup(symbol); ok {
			return &types.Resolution{
				Record:  rec,
				Tier:    types.TierLocal,
				Warning: true,
				Message: fmt.Sprintf("⚠ %s取得に失敗。内蔵サンプルデータを表示しています", tierLabel(failed)),
			}, nil
		}
	}

	return nil, &ExhaustedError{Symbol: symbol, Err: original}
}

func tierLabel(t types.Tier) string {
	switch t {
	case types.TierCache:
		return "キャッシュ"
	case types.TierLocal:
		return "サンプルデータ"
	default:
		return "オンライン"
	}
}

func formatCachedAt(ts *time.Time) string {
	if ts == nil {
		return "不明"
	}
	return ts.Local().Format(TimestampLayout)
}
