package resolverobs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"dividend-analyzer/internal/interfaces"
	"dividend-analyzer/internal/logger"
	"dividend-analyzer/internal/trace"
	"dividend-analyzer/internal/types"
)

// observableResolver wraps a SourceResolver with logging and tracing
type observableResolver struct {
	resolver interfaces.SourceResolver
}

// Compile-time interface check
var _ interfaces.SourceResolver = (*observableResolver)(nil)

// Wrap wraps a resolver with observability middleware
func Wrap(resolver interfaces.SourceResolver) interfaces.SourceResolver {
	return &observableResolver{
		resolver: resolver,
	}
}

func (or *observableResolver) Resolve(ctx context.Context, symbol string, tier types.Tier) (*types.Resolution, error) {
	ctx, span := trace.StartSpan(ctx, "resolver.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("requested_tier", string(tier)),
	)

	logger.DebugSkip(ctx, 1, "Resolving symbol", "symbol", symbol, "tier", tier)

	res, err := or.resolver.Resolve(ctx, symbol, tier)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to resolve symbol", err, "symbol", symbol, "tier", tier)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("served_tier", string(res.Tier)),
		attribute.Bool("downgraded", res.Warning),
		attribute.Int("years", len(res.Record.YearlyData)),
	)
	logger.DebugSkip(ctx, 1, "Symbol resolved",
		"symbol", symbol,
		"tier", res.Tier,
		"years", len(res.Record.YearlyData),
	)
	return res, nil
}
