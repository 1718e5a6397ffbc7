package analysis

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"dividend-analyzer/internal/interfaces"
	"dividend-analyzer/internal/logger"
	"dividend-analyzer/internal/resolver"
	"dividend-analyzer/internal/types"
)

var ErrInvalidSymbol = errors.New("銘柄コードは4桁の数字で入力してください")

var symbolPattern = regexp.MustCompile(`^\d{4}$`)

// Analyzer resolves a symbol and runs scoring, risk detection and cell assessment on it
type Analyzer struct {
	resolver  interfaces.SourceResolver
	reference interfaces.ReferenceData
	now       func() time.Time
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(source interfaces.SourceResolver, reference interfaces.ReferenceData) *Analyzer {
	return &Analyzer{
		resolver:  source,
		reference: reference,
		now:       time.Now,
	}
}

// ValidateSymbol trims code and checks it is exactly four ASCII digits
func ValidateSymbol(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("銘柄コードを入力してください: %w", ErrInvalidSymbol)
	}
	if !symbolPattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, trimmed)
	}
	return trimmed, nil
}

// Analyze performs the full dividend analysis for a symbol
func (a *Analyzer) Analyze(ctx context.Context, code string, tier types.Tier) (*types.Report, error) {
	symbol, err := ValidateSymbol(code)
	if err != nil {
		return nil, err
	}

	// an explicit local request for an unbundled code fails before the cascade
	if tier == types.TierLocal {
		if _, ok := a.reference.Lookup(symbol); !ok {
			return nil, fmt.Errorf("%w: サンプルデータに銘柄「%s」がありません。登録済み: %s",
				resolver.ErrNotInReference, symbol, strings.Join(a.reference.Symbols(), "、"))
		}
	}

	op := logger.StartOperation(ctx, "analysis.Analyze", "symbol", symbol, "tier", string(tier))
	ctx = op.GetContext()

	logger.Info(ctx, "Starting dividend analysis", "symbol", symbol, "tier", tier)

	res, err := a.resolver.Resolve(ctx, symbol, tier)
	if err != nil {
		op.EndWithError(err, "symbol", symbol)
		return nil, err
	}

	score := Score(res.Record)
	rank := RankOf(score.Total)
	risks := Detect(res.Record)
	for _, r := range risks {
		logger.Risk(ctx, symbol, r.Title, "severity", string(r.Severity))
	}

	report := &types.Report{
		ID:          uuid.New().String(),
		Symbol:      symbol,
		Timestamp:   a.now(),
		Resolution:  *res,
		Score:       score,
		Rank:        rank,
		Risks:       risks,
		Assessments: Assess(res.Record),
	}

	logger.Info(ctx, "Dividend analysis complete",
		"symbol", symbol,
		"name", res.Record.Name,
		"tier", res.Tier,
		"score", score.Total,
		"rank", rank.Grade,
		"risks", len(risks))
	op.End("score", score.Total)

	return report, nil
}
