package analysis

import (
	"math"

	"dividend-analyzer/internal/types"
)

// Assess classifies every cell of the yearly table and attaches the
// year-over-year change where a previous year exists.
func Assess(record *types.NormalizedRecord) []types.YearAssessment {
	if record == nil {
		return nil
	}
	out := make([]types.YearAssessment, 0, len(record.YearlyData))
	for i, row := range record.YearlyData {
		var prev *types.FiscalYearRow
		if i > 0 {
			prev = &record.YearlyData[i-1]
		}
		out = append(out, types.YearAssessment{
			FiscalYear: row.FiscalYear,
			Metrics: map[types.Metric]types.Assessment{
				types.MetricSales:           withChange(growthStatus(row, prev, colSales), row, prev, colSales),
				types.MetricOperatingMargin: withChange(marginStatus(row.OperatingMargin), row, prev, colOperatingMargin),
				types.MetricEPS:             withChange(growthStatus(row, prev, colEPS), row, prev, colEPS),
				types.MetricOperatingCF:     withChange(cashFlowStatus(row.OperatingCF), row, prev, colOperatingCF),
				types.MetricDividend:        withChange(dividendStatus(row, prev), row, prev, colDividend),
				types.MetricPayoutRatio:     withChange(payoutStatus(row.PayoutRatio), row, prev, colPayoutRatio),
				types.MetricEquityRatio:     withChange(equityStatus(row.EquityRatio), row, prev, colEquityRatio),
				types.MetricCash:            withChange(growthStatus(row, prev, colCash), row, prev, colCash),
			},
		})
	}
	return out
}

// Change is the percent change from prev to curr measured against |prev|.
// It returns false when prev is zero.
func Change(curr, prev float64) (float64, bool) {
	if prev == 0 {
		return 0, false
	}
	return (curr - prev) / math.Abs(prev) * 100, true
}

func withChange(status types.Status, row types.FiscalYearRow, prev *types.FiscalYearRow, col column) types.Assessment {
	a := types.Assessment{Status: status}
	if prev == nil {
		return a
	}
	if c, ok := Change(col(row), col(*prev)); ok {
		a.Change = &c
	}
	return a
}

// growthStatus: an increase is good, anything else is danger, the first year is neutral
func growthStatus(row types.FiscalYearRow, prev *types.FiscalYearRow, col column) types.Status {
	if prev == nil {
		return types.StatusNeutral
	}
	if col(row) > col(*prev) {
		return types.StatusGood
	}
	return types.StatusDanger
}

func dividendStatus(row types.FiscalYearRow, prev *types.FiscalYearRow) types.Status {
	if prev == nil {
		return types.StatusNeutral
	}
	if row.Dividend >= prev.Dividend {
		return types.StatusGood
	}
	return types.StatusDanger
}

func marginStatus(margin float64) types.Status {
	switch {
	case margin >= 10:
		return types.StatusGood
	case margin < 0:
		return types.StatusDanger
	default:
		return types.StatusNeutral
	}
}

func cashFlowStatus(cf float64) types.Status {
	if cf > 0 {
		return types.StatusGood
	}
	return types.StatusDanger
}

func payoutStatus(ratio float64) types.Status {
	switch {
	case ratio >= minPayout && ratio <= maxPayout:
		return types.StatusGood
	case ratio < 0 || ratio > payoutCutThreshold:
		return types.StatusDanger
	default:
		return types.StatusNeutral
	}
}

func equityStatus(ratio float64) types.Status {
	if ratio >= minEquityRatio {
		return types.StatusGood
	}
	return types.StatusNeutral
}
