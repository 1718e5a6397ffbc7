package kabutan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"dividend-analyzer/internal/types"
)

// ErrInsufficientHistory means fewer than MinPeriods annual rows were usable
var ErrInsufficientHistory = errors.New("insufficient history")

// MinPeriods is the shortest history that still allows a prior-year comparison
const MinPeriods = 2

// LiveSector labels records parsed from a live page
const LiveSector = "株探データ"

// round rounds half away from zero to places decimals
func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func valueOr0(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// OperatingMargin is 100 * operatingProfit / sales, or 0 without positive sales
func OperatingMargin(operatingProfit, sales float64) float64 {
	if sales <= 0 || operatingProfit == 0 {
		return 0
	}
	return 100 * operatingProfit / sales
}

// PayoutRatio is 100 * dividend / eps, or 0 when eps is zero
func PayoutRatio(dividend, eps float64) float64 {
	if eps == 0 || dividend == 0 {
		return 0
	}
	return 100 * dividend / eps
}

// Assemble left-joins cash-flow and balance-sheet entries onto the performance rows.
// Missing values become 0, ratios are derived, and rows are sorted by period key.
func Assemble(symbol, name string, t Tables) (*types.NormalizedRecord, error) {
	byKey := make(map[string]types.PerformanceRow, len(t.Performance))
	for _, row := range t.Performance {
		byKey[row.Period.Key] = row
	}
	if len(byKey) < MinPeriods {
		return nil, fmt.Errorf("%w: %d annual rows for %s, need %d", ErrInsufficientHistory, len(byKey), symbol, MinPeriods)
	}

	years := make([]types.FiscalYearRow, 0, len(byKey))
	for key, perf := range byKey {
		cf := t.CashFlow[key]
		fin := t.Financial[key]

		sales := valueOr0(perf.Sales)
		operatingProfit := valueOr0(perf.OperatingProfit)
		eps := valueOr0(perf.EPS)
		dividend := valueOr0(perf.Dividend)

		years = append(years, types.FiscalYearRow{
			FiscalYear:      key,
			Sales:           round(sales, 0),
			OperatingMargin: round(OperatingMargin(operatingProfit, sales), 2),
			EPS:             round(eps, 1),
			OperatingCF:     round(valueOr0(cf.OperatingCF), 0),
			Dividend:        round(dividend, 1),
			PayoutRatio:     round(PayoutRatio(dividend, eps), 1),
			EquityRatio:     round(valueOr0(fin.EquityRatio), 1),
			Cash:            round(valueOr0(cf.CashEquivalents), 0),
		})
	}

	sort.Slice(years, func(i, j int) bool {
		return years[i].FiscalYear < years[j].FiscalYear
	})

	return &types.NormalizedRecord{
		Symbol:     symbol,
		Name:       name,
		Sector:     LiveSector,
		YearlyData: years,
	}, nil
}
