package analysis

import "dividend-analyzer/internal/types"

// column picks one numeric column out of a row
type column func(types.FiscalYearRow) float64

var (
	colSales           column = func(r types.FiscalYearRow) float64 { return r.Sales }
	colOperatingMargin column = func(r types.FiscalYearRow) float64 { return r.OperatingMargin }
	colEPS             column = func(r types.FiscalYearRow) float64 { return r.EPS }
	colOperatingCF     column = func(r types.FiscalYearRow) float64 { return r.OperatingCF }
	colDividend        column = func(r types.FiscalYearRow) float64 { return r.Dividend }
	colPayoutRatio     column = func(r types.FiscalYearRow) float64 { return r.PayoutRatio }
	colEquityRatio     column = func(r types.FiscalYearRow) float64 { return r.EquityRatio }
	colCash            column = func(r types.FiscalYearRow) float64 { return r.Cash }
)

// lastN returns the trailing n rows, or nil when fewer exist
func lastN(rows []types.FiscalYearRow, n int) []types.FiscalYearRow {
	if n <= 0 || len(rows) < n {
		return nil
	}
	return rows[len(rows)-n:]
}

// consecutiveIncrease reports whether col rose strictly in each of the
// last years transitions. It needs years+1 data points.
func consecutiveIncrease(rows []types.FiscalYearRow, col column, years int) bool {
	recent := lastN(rows, years+1)
	if recent == nil {
		return false
	}
	for i := 1; i < len(recent); i++ {
		if col(recent[i]) <= col(recent[i-1]) {
			return false
		}
	}
	return true
}

// consecutiveNonDecreasing is consecutiveIncrease with ties allowed
func consecutiveNonDecreasing(rows []types.FiscalYearRow, col column, years int) bool {
	recent := lastN(rows, years+1)
	if recent == nil {
		return false
	}
	for i := 1; i < len(recent); i++ {
		if col(recent[i]) < col(recent[i-1]) {
			return false
		}
	}
	return true
}

// consecutivePositive reports whether col was above zero in each of the last years rows
func consecutivePositive(rows []types.FiscalYearRow, col column, years int) bool {
	recent := lastN(rows, years)
	if recent == nil {
		return false
	}
	for _, r := range recent {
		if col(r) <= 0 {
			return false
		}
	}
	return true
}

// consecutiveNegative reports whether col was below zero in each of the last years rows
func consecutiveNegative(rows []types.FiscalYearRow, col column, years int) bool {
	recent := lastN(rows, years)
	if recent == nil {
		return false
	}
	for _, r := range recent {
		if col(r) >= 0 {
			return false
		}
	}
	return true
}

// trailingAverage averages col over at most the last n rows
func trailingAverage(rows []types.FiscalYearRow, col column, n int) float64 {
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	if len(rows) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rows {
		sum += col(r)
	}
	return sum / float64(len(rows))
}
