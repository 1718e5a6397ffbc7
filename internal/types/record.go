package types

import "fmt"

// FiscalPeriod identifies one annual reporting period.
// Key is the canonical "2024年03月" form, Raw keeps the "2024.03" label.
type FiscalPeriod struct {
	Key string `json:"key" yaml:"key"`
	Raw string `json:"raw" yaml:"raw"`
}

// NewFiscalPeriod builds a period from a four-digit year and two-digit month.
func NewFiscalPeriod(year, month string) FiscalPeriod {
	return FiscalPeriod{
		Key: fmt.Sprintf("%s年%s月", year, month),
		Raw: year + "." + month,
	}
}

// Equal reports whether both periods share the same canonical key
func (p FiscalPeriod) Equal(other FiscalPeriod) bool {
	return p.Key == other.Key
}

func (p FiscalPeriod) String() string {
	return p.Key
}

// PerformanceRow is one row of the income/performance table.
// Nil fields were present in the table but could not be read.
type PerformanceRow struct {
	Period          FiscalPeriod `json:"period"`
	Sales           *float64     `json:"sales,omitempty"`
	OperatingProfit *float64     `json:"operating_profit,omitempty"`
	OrdinaryProfit  *float64     `json:"ordinary_profit,omitempty"`
	NetProfit       *float64     `json:"net_profit,omitempty"`
	EPS             *float64     `json:"eps,omitempty"`
	Dividend        *float64     `json:"dividend,omitempty"`
}

// CashFlowEntry holds the retained cash-flow columns for one period
type CashFlowEntry struct {
	OperatingCF     *float64 `json:"operating_cf,omitempty"`
	CashEquivalents *float64 `json:"cash_equivalents,omitempty"`
}

// FinancialEntry holds the retained balance-sheet column for one period
type FinancialEntry struct {
	EquityRatio *float64 `json:"equity_ratio,omitempty"`
}

// FiscalYearRow merges the three tables for one period.
// Monetary values are in millions of yen as published.
type FiscalYearRow struct {
	FiscalYear      string  `json:"fiscal_year" yaml:"fiscal_year" csv:"fiscal_year"`
	Sales           float64 `json:"sales" yaml:"sales" csv:"sales"`
	OperatingMargin float64 `json:"operating_margin" yaml:"operating_margin" csv:"operating_margin"` // percent
	EPS             float64 `json:"eps" yaml:"eps" csv:"eps"`
	OperatingCF     float64 `json:"operating_cf" yaml:"operating_cf" csv:"operating_cf"`
	Dividend        float64 `json:"dividend" yaml:"dividend" csv:"dividend"`
	PayoutRatio     float64 `json:"payout_ratio" yaml:"payout_ratio" csv:"payout_ratio"` // percent
	EquityRatio     float64 `json:"equity_ratio" yaml:"equity_ratio" csv:"equity_ratio"` // percent
	Cash            float64 `json:"cash" yaml:"cash" csv:"cash"`
}

// NormalizedRecord is the multi-year record every downstream stage consumes.
// YearlyData is sorted ascending by fiscal year.
type NormalizedRecord struct {
	Symbol     string          `json:"symbol" yaml:"symbol"`
	Name       string          `json:"name" yaml:"name"`
	Sector     string          `json:"sector" yaml:"sector"`
	YearlyData []FiscalYearRow `json:"yearly_data" yaml:"yearly_data"`
}

// Latest returns the most recent year, or false when there is no data
func (r *NormalizedRecord) Latest() (FiscalYearRow, bool) {
	if r == nil || len(r.YearlyData) == 0 {
		return FiscalYearRow{}, false
	}
	return r.YearlyData[len(r.YearlyData)-1], true
}

// Clone returns a deep copy so callers can't mutate shared records
func (r *NormalizedRecord) Clone() *NormalizedRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.YearlyData = append([]FiscalYearRow(nil), r.YearlyData...)
	return &out
}

// CacheEntry is the persisted envelope for one cached record.
// Timestamp is unix milliseconds.
type CacheEntry struct {
	Data      *NormalizedRecord `json:"data"`
	Timestamp int64             `json:"timestamp"`
	Version   string            `json:"version"`
}
