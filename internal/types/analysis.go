package types

import (
	"fmt"
	"strings"
	"time"
)

// Tier names a data source in the resolution cascade
type Tier string

const (
	TierOnline Tier = "online" // live page through relays
	TierCache  Tier = "cache"  // local expiring store
	TierLocal  Tier = "local"  // bundled reference data
)

// ParseTier converts user input into a Tier
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierOnline, "":
		return TierOnline, nil
	case TierCache:
		return TierCache, nil
	case TierLocal:
		return TierLocal, nil
	default:
		return "", fmt.Errorf("unknown source %q: must be online, cache or local", s)
	}
}

// Resolution is what the resolver hands back for one request
type Resolution struct {
	Record   *NormalizedRecord `json:"record"`
	Tier     Tier              `json:"tier"`
	Warning  bool              `json:"warning"`
	Message  string            `json:"message,omitempty"`
	CachedAt *time.Time        `json:"cached_at,omitempty"`
}

// Detail is one scoring rule outcome
type Detail struct {
	Text     string `json:"text"`
	Achieved bool   `json:"achieved"`
}

// Category groups rules under one weight ceiling
type Category struct {
	Score   int      `json:"score"`
	Max     int      `json:"max"`
	Details []Detail `json:"details"`
}

// Award records a rule outcome and adds weight when it was achieved
func (c *Category) Award(achieved bool, weight int, text string) {
	if achieved {
		c.Score += weight
	}
	c.Details = append(c.Details, Detail{Text: text, Achieved: achieved})
}

// Breakdown holds the four scoring categories
type Breakdown struct {
	Growth        Category `json:"growth"`
	Profitability Category `json:"profitability"`
	Dividend      Category `json:"dividend"`
	Financial     Category `json:"financial"`
}

// ScoreResult is the total score (0-100) and its categories
type ScoreResult struct {
	Total     int       `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
}

// Rank is a letter grade with its label
type Rank struct {
	Grade string `json:"grade"` // A+, A, B, C
	Label string `json:"label"`
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities for sorting, critical first
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Risk is one triggered risk rule
type Risk struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Status classifies a single table cell
type Status string

const (
	StatusGood    Status = "good"
	StatusNeutral Status = "neutral"
	StatusDanger  Status = "danger"
)

// Metric names a FiscalYearRow column
type Metric string

const (
	MetricSales           Metric = "sales"
	MetricOperatingMargin Metric = "operating_margin"
	MetricEPS             Metric = "eps"
	MetricOperatingCF     Metric = "operating_cf"
	MetricDividend        Metric = "dividend"
	MetricPayoutRatio     Metric = "payout_ratio"
	MetricEquityRatio     Metric = "equity_ratio"
	MetricCash            Metric = "cash"
)

// Assessment is the status of one metric in one year.
// Change is the year-over-year percent, nil when there is no usable base.
type Assessment struct {
	Status Status   `json:"status"`
	Change *float64 `json:"change,omitempty"`
}

// YearAssessment collects assessments for one fiscal year
type YearAssessment struct {
	FiscalYear string                `json:"fiscal_year"`
	Metrics    map[Metric]Assessment `json:"metrics"`
}

// Report is the full analysis output for one symbol
type Report struct {
	ID          string           `json:"id"`
	Symbol      string           `json:"symbol"`
	Timestamp   time.Time        `json:"timestamp"`
	Resolution  Resolution       `json:"resolution"`
	Score       ScoreResult      `json:"score"`
	Rank        Rank             `json:"rank"`
	Risks       []Risk           `json:"risks"`
	Assessments []YearAssessment `json:"assessments"`
}

// HasCritical reports whether any risk is critical
func (r *Report) HasCritical() bool {
	for _, risk := range r.Risks {
		if risk.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
