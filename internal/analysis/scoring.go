package analysis

import (
	"fmt"

	"dividend-analyzer/internal/types"
)

// Category ceilings and rule weights
const (
	GrowthMax        = 30
	ProfitabilityMax = 20
	DividendMax      = 30
	FinancialMax     = 20

	growthRuleWeight    = 10
	marginRuleWeight    = 20
	dividendRuleWeight  = 15
	financialRuleWeight = 10

	windowYears    = 3
	minAvgMargin   = 10.0
	minPayout      = 30.0
	maxPayout      = 50.0
	minEquityRatio = 40.0
)

// Score evaluates the record against the fixed weighted rules.
// Every rule awards its full weight or nothing.
func Score(record *types.NormalizedRecord) types.ScoreResult {
	var rows []types.FiscalYearRow
	if record != nil {
		rows = record.YearlyData
	}
	latest, _ := record.Latest()

	growth := types.Category{Max: GrowthMax}
	growth.Award(consecutiveIncrease(rows, colSales, windowYears), growthRuleWeight, "売上高3年連続増加")
	growth.Award(consecutiveIncrease(rows, colEPS, windowYears), growthRuleWeight, "EPS3年連続増加")
	growth.Award(consecutivePositive(rows, colOperatingCF, windowYears), growthRuleWeight, "営業CF3年連続黒字")

	profitability := types.Category{Max: ProfitabilityMax}
	avgMargin := trailingAverage(rows, colOperatingMargin, windowYears)
	marginPass := len(rows) > 0 && avgMargin >= minAvgMargin
	profitability.Award(marginPass, marginRuleWeight,
		fmt.Sprintf("直近3年平均営業利益率 %.1f%% (%s)", avgMargin, pick(marginPass, "≥10%", "≥10%未達")))

	dividend := types.Category{Max: DividendMax}
	dividend.Award(consecutiveNonDecreasing(rows, colDividend, windowYears), dividendRuleWeight, "1株配当3年連続維持or増加")
	payoutPass := len(rows) > 0 && latest.PayoutRatio >= minPayout && latest.PayoutRatio <= maxPayout
	dividend.Award(payoutPass, dividendRuleWeight,
		fmt.Sprintf("配当性向 %.1f%% (%s)", latest.PayoutRatio, pick(payoutPass, "30-50%範囲内", "30-50%範囲外")))

	financial := types.Category{Max: FinancialMax}
	equityPass := len(rows) > 0 && latest.EquityRatio >= minEquityRatio
	financial.Award(equityPass, financialRuleWeight,
		fmt.Sprintf("自己資本比率 %.1f%% (%s)", latest.EquityRatio, pick(equityPass, "≥40%", "≥40%未達")))
	financial.Award(cashIncreased(rows), financialRuleWeight, "現金等前年比増加")

	return types.ScoreResult{
		Total: growth.Score + profitability.Score + dividend.Score + financial.Score,
		Breakdown: types.Breakdown{
			Growth:        growth,
			Profitability: profitability,
			Dividend:      dividend,
			Financial:     financial,
		},
	}
}

// cashIncreased compares the latest cash with the prior year
func cashIncreased(rows []types.FiscalYearRow) bool {
	recent := lastN(rows, 2)
	if recent == nil {
		return false
	}
	return recent[1].Cash > recent[0].Cash
}

// RankOf maps a total score onto the four fixed bands
func RankOf(total int) types.Rank {
	switch {
	case total >= 90:
		return types.Rank{Grade: "A+", Label: "優良"}
	case total >= 70:
		return types.Rank{Grade: "A", Label: "良好"}
	case total >= 50:
		return types.Rank{Grade: "B", Label: "要注意"}
	default:
		return types.Rank{Grade: "C", Label: "投資非推奨"}
	}
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
