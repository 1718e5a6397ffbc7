package analysis

import (
	"fmt"

	"dividend-analyzer/internal/types"
)

const (
	payoutCutThreshold    = 80.0
	payoutExcessThreshold = 100.0
	weakEquityThreshold   = 30.0
)

// Detect evaluates the latest year against independent risk triggers.
// Zero or more risks may fire; the cash-flow rule looks at the last 3 years.
func Detect(record *types.NormalizedRecord) []types.Risk {
	latest, ok := record.Latest()
	if !ok {
		return nil
	}
	risks := []types.Risk{}

	if latest.PayoutRatio > payoutCutThreshold {
		risks = append(risks, types.Risk{
			Title:       "減配リスクあり",
			Description: fmt.Sprintf("配当性向が %.1f%% と高水準です（80%%超）。利益の大部分を配当に充てており、業績悪化時に減配の可能性があります。", latest.PayoutRatio),
			Severity:    types.SeverityHigh,
		})
	}

	if latest.OperatingMargin < 0 {
		risks = append(risks, types.Risk{
			Title:       "本業赤字",
			Description: fmt.Sprintf("営業利益率が %.2f%% でマイナスです。本業での収益獲得に課題があり、構造的な問題の可能性があります。", latest.OperatingMargin),
			Severity:    types.SeverityCritical,
		})
	}

	if latest.EquityRatio < weakEquityThreshold {
		risks = append(risks, types.Risk{
			Title:       "財務脆弱",
			Description: fmt.Sprintf("自己資本比率が %.1f%% と低水準です（30%%未満）。負債依存度が高く、金利上昇局面でのリスクがあります。", latest.EquityRatio),
			Severity:    types.SeverityHigh,
		})
	}

	// needs three rows; a two-year record stays silent even when both years are negative
	if consecutiveNegative(record.YearlyData, colOperatingCF, windowYears) {
		risks = append(risks, types.Risk{
			Title:       "資金繰り悪化",
			Description: "営業キャッシュフローが3年連続で赤字です。事業運営からの現金創出力に深刻な問題があります。",
			Severity:    types.SeverityCritical,
		})
	}

	// a negative ratio means negative EPS with a paid dividend
	if latest.PayoutRatio < 0 {
		risks = append(risks, types.Risk{
			Title:       "利益超過配当",
			Description: "EPSがマイナスにもかかわらず配当を実施しています。持続不可能な配当政策の可能性があります。",
			Severity:    types.SeverityCritical,
		})
	}

	if latest.PayoutRatio > payoutExcessThreshold {
		risks = append(risks, types.Risk{
			Title:       "利益超過配当",
			Description: fmt.Sprintf("配当性向が %.1f%% と100%%を超えています。利益以上の配当を行っており、内部留保の取り崩しまたは借入による配当の可能性があります。", latest.PayoutRatio),
			Severity:    types.SeverityCritical,
		})
	}

	return risks
}
