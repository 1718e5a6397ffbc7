package kabutan

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/width"

	"dividend-analyzer/internal/types"
)

var yearMonth = regexp.MustCompile(`(\d{4})\.(\d{2})`)

// forecastMarkers identify the inline label kabutan puts on forecast rows
var forecastMarkers = []string{"予", "forecast"}

// ExtractPeriod reads a row header cell such as `<th scope="row">2024.03</th>`.
// Forecast rows and hyphenated quarterly ranges ("24.10-03") are rejected.
func ExtractPeriod(th *goquery.Selection) (types.FiscalPeriod, bool) {
	if th == nil || th.Length() == 0 {
		return types.FiscalPeriod{}, false
	}

	forecast := false
	th.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToLower(s.Text())
		for _, marker := range forecastMarkers {
			if strings.Contains(label, marker) {
				forecast = true
				return false
			}
		}
		return true
	})
	if forecast {
		return types.FiscalPeriod{}, false
	}

	return ParsePeriodText(th.Text())
}

// ParsePeriodText applies the period rules to plain header text
func ParsePeriodText(text string) (types.FiscalPeriod, bool) {
	full := width.Fold.String(strings.TrimSpace(text))
	if strings.Contains(full, "-") || strings.Contains(full, "～") || strings.Contains(full, "~") {
		return types.FiscalPeriod{}, false
	}

	m := yearMonth.FindStringSubmatch(full)
	if m == nil {
		return types.FiscalPeriod{}, false
	}
	return types.NewFiscalPeriod(m[1], m[2]), true
}
