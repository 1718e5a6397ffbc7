package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"dividend-analyzer/internal/types"
)

// ReportFormat specifies the output format for dividend reports
type ReportFormat string

const (
	FormatText ReportFormat = "text"
	FormatJSON ReportFormat = "json"
	FormatCSV  ReportFormat = "csv"
)

// ParseFormat validates a user supplied format name
func ParseFormat(s string) (ReportFormat, error) {
	switch f := ReportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

func (f ReportFormat) extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Reporter handles generation and storage of dividend reports
type Reporter struct {
	outputDir string
}

// NewReporter creates a new reporter
func NewReporter(outputDir string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
	}
}

// GenerateReport renders the report in the specified format
func (r *Reporter) GenerateReport(report *types.Report, format ReportFormat) (string, error) {
	switch format {
	case FormatJSON:
		return r.generateJSONReport(report)
	case FormatText:
		return r.generateTextReport(report)
	case FormatCSV:
		return r.generateCSVReport(report)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// SaveReport writes the report to <outputDir>/<code>_dividend_<yyyymmdd_hhmmss>.<ext>
func (r *Reporter) SaveReport(report *types.Report, format ReportFormat) (string, error) {
	content, err := r.GenerateReport(report, format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", err
	}

	timestamp := report.Timestamp.Format("20060102_150405")
	filename := fmt.Sprintf("%s_dividend_%s.%s", report.Symbol, timestamp, format.extension())
	path := filepath.Join(r.outputDir, filename)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Reporter) generateJSONReport(report *types.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// csvRow is one fiscal year with the identifying columns repeated
type csvRow struct {
	Symbol          string  `csv:"symbol"`
	Name            string  `csv:"name"`
	Tier            string  `csv:"tier"`
	FiscalYear      string  `csv:"fiscal_year"`
	Sales           float64 `csv:"sales"`
	OperatingMargin float64 `csv:"operating_margin"`
	EPS             float64 `csv:"eps"`
	OperatingCF     float64 `csv:"operating_cf"`
	Dividend        float64 `csv:"dividend"`
	PayoutRatio     float64 `csv:"payout_ratio"`
	EquityRatio     float64 `csv:"equity_ratio"`
	Cash            float64 `csv:"cash"`
}

func (r *Reporter) generateCSVReport(report *types.Report) (string, error) {
	rec := report.Resolution.Record
	if rec == nil {
		return "", fmt.Errorf("report %s has no record", report.Symbol)
	}
	rows := make([]*csvRow, 0, len(rec.YearlyData))
	for _, y := range rec.YearlyData {
		rows = append(rows, &csvRow{
			Symbol:          report.Symbol,
			Name:            rec.Name,
			Tier:            string(report.Resolution.Tier),
			FiscalYear:      y.FiscalYear,
			Sales:           y.Sales,
			OperatingMargin: y.OperatingMargin,
			EPS:             y.EPS,
			OperatingCF:     y.OperatingCF,
			Dividend:        y.Dividend,
			PayoutRatio:     y.PayoutRatio,
			EquityRatio:     y.EquityRatio,
			Cash:            y.Cash,
		})
	}
	return gocsv.MarshalString(&rows)
}

func (r *Reporter) generateTextReport(report *types.Report) (string, error) {
	rec := report.Resolution.Record
	if rec == nil {
		return "", fmt.Errorf("report %s has no record", report.Symbol)
	}
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("配当株分析レポート - %s %s\n", report.Symbol, rec.Name))
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("業種: %s\n", rec.Sector))
	sb.WriteString(fmt.Sprintf("データソース: %s\n", report.Resolution.Tier))
	sb.WriteString(fmt.Sprintf("生成日時: %s\n", report.Timestamp.Format("2006-01-02 15:04:05")))
	if n := len(rec.YearlyData); n > 0 {
		sb.WriteString(fmt.Sprintf("データ期間: %s 〜 %s（%d期分）\n", rec.YearlyData[0].FiscalYear, rec.YearlyData[n-1].FiscalYear, n))
	}
	if msg := report.Resolution.Message; msg != "" {
		sb.WriteString(msg + "\n")
	}
	sb.WriteString("\n")

	r.addYearlyTable(&sb, report)
	r.addScoreSection(&sb, report)
	r.addRiskSection(&sb, report)

	sb.WriteString("\n" + strings.Repeat("=", 80) + "\n")
	sb.WriteString("END OF REPORT\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")

	return sb.String(), nil
}

func (r *Reporter) addYearlyTable(sb *strings.Builder, report *types.Report) {
	statuses := make(map[string]map[types.Metric]types.Assessment, len(report.Assessments))
	for _, ya := range report.Assessments {
		statuses[ya.FiscalYear] = ya.Metrics
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"決算期", "売上高", "営業利益率", "EPS", "営業CF", "1株配当", "配当性向", "自己資本比率", "現金等"})

	cfgs := make([]table.ColumnConfig, 0, 8)
	for i := 2; i <= 9; i++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: i, Align: text.AlignRight, AlignHeader: text.AlignRight})
	}
	tw.SetColumnConfigs(cfgs)

	for _, y := range report.Resolution.Record.YearlyData {
		m := statuses[y.FiscalYear]
		tw.AppendRow(table.Row{
			y.FiscalYear,
			mark(formatMillions(y.Sales), m[types.MetricSales].Status),
			mark(fmt.Sprintf("%.1f%%", y.OperatingMargin), m[types.MetricOperatingMargin].Status),
			mark(fmt.Sprintf("%.1f円", y.EPS), m[types.MetricEPS].Status),
			mark(formatMillions(y.OperatingCF), m[types.MetricOperatingCF].Status),
			mark(fmt.Sprintf("%.1f円", y.Dividend), m[types.MetricDividend].Status),
			mark(fmt.Sprintf("%.1f%%", y.PayoutRatio), m[types.MetricPayoutRatio].Status),
			mark(fmt.Sprintf("%.1f%%", y.EquityRatio), m[types.MetricEquityRatio].Status),
			mark(formatMillions(y.Cash), m[types.MetricCash].Status),
		})
	}

	sb.WriteString("年度別財務データ（単位: 百万円）\n")
	sb.WriteString(tw.Render() + "\n")
	sb.WriteString("  ○ 良好  × 要注意\n")
}

func (r *Reporter) addScoreSection(sb *strings.Builder, report *types.Report) {
	s := report.Score
	sb.WriteString(fmt.Sprintf("\n投資適格性スコア: %d/100 (%s %s)\n", s.Total, report.Rank.Grade, report.Rank.Label))
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	categories := []struct {
		name string
		cat  types.Category
	}{
		{"成長性", s.Breakdown.Growth},
		{"収益性", s.Breakdown.Profitability},
		{"配当安定性", s.Breakdown.Dividend},
		{"財務健全性", s.Breakdown.Financial},
	}
	for _, c := range categories {
		sb.WriteString(fmt.Sprintf("%s %d/%d\n", c.name, c.cat.Score, c.cat.Max))
		for _, d := range c.cat.Details {
			check := "✗"
			if d.Achieved {
				check = "✓"
			}
			sb.WriteString(fmt.Sprintf("  %s %s\n", check, d.Text))
		}
	}
}

func (r *Reporter) addRiskSection(sb *strings.Builder, report *types.Report) {
	sb.WriteString(fmt.Sprintf("\nリスク警告: %d件\n", len(report.Risks)))
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	if len(report.Risks) == 0 {
		sb.WriteString("重大なリスクは検出されませんでした。\n")
		return
	}

	sorted := make([]types.Risk, len(report.Risks))
	copy(sorted, report.Risks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() < sorted[j].Severity.Rank()
	})

	for i, risk := range sorted {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, strings.ToUpper(string(risk.Severity)), risk.Title))
		sb.WriteString(fmt.Sprintf("   %s\n", risk.Description))
	}
}

func formatMillions(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}

func mark(value string, status types.Status) string {
	switch status {
	case types.StatusGood:
		return value + " ○"
	case types.StatusDanger:
		return value + " ×"
	default:
		return value + "  "
	}
}
