package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend-analyzer/internal/reference"
	"dividend-analyzer/internal/resolver"
	"dividend-analyzer/internal/types"
)

type stubResolver struct {
	ref   *reference.Dataset
	err   error
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, symbol string, tier types.Tier) (*types.Resolution, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.ref.Lookup(symbol)
	if !ok {
		return nil, errors.New("missing")
	}
	return &types.Resolution{Record: rec, Tier: types.TierLocal, Warning: tier != types.TierLocal, Message: "⚠ オンライン取得に失敗。内蔵サンプルデータを表示しています"}, nil
}

func newAnalyzer() (*Analyzer, *stubResolver) {
	ref := reference.MustLoad()
	stub := &stubResolver{ref: ref}
	a := NewAnalyzer(stub, ref)
	a.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	return a, stub
}

func TestValidateSymbol(t *testing.T) {
	code, err := ValidateSymbol(" 9843 ")
	require.NoError(t, err)
	assert.Equal(t, "9843", code)

	for _, bad := range []string{"", "   ", "984", "98430", "98a3", "９８４３"} {
		_, err := ValidateSymbol(bad)
		assert.ErrorIs(t, err, ErrInvalidSymbol, bad)
	}
}

func TestAnalyze(t *testing.T) {
	a, _ := newAnalyzer()

	report, err := a.Analyze(context.Background(), "4502", types.TierOnline)
	require.NoError(t, err)

	_, err = uuid.Parse(report.ID)
	assert.NoError(t, err)
	assert.Equal(t, "4502", report.Symbol)
	assert.Equal(t, types.TierLocal, report.Resolution.Tier)
	assert.True(t, report.Resolution.Warning)
	assert.Equal(t, 45, report.Score.Total)
	assert.Equal(t, "C", report.Rank.Grade)
	assert.Len(t, report.Risks, 2)
	assert.True(t, report.HasCritical())
	assert.Len(t, report.Assessments, 9)
}

func TestAnalyze_InvalidSymbol(t *testing.T) {
	a, stub := newAnalyzer()
	_, err := a.Analyze(context.Background(), "abcd", types.TierOnline)
	assert.ErrorIs(t, err, ErrInvalidSymbol)
	assert.Zero(t, stub.calls)
}

func TestAnalyze_LocalUnknownListsCodes(t *testing.T) {
	a, stub := newAnalyzer()
	_, err := a.Analyze(context.Background(), "7203", types.TierLocal)
	require.Error(t, err)
	assert.ErrorIs(t, err, resolver.ErrNotInReference)
	assert.Contains(t, err.Error(), "サンプルデータに銘柄「7203」がありません")
	assert.Contains(t, err.Error(), "2914、4502、8591、8766、9433、9843")
	assert.Zero(t, stub.calls)
}

func TestAnalyze_ResolverError(t *testing.T) {
	a, stub := newAnalyzer()
	stub.err = &resolver.ExhaustedError{Symbol: "7203", Err: resolver.ErrCacheMiss}

	_, err := a.Analyze(context.Background(), "7203", types.TierOnline)
	assert.ErrorIs(t, err, resolver.ErrAllSourcesExhausted)
}

func sampleReport(t *testing.T) *types.Report {
	t.Helper()
	a, _ := newAnalyzer()
	report, err := a.Analyze(context.Background(), "8591", types.TierOnline)
	require.NoError(t, err)
	return report
}

func TestReporter_Text(t *testing.T) {
	out, err := NewReporter(t.TempDir()).GenerateReport(sampleReport(t), FormatText)
	require.NoError(t, err)

	assert.Contains(t, out, "配当株分析レポート - 8591 オリックス")
	assert.Contains(t, out, "データ期間: 2017年03月 〜 2025年03月（9期分）")
	assert.Contains(t, out, "⚠ オンライン取得に失敗")
	assert.Contains(t, out, "2,850,200")
	assert.Contains(t, out, "投資適格性スコア: 90/100 (A+ 優良)")
	assert.Contains(t, out, "✓ 売上高3年連続増加")
	assert.Contains(t, out, "✗ 自己資本比率 28.9% (≥40%未達)")
	assert.Contains(t, out, "1. [HIGH] 財務脆弱")
}

func TestReporter_TextSortsRisksBySeverity(t *testing.T) {
	a, _ := newAnalyzer()
	report, err := a.Analyze(context.Background(), "4502", types.TierOnline)
	require.NoError(t, err)

	out, err := NewReporter("").GenerateReport(report, FormatText)
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "[CRITICAL] 利益超過配当"), strings.Index(out, "[HIGH] 減配リスクあり"))
}

func TestReporter_JSON(t *testing.T) {
	report := sampleReport(t)
	out, err := NewReporter("").GenerateReport(report, FormatJSON)
	require.NoError(t, err)

	var decoded types.Report
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, report.ID, decoded.ID)
	assert.Equal(t, 90, decoded.Score.Total)
	assert.Equal(t, "local", string(decoded.Resolution.Tier))
}

func TestReporter_CSV(t *testing.T) {
	out, err := NewReporter("").GenerateReport(sampleReport(t), FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "symbol,name,tier,fiscal_year,sales,operating_margin,eps,operating_cf,dividend,payout_ratio,equity_ratio,cash", lines[0])

	var rows []*csvRow
	require.NoError(t, gocsv.Unmarshal(bytes.NewBufferString(out), &rows))
	require.Len(t, rows, 9)
	assert.Equal(t, "2025年03月", rows[8].FiscalYear)
	assert.Equal(t, 2850200.0, rows[8].Sales)
}

func TestReporter_SaveReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := NewReporter(dir).SaveReport(sampleReport(t), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "8591_dividend_20250601_093000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	path, err = NewReporter(dir).SaveReport(sampleReport(t), FormatText)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".txt"))
}

func TestReporter_UnsupportedFormat(t *testing.T) {
	_, err := NewReporter("").GenerateReport(sampleReport(t), ReportFormat("xml"))
	assert.Error(t, err)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
}
