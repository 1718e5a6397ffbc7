package kabutan

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"dividend-analyzer/internal/logger"
	"dividend-analyzer/internal/types"
)

// Tables is everything read from one finance page
type Tables struct {
	Performance []types.PerformanceRow
	CashFlow    map[string]types.CashFlowEntry
	Financial   map[string]types.FinancialEntry
}

// TableExtractor reads the three finance tables from a parsed document
type TableExtractor struct {
	locator *Locator
}

func NewTableExtractor(locator *Locator) *TableExtractor {
	if locator == nil {
		locator = NewLocator()
	}
	return &TableExtractor{locator: locator}
}

// Extract never fails: a missing table is logged and yields no rows
func (e *TableExtractor) Extract(ctx context.Context, doc *goquery.Selection) Tables {
	out := Tables{
		CashFlow:  make(map[string]types.CashFlowEntry),
		Financial: make(map[string]types.FinancialEntry),
	}

	if t := e.locate(ctx, doc, TablePerformance); t != nil {
		out.Performance = ExtractPerformance(ctx, t)
	}
	if t := e.locate(ctx, doc, TableCashFlow); t != nil {
		out.CashFlow = ExtractCashFlow(ctx, t)
	}
	if t := e.locate(ctx, doc, TableFinancial); t != nil {
		out.Financial = ExtractFinancial(ctx, t)
	}

	logger.Debug(ctx, "Tables extracted",
		"performance_rows", len(out.Performance),
		"cashflow_rows", len(out.CashFlow),
		"financial_rows", len(out.Financial))
	return out
}

func (e *TableExtractor) locate(ctx context.Context, doc *goquery.Selection, kind TableKind) *goquery.Selection {
	t, strategy, err := e.locator.Locate(doc, kind)
	if err != nil {
		logger.Warn(ctx, "Finance table not found, fields default to 0", "table", kind.String(), "error", err)
		return nil
	}
	logger.Debug(ctx, "Finance table located", "table", kind.String(), "strategy", strategy)
	return t
}

// dataRow is a row that passed the period and cell-count filters
type dataRow struct {
	period types.FiscalPeriod
	cells  *goquery.Selection
}

// eachDataRow yields annual rows with a row header and enough data cells
func eachDataRow(table *goquery.Selection, fn func(dataRow)) {
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		th := tr.ChildrenFiltered(`th[scope="row"]`).First()
		tds := tr.ChildrenFiltered("td")
		if th.Length() == 0 || tds.Length() < minDataCells {
			return
		}
		period, ok := ExtractPeriod(th)
		if !ok {
			return
		}
		fn(dataRow{period: period, cells: tds})
	})
}

func logLayout(ctx context.Context, kind TableKind, cols columnMap) {
	if !cols.resolved {
		logger.Debug(ctx, "Header columns unresolved, using fixed positions", "table", kind.String())
	}
}

// ExtractPerformance reads performance rows in table order.
// A repeated period replaces the earlier row.
func ExtractPerformance(ctx context.Context, table *goquery.Selection) []types.PerformanceRow {
	cols := resolveColumns(table, performanceLayout)
	logLayout(ctx, TablePerformance, cols)

	var rows []types.PerformanceRow
	seen := make(map[string]int)
	eachDataRow(table, func(r dataRow) {
		row := types.PerformanceRow{
			Period:          r.period,
			Sales:           cols.cell(r.cells, "sales"),
			OperatingProfit: cols.cell(r.cells, "operating_profit"),
			OrdinaryProfit:  cols.cell(r.cells, "ordinary_profit"),
			NetProfit:       cols.cell(r.cells, "net_profit"),
			EPS:             cols.cell(r.cells, "eps"),
			Dividend:        cols.cell(r.cells, "dividend"),
		}
		if i, dup := seen[r.period.Key]; dup {
			rows[i] = row
			return
		}
		seen[r.period.Key] = len(rows)
		rows = append(rows, row)
	})
	return rows
}

// ExtractCashFlow reads operating CF and cash equivalents keyed by period
func ExtractCashFlow(ctx context.Context, table *goquery.Selection) map[string]types.CashFlowEntry {
	cols := resolveColumns(table, cashFlowLayout)
	logLayout(ctx, TableCashFlow, cols)

	out := make(map[string]types.CashFlowEntry)
	eachDataRow(table, func(r dataRow) {
		out[r.period.Key] = types.CashFlowEntry{
			OperatingCF:     cols.cell(r.cells, "operating_cf"),
			CashEquivalents: cols.cell(r.cells, "cash"),
		}
	})
	return out
}

// ExtractFinancial reads the equity ratio keyed by period
func ExtractFinancial(ctx context.Context, table *goquery.Selection) map[string]types.FinancialEntry {
	cols := resolveColumns(table, financialLayout)
	logLayout(ctx, TableFinancial, cols)

	out := make(map[string]types.FinancialEntry)
	eachDataRow(table, func(r dataRow) {
		out[r.period.Key] = types.FinancialEntry{
			EquityRatio: cols.cell(r.cells, "equity_ratio"),
		}
	})
	return out
}
