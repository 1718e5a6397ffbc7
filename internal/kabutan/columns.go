package kabutan

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minDataCells is the number of td cells a data row needs to be read
const minDataCells = 6

// column binds a record field to header keywords and a known position
type column struct {
	field    string
	keywords []string
	fallback int
}

// layout lists the columns read from one table kind
type layout []column

var (
	performanceLayout = layout{
		{field: "sales", keywords: []string{"売上高", "売上収益", "営業収益"}, fallback: 0},
		{field: "operating_profit", keywords: []string{"営業益", "営業利益"}, fallback: 1},
		{field: "ordinary_profit", keywords: []string{"経常益", "税引前益", "税前益"}, fallback: 2},
		{field: "net_profit", keywords: []string{"最終益", "純利益"}, fallback: 3},
		{field: "eps", keywords: []string{"1株益"}, fallback: 4},
		{field: "dividend", keywords: []string{"1株配"}, fallback: 5},
	}
	cashFlowLayout = layout{
		{field: "operating_cf", keywords: []string{"営業CF"}, fallback: 2},
		{field: "cash", keywords: []string{"現金等"}, fallback: 5},
	}
	financialLayout = layout{
		{field: "equity_ratio", keywords: []string{"自己資本比率"}, fallback: 1},
	}
)

// columnMap maps a field to its td index within a data row
type columnMap struct {
	index    map[string]int
	resolved bool // true when read from the header, false for fixed positions
}

func (m columnMap) cell(tds *goquery.Selection, field string) *float64 {
	i, ok := m.index[field]
	if !ok || i >= tds.Length() {
		return nil
	}
	return ParseValuePtr(tds.Eq(i).Text())
}

// resolveColumns reads the header row of table and matches each field by keyword.
// The first header cell is the period column. Any unresolved field, or a header
// using colspan, makes the whole layout fall back to fixed positions.
func resolveColumns(table *goquery.Selection, l layout) columnMap {
	if headers, ok := headerCells(table); ok {
		index := make(map[string]int, len(l))
		used := make(map[int]bool, len(l))
		for _, col := range l {
			for pos := 1; pos < len(headers); pos++ {
				if used[pos] || !containsAny(headers[pos], col.keywords) {
					continue
				}
				index[col.field] = pos - 1
				used[pos] = true
				break
			}
		}
		if len(index) == len(l) {
			return columnMap{index: index, resolved: true}
		}
	}

	index := make(map[string]int, len(l))
	for _, col := range l {
		index[col.field] = col.fallback
	}
	return columnMap{index: index}
}

// headerCells returns the normalized text of each cell in the widest header row
func headerCells(table *goquery.Selection) ([]string, bool) {
	rows := table.Find("thead tr")
	if rows.Length() == 0 {
		rows = table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.ChildrenFiltered("th").Length() > 1 && tr.ChildrenFiltered("td").Length() == 0
		}).First()
	}

	var best *goquery.Selection
	rows.Each(func(_ int, tr *goquery.Selection) {
		if best == nil || tr.ChildrenFiltered("th, td").Length() > best.ChildrenFiltered("th, td").Length() {
			best = tr
		}
	})
	if best == nil {
		return nil, false
	}

	cells := best.ChildrenFiltered("th, td")
	if cells.Length() < 2 {
		return nil, false
	}
	headers := make([]string, 0, cells.Length())
	spanned := false
	cells.Each(func(_ int, c *goquery.Selection) {
		if span, ok := c.Attr("colspan"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(span)); err == nil && n > 1 {
				spanned = true
			}
		}
		headers = append(headers, normalizeHeader(c.Text()))
	})
	if spanned {
		return nil, false
	}
	return headers, true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
