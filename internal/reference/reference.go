// Package reference serves the bundled reference dataset, the last tier
// of the source cascade.
package reference

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"dividend-analyzer/internal/types"
)

//go:embed stocks.yaml
var bundled []byte

type entry struct {
	Name       string                `yaml:"name"`
	Sector     string                `yaml:"sector"`
	YearlyData []types.FiscalYearRow `yaml:"yearly_data"`
}

type document struct {
	Stocks map[string]entry `yaml:"stocks"`
}

// Dataset is an immutable symbol -> record table
type Dataset struct {
	records map[string]*types.NormalizedRecord
	symbols []string
}

// Load parses the embedded dataset
func Load() (*Dataset, error) {
	return Parse(bundled)
}

// MustLoad is Load for package init paths; the embedded file is fixed at build time
func MustLoad() *Dataset {
	d, err := Load()
	if err != nil {
		panic(err)
	}
	return d
}

// Parse builds a dataset from YAML in the bundled layout
func Parse(data []byte) (*Dataset, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}

	d := &Dataset{records: make(map[string]*types.NormalizedRecord, len(doc.Stocks))}
	for code, e := range doc.Stocks {
		rows := append([]types.FiscalYearRow(nil), e.YearlyData...)
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].FiscalYear < rows[j].FiscalYear })
		if len(rows) < 2 {
			return nil, fmt.Errorf("reference %s: need at least 2 fiscal years, got %d", code, len(rows))
		}
		d.records[code] = &types.NormalizedRecord{
			Symbol:     code,
			Name:       e.Name,
			Sector:     e.Sector,
			YearlyData: rows,
		}
		d.symbols = append(d.symbols, code)
	}
	sort.Strings(d.symbols)
	return d, nil
}

// Lookup returns a copy of the bundled record for symbol
func (d *Dataset) Lookup(symbol string) (*types.NormalizedRecord, bool) {
	r, ok := d.records[symbol]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Symbols lists the bundled codes in ascending order
func (d *Dataset) Symbols() []string {
	return append([]string(nil), d.symbols...)
}
