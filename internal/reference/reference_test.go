package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Bundled(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"2914", "4502", "8591", "8766", "9433", "9843"}, d.Symbols())

	r, ok := d.Lookup("9843")
	require.True(t, ok)
	assert.Equal(t, "9843", r.Symbol)
	assert.Equal(t, "ニトリホールディングス", r.Name)
	assert.Equal(t, "小売業", r.Sector)
	require.Len(t, r.YearlyData, 9)

	first := r.YearlyData[0]
	assert.Equal(t, "2017年02月", first.FiscalYear)
	assert.Equal(t, 512958.0, first.Sales)
	assert.Equal(t, 16.72, first.OperatingMargin)
	assert.Equal(t, 82.0, first.Dividend)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "2025年02月", latest.FiscalYear)
	assert.Equal(t, 52.8, latest.EquityRatio)
}

func TestLoad_RecordsAscending(t *testing.T) {
	d := MustLoad()
	for _, code := range d.Symbols() {
		r, ok := d.Lookup(code)
		require.True(t, ok, code)
		for i := 1; i < len(r.YearlyData); i++ {
			assert.Less(t, r.YearlyData[i-1].FiscalYear, r.YearlyData[i].FiscalYear, code)
		}
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	d := MustLoad()
	r, _ := d.Lookup("2914")
	r.YearlyData[0].Sales = 0
	r.Name = "changed"

	again, _ := d.Lookup("2914")
	assert.Equal(t, "日本たばこ産業", again.Name)
	assert.Equal(t, 2139653.0, again.YearlyData[0].Sales)
}

func TestLookup_Missing(t *testing.T) {
	d := MustLoad()
	_, ok := d.Lookup("7203")
	assert.False(t, ok)
}

func TestSymbols_ReturnsCopy(t *testing.T) {
	d := MustLoad()
	s := d.Symbols()
	s[0] = "0000"
	assert.Equal(t, "2914", d.Symbols()[0])
}

func TestParse(t *testing.T) {
	data := []byte(`
stocks:
  "1234":
    name: テスト
    sector: 小売業
    yearly_data:
      - {fiscal_year: "2024年03月", sales: 200}
      - {fiscal_year: "2023年03月", sales: 100}
`)
	d, err := Parse(data)
	require.NoError(t, err)
	r, ok := d.Lookup("1234")
	require.True(t, ok)
	assert.Equal(t, "2023年03月", r.YearlyData[0].FiscalYear, "rows are sorted by fiscal year")

	_, err = Parse([]byte(`stocks: {"1": {yearly_data: [{fiscal_year: "2024年03月"}]}}`))
	assert.Error(t, err)

	_, err = Parse([]byte("stocks: ["))
	assert.Error(t, err)
}
