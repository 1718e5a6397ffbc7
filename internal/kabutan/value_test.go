package kabutan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,234", 1234, true},
		{"  1,234,567  ", 1234567, true},
		{"△1,234", -1234, true},
		{"▲56.7", -56.7, true},
		{"-42", -42, true},
		{"１２，３４５", 12345, true},
		{"１２．５", 12.5, true},
		{"－３", -3, true},
		{"109.4", 109.4, true},
		{"30円", 30, true},
		{"45.2%", 45.2, true},
		{"1,200百万円", 1200, true},
		{"3億", 3, true},
		{"88*", 88, true},
		{"77#", 77, true},
		{"25.0＊", 25, true},
		{"(12.5)", 12.5, true},
		{"約1,000", 1000, true},
		{"1.2.3", 1.2, true},
		{"", 0, false},
		{"   ", 0, false},
		{"-", 0, false},
		{"---", 0, false},
		{"－", 0, false},
		{"―", 0, false},
		{"△", 0, false},
		{"N/A", 0, false},
		{"円", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseValue(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func formatThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "△" + b.String()
	}
	return b.String()
}

func TestParseValue_RoundTripsFormattedIntegers(t *testing.T) {
	for _, n := range []int64{0, 7, -7, 999, 1000, -1000, 12345, -987654, 7388791, -123456789, 1234567890123} {
		s := formatThousands(n)
		got, ok := ParseValue(s)
		if assert.True(t, ok, s) {
			assert.Equal(t, float64(n), got, s)
		}
	}
}

func TestParseValuePtr(t *testing.T) {
	assert.Nil(t, ParseValuePtr("---"))
	if p := ParseValuePtr("12"); assert.NotNil(t, p) {
		assert.Equal(t, 12.0, *p)
	}
}
