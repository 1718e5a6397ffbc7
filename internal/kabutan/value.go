package kabutan

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	strictNumber  = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	leadingNumber = regexp.MustCompile(`^-?(?:\d+\.?\d*|\.\d+)`)
	unitSuffix    = regexp.MustCompile(`[*＊#＃%％円百万億]+$`)
	nonNumeric    = regexp.MustCompile(`[^\d.\-]`)

	// dashes that mean "no value" in a cell
	emptyMarkers = map[string]bool{"": true, "-": true, "---": true, "－": true, "―": true, "—": true, "‐": true}

	signFolder = strings.NewReplacer("△", "-", "▲", "-", "−", "-")
)

// ParseValue reads a financial cell such as "1,234", "△56.7" or "１２３百万円".
// The second result is false when the cell holds no number.
func ParseValue(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if emptyMarkers[s] {
		return 0, false
	}

	s = signFolder.Replace(s)
	s = width.Fold.String(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	s = unitSuffix.ReplaceAllString(s, "")

	if strictNumber.MatchString(s) {
		v, err := strconv.ParseFloat(s, 64)
		return v, err == nil
	}

	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" || s == "-" {
		return 0, false
	}
	m := leadingNumber.FindString(s)
	if m == "" || m == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseValuePtr is ParseValue returning nil for absence
func ParseValuePtr(text string) *float64 {
	v, ok := ParseValue(text)
	if !ok {
		return nil
	}
	return &v
}
