package kabutan

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/width"
)

// ErrTableNotFound means no strategy found a table of the requested kind
var ErrTableNotFound = errors.New("table not found")

// TableKind selects one of the three finance tables
type TableKind int

const (
	TablePerformance TableKind = iota
	TableCashFlow
	TableFinancial
)

func (k TableKind) String() string {
	switch k {
	case TablePerformance:
		return "performance"
	case TableCashFlow:
		return "cashflow"
	case TableFinancial:
		return "financial"
	default:
		return "unknown"
	}
}

// maxAnchorDepth bounds the sibling walk after a section anchor
const maxAnchorDepth = 10

// Strategy is one way of finding a table in a document
type Strategy interface {
	Name() string
	Locate(doc *goquery.Selection) (*goquery.Selection, bool)
}

// FingerprintStrategy matches a stable container selector
type FingerprintStrategy struct {
	Selector string
}

func (s FingerprintStrategy) Name() string { return "fingerprint:" + s.Selector }

func (s FingerprintStrategy) Locate(doc *goquery.Selection) (*goquery.Selection, bool) {
	t := doc.Find(s.Selector).First()
	return t, t.Length() > 0
}

// AnchorStrategy finds the first table following a named anchor or heading.
// Wrapper elements between the anchor and the table are tolerated.
type AnchorStrategy struct {
	Selector string
	MaxDepth int
}

func (s AnchorStrategy) Name() string { return "anchor:" + s.Selector }

func (s AnchorStrategy) Locate(doc *goquery.Selection) (*goquery.Selection, bool) {
	anchor := doc.Find(s.Selector).First()
	if anchor.Length() == 0 {
		return nil, false
	}
	depth := s.MaxDepth
	if depth <= 0 {
		depth = maxAnchorDepth
	}

	next := anchor.Next()
	for i := 0; i < depth && next.Length() > 0; i++ {
		if goquery.NodeName(next) == "table" {
			return next, true
		}
		if nested := next.Find("table").First(); nested.Length() > 0 {
			return nested, true
		}
		next = next.Next()
	}
	return nil, false
}

// Signature is a set of keyword groups a header must satisfy.
// Each group matches when the header contains any one of its keywords.
type Signature [][]string

// Matches reports whether every group is satisfied by header
func (sig Signature) Matches(header string) bool {
	for _, group := range sig {
		found := false
		for _, kw := range group {
			if strings.Contains(header, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SignatureStrategy scans every table for a header row matching Signature
type SignatureStrategy struct {
	Signature Signature
}

func (s SignatureStrategy) Name() string { return "signature" }

func (s SignatureStrategy) Locate(doc *goquery.Selection) (*goquery.Selection, bool) {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if s.Signature.Matches(headerText(t)) {
			found = t
			return false
		}
		return true
	})
	return found, found != nil
}

// headerText returns the normalized text of a table's header.
// thead is preferred; otherwise the first row containing th cells is used.
func headerText(table *goquery.Selection) string {
	head := table.Find("thead").First()
	if head.Length() == 0 {
		head = table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.ChildrenFiltered("th").Length() > 1
		}).First()
	}
	if head.Length() == 0 {
		return ""
	}
	return normalizeHeader(head.Text())
}

func normalizeHeader(s string) string {
	s = width.Fold.String(s)
	return strings.Join(strings.Fields(s), "")
}

var (
	performanceSignature = Signature{
		{"売上高", "売上収益", "営業収益"},
		{"営業益"},
		{"修正"},
		{"1株益"},
	}
	cashFlowSignature = Signature{
		{"営業CF"},
		{"現金等", "フリーCF"},
	}
	financialSignature = Signature{
		{"自己資本"},
		{"比率"},
		{"純資産"},
	}
)

// DefaultStrategies returns the ordered strategies for kind
func DefaultStrategies(kind TableKind) []Strategy {
	switch kind {
	case TablePerformance:
		return []Strategy{
			FingerprintStrategy{Selector: ".fin_year_t0_d.fin_year_result_d table"},
			SignatureStrategy{Signature: performanceSignature},
		}
	case TableCashFlow:
		return []Strategy{
			AnchorStrategy{Selector: "#cashflow_name", MaxDepth: maxAnchorDepth},
			AnchorStrategy{Selector: ".cashflow_title", MaxDepth: maxAnchorDepth},
			SignatureStrategy{Signature: cashFlowSignature},
		}
	case TableFinancial:
		return []Strategy{
			AnchorStrategy{Selector: "#zaimu_name", MaxDepth: maxAnchorDepth},
			SignatureStrategy{Signature: financialSignature},
		}
	default:
		return nil
	}
}

// Locator runs strategies per table kind, first hit wins
type Locator struct {
	strategies map[TableKind][]Strategy
}

// NewLocator returns a locator using the default strategies
func NewLocator() *Locator {
	return &Locator{
		strategies: map[TableKind][]Strategy{
			TablePerformance: DefaultStrategies(TablePerformance),
			TableCashFlow:    DefaultStrategies(TableCashFlow),
			TableFinancial:   DefaultStrategies(TableFinancial),
		},
	}
}

// WithStrategies replaces the strategies for one kind
func (l *Locator) WithStrategies(kind TableKind, strategies ...Strategy) *Locator {
	l.strategies[kind] = strategies
	return l
}

// Locate returns the table and the name of the strategy that found it
func (l *Locator) Locate(doc *goquery.Selection, kind TableKind) (*goquery.Selection, string, error) {
	for _, s := range l.strategies[kind] {
		if t, ok := s.Locate(doc); ok {
			return t, s.Name(), nil
		}
	}
	return nil, "", ErrTableNotFound
}
