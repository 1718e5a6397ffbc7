package kabutan

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dividend-analyzer/internal/logger"
	"dividend-analyzer/internal/types"
)

// DefaultURLTemplate is the kabutan finance page for a code
const DefaultURLTemplate = "https://kabutan.jp/stock/finance?code={code}"

// Parser turns a kabutan finance page into a NormalizedRecord
type Parser struct {
	urlTemplate string
	tables      *TableExtractor
}

// NewParser builds a parser. An empty template uses DefaultURLTemplate.
func NewParser(urlTemplate string) *Parser {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Parser{
		urlTemplate: urlTemplate,
		tables:      NewTableExtractor(NewLocator()),
	}
}

// URL returns the finance page address for code
func (p *Parser) URL(code string) string {
	return strings.ReplaceAll(p.urlTemplate, "{code}", url.QueryEscape(code))
}

// Extract parses html and assembles the record for code
func (p *Parser) Extract(ctx context.Context, html, code string) (*types.NormalizedRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse finance page for %s: %w", code, err)
	}

	name := ExtractCompanyName(doc.Selection, code)
	tables := p.tables.Extract(ctx, doc.Selection)

	record, err := Assemble(code, name, tables)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Finance page parsed",
		"symbol", code,
		"name", name,
		"years", len(record.YearlyData))
	return record, nil
}
