package kabutan

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	titleName     = regexp.MustCompile(`^(.+?)\s*[（(【]`)
	bracketSuffix = regexp.MustCompile(`\s*[（(【].*$`)
	nameSelectors = []string{"h2", "h1", ".company_name", ".stockName"}
	maxNameRunes  = 50
)

// ExtractCompanyName finds the issuer name on a finance page.
// It tries the <title> prefix, then common heading selectors, then "銘柄 <code>".
func ExtractCompanyName(doc *goquery.Selection, code string) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if m := titleName.FindStringSubmatch(title); m != nil {
		name := strings.TrimSpace(m[1])
		if n := utf8.RuneCountInString(name); n > 0 && n < maxNameRunes {
			return name
		}
	}

	for _, sel := range nameSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" || utf8.RuneCountInString(text) >= maxNameRunes {
			continue
		}
		if name := strings.TrimSpace(bracketSuffix.ReplaceAllString(text, "")); name != "" {
			return name
		}
	}

	return "銘柄 " + code
}
