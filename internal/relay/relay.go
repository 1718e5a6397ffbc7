package relay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"dividend-analyzer/internal/store"
)

// Format is how a relay wraps the page it fetched
type Format string

const (
	FormatRaw  Format = "raw"  // body is the page itself
	FormatJSON Format = "json" // body is a JSON envelope carrying the page in a field
)

var errEmptyEnvelope = errors.New("json envelope has no payload")

// Relay describes one CORS relay endpoint
type Relay struct {
	Name        string
	URLTemplate string // contains {url}
	Format      Format
	Field       string // payload field for FormatJSON
}

// BuildURL returns the relay address that fetches target
func (r Relay) BuildURL(target string) string {
	return strings.ReplaceAll(r.URLTemplate, "{url}", url.QueryEscape(target))
}

// Unwrap extracts the page text from a relay response body
func (r Relay) Unwrap(body []byte) (string, error) {
	switch r.Format {
	case FormatJSON:
		field := r.Field
		if field == "" {
			field = "contents"
		}
		if !gjson.ValidBytes(body) {
			return "", fmt.Errorf("invalid json envelope from %s", r.Name)
		}
		payload := gjson.GetBytes(body, field)
		if !payload.Exists() || payload.Type == gjson.Null {
			return "", errEmptyEnvelope
		}
		return payload.String(), nil
	default:
		return string(body), nil
	}
}

// FromConfig converts configured relays, preserving order
func FromConfig(cfgs []store.RelayConfig) []Relay {
	relays := make([]Relay, 0, len(cfgs))
	for _, c := range cfgs {
		relays = append(relays, Relay{
			Name:        c.Name,
			URLTemplate: c.URL,
			Format:      Format(c.Format),
			Field:       c.Field,
		})
	}
	return relays
}

// DefaultRelays returns the public relays in the order they are tried
func DefaultRelays() []Relay {
	return FromConfig(store.DefaultRelays())
}
