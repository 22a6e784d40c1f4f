// Package quality rejects search results that are structurally unlikely to
// carry a rename announcement: search-engine redirect wrappers, block-listed
// domains, and pages about the rename procedure rather than a rename.
package quality

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/sells-group/rename-cli/internal/rules"
)

// Filter classifies results. It is immutable and safe for concurrent use.
type Filter struct {
	wrappers []string
	block    []string
	phrases  []string
}

// New builds a Filter from the domain and quality rule tables.
func New(d rules.DomainRules, q rules.QualityRules) *Filter {
	return &Filter{
		wrappers: lowerAll(q.RedirectWrappers),
		block:    lowerAll(d.Block),
		phrases:  lowerAll(q.LowValuePhrases),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsLowQuality reports whether a result should be dropped before scoring.
func (f *Filter) IsLowQuality(snippet, rawURL string) bool {
	return f.Reason(snippet, rawURL) != ""
}

// Reason returns which rule marks the result as low quality, formatted as
// "kind:value", or "" when the result passes.
func (f *Filter) Reason(snippet, rawURL string) string {
	u := strings.ToLower(rawURL)
	for _, w := range f.wrappers {
		if strings.Contains(u, w) {
			return "redirect:" + w
		}
	}
	for _, d := range f.block {
		if strings.Contains(u, d) {
			return "block:" + d
		}
	}
	s := strings.ToLower(snippet)
	for _, p := range f.phrases {
		if strings.Contains(s, p) || strings.Contains(u, p) {
			return "phrase:" + p
		}
	}
	return ""
}

// IsRedirect reports whether rawURL is a search-engine redirect wrapper.
func (f *Filter) IsRedirect(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, w := range f.wrappers {
		if strings.Contains(u, w) {
			return true
		}
	}
	return false
}

// Unwrap returns the destination of a redirect wrapper, or rawURL unchanged
// when it is not a wrapper or the destination cannot be recovered.
func (f *Filter) Unwrap(rawURL string) string {
	if !f.IsRedirect(rawURL) {
		return rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := parsed.Query()
	for _, key := range []string{"u", "q", "url"} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		if dest, ok := decodeTarget(v); ok {
			return dest
		}
	}
	return rawURL
}

// decodeTarget handles both plain targets and the "a1"+base64url form used
// by Bing click-tracking links.
func decodeTarget(v string) (string, bool) {
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return v, true
	}
	if strings.HasPrefix(v, "a1") {
		enc := v[2:]
		for _, dec := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding} {
			if b, err := dec.DecodeString(enc); err == nil && isHTTP(string(b)) {
				return string(b), true
			}
		}
	}
	if un, err := url.QueryUnescape(v); err == nil && isHTTP(un) {
		return un, true
	}
	return "", false
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
