// Package scoring assigns additive relevance scores to search results and
// ranks them.
package scoring

import (
	"net/url"
	"strings"

	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/rules"
)

// Normalizer canonicalizes company names and free text for containment
// checks.
type Normalizer interface {
	Normalize(name string) string
}

// Scorer computes relevance scores. It is immutable and safe for concurrent
// use.
type Scorer struct {
	norm       Normalizer
	priority   []string
	block      []string
	distrust   []string
	strong     []string
	paths      []string
	pdfTrusted []string
	pdfNames   []string
	topPaths   []string
	w          rules.Weights
}

// New builds a Scorer from the rule tables.
func New(n Normalizer, d rules.DomainRules, s rules.ScoringRules) *Scorer {
	return &Scorer{
		norm:       n,
		priority:   lower(d.Priority),
		block:      lower(d.Block),
		distrust:   lower(d.Distrust),
		strong:     lower(s.StrongKeywords),
		paths:      lower(s.OfficialPaths),
		pdfTrusted: lower(s.TrustedPDFSuffixes),
		pdfNames:   lower(s.OfficialPDFNames),
		topPaths:   s.TopPaths,
		w:          s.Weights,
	}
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// DomainScore is the domain contribution alone: the blocked sentinel for a
// block-listed URL, len(priority)-i for the first priority match at index
// i, otherwise 0.
func (s *Scorer) DomainScore(rawURL string) float64 {
	u := strings.ToLower(rawURL)
	for _, d := range s.block {
		if strings.Contains(u, d) {
			return s.w.Blocked
		}
	}
	for i, d := range s.priority {
		if strings.Contains(u, d) {
			return float64(len(s.priority) - i)
		}
	}
	return 0
}

// Blocked reports whether rawURL matches the block list.
func (s *Scorer) Blocked(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, d := range s.block {
		if strings.Contains(u, d) {
			return true
		}
	}
	return false
}

// Score computes the relevance of one result for company. A block-listed
// URL short-circuits to the blocked sentinel.
func (s *Scorer) Score(company, title, snippet, rawURL string) float64 {
	if s.Blocked(rawURL) {
		return s.w.Blocked
	}
	score := s.DomainScore(rawURL)

	text := title + " " + snippet
	name := s.norm.Normalize(company)
	u := decodedLower(rawURL)

	if name != "" && strings.Contains(s.norm.Normalize(text), name) {
		score += s.w.NamePresence
	}
	if name != "" && strings.Contains(u, name) {
		score += s.w.NameInURL
	}
	if s.HasStrongKeyword(text) {
		score += s.w.StrongKeyword
	}

	if strings.Contains(u, ".pdf") {
		if s.officialPDF(u, name) {
			score += s.w.OfficialPDF
		} else {
			score += s.w.OtherPDF
		}
	}

	for _, p := range s.paths {
		if strings.Contains(u, p) {
			score += s.w.OfficialPath
			break
		}
	}

	for _, d := range s.distrust {
		if strings.Contains(u, d) {
			score += s.w.Distrust
			break
		}
	}

	if name != "" {
		if label, path := siteLabel(rawURL); label != "" && strings.Contains(label, name) {
			score += s.w.OfficialDomain
			if s.topPage(path) {
				score += s.w.TopPage
			}
		}
	}

	return score
}

// ScoreAll scores results in acquisition order.
func (s *Scorer) ScoreAll(company string, results []model.RawResult) []model.ScoredResult {
	out := make([]model.ScoredResult, len(results))
	for i, r := range results {
		out[i] = model.ScoredResult{
			RawResult: r,
			Score:     s.Score(company, r.Title, r.Snippet, r.URL),
			Position:  i,
		}
	}
	return out
}

// HasStrongKeyword reports whether text contains an announcement keyword.
func (s *Scorer) HasStrongKeyword(text string) bool {
	t := strings.ToLower(text)
	for _, k := range s.strong {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// OfficialSite reports whether rawURL looks like the company's own site.
func (s *Scorer) OfficialSite(company, rawURL string) bool {
	name := s.norm.Normalize(company)
	if name == "" {
		return false
	}
	label, _ := siteLabel(rawURL)
	return label != "" && strings.Contains(label, name)
}

func (s *Scorer) officialPDF(u, name string) bool {
	for _, d := range s.pdfTrusted {
		if strings.Contains(u, d) {
			return true
		}
	}
	if name != "" && strings.Contains(u, name) {
		return true
	}
	for _, n := range s.pdfNames {
		if strings.Contains(u, n) {
			return true
		}
	}
	return false
}

func (s *Scorer) topPage(path string) bool {
	for _, p := range s.topPaths {
		if path == p {
			return true
		}
	}
	return false
}

// secondLevel lists labels that act as part of a country-code public
// suffix, as in example.co.jp.
var secondLevel = map[string]bool{
	"co": true, "or": true, "ne": true, "go": true, "ac": true,
	"ed": true, "gr": true, "lg": true, "com": true, "net": true, "org": true,
}

// siteLabel returns the registrable label of rawURL's host ("example" for
// www.example.co.jp) and the URL path.
func siteLabel(rawURL string) (string, string) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "", ""
	}
	parts := strings.Split(strings.ToLower(parsed.Hostname()), ".")
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	switch {
	case len(parts) >= 3 && len(parts[len(parts)-1]) == 2 && secondLevel[parts[len(parts)-2]]:
		return parts[len(parts)-3], path
	case len(parts) >= 2:
		return parts[len(parts)-2], path
	default:
		return parts[0], path
	}
}

func decodedLower(rawURL string) string {
	if un, err := url.PathUnescape(rawURL); err == nil {
		return strings.ToLower(un)
	}
	return strings.ToLower(rawURL)
}

// LandingPage reports whether rawURL is a site's top page or one of its
// official section indexes such as /company/ or /ir/.
func (s *Scorer) LandingPage(rawURL string) bool {
	_, path := siteLabel(rawURL)
	if path == "" {
		return false
	}
	if s.topPage(path) {
		return true
	}
	for _, p := range s.paths {
		if strings.EqualFold(path, p) {
			return true
		}
	}
	return false
}
