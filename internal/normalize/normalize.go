// Package normalize produces canonical company names for matching.
package normalize

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/rules"
)

// Normalizer canonicalizes company names. It is immutable and safe for
// concurrent use.
type Normalizer struct {
	legal      []string
	legalLatin []string
	brand      []string
	brandLatin []string
	punct      map[rune]bool
}

// New builds a Normalizer from the name rules.
func New(r rules.NameRules) *Normalizer {
	n := &Normalizer{
		legal:      foldAll(r.LegalEntities),
		legalLatin: foldAll(r.LegalEntitiesLatin),
		brand:      foldAll(r.BrandSuffixes),
		brandLatin: foldAll(r.BrandSuffixesLatin),
		punct:      make(map[rune]bool),
	}
	for _, c := range norm.NFKC.String(r.Punctuation) {
		n.punct[c] = true
	}
	return n
}

// foldAll NFKC-folds and lower-cases tokens, longest first so that
// "inc." is tried before "inc".
func foldAll(toks []string) []string {
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		t = strings.ToLower(norm.NFKC.String(strings.TrimSpace(t)))
		if t != "" {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Normalize returns the canonical form of name: width-folded, lower-cased,
// without whitespace, punctuation, leading or trailing legal-entity tokens,
// or trailing branding suffixes. It is total and idempotent.
func (n *Normalizer) Normalize(name string) string {
	s := collapse(norm.NFKC.String(name))
	if s == "" {
		return ""
	}
	s = n.strip(s, true, true)
	s = n.compact(s)
	s = n.strip(s, false, true)
	return norm.NFKC.String(strings.ToLower(s))
}

// Query builds the unit of work for name.
func (n *Normalizer) Query(name string) model.CompanyQuery {
	return model.CompanyQuery{OriginalName: name, NormalizedName: n.Normalize(name)}
}

// StripLegal removes leading and trailing legal-entity tokens but keeps the
// case, spacing and branding of name. Used to match the old name inside
// free text.
func (n *Normalizer) StripLegal(name string) string {
	s := collapse(norm.NFKC.String(name))
	if s == "" {
		return ""
	}
	return n.strip(s, true, false)
}

// LegalToken reports the legal-entity token carried by name, if any, and
// whether it is a Latin-script token.
func (n *Normalizer) LegalToken(name string) (token string, latin bool) {
	s := strings.ToLower(collapse(norm.NFKC.String(name)))
	for _, tok := range n.legal {
		if strings.Contains(s, tok) {
			return tok, false
		}
	}
	for _, tok := range n.legalLatin {
		if rest, ok := n.cutLatinSuffix(s, tok); ok && rest != "" {
			return tok, true
		}
	}
	return "", false
}

// strip removes affix tokens until none apply. Latin tokens are only
// considered in spaced mode, where a word boundary is observable.
func (n *Normalizer) strip(s string, spaced, brands bool) string {
	for {
		next, changed := n.stripOnce(s, spaced, brands)
		if !changed {
			return s
		}
		s = next
	}
}

func (n *Normalizer) stripOnce(s string, spaced, brands bool) (string, bool) {
	if spaced {
		latin := n.legalLatin
		if brands {
			latin = append(append([]string(nil), n.legalLatin...), n.brandLatin...)
		}
		for _, tok := range latin {
			if rest, ok := n.cutLatinSuffix(s, tok); ok {
				if r := n.trimSep(rest); r != "" {
					return r, true
				}
			}
		}
	}
	for _, tok := range n.legal {
		if hasSuffixFold(s, tok) {
			if r := n.trimSep(s[:len(s)-len(tok)]); r != "" {
				return r, true
			}
		}
		if hasPrefixFold(s, tok) {
			if r := n.trimSep(s[len(tok):]); r != "" {
				return r, true
			}
		}
	}
	if brands {
		for _, tok := range n.brand {
			if hasSuffixFold(s, tok) {
				if r := n.trimSep(s[:len(s)-len(tok)]); r != "" {
					return r, true
				}
			}
		}
	}
	return s, false
}

// cutLatinSuffix strips tok from the end of s when it stands as its own
// word.
func (n *Normalizer) cutLatinSuffix(s, tok string) (string, bool) {
	if !hasSuffixFold(s, tok) {
		return "", false
	}
	rest := s[:len(s)-len(tok)]
	if rest == "" {
		return "", false
	}
	r, _ := utf8.DecodeLastRuneInString(rest)
	if !n.separator(r) {
		return "", false
	}
	return rest, true
}

func (n *Normalizer) separator(r rune) bool {
	return unicode.IsSpace(r) || n.punct[r]
}

func (n *Normalizer) trimSep(s string) string {
	return strings.TrimFunc(s, n.separator)
}

func (n *Normalizer) compact(s string) string {
	return strings.Map(func(r rune) rune {
		if n.separator(r) {
			return -1
		}
		return r
	}, s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
