package extract

import "regexp"

// Rejection explains why a rule's candidate was not accepted.
type Rejection string

// Rejection reasons reported through Explain.
const (
	Accepted      Rejection = ""
	TooShort      Rejection = "too_short"
	BadName       Rejection = "bad_name"
	BadPrefix     Rejection = "bad_prefix"
	SameAsOld     Rejection = "same_as_old"
	LegalFormOnly Rejection = "legal_form_only"
	Boilerplate   Rejection = "boilerplate"
	InvalidDate   Rejection = "invalid_date"
)

// Match is one regular-expression hit: the full matched text and its named
// groups.
type Match struct {
	Text   string
	Groups map[string]string
}

// Rule is one ordered extraction rule producing values of type T. Find
// yields raw matches in text order; Accept turns a match into a value or
// rejects it.
type Rule[T any] struct {
	ID     string
	Find   func(text string) []Match
	Accept func(m Match) (T, string, Rejection)
}

// Attempt records one candidate considered by a rule.
type Attempt struct {
	Kind      string    `json:"kind"`
	Rule      string    `json:"rule"`
	Raw       string    `json:"raw"`
	Value     string    `json:"value,omitempty"`
	Rejection Rejection `json:"rejection,omitempty"`
}

// Evaluate runs rules in order and returns the first accepted value. Every
// candidate considered is appended to trace when trace is non-nil.
func Evaluate[T any](kind string, rules []Rule[T], text string, trace *[]Attempt) (T, bool) {
	var zero T
	for _, r := range rules {
		for _, m := range r.Find(text) {
			v, shown, rej := r.Accept(m)
			if trace != nil {
				*trace = append(*trace, Attempt{Kind: kind, Rule: r.ID, Raw: m.Text, Value: shown, Rejection: rej})
			}
			if rej == Accepted {
				return v, true
			}
		}
	}
	return zero, false
}

// regexFinder adapts a compiled pattern to Rule.Find.
func regexFinder(re *regexp.Regexp) func(string) []Match {
	names := re.SubexpNames()
	return func(text string) []Match {
		all := re.FindAllStringSubmatch(text, -1)
		out := make([]Match, 0, len(all))
		for _, sub := range all {
			m := Match{Text: sub[0], Groups: make(map[string]string, len(names))}
			for i, n := range names {
				if n != "" && sub[i] != "" {
					m.Groups[n] = sub[i]
				}
			}
			out = append(out, m)
		}
		return out
	}
}
