// Package extract pulls a new company name, change date and change reason
// out of free text with ordered rule tables.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/normalize"
	"github.com/sells-group/rename-cli/internal/rules"
)

// particles that follow a company name acting as the sentence subject or
// object.
var particles = []string{"は", "が", "で", "を", "の", "と"}

const enclosing = "「」『』【】\"“”'‘’ "

type pattern struct {
	id  string
	src string
	re  *regexp.Regexp
}

type category struct {
	label    string
	keywords []string
}

// Extractor applies a rule table to text. It is immutable after New and
// safe for concurrent use.
type Extractor struct {
	tbl  *rules.Table
	norm *normalize.Normalizer

	exclusions  []pattern
	names       []pattern
	noise       []*regexp.Regexp
	legal       []string
	legalAlt    string
	badNames    map[string]bool
	badPrefixes []string
	minRunes    int
	suffix      string

	dates       []Rule[Date]
	reasons     []Rule[string]
	boilerplate []string
	categories  []category
}

// Trace is the full account of one extraction, for debugging rule tables.
type Trace struct {
	Excluded string                  `json:"excluded,omitempty"`
	Attempts []Attempt               `json:"attempts"`
	Outcome  model.ExtractionOutcome `json:"outcome"`
}

// New compiles the extraction rules of tbl.
func New(tbl *rules.Table, n *normalize.Normalizer) (*Extractor, error) {
	x := tbl.Extraction
	e := &Extractor{
		tbl:         tbl,
		norm:        n,
		badNames:    make(map[string]bool, len(x.BadNames)),
		badPrefixes: x.BadPrefixes,
		minRunes:    x.MinNameRunes,
		suffix:      x.DefaultSuffix,
		legalAlt:    tbl.LegalAlternation(),
	}
	for _, t := range tbl.Names.LegalEntities {
		e.legal = append(e.legal, norm.NFKC.String(t))
	}

	for _, p := range x.Exclusions {
		re, err := regexp.Compile(tbl.Expand(p.Pattern, nil))
		if err != nil {
			return nil, eris.Wrapf(err, "extract: compile exclusion %s", p.ID)
		}
		e.exclusions = append(e.exclusions, pattern{id: p.ID, re: re})
	}
	for _, p := range x.Names {
		if rules.Templated(p.Pattern) {
			e.names = append(e.names, pattern{id: p.ID, src: p.Pattern})
			continue
		}
		re, err := regexp.Compile(tbl.Expand(p.Pattern, nil))
		if err != nil {
			return nil, eris.Wrapf(err, "extract: compile name rule %s", p.ID)
		}
		e.names = append(e.names, pattern{id: p.ID, re: re})
	}
	for _, s := range x.LeadingNoise {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: compile leading noise %q", s)
		}
		e.noise = append(e.noise, re)
	}
	for _, b := range x.BadNames {
		if k := n.Normalize(b); k != "" {
			e.badNames[k] = true
		}
	}

	for _, p := range x.Dates {
		re, err := regexp.Compile(tbl.Expand(p.Pattern, nil))
		if err != nil {
			return nil, eris.Wrapf(err, "extract: compile date rule %s", p.ID)
		}
		e.dates = append(e.dates, Rule[Date]{ID: p.ID, Find: regexFinder(re), Accept: e.acceptDate})
	}
	for _, p := range x.Reasons {
		re, err := regexp.Compile(tbl.Expand(p.Pattern, nil))
		if err != nil {
			return nil, eris.Wrapf(err, "extract: compile reason rule %s", p.ID)
		}
		e.reasons = append(e.reasons, Rule[string]{ID: p.ID, Find: regexFinder(re), Accept: e.acceptReason(p.Format)})
	}
	for _, b := range x.ReasonBoilerplate {
		e.boilerplate = append(e.boilerplate, strings.ToLower(b))
	}
	for _, c := range x.ReasonCategories {
		cat := category{label: c.Label}
		for _, k := range c.Keywords {
			cat.keywords = append(cat.keywords, strings.ToLower(k))
		}
		e.categories = append(e.categories, cat)
	}
	return e, nil
}

// Extract returns the rename facts found in text about the company oldName.
func (e *Extractor) Extract(text, oldName string) model.ExtractionOutcome {
	return e.run(text, oldName, nil)
}

// Explain runs Extract and records the exclusion rule that fired and every
// candidate each rule produced.
func (e *Extractor) Explain(text, oldName string) Trace {
	var tr Trace
	tr.Outcome = e.run(text, oldName, &tr)
	return tr
}

func (e *Extractor) run(text, oldName string, tr *Trace) model.ExtractionOutcome {
	text = prepare(text)
	if text == "" {
		return model.NoExtraction()
	}

	for _, p := range e.exclusions {
		if p.re.MatchString(text) {
			if tr != nil {
				tr.Excluded = p.id
			}
			return model.NoExtraction()
		}
	}

	var attempts *[]Attempt
	if tr != nil {
		attempts = &tr.Attempts
	}

	name, ok := Evaluate("name", e.nameRules(oldName), text, attempts)
	if !ok {
		return model.NoExtraction()
	}

	out := model.ExtractionOutcome{
		NewName:      name,
		HasName:      true,
		ChangeDate:   model.DateUnknown,
		ChangeReason: model.ReasonUnknown,
	}
	if d, ok := Evaluate("date", e.dates, text, attempts); ok {
		out.ChangeDate = d.String()
	}
	if r, ok := Evaluate("reason", e.reasons, text, attempts); ok {
		out.ChangeReason = r
	} else if label := e.categorize(text); label != "" {
		out.ChangeReason = label
	}
	return out
}

// nameRules binds the name patterns to oldName. Patterns referencing {OLD}
// are compiled per call and skipped when oldName has no body.
func (e *Extractor) nameRules(oldName string) []Rule[string] {
	body := e.norm.StripLegal(oldName)
	oldRe := "(?:" + e.legalAlt + `\s*)?` + regexp.QuoteMeta(body) + `(?:\s*` + e.legalAlt + ")?"

	accept := func(m Match) (string, string, Rejection) {
		return e.acceptName(m.Groups["name"], oldName)
	}

	out := make([]Rule[string], 0, len(e.names))
	for _, p := range e.names {
		re := p.re
		if re == nil {
			if body == "" {
				continue
			}
			var err error
			re, err = regexp.Compile(e.tbl.Expand(p.src, map[string]string{"OLD": oldRe}))
			if err != nil {
				zap.L().Debug("extract: skip templated rule", zap.String("rule", p.id), zap.Error(err))
				continue
			}
		}
		out = append(out, Rule[string]{ID: p.id, Find: regexFinder(re), Accept: accept})
	}
	return out
}

// acceptName cleans a raw name capture and validates it against oldName.
// The second return value is the cleaned candidate, for tracing.
func (e *Extractor) acceptName(raw, oldName string) (string, string, Rejection) {
	cand := e.clean(raw)
	if rej := e.validate(cand, oldName); rej != Accepted {
		return "", cand, rej
	}
	cand = e.withSuffix(cand, oldName)
	return cand, cand, Accepted
}

func (e *Extractor) clean(raw string) string {
	s := e.stripNoise(strings.Trim(strings.TrimSpace(raw), enclosing))
	for i := 0; i < 3; i++ {
		next := e.cutAtLegal(s)
		if next == s {
			break
		}
		s = e.stripNoise(next)
	}
	return strings.Trim(strings.TrimRight(s, "、。,.:;"), enclosing)
}

func (e *Extractor) stripNoise(s string) string {
	for changed := true; changed; {
		changed = false
		for _, re := range e.noise {
			if loc := re.FindStringIndex(s); loc != nil && loc[1] > 0 {
				s = strings.TrimSpace(s[loc[1]:])
				changed = true
			}
		}
	}
	return strings.Trim(s, enclosing)
}

// cutAtLegal drops a leading phrase ending at the first mid-string legal
// token. When the token closes a preceding name followed by a particle
// ("旧名株式会社は新名") the cut falls after the particle; otherwise the
// token opens the new name ("当社は株式会社新名") and the cut falls before
// it. A trailing token belongs to the candidate and is left alone.
func (e *Extractor) cutAtLegal(s string) string {
	if s == "" {
		return s
	}
	_, w := utf8.DecodeRuneInString(s)
	at, tok := -1, ""
	for _, t := range e.legal {
		i := strings.Index(s[w:], t)
		if i < 0 {
			continue
		}
		i += w
		if at < 0 || i < at || (i == at && len(t) > len(tok)) {
			at, tok = i, t
		}
	}
	if at < 0 {
		return s
	}
	after := s[at+len(tok):]
	if after == "" {
		return s
	}
	for _, p := range particles {
		if strings.HasPrefix(after, p) {
			if rest := strings.TrimLeft(after[len(p):], "、 "); rest != "" {
				return rest
			}
			return s
		}
	}
	return s[at:]
}

func (e *Extractor) validate(cand, oldName string) Rejection {
	if utf8.RuneCountInString(cand) < e.minRunes {
		return TooShort
	}
	key := e.norm.Normalize(cand)
	if key == "" {
		return TooShort
	}
	if e.badNames[key] {
		return BadName
	}
	for _, p := range e.badPrefixes {
		if strings.HasPrefix(cand, p) {
			return BadPrefix
		}
	}
	if oldName == "" {
		return Accepted
	}
	if e.core(cand) == e.core(oldName) {
		return LegalFormOnly
	}
	if key == e.norm.Normalize(oldName) {
		return SameAsOld
	}
	return Accepted
}

// core is a name without legal-entity tokens, whitespace or case.
func (e *Extractor) core(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(e.norm.StripLegal(name)), ""))
}

// withSuffix appends the legal form of oldName when cand carries none: the
// table's default suffix for Japanese forms, or the old token itself for
// Latin forms.
func (e *Extractor) withSuffix(cand, oldName string) string {
	if tok, _ := e.norm.LegalToken(cand); tok != "" {
		return cand
	}
	tok, latin := e.norm.LegalToken(oldName)
	switch {
	case tok == "":
		return cand
	case latin:
		old := prepare(oldName)
		if len(old) >= len(tok) && strings.EqualFold(old[len(old)-len(tok):], tok) {
			tok = old[len(old)-len(tok):]
		}
		return cand + " " + tok
	case e.suffix != "":
		return cand + e.suffix
	}
	return cand
}

// acceptDate rejects matches that are not calendar dates, so a later match
// or rule can supply one.
func (e *Extractor) acceptDate(m Match) (Date, string, Rejection) {
	d := parseDate(m, e.tbl.Extraction.Eras)
	if !d.valid() {
		return d, d.Raw, InvalidDate
	}
	return d, d.String(), Accepted
}

func (e *Extractor) acceptReason(format string) func(Match) (string, string, Rejection) {
	return func(m Match) (string, string, Rejection) {
		r := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(m.Groups["reason"]), "、。,.;:"))
		if utf8.RuneCountInString(r) < 2 {
			return "", r, TooShort
		}
		lr := strings.ToLower(r)
		for _, b := range e.boilerplate {
			if strings.Contains(lr, b) {
				return "", r, Boilerplate
			}
		}
		if format != "" {
			r = strings.ReplaceAll(format, "{reason}", r)
		}
		return r, r, Accepted
	}
}

// categorize returns the label of the first reason category whose keyword
// appears in text.
func (e *Extractor) categorize(text string) string {
	lt := strings.ToLower(text)
	for _, c := range e.categories {
		for _, k := range c.keywords {
			if strings.Contains(lt, k) {
				return c.label
			}
		}
	}
	return ""
}

// prepare folds text to NFKC and collapses runs of whitespace.
func prepare(text string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
}
