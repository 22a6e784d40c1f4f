// Package rules holds the immutable rule tables that drive normalization,
// filtering, scoring and extraction. Tables are versioned YAML documents;
// a default is embedded in the binary and may be overlaid from a file.
package rules

import (
	_ "embed"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Table is a complete, versioned rule set.
type Table struct {
	Version    string          `yaml:"version"`
	Names      NameRules       `yaml:"names"`
	Domains    DomainRules     `yaml:"domains"`
	Quality    QualityRules    `yaml:"quality"`
	Scoring    ScoringRules    `yaml:"scoring"`
	Extraction ExtractionRules `yaml:"extraction"`
}

// NameRules configure company-name normalization.
type NameRules struct {
	LegalEntities      []string `yaml:"legal_entities"`
	LegalEntitiesLatin []string `yaml:"legal_entities_latin"`
	BrandSuffixes      []string `yaml:"brand_suffixes"`
	BrandSuffixesLatin []string `yaml:"brand_suffixes_latin"`
	Punctuation        string   `yaml:"punctuation"`
}

// DomainRules are the domain lists shared by the quality filter and scorer.
// Entries are matched as substrings of the URL, so path-bearing entries
// like "example.com/ck/a" are allowed.
type DomainRules struct {
	Priority []string `yaml:"priority"`
	Block    []string `yaml:"block"`
	Distrust []string `yaml:"distrust"`
}

// QualityRules configure the low-quality result filter.
type QualityRules struct {
	RedirectWrappers []string `yaml:"redirect_wrappers"`
	LowValuePhrases  []string `yaml:"low_value_phrases"`
}

// ScoringRules configure the relevance scorer.
type ScoringRules struct {
	StrongKeywords     []string `yaml:"strong_keywords"`
	OfficialPaths      []string `yaml:"official_paths"`
	TrustedPDFSuffixes []string `yaml:"trusted_pdf_suffixes"`
	OfficialPDFNames   []string `yaml:"official_pdf_names"`
	TopPaths           []string `yaml:"top_paths"`
	Weights            Weights  `yaml:"weights"`
}

// Weights are the additive score magnitudes.
type Weights struct {
	Blocked        float64 `yaml:"blocked"`
	NamePresence   float64 `yaml:"name_presence"`
	NameInURL      float64 `yaml:"name_in_url"`
	StrongKeyword  float64 `yaml:"strong_keyword"`
	OfficialPDF    float64 `yaml:"official_pdf"`
	OtherPDF       float64 `yaml:"other_pdf"`
	OfficialPath   float64 `yaml:"official_path"`
	Distrust       float64 `yaml:"distrust"`
	OfficialDomain float64 `yaml:"official_domain"`
	TopPage        float64 `yaml:"top_page"`
}

// Pattern is one ordered regular-expression rule. Patterns may reference
// macros as {NAME}; see Table.Expand.
type Pattern struct {
	ID      string `yaml:"id"`
	Pattern string `yaml:"pattern"`
	// Format rewrites a reason capture; "{reason}" is replaced by the match.
	Format string `yaml:"format,omitempty"`
}

// Category maps keyword evidence to a canned reason label.
type Category struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// ExtractionRules configure the fact extractor.
type ExtractionRules struct {
	Macros            map[string]string `yaml:"macros"`
	Exclusions        []Pattern         `yaml:"exclusions"`
	Names             []Pattern         `yaml:"names"`
	LeadingNoise      []string          `yaml:"leading_noise"`
	BadNames          []string          `yaml:"bad_names"`
	BadPrefixes       []string          `yaml:"bad_prefixes"`
	DefaultSuffix     string            `yaml:"default_suffix"`
	MinNameRunes      int               `yaml:"min_name_runes"`
	Dates             []Pattern         `yaml:"dates"`
	Eras              map[string]int    `yaml:"eras"`
	Reasons           []Pattern         `yaml:"reasons"`
	ReasonBoilerplate []string          `yaml:"reason_boilerplate"`
	ReasonCategories  []Category        `yaml:"reason_categories"`
}

// Default returns a fresh copy of the embedded rule table.
func Default() (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(defaultYAML, &t); err != nil {
		return nil, eris.Wrap(err, "rules: parse embedded table")
	}
	return &t, nil
}

// Load returns the embedded table overlaid with the YAML file at path.
// Sections present in the file replace the default ones; an empty path
// yields the default table. The result is validated.
func Load(path string) (*Table, error) {
	t, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "rules: read %s", path)
		}
		if err := yaml.Unmarshal(data, t); err != nil {
			return nil, eris.Wrapf(err, "rules: parse %s", path)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Marshal renders the table as YAML.
func (t *Table) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(t)
	if err != nil {
		return nil, eris.Wrap(err, "rules: marshal table")
	}
	return out, nil
}

// LegalAlternation returns a regexp alternation of every Japanese legal
// entity token, longest first, suitable for embedding in a pattern.
func (t *Table) LegalAlternation() string {
	toks := append([]string(nil), t.Names.LegalEntities...)
	sort.SliceStable(toks, func(i, j int) bool { return len(toks[i]) > len(toks[j]) })
	quoted := make([]string, 0, len(toks))
	for _, tok := range toks {
		quoted = append(quoted, regexp.QuoteMeta(tok))
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

// Expand substitutes {MACRO} references in pattern. {LEGAL} is always
// available and may be used inside table macros; extra supplies per-call
// macros such as {OLD}.
func (t *Table) Expand(pattern string, extra map[string]string) string {
	var pairs []string
	for k, v := range t.Extraction.Macros {
		pairs = append(pairs, "{"+k+"}", v)
	}
	for k, v := range extra {
		pairs = append(pairs, "{"+k+"}", v)
	}
	s := strings.NewReplacer(pairs...).Replace(pattern)
	return strings.ReplaceAll(s, "{LEGAL}", t.LegalAlternation())
}

// Templated reports whether a pattern needs per-call macros.
func Templated(pattern string) bool {
	return strings.Contains(pattern, "{OLD}")
}

// Validate checks required sections and compiles every pattern.
func (t *Table) Validate() error {
	var errs []string

	if t.Version == "" {
		errs = append(errs, "version is required")
	}
	if len(t.Names.LegalEntities) == 0 {
		errs = append(errs, "names.legal_entities is empty")
	}
	if len(t.Extraction.Names) == 0 {
		errs = append(errs, "extraction.names is empty")
	}
	if t.Extraction.MinNameRunes < 1 {
		errs = append(errs, "extraction.min_name_runes must be >= 1")
	}
	if t.Scoring.Weights.Blocked >= 0 {
		errs = append(errs, "scoring.weights.blocked must be negative")
	}

	probe := map[string]string{"OLD": "probe"}
	check := func(section string, ps []Pattern, group string) {
		seen := make(map[string]bool, len(ps))
		for _, p := range ps {
			if p.ID == "" {
				errs = append(errs, section+": pattern without id")
			}
			if seen[p.ID] {
				errs = append(errs, section+": duplicate id "+p.ID)
			}
			seen[p.ID] = true
			re, err := regexp.Compile(t.Expand(p.Pattern, probe))
			if err != nil {
				errs = append(errs, section+"."+p.ID+": "+err.Error())
				continue
			}
			if group != "" && re.SubexpIndex(group) < 0 {
				errs = append(errs, section+"."+p.ID+": missing (?P<"+group+">) group")
			}
		}
	}
	check("extraction.exclusions", t.Extraction.Exclusions, "")
	check("extraction.names", t.Extraction.Names, "name")
	check("extraction.dates", t.Extraction.Dates, "")
	check("extraction.reasons", t.Extraction.Reasons, "reason")
	for _, n := range t.Extraction.LeadingNoise {
		if _, err := regexp.Compile(n); err != nil {
			errs = append(errs, "extraction.leading_noise: "+err.Error())
		}
	}
	for i, c := range t.Extraction.ReasonCategories {
		if c.Label == "" || len(c.Keywords) == 0 {
			errs = append(errs, "extraction.reason_categories["+strconv.Itoa(i)+"]: label and keywords required")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("rules: invalid table %s:\n  %s", t.Version, strings.Join(errs, "\n  "))
	}
	return nil
}
