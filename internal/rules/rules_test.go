package rules

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)
	require.NoError(t, tbl.Validate())
	assert.NotEmpty(t, tbl.Version)
	assert.Contains(t, tbl.Names.LegalEntities, "株式会社")
}

func TestDefault_ReturnsFreshCopy(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	a.Version = "mutated"
	a.Names.LegalEntities = nil

	b, err := Default()
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", b.Version)
	assert.NotEmpty(t, b.Names.LegalEntities)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)
	def, err := Default()
	require.NoError(t, err)
	assert.Equal(t, def, tbl)
}

func TestLoad_OverlayReplacesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	overlay := "version: custom-1\ndomains:\n  priority: [example.co.jp]\n"
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-1", tbl.Version)
	assert.Equal(t, []string{"example.co.jp"}, tbl.Domains.Priority)
	assert.NotEmpty(t, tbl.Extraction.Names, "untouched sections keep their defaults")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	badYAML := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte("version: [unclosed"), 0o644))
	badRegex := filepath.Join(dir, "regex.yaml")
	require.NoError(t, os.WriteFile(badRegex, []byte(`extraction:
  names:
    - id: broken
      pattern: "(?P<name>[unclosed"
`), 0o644))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing file", filepath.Join(dir, "absent.yaml"), "rules: read"},
		{"bad yaml", badYAML, "rules: parse"},
		{"bad pattern", badRegex, "extraction.names.broken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Table)
		want   string
	}{
		{"no version", func(t *Table) { t.Version = "" }, "version is required"},
		{"no legal entities", func(t *Table) { t.Names.LegalEntities = nil }, "names.legal_entities is empty"},
		{"no name patterns", func(t *Table) { t.Extraction.Names = nil }, "extraction.names is empty"},
		{"min runes", func(t *Table) { t.Extraction.MinNameRunes = 0 }, "min_name_runes"},
		{"blocked weight", func(t *Table) { t.Scoring.Weights.Blocked = 1 }, "blocked must be negative"},
		{"missing group", func(t *Table) {
			t.Extraction.Names = append(t.Extraction.Names, Pattern{ID: "nogroup", Pattern: "商号変更"})
		}, "missing (?P<name>) group"},
		{"duplicate id", func(t *Table) {
			t.Extraction.Names = append(t.Extraction.Names, t.Extraction.Names[0])
		}, "duplicate id"},
		{"bad noise", func(t *Table) { t.Extraction.LeadingNoise = []string{"[x"} }, "leading_noise"},
		{"empty category", func(t *Table) {
			t.Extraction.ReasonCategories = append(t.Extraction.ReasonCategories, Category{Label: "x"})
		}, "label and keywords required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Default()
			require.NoError(t, err)
			tt.mutate(tbl)
			err = tbl.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)
	out, err := tbl.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dump.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o644))
	again, err := Load(path)
	require.NoError(t, err)
	again2, err := again.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(out), string(again2))
}

func TestLegalAlternation_LongestFirst(t *testing.T) {
	tbl := &Table{Names: NameRules{LegalEntities: []string{"(株)", "株式会社", "NPO法人"}}}
	alt := tbl.LegalAlternation()

	re := regexp.MustCompile(alt)
	assert.Equal(t, "株式会社", re.FindString("株式会社テスト"))
	assert.Equal(t, "(株)", re.FindString("(株)テスト"), "metacharacters are quoted")
}

func TestExpand(t *testing.T) {
	tbl := &Table{
		Names:      NameRules{LegalEntities: []string{"株式会社"}},
		Extraction: ExtractionRules{Macros: map[string]string{"CO": "{LEGAL}X"}},
	}
	assert.Equal(t, "(?:株式会社)X-テスト", tbl.Expand("{CO}-{OLD}", map[string]string{"OLD": "テスト"}))
	assert.True(t, Templated("a{OLD}b"))
	assert.False(t, Templated("{LEGAL}"))
}
