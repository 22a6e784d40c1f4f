package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/normalize"
	"github.com/sells-group/rename-cli/internal/rules"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	tbl, err := rules.Default()
	require.NoError(t, err)
	e, err := New(tbl, normalize.New(tbl.Names))
	require.NoError(t, err)
	return e
}

func TestExtract_EnglishTradeNameChange(t *testing.T) {
	e := newExtractor(t)

	got := e.Extract("Test Inc. changed its trade name to Test Holdings Inc. effective 2024-04-01, due to business reorganization.", "Test Inc.")
	assert.Equal(t, model.ExtractionOutcome{
		NewName:      "Test Holdings Inc",
		HasName:      true,
		ChangeDate:   "2024年04月01日",
		ChangeReason: "business reorganization",
	}, got)
}

func TestExtract_ExclusionBeatsNameRules(t *testing.T) {
	e := newExtractor(t)

	text := "A trade name is what a company is commonly called; Test Inc. changed its trade name to Test Holdings Inc."
	assert.Equal(t, model.NoExtraction(), e.Extract(text, "Test Inc."))

	tr := e.Explain(text, "Test Inc.")
	assert.Equal(t, "en_commonly_called", tr.Excluded)
	assert.Empty(t, tr.Attempts)
}

func TestExtract_EmptyText(t *testing.T) {
	e := newExtractor(t)
	assert.Equal(t, model.NoExtraction(), e.Extract("", "テスト"))
	assert.Equal(t, model.NoExtraction(), e.Extract("   　", "テスト"))
}

func TestExtract_NoCandidate(t *testing.T) {
	e := newExtractor(t)
	got := e.Extract("本日は晴天なり。", "テスト株式会社")
	assert.False(t, got.HasName)
	assert.Equal(t, model.DateUnknown, got.ChangeDate)
	assert.Equal(t, model.ReasonUnknown, got.ChangeReason)
}

func TestExtract_NeverReturnsOldName(t *testing.T) {
	e := newExtractor(t)

	tests := []struct {
		name string
		old  string
		text string
		rej  Rejection
	}{
		{
			name: "legal form only",
			old:  "テスト株式会社",
			text: "テスト株式会社は商号をテスト株式会社に変更しました。",
			rej:  LegalFormOnly,
		},
		{
			name: "branding only",
			old:  "テスト",
			text: "テストは商号をテストホールディングス株式会社に変更しました。",
			rej:  SameAsOld,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := e.Explain(tt.text, tt.old)
			assert.False(t, tr.Outcome.HasName)
			require.NotEmpty(t, tr.Attempts)
			for _, a := range tr.Attempts {
				assert.Equal(t, "name", a.Kind)
				assert.Equal(t, tt.rej, a.Rejection, a.Rule)
			}
		})
	}
}

func TestExtract_TemplatedOldNameRule(t *testing.T) {
	e := newExtractor(t)

	tr := e.Explain("山田商事は、4月1日付で山田ホールディングス株式会社に変更しました。", "山田商事株式会社")
	require.True(t, tr.Outcome.HasName)
	assert.Equal(t, "山田ホールディングス株式会社", tr.Outcome.NewName)
	assert.Equal(t, model.DateUnknown, tr.Outcome.ChangeDate)

	var rule string
	for _, a := range tr.Attempts {
		if a.Kind == "name" && a.Rejection == Accepted {
			rule = a.Rule
		}
	}
	assert.Equal(t, "jp_old_to_new", rule)
}

func TestExtract_TemplatedRulesSkippedWithoutOldName(t *testing.T) {
	e := newExtractor(t)
	for _, r := range e.nameRules("") {
		assert.NotEqual(t, "jp_old_to_new", r.ID)
		assert.NotEqual(t, "jp_formerly_old", r.ID)
	}
	assert.Len(t, e.nameRules("テスト"), len(e.names))
}

func TestAcceptName(t *testing.T) {
	e := newExtractor(t)

	tests := []struct {
		name string
		raw  string
		old  string
		want string
		rej  Rejection
	}{
		{name: "too short", raw: "A", old: "テスト", rej: TooShort},
		{name: "punctuation only", raw: "・・", old: "テスト", rej: TooShort},
		{name: "bad name", raw: "お知らせ", old: "テスト", rej: BadName},
		{name: "bad name after folding", raw: "「ニュースリリース」", old: "テスト", rej: BadName},
		{name: "bad prefix", raw: "はテスト商事", old: "旧商事", rej: BadPrefix},
		{name: "japanese default suffix", raw: "新テスト", old: "テスト株式会社", want: "新テスト株式会社"},
		{name: "latin suffix from old name", raw: "Nova", old: "Alpha Inc.", want: "Nova Inc."},
		{name: "no suffix when old has none", raw: "新テスト", old: "テスト", want: "新テスト"},
		{name: "keeps own legal token", raw: "株式会社新テスト", old: "テスト有限会社", want: "株式会社新テスト"},
		{name: "cut after particle", raw: "テスト株式会社は株式会社新テスト", old: "テスト株式会社", want: "株式会社新テスト"},
		{name: "leading subject noise", raw: "当社は株式会社新テスト", old: "テスト", want: "株式会社新テスト"},
		{name: "leading date noise", raw: "2024年4月1日付で新テスト株式会社", old: "テスト", want: "新テスト株式会社"},
		{name: "enclosing brackets", raw: "「新テスト株式会社」", old: "テスト", want: "新テスト株式会社"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, rej := e.acceptName(tt.raw, tt.old)
			assert.Equal(t, tt.rej, rej)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReplay_RegressionFixtures(t *testing.T) {
	e := newExtractor(t)

	fx, err := LoadFixtures("testdata/regression.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, fx)

	for _, m := range e.Replay(fx) {
		t.Errorf("%s: want %+v, got %+v", m.Fixture.Name, m.Fixture.Want, m.Got)
	}
}

func TestReplay_ReportsMismatch(t *testing.T) {
	e := newExtractor(t)

	fx := []Fixture{
		{Name: "wrong", Old: "Test Inc.", Text: "Test Inc. changed its name to Other Co.", Want: Expectation{NewName: "Something Else"}},
		{Name: "absent", Old: "Test Inc.", Text: "nothing here", Want: Expectation{}},
	}
	got := e.Replay(fx)
	require.Len(t, got, 1)
	assert.Equal(t, "wrong", got[0].Fixture.Name)
}

func TestLoadFixtures_Missing(t *testing.T) {
	_, err := LoadFixtures("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}
