package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status Status
		want   string
	}{
		{StatusChanged, "changed"},
		{StatusUnchanged, "unchanged"},
		{StatusNeedsReview, "needs_review"},
		{StatusDuplicateSkipped, "duplicate_skipped"},
		{StatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.True(t, tt.status.Valid())
		})
	}
	assert.False(t, Status("maybe").Valid())
}

func TestCompanyRecord_Validate(t *testing.T) {
	t.Parallel()

	ok := CompanyRecord{OriginalName: "Test Inc.", NewName: "Test Holdings Inc", Status: StatusChanged}
	assert.NoError(t, ok.Validate())

	missing := CompanyRecord{OriginalName: "Test Inc.", Status: StatusChanged}
	assert.Error(t, missing.Validate())

	sentinel := CompanyRecord{OriginalName: "Test Inc.", NewName: ReasonUnknown, Status: StatusChanged}
	assert.Error(t, sentinel.Validate())

	unchanged := CompanyRecord{OriginalName: "Test Inc.", Status: StatusUnchanged}
	assert.NoError(t, unchanged.Validate())

	bogus := CompanyRecord{Status: "bogus"}
	assert.Error(t, bogus.Validate())
}

func TestCompanyRecord_JSONFieldNames(t *testing.T) {
	t.Parallel()

	rec := CompanyRecord{
		OriginalName:    "株式会社A",
		NewName:         "株式会社B",
		ChangeDate:      "2024年04月01日",
		ChangeReason:    "事業再編のため",
		Status:          StatusChanged,
		EvidenceSnippet: "snippet",
		EvidenceURL:     "https://example.co.jp/news/",
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Len(t, m, 7)
	for _, k := range []string{"original_name", "new_name", "change_date", "change_reason", "status", "evidence_snippet", "evidence_url"} {
		assert.Contains(t, m, k)
	}
}

func TestCompanyRecord_UnmarshalLegacyArray(t *testing.T) {
	t.Parallel()

	var rec CompanyRecord
	err := json.Unmarshal([]byte(`["株式会社A","変更なし","変更日不明","不明","変更なし","なし","なし"]`), &rec)
	require.NoError(t, err)

	assert.Equal(t, "株式会社A", rec.OriginalName)
	assert.Empty(t, rec.NewName)
	assert.Equal(t, DateUnknown, rec.ChangeDate)
	assert.Equal(t, ReasonUnknown, rec.ChangeReason)
	assert.Equal(t, StatusUnchanged, rec.Status)
	assert.Empty(t, rec.EvidenceSnippet)
	assert.Empty(t, rec.EvidenceURL)
}

func TestCompanyRecord_UnmarshalLegacyReview(t *testing.T) {
	t.Parallel()

	var rec CompanyRecord
	err := json.Unmarshal([]byte(`["A社","B株式会社","2023年","不明","要確認（新社名候補あり）","s","https://x.jp"]`), &rec)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsReview, rec.Status)
	assert.Equal(t, "B株式会社", rec.NewName)
}

func TestCompanyRecord_UnmarshalLegacyWrongArity(t *testing.T) {
	t.Parallel()

	var rec CompanyRecord
	err := json.Unmarshal([]byte(`["A","B"]`), &rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 7")
}

func TestRawResult_Text(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "t s", RawResult{Title: "t", Snippet: "s"}.Text())
	assert.Equal(t, "s", RawResult{Snippet: "s"}.Text())
	assert.Equal(t, "t", RawResult{Title: "t"}.Text())
}

func TestNoExtraction(t *testing.T) {
	t.Parallel()

	out := NoExtraction()
	assert.False(t, out.HasName)
	assert.Equal(t, DateUnknown, out.ChangeDate)
	assert.Equal(t, ReasonUnknown, out.ChangeReason)
}
