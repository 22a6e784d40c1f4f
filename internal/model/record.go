package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Status is the confidence classification of a company's rename outcome.
type Status string

const (
	StatusChanged          Status = "changed"
	StatusUnchanged        Status = "unchanged"
	StatusNeedsReview      Status = "needs_review"
	StatusDuplicateSkipped Status = "duplicate_skipped"
	StatusFailed           Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusChanged, StatusUnchanged, StatusNeedsReview, StatusDuplicateSkipped, StatusFailed:
		return true
	}
	return false
}

// Sentinels used when a fact could not be determined.
const (
	DateUnknown   = "unknown-date"
	ReasonUnknown = "unknown"
)

// CompanyRecord is the durable outcome for one company. Records are
// immutable once written; reprocessing means invalidating the cache entry.
type CompanyRecord struct {
	OriginalName    string `json:"original_name"`
	NewName         string `json:"new_name"`
	ChangeDate      string `json:"change_date"`
	ChangeReason    string `json:"change_reason"`
	Status          Status `json:"status"`
	EvidenceSnippet string `json:"evidence_snippet"`
	EvidenceURL     string `json:"evidence_url"`
}

// Validate checks the record invariants.
func (r CompanyRecord) Validate() error {
	if !r.Status.Valid() {
		return eris.Errorf("model: unknown status %q", r.Status)
	}
	if r.Status == StatusChanged {
		if strings.TrimSpace(r.NewName) == "" || r.NewName == DateUnknown || r.NewName == ReasonUnknown {
			return eris.New("model: changed record requires a new name")
		}
	}
	return nil
}

// legacyStatus maps the status labels written by the older spreadsheet tooling.
var legacyStatus = map[string]Status{
	"変更あり":        StatusChanged,
	"変更なし":        StatusUnchanged,
	"要確認":         StatusNeedsReview,
	"要確認（新社名候補あり）": StatusNeedsReview,
	"要確認（関連情報検出）":  StatusNeedsReview,
	"重複会社名":       StatusDuplicateSkipped,
	"処理失敗":        StatusFailed,
}

// legacyValue maps sentinel cell values written by the older tooling.
var legacyValue = map[string]string{
	"変更日不明": DateUnknown,
	"不明":    ReasonUnknown,
	"なし":    "",
}

// UnmarshalJSON accepts both the object form and the 7-element array form
// written by older cache files.
func (r *CompanyRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var cells []string
		if err := json.Unmarshal(data, &cells); err != nil {
			return eris.Wrap(err, "model: decode legacy record")
		}
		if len(cells) != 7 {
			return eris.Errorf("model: legacy record has %d fields, want 7", len(cells))
		}
		*r = CompanyRecord{
			OriginalName:    cells[0],
			NewName:         legacyCell(cells[1]),
			ChangeDate:      legacyCell(cells[2]),
			ChangeReason:    legacyCell(cells[3]),
			Status:          legacyStatusOf(cells[4]),
			EvidenceSnippet: legacyCell(cells[5]),
			EvidenceURL:     legacyCell(cells[6]),
		}
		if r.Status != StatusChanged && (r.NewName == "変更なし" || r.NewName == "処理失敗" || r.NewName == ReasonUnknown) {
			r.NewName = ""
		}
		return nil
	}

	type plain CompanyRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return eris.Wrap(err, "model: decode record")
	}
	*r = CompanyRecord(p)
	return nil
}

func legacyCell(v string) string {
	if m, ok := legacyValue[v]; ok {
		return m
	}
	return v
}

func legacyStatusOf(v string) Status {
	if s, ok := legacyStatus[v]; ok {
		return s
	}
	if strings.HasPrefix(v, "要確認") {
		return StatusNeedsReview
	}
	return Status(v)
}
