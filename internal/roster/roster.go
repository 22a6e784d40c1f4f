// Package roster reads company lists and writes rename results as CSV,
// XLSX or JSON.
package roster

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rename-cli/internal/model"
)

// Format is a tabular file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", eris.Errorf("roster: unsupported file type %q", filepath.Ext(path))
}

// ParseFormat validates a format name; empty infers it from path.
func ParseFormat(name, path string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case "":
		return FormatFromPath(path)
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	}
	return "", eris.Errorf("roster: unknown format %q", name)
}

// Columns is the result sheet header.
var Columns = []string{"会社名", "新社名", "変更日", "変更理由", "変更状況", "関連スニペット", "URL"}

// nameHeaders are header cells that mark the company-name column.
var nameHeaders = []string{"会社名", "企業名", "社名", "company", "company_name", "name"}

var statusLabels = map[model.Status]string{
	model.StatusChanged:          "変更あり",
	model.StatusUnchanged:        "変更なし",
	model.StatusNeedsReview:      "要確認",
	model.StatusDuplicateSkipped: "重複会社名",
	model.StatusFailed:           "処理失敗",
}

// StatusLabel returns the sheet label for s.
func StatusLabel(s model.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Row renders rec as sheet cells in Columns order. Sentinels become the
// labels reviewers read in the sheet.
func Row(rec model.CompanyRecord) []string {
	date := rec.ChangeDate
	if date == model.DateUnknown || date == "" {
		date = "変更日不明"
	}
	reason := rec.ChangeReason
	if reason == model.ReasonUnknown || reason == "" {
		reason = "不明"
	}
	newName := rec.NewName
	if newName == "" {
		newName = "なし"
	}
	snippet := rec.EvidenceSnippet
	if snippet == "" {
		snippet = "なし"
	}
	url := rec.EvidenceURL
	if url == "" {
		url = "なし"
	}
	return []string{rec.OriginalName, newName, date, reason, StatusLabel(rec.Status), snippet, url}
}

// namesFromRows picks the company-name column and returns its non-blank
// cells in order. A recognised header row is skipped; without one the
// first column is used and every row is data.
func namesFromRows(rows [][]string) []string {
	col, start := 0, 0
	if len(rows) > 0 {
		if i := headerColumn(rows[0]); i >= 0 {
			col, start = i, 1
		}
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows[start:] {
		if col >= len(row) {
			continue
		}
		if n := strings.TrimSpace(row[col]); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func headerColumn(header []string) int {
	for _, want := range nameHeaders {
		for i, cell := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(cell, bom)), want) {
				return i
			}
		}
	}
	return -1
}
