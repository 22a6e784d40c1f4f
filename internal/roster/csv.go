package roster

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/sells-group/rename-cli/internal/model"
)

const bom = "\uFEFF"

// ReadCSV reads company names from CSV. UTF-8 (with or without BOM) and
// Shift_JIS/cp932 input are accepted.
func ReadCSV(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "roster: read csv")
	}

	var src io.Reader
	switch {
	case bytes.HasPrefix(raw, []byte(bom)):
		src = bytes.NewReader(raw[len(bom):])
	case utf8.Valid(raw):
		src = bytes.NewReader(raw)
	default:
		src = transform.NewReader(bytes.NewReader(raw), japanese.ShiftJIS.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "roster: parse csv")
	}
	return namesFromRows(rows), nil
}

// WriteCSV writes records as UTF-8 CSV with a BOM so spreadsheet tools
// detect the encoding.
func WriteCSV(w io.Writer, records []model.CompanyRecord) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return eris.Wrap(err, "roster: write csv")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "roster: write csv header")
	}
	for _, rec := range records {
		if err := cw.Write(Row(rec)); err != nil {
			return eris.Wrap(err, "roster: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "roster: flush csv")
}
