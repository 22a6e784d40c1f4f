package roster

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rename-cli/internal/model"
)

// ReadNames reads company names from a CSV or XLSX file.
func ReadNames(path string) ([]string, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return ReadXLSX(path)
	case FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "roster: open input")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	}
	return nil, eris.Errorf("roster: cannot read company names from %s", format)
}

// WriteFile writes records to path in format.
func WriteFile(path string, format Format, records []model.CompanyRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "roster: create output dir")
		}
	}
	if format == FormatXLSX {
		return WriteXLSX(path, records)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "roster: create output")
	}
	switch format {
	case FormatCSV:
		err = WriteCSV(f, records)
	case FormatJSON:
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		err = eris.Wrap(enc.Encode(records), "roster: write json")
	default:
		err = eris.Errorf("roster: unknown format %q", format)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "roster: close output")
	}
	return err
}
