package roster

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/rename-cli/internal/model"
)

// ResultSheet is the sheet name written by WriteXLSX.
const ResultSheet = "結果"

// ReadXLSX reads company names from the first sheet of an XLSX file.
func ReadXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("roster: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return namesFromRows(rows), nil
}

// WriteXLSX writes records to a new workbook at path.
func WriteXLSX(path string, records []model.CompanyRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(ResultSheet)
	if err != nil {
		return eris.Wrap(err, "roster: add sheet")
	}

	addRow(sheet, Columns)
	for _, rec := range records {
		addRow(sheet, Row(rec))
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "roster: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}
