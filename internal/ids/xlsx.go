package ids

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX reads "ein[,label]" rows from the first sheet of a workbook.
func ReadXLSX(path string) ([]Entry, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ids: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ids: %s has no sheets", path)
	}

	var entries []Entry
	for _, row := range f.Sheets[0].Rows {
		if e, ok := fromCells(rowToStrings(row)); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
