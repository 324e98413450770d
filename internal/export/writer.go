package export

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/irs990-cli/internal/flatten"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "filings"

// WriteCSV writes the header and rows with every field quoted.
func WriteCSV(w io.Writer, header []string, rows []flatten.Row) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(quotedLine(header)); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, row := range rows {
		if _, err := bw.WriteString(quotedLine(row.Strings())); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	return nil
}

func quotedLine(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	return b.String()
}

// WriteXLSX writes a single-sheet workbook. Values that parse as numbers are
// stored as numeric cells.
func WriteXLSX(w io.Writer, header []string, rows []flatten.Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}
	for _, row := range rows {
		xr := sheet.AddRow()
		for _, v := range row {
			cell := xr.AddCell()
			if n, ok := v.Float(); ok {
				cell.SetFloat(n)
				continue
			}
			cell.SetString(v.String())
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// Write renders the report in the given format.
func Write(w io.Writer, format string, report *Report) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, report.Header, report.Rows)
	case FormatXLSX:
		return WriteXLSX(w, report.Header, report.Rows)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteFile creates path and writes the report to it. Failing to open the
// destination is fatal to the run.
func WriteFile(path, format string, report *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: open destination %s", path)
	}
	if err := Write(f, format, report); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}

// FormatForPath infers the format from a file extension.
func FormatForPath(path, fallback string) string {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return FormatXLSX
	}
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return FormatCSV
	}
	return fallback
}
