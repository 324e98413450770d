// Package flatten turns organization records into rows of scalar values
// according to a field mapping.
package flatten

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/irs990-cli/internal/fieldmap"
	"github.com/sells-group/irs990-cli/internal/model"
)

// ErrNoFilings signals a record without filings. It is a warning: the record
// contributes zero rows.
var ErrNoFilings = errors.New("no filings")

// ErrorMarkerPrefix starts every inline error value.
const ErrorMarkerPrefix = "ERROR: "

// Row is one flattened filing: identity prefix followed by mapped values.
type Row []model.Value

// Strings renders the row for tabular writers; absent values become "".
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = v.String()
	}
	return out
}

// Options controls the identity prefix.
type Options struct {
	IncludeLocation bool
	TitleCase       bool
}

// Prefix is the display identity that leads each row.
type Prefix struct {
	Name  string
	City  string
	State string

	includeLocation bool
}

// PrefixFor builds the identity prefix for an organization. Title casing
// only applies to all-caps text, which is how the IRS reports most names.
func PrefixFor(org model.Organization, opts Options) Prefix {
	p := Prefix{
		Name:            org.Name(),
		City:            org.City(),
		State:           org.State(),
		includeLocation: opts.IncludeLocation,
	}
	if opts.TitleCase {
		p.Name = titleIfUpper(p.Name)
		p.City = titleIfUpper(p.City)
	}
	return p
}

// NamePrefix builds a prefix carrying only a name, e.g. for error rows.
func NamePrefix(name string, opts Options) Prefix {
	return Prefix{Name: name, includeLocation: opts.IncludeLocation}
}

func titleIfUpper(s string) string {
	if s == "" || strings.ToUpper(s) != s {
		return s
	}
	// Casers hold state; build one per call.
	return cases.Title(language.English).String(strings.ToLower(s))
}

// Values returns the prefix cells.
func (p Prefix) Values() []model.Value {
	if p.includeLocation {
		return []model.Value{model.Text(p.Name), model.Text(p.City), model.Text(p.State)}
	}
	return []model.Value{model.Text(p.Name)}
}

// Len returns the number of prefix cells.
func (p Prefix) Len() int {
	if p.includeLocation {
		return 3
	}
	return 1
}

// Header returns the identity labels followed by the mapping labels.
func Header(fm fieldmap.FieldMap, opts Options) []string {
	header := []string{"Organization"}
	if opts.IncludeLocation {
		header = append(header, "City", "State")
	}
	return append(header, fm.Labels()...)
}

// FlattenOne emits the prefix followed by one value per mapped field. A
// missing field yields model.Absent.
func FlattenOne(f model.Filing, fm fieldmap.FieldMap, prefix Prefix) Row {
	row := make(Row, 0, prefix.Len()+len(fm))
	row = append(row, prefix.Values()...)
	for _, field := range fm {
		v, _ := f.Lookup(field.Key)
		row = append(row, v)
	}
	return row
}

// FlattenAll flattens every filing in stored order. A record without filings
// yields no rows and ErrNoFilings.
func FlattenAll(rec *model.Record, fm fieldmap.FieldMap, prefix Prefix) ([]Row, error) {
	if rec == nil || len(rec.Filings) == 0 {
		return nil, ErrNoFilings
	}
	rows := make([]Row, 0, len(rec.Filings))
	for _, f := range rec.Filings {
		rows = append(rows, FlattenOne(f, fm, prefix))
	}
	return rows, nil
}

// FlattenCommon resolves each filing's table by its form type. A filing with
// an unknown or missing form type still produces a row of common width whose
// last value is an error marker, so row counts stay aligned.
func FlattenCommon(rec *model.Record, m *fieldmap.Mapper, prefix Prefix) ([]Row, error) {
	if rec == nil || len(rec.Filings) == 0 {
		return nil, ErrNoFilings
	}
	rows := make([]Row, 0, len(rec.Filings))
	for _, f := range rec.Filings {
		rows = append(rows, flattenByForm(f, m, prefix))
	}
	return rows, nil
}

func flattenByForm(f model.Filing, m *fieldmap.Mapper, prefix Prefix) Row {
	ft, ok := f.FormType()
	if !ok {
		return MarkerRow(prefix, len(m.Common), "missing form type")
	}
	fm, err := m.ForForm(ft)
	if err != nil {
		return MarkerRow(prefix, len(m.Common), fmt.Sprintf("%s %s", fieldmap.ErrUnsupportedFormType, ft))
	}
	return FlattenOne(f, fm, prefix)
}

// MarkerRow builds a row of prefix plus width cells whose last cell carries
// an error marker and the rest are absent.
func MarkerRow(prefix Prefix, width int, msg string) Row {
	row := make(Row, 0, prefix.Len()+width)
	row = append(row, prefix.Values()...)
	for range width {
		row = append(row, model.Absent)
	}
	marker := model.Text(ErrorMarkerPrefix + msg)
	if width == 0 {
		return append(row, marker)
	}
	row[len(row)-1] = marker
	return row
}

// IsMarker reports whether a value is an inline error marker.
func IsMarker(v model.Value) bool {
	return strings.HasPrefix(v.String(), ErrorMarkerPrefix)
}

// Backup holds manually collected field values for organizations whose
// record has no filings, keyed by raw field name.
type Backup map[string]string

// LatestOnly returns the row for the most recent filing. When the record has
// no filings it approximates one from backup, using "" for keys the backup
// lacks; with a nil backup it returns false.
func LatestOnly(rec *model.Record, fm fieldmap.FieldMap, prefix Prefix, backup Backup) (Row, bool) {
	if latest, ok := rec.Latest(); ok {
		return FlattenOne(latest, fm, prefix), true
	}
	if backup == nil {
		return nil, false
	}
	row := make(Row, 0, prefix.Len()+len(fm))
	row = append(row, prefix.Values()...)
	for _, field := range fm {
		row = append(row, model.Text(backup[field.Key]))
	}
	return row, true
}

// LatestCommon is LatestOnly for common mode: the latest filing's table is
// resolved by its form type and the backup row uses the common table.
func LatestCommon(rec *model.Record, m *fieldmap.Mapper, prefix Prefix, backup Backup) (Row, bool) {
	if latest, ok := rec.Latest(); ok {
		return flattenByForm(latest, m, prefix), true
	}
	return LatestOnly(rec, m.Common, prefix, backup)
}
