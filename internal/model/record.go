// Package model defines the nonprofit organization records returned by the
// ProPublica Nonprofit Explorer API and the values flattened out of them.
package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// NormalizeEIN strips surrounding whitespace and a single hyphen from an
// employer identification number ("47-0825376" -> "470825376").
func NormalizeEIN(ein string) string {
	ein = strings.TrimSpace(ein)
	return strings.Replace(ein, "-", "", 1)
}

// Record is one organization document: the organization section plus its
// filings, most recent first.
type Record struct {
	Organization       Organization     `json:"organization"`
	Filings            []Filing         `json:"filings_with_data"`
	FilingsWithoutData []map[string]any `json:"filings_without_data,omitempty"`
	DataSource         string           `json:"data_source,omitempty"`
	APIVersion         int              `json:"api_version,omitempty"`
}

// DecodeRecord parses a record, keeping numbers as json.Number so field
// values round-trip without float formatting.
func DecodeRecord(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, eris.Wrap(err, "model: decode record")
	}
	return &rec, nil
}

// EncodeRecord renders a record as indented JSON.
func EncodeRecord(rec *Record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "model: encode record")
	}
	return append(data, '\n'), nil
}

// Latest returns the first (most recent) filing.
func (r *Record) Latest() (Filing, bool) {
	if r == nil || len(r.Filings) == 0 {
		return nil, false
	}
	return r.Filings[0], true
}

// Newest returns the maximum filing update timestamp. It reports false when
// the record has no filing with a parseable "updated" value.
func Newest(r *Record) (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	var newest time.Time
	found := false
	for _, f := range r.Filings {
		ts, ok := f.Updated()
		if !ok {
			continue
		}
		if !found || ts.After(newest) {
			newest = ts
			found = true
		}
	}
	return newest, found
}

// Organization is the "organization" section of a record.
type Organization map[string]any

func (o Organization) str(key string) string {
	v, ok := Lookup(o, key)
	if !ok {
		return ""
	}
	return v.String()
}

// Name returns the organization's registered name.
func (o Organization) Name() string { return o.str("name") }

// City returns the organization's city.
func (o Organization) City() string { return o.str("city") }

// State returns the two-letter state code.
func (o Organization) State() string { return o.str("state") }

// EIN returns the organization's identifier as reported upstream.
func (o Organization) EIN() string { return o.str("ein") }

// NTEECode returns the National Taxonomy of Exempt Entities classification.
func (o Organization) NTEECode() string { return o.str("ntee_code") }
