package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormType is ProPublica's "formtype" code.
type FormType int

const (
	Form990   FormType = 0
	Form990EZ FormType = 1
	Form990PF FormType = 2
)

var formNames = map[FormType]string{
	Form990:   "990",
	Form990EZ: "990EZ",
	Form990PF: "990PF",
}

func (f FormType) String() string {
	if name, ok := formNames[f]; ok {
		return name
	}
	return strconv.Itoa(int(f))
}

// ParseFormType accepts a form name ("990", "990-EZ", "990pf") or a numeric code.
func ParseFormType(s string) (FormType, bool) {
	trimmed := strings.TrimSpace(s)
	norm := strings.ToUpper(strings.ReplaceAll(trimmed, "-", ""))
	for ft, name := range formNames {
		if norm == name {
			return ft, true
		}
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 0 {
		return 0, false
	}
	return FormType(n), true
}

// Filing is one entry of "filings_with_data".
type Filing map[string]any

// Lookup returns the named field. A missing or null field is Absent.
func (f Filing) Lookup(key string) (Value, bool) {
	return Lookup(f, key)
}

// FormType returns the filing's form code.
func (f Filing) FormType() (FormType, bool) {
	v, ok := f.Lookup("formtype")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v.String())
	if err != nil {
		return 0, false
	}
	return FormType(n), true
}

// TaxPeriod returns the "tax_prd" field (YYYYMM).
func (f Filing) TaxPeriod() string {
	v, _ := f.Lookup("tax_prd")
	return v.String()
}

// TaxYear returns the "tax_prd_yr" field.
func (f Filing) TaxYear() string {
	v, _ := f.Lookup("tax_prd_yr")
	return v.String()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the ISO-8601 variants the API emits.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Updated returns the filing's "updated" timestamp.
func (f Filing) Updated() (time.Time, bool) {
	v, ok := f.Lookup("updated")
	if !ok {
		return time.Time{}, false
	}
	return ParseTimestamp(v.String())
}

// Value is a single scalar pulled from a record. The zero Value is Absent.
type Value struct {
	text  string
	valid bool
}

// Absent marks a field missing from the source data.
var Absent = Value{}

// Text wraps a present string value.
func Text(s string) Value { return Value{text: s, valid: true} }

// Valid reports whether the value was present.
func (v Value) Valid() bool { return v.valid }

// String renders the value; Absent renders as "".
func (v Value) String() string { return v.text }

// Float parses the value as a number.
func (v Value) Float() (float64, bool) {
	if !v.valid {
		return 0, false
	}
	n, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// MarshalJSON encodes Absent as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.text)
}

// Lookup reads a scalar from a decoded JSON object.
func Lookup(obj map[string]any, key string) (Value, bool) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return Absent, false
	}
	switch t := raw.(type) {
	case string:
		return Text(t), true
	case json.Number:
		return Text(t.String()), true
	case float64:
		return Text(strconv.FormatFloat(t, 'f', -1, 64)), true
	case bool:
		return Text(strconv.FormatBool(t)), true
	default:
		return Text(fmt.Sprint(t)), true
	}
}
