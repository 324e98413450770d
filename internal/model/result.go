package model

import "github.com/rotisserie/eris"

// Result is the per-identifier outcome of a batch: either a record or an
// error message, never both.
type Result struct {
	EIN     string  `json:"ein"`
	Label   string  `json:"label,omitempty"`
	Record  *Record `json:"-"`
	Message string  `json:"error,omitempty"`

	Overwrote bool `json:"overwrote,omitempty"`
	Stale     bool `json:"stale,omitempty"`
}

// Ok builds a successful result.
func Ok(ein string, rec *Record) Result {
	return Result{EIN: ein, Record: rec}
}

// Err builds a failed result.
func Err(ein, message string) Result {
	return Result{EIN: ein, Message: message}
}

// OK reports whether the result carries a record.
func (r Result) OK() bool { return r.Record != nil }

// Err returns the failure as an error, or nil.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return eris.Errorf("%s: %s", r.EIN, r.Message)
}

// DisplayName prefers the caller label, then the EIN.
func (r Result) DisplayName() string {
	if r.Label != "" {
		return r.Label
	}
	return r.EIN
}
