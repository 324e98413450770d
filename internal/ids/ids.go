// Package ids reads batch identifier lists from CSV, XLSX, YAML, or the
// command line.
package ids

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/irs990-cli/internal/model"
)

// Entry is one organization to process. Label is an optional caller-chosen
// name used when the record itself is unavailable.
type Entry struct {
	EIN   string `json:"ein"`
	Label string `json:"label,omitempty"`
}

// FromArgs builds entries from bare EIN arguments. Blank arguments are
// skipped; anything else that is not all digits is an error.
func FromArgs(args []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(args))
	for _, a := range args {
		ein := model.NormalizeEIN(a)
		if ein == "" {
			continue
		}
		if !ValidEIN(ein) {
			return nil, eris.Errorf("ids: invalid EIN %q", a)
		}
		entries = append(entries, Entry{EIN: ein})
	}
	return entries, nil
}

// Load reads entries from a file, choosing the format by extension.
func Load(ctx context.Context, path string) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ids: read %s", path)
		}
		return ParseYAML(data)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ids: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f)
	}
}

// fromCells turns one tabular row (ein[, label]) into an entry.
func fromCells(cells []string) (Entry, bool) {
	if len(cells) == 0 {
		return Entry{}, false
	}
	ein := model.NormalizeEIN(cells[0])
	if !ValidEIN(ein) {
		return Entry{}, false
	}
	e := Entry{EIN: ein}
	if len(cells) > 1 {
		e.Label = strings.TrimSpace(cells[1])
	}
	return e, true
}

// ValidEIN reports whether s is a normalized EIN: one or more digits.
func ValidEIN(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Merge appends b to a, dropping EINs already present.
func Merge(a, b []Entry) []Entry {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]Entry, 0, len(a)+len(b))
	for _, list := range [][]Entry{a, b} {
		for _, e := range list {
			if seen[e.EIN] {
				continue
			}
			seen[e.EIN] = true
			out = append(out, e)
		}
	}
	return out
}
