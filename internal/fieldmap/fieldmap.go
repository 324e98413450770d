// Package fieldmap holds the static tables that map raw ProPublica filing
// fields to display labels, per form type.
package fieldmap

import (
	"errors"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/irs990-cli/internal/model"
)

// ModeCommon selects per-filing normalization through the form tables.
const ModeCommon = "common"

// ErrUnsupportedFormType is returned when no table exists for a form code.
var ErrUnsupportedFormType = errors.New("unsupported form type")

// Field maps one raw filing key to a display label.
type Field struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// FieldMap is an ordered list of fields; order defines column order.
type FieldMap []Field

// Labels returns the display labels in order.
func (m FieldMap) Labels() []string {
	out := make([]string, len(m))
	for i, f := range m {
		out[i] = f.Label
	}
	return out
}

// Keys returns the raw field keys in order.
func (m FieldMap) Keys() []string {
	out := make([]string, len(m))
	for i, f := range m {
		out[i] = f.Key
	}
	return out
}

// Mapper bundles the common table and the per-form tables. Every form table
// carries the same labels in the same order as Common so rows from different
// forms line up.
type Mapper struct {
	Common FieldMap
	Forms  map[model.FormType]FieldMap
}

// ForForm returns the table for a form code.
func (m *Mapper) ForForm(ft model.FormType) (FieldMap, error) {
	fm, ok := m.Forms[ft]
	if !ok {
		return nil, eris.Wrapf(ErrUnsupportedFormType, "fieldmap: form %s", ft)
	}
	return fm, nil
}

// Resolve returns the table for an export mode: "common" yields the common
// table, anything else is parsed as a form name.
func (m *Mapper) Resolve(mode string) (FieldMap, error) {
	if mode == "" || strings.EqualFold(mode, ModeCommon) {
		return m.Common, nil
	}
	ft, ok := model.ParseFormType(mode)
	if !ok {
		return nil, eris.Errorf("fieldmap: unknown mode %q", mode)
	}
	return m.ForForm(ft)
}

// Validate checks that each form table lines up with the common labels.
func (m *Mapper) Validate() error {
	if len(m.Common) == 0 {
		return eris.New("fieldmap: common table is empty")
	}
	want := m.Common.Labels()
	for ft, fm := range m.Forms {
		got := fm.Labels()
		if len(got) != len(want) {
			return eris.Errorf("fieldmap: form %s has %d fields, common has %d", ft, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				return eris.Errorf("fieldmap: form %s column %d is %q, want %q", ft, i, got[i], want[i])
			}
		}
	}
	return nil
}

type fileFormat struct {
	Common FieldMap            `yaml:"common"`
	Forms  map[string]FieldMap `yaml:"forms"`
}

// LoadFile reads a mapper from YAML:
//
//	common:
//	  - {key: totrevenue, label: Total Revenue}
//	forms:
//	  "990EZ":
//	    - {key: totrevnue, label: Total Revenue}
func LoadFile(path string) (*Mapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fieldmap: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML mapper table.
func Parse(data []byte) (*Mapper, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, eris.Wrap(err, "fieldmap: parse yaml")
	}

	m := &Mapper{Common: ff.Common, Forms: make(map[model.FormType]FieldMap, len(ff.Forms))}
	for name, fm := range ff.Forms {
		ft, ok := model.ParseFormType(name)
		if !ok {
			return nil, eris.Errorf("fieldmap: unknown form %q", name)
		}
		m.Forms[ft] = fm
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
