package ids

import (
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/irs990-cli/internal/model"
)

// ParseYAML reads either a sequence of EINs or a keyed collection of
// "label: ein" pairs. Document order is preserved in both forms.
func ParseYAML(data []byte) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "ids: parse yaml")
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var entries []Entry
	switch root.Kind {
	case yaml.SequenceNode:
		for _, n := range root.Content {
			if n.Kind != yaml.ScalarNode {
				return nil, eris.Errorf("ids: line %d: expected an EIN", n.Line)
			}
			entries = append(entries, Entry{EIN: model.NormalizeEIN(n.Value)})
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			k, v := root.Content[i], root.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return nil, eris.Errorf("ids: line %d: expected an EIN for %q", v.Line, k.Value)
			}
			entries = append(entries, Entry{
				EIN:   model.NormalizeEIN(v.Value),
				Label: strings.TrimSpace(k.Value),
			})
		}
	default:
		return nil, eris.New("ids: yaml must be a list of EINs or a label: ein mapping")
	}

	for _, e := range entries {
		if !ValidEIN(e.EIN) {
			return nil, eris.Errorf("ids: invalid EIN %q", e.EIN)
		}
	}
	return entries, nil
}
