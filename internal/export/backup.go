package export

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/irs990-cli/internal/flatten"
	"github.com/sells-group/irs990-cli/internal/model"
)

// LoadBackups reads a backup file of the form
//
//	470825376:
//	  totrevenue: 1200
//	  tax_prd: 202212
//
// Scalars keep their literal text so numbers are not reformatted.
func LoadBackups(path string) (map[string]flatten.Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read backups %s", path)
	}
	return ParseBackups(data)
}

// ParseBackups parses backup YAML.
func ParseBackups(data []byte) (map[string]flatten.Backup, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "export: parse backups")
	}
	backups := make(map[string]flatten.Backup)
	if len(doc.Content) == 0 {
		return backups, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, eris.New("export: backups must map EINs to field values")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if v.Kind != yaml.MappingNode {
			return nil, eris.Errorf("export: line %d: backup for %s must be a mapping", v.Line, k.Value)
		}
		b := make(flatten.Backup, len(v.Content)/2)
		for j := 0; j+1 < len(v.Content); j += 2 {
			b[v.Content[j].Value] = v.Content[j+1].Value
		}
		backups[model.NormalizeEIN(k.Value)] = b
	}
	return backups, nil
}
