package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type layoutFile struct {
	Layouts []Descriptor `yaml:"layouts"`
}

// LoadFile lê descritores extras de um YAML como
//
//	layouts:
//	  - kind: unit
//	    version: sru-v9-patch2
//	    size: 0xA0
//	    fields:
//	      - {name: unit_id, offset: 0x00, type: int32, identity: true}
func LoadFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading layout file: %w", err)
	}

	var lf layoutFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("loading layout file %s: %w", path, err)
	}
	if len(lf.Layouts) == 0 {
		return nil, fmt.Errorf("loading layout file %s: no layouts", path)
	}
	for _, d := range lf.Layouts {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("loading layout file %s: %w", path, err)
		}
	}
	return lf.Layouts, nil
}
