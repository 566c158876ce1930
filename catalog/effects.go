package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"sruwatch/rules"
)

// EffectSpec liga um id de efeito do TTRX a um campo da unidade.
type EffectSpec struct {
	ID    int      `yaml:"id"`
	Field string   `yaml:"field"`
	Op    rules.Op `yaml:"op"`
	// Scale multiplica o valor do TTRX; 0 vale 1. O SRU guarda quase toda
	// porcentagem como fração, então efeitos mul costumam usar 100.
	Scale    float64         `yaml:"scale,omitempty"`
	Priority int             `yaml:"priority,omitempty"`
	Applies  rules.Predicate `yaml:"applies,omitempty"`
}

type effectFile struct {
	Effects []EffectSpec `yaml:"effects"`
}

// ParseEffects lê o mapa de efeitos:
//
//	effects:
//	  - id: 12
//	    field: soft
//	    op: mul
//	    scale: 100
//	    applies: {classes: [1, 2]}
func ParseEffects(r io.Reader) (map[int]EffectSpec, error) {
	var f effectFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse effect map: %w", err)
	}
	out := make(map[int]EffectSpec, len(f.Effects))
	for i, e := range f.Effects {
		if e.ID == 0 {
			return nil, fmt.Errorf("effect map entry %d: id is required", i)
		}
		if e.Field == "" {
			return nil, fmt.Errorf("effect %d: field is required", e.ID)
		}
		switch e.Op {
		case rules.OpAdd, rules.OpMul, rules.OpSet:
		default:
			return nil, fmt.Errorf("effect %d: unknown op %q", e.ID, e.Op)
		}
		if _, dup := out[e.ID]; dup {
			return nil, fmt.Errorf("effect %d mapped twice", e.ID)
		}
		if e.Scale == 0 {
			e.Scale = 1
		}
		out[e.ID] = e
	}
	return out, nil
}

func LoadEffects(path string) (map[int]EffectSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open effect map: %w", err)
	}
	defer f.Close()
	return ParseEffects(f)
}
