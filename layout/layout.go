// Package layout guarda, por versão, onde cada campo das estruturas do jogo
// fica. O descritor é escolhido na abertura da sessão, nunca adivinhado a
// partir dos bytes.
package layout

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownLayout: nenhum descritor para o par tipo/versão.
var ErrUnknownLayout = errors.New("unknown layout")

type Kind string

const (
	KindUnit    Kind = "unit"
	KindEconomy Kind = "economy"
	KindMarket  Kind = "market"
)

type Primitive string

const (
	Int32    Primitive = "int32"
	Uint32   Primitive = "uint32"
	Float32  Primitive = "float32"
	Fixed    Primitive = "fixed"
	String   Primitive = "string"
	Bitfield Primitive = "bitfield"
)

// Field localiza um valor dentro da região.
type Field struct {
	Name   string    `yaml:"name"`
	Offset int       `yaml:"offset"`
	Width  int       `yaml:"width"`
	Type   Primitive `yaml:"type"`
	// Scale multiplica o inteiro cru de um campo Fixed.
	Scale float64  `yaml:"scale,omitempty"`
	Mask  uint32   `yaml:"mask,omitempty"`
	Shift uint     `yaml:"shift,omitempty"`
	Min   *float64 `yaml:"min,omitempty"`
	Max   *float64 `yaml:"max,omitempty"`
	// Identity sempre conta como mudança; todos zerados = nada selecionado.
	Identity bool `yaml:"identity,omitempty"`
}

func (f Field) end() int { return f.Offset + f.Width }

// Descriptor é o conjunto de campos de um tipo de entidade numa versão.
type Descriptor struct {
	Kind       Kind     `yaml:"kind"`
	Version    string   `yaml:"version"`
	Size       int      `yaml:"size"`
	Fields     []Field  `yaml:"fields"`
	Compatible []string `yaml:"compatible,omitempty"`
}

// Field busca um campo pelo nome.
func (d Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// EqualCovered diz se a e b batem em todo byte coberto por algum campo.
// Padding e lixo no fim da estrutura não contam.
func (d Descriptor) EqualCovered(a, b []byte) bool {
	for _, f := range d.Fields {
		if f.end() > len(a) || f.end() > len(b) {
			return false
		}
		if !bytes.Equal(a[f.Offset:f.end()], b[f.Offset:f.end()]) {
			return false
		}
	}
	return true
}

func defaultWidth(t Primitive) int {
	switch t {
	case Int32, Uint32, Float32, Fixed, Bitfield:
		return 4
	}
	return 0
}

func (d Descriptor) normalized() Descriptor {
	out := d
	out.Fields = make([]Field, len(d.Fields))
	copy(out.Fields, d.Fields)
	for i := range out.Fields {
		f := &out.Fields[i]
		if f.Width == 0 {
			f.Width = defaultWidth(f.Type)
		}
		if f.Type == Fixed && f.Scale == 0 {
			f.Scale = 1
		}
		if f.Type == Bitfield && f.Mask == 0 {
			f.Mask = ^uint32(0)
		}
	}
	out.Compatible = append([]string(nil), d.Compatible...)
	return out
}

// Validate confere tipos conhecidos e larguras válidas. Os campos têm
// que caber em Size sem sobrepor um ao outro.
func (d Descriptor) Validate() error {
	d = d.normalized()
	if d.Kind == "" {
		return fmt.Errorf("layout %q: kind is required", d.Version)
	}
	if strings.TrimSpace(d.Version) == "" {
		return fmt.Errorf("layout %s: version is required", d.Kind)
	}
	if d.Size <= 0 {
		return fmt.Errorf("layout %s/%s: size must be positive", d.Kind, d.Version)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("layout %s/%s: at least one field is required", d.Kind, d.Version)
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("layout %s/%s: field at 0x%X has no name", d.Kind, d.Version, f.Offset)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("layout %s/%s: duplicate field %s", d.Kind, d.Version, f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Type {
		case Int32, Uint32, Float32, Fixed:
			if f.Width != 4 {
				return fmt.Errorf("layout %s/%s: field %s: %s must be 4 bytes", d.Kind, d.Version, f.Name, f.Type)
			}
		case Bitfield:
			if f.Width != 1 && f.Width != 2 && f.Width != 4 {
				return fmt.Errorf("layout %s/%s: field %s: bitfield width must be 1, 2 or 4", d.Kind, d.Version, f.Name)
			}
			if f.Shift >= uint(f.Width*8) {
				return fmt.Errorf("layout %s/%s: field %s: shift %d past width", d.Kind, d.Version, f.Name, f.Shift)
			}
		case String:
			if f.Width <= 0 {
				return fmt.Errorf("layout %s/%s: field %s: string width must be positive", d.Kind, d.Version, f.Name)
			}
		default:
			return fmt.Errorf("layout %s/%s: field %s: unknown type %q", d.Kind, d.Version, f.Name, f.Type)
		}
		if f.Offset < 0 || f.end() > d.Size {
			return fmt.Errorf("layout %s/%s: field %s [0x%X,0x%X) outside size 0x%X", d.Kind, d.Version, f.Name, f.Offset, f.end(), d.Size)
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("layout %s/%s: field %s: min > max", d.Kind, d.Version, f.Name)
		}
	}

	sorted := make([]Field, len(d.Fields))
	copy(sorted, d.Fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Offset < sorted[i-1].end() {
			return fmt.Errorf("layout %s/%s: fields %s and %s overlap", d.Kind, d.Version, sorted[i-1].Name, sorted[i].Name)
		}
	}
	return nil
}

type key struct {
	kind    Kind
	version string
}

// Registry é imutável depois de montado; pode ser compartilhado sem lock.
type Registry struct {
	byKey map[key]Descriptor
}

// NewRegistry valida e indexa os descritores.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byKey: make(map[key]Descriptor, len(descs))}
	for _, d := range descs {
		d = d.normalized()
		if err := d.Validate(); err != nil {
			return nil, err
		}
		k := key{d.Kind, d.Version}
		if _, dup := r.byKey[k]; dup {
			return nil, fmt.Errorf("layout %s/%s registered twice", d.Kind, d.Version)
		}
		r.byKey[k] = d
	}
	return r, nil
}

// With devolve um registro novo com os descritores de r mais descs. Mesmo
// tipo e versão substitui o existente.
func (r *Registry) With(descs ...Descriptor) (*Registry, error) {
	merged := make(map[key]Descriptor, len(r.byKey)+len(descs))
	for k, d := range r.byKey {
		merged[k] = d
	}
	for _, d := range descs {
		d = d.normalized()
		if err := d.Validate(); err != nil {
			return nil, err
		}
		merged[key{d.Kind, d.Version}] = d
	}
	return &Registry{byKey: merged}, nil
}

// Resolve acha o descritor de kind. Versão exata ganha; senão vale o de
// menor nome que declara hint como compatível. Fora isso, ErrUnknownLayout.
func (r *Registry) Resolve(kind Kind, hint string) (Descriptor, error) {
	if d, ok := r.byKey[key{kind, hint}]; ok {
		return d, nil
	}
	var candidates []Descriptor
	for k, d := range r.byKey {
		if k.kind != kind {
			continue
		}
		for _, c := range d.Compatible {
			if c == hint {
				candidates = append(candidates, d)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return Descriptor{}, fmt.Errorf("%w: %s for version %q", ErrUnknownLayout, kind, hint)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Version < candidates[j].Version })
	return candidates[0], nil
}

// Versions lista as versões registradas de kind, em ordem.
func (r *Registry) Versions(kind Kind) []string {
	var out []string
	for k := range r.byKey {
		if k.kind == kind {
			out = append(out, k.version)
		}
	}
	sort.Strings(out)
	return out
}
