package entity

import (
	"fmt"
	"strings"

	"sruwatch/layout"
)

// Nomes de campo que o resto do pipeline usa por convenção.
const (
	FieldUnitID   = "unit_id"
	FieldName     = "name"
	FieldCategory = "category"
	FieldClass    = "class"
	FieldTreasury = "Treasury"
	FieldPopulace = "Population"
)

// Value é um valor decodificado: numérico (int, float, fixed, bitfield) ou string.
type Value struct {
	Type layout.Primitive
	Num  float64
	Str  string
}

func (v Value) IsString() bool { return v.Type == layout.String }

func (v Value) String() string {
	switch v.Type {
	case layout.String:
		return v.Str
	case layout.Float32, layout.Fixed:
		return fmt.Sprintf("%.2f", v.Num)
	}
	return fmt.Sprintf("%d", int64(v.Num))
}

// Field é um par nome/valor, na ordem do layout.
type Field struct {
	Name  string
	Value Value
}

// Entity representa uma unidade ou um snapshot econômico lido da memória.
// É imutável: cada poll produz uma Entity nova.
type Entity struct {
	Kind    layout.Kind
	Version string
	Seq     uint64
	fields  []Field
	index   map[string]int
}

// New copia fields para uma Entity nova.
func New(kind layout.Kind, version string, seq uint64, fields []Field) Entity {
	e := Entity{
		Kind:    kind,
		Version: version,
		Seq:     seq,
		fields:  make([]Field, len(fields)),
		index:   make(map[string]int, len(fields)),
	}
	copy(e.fields, fields)
	for i, f := range e.fields {
		e.index[f.Name] = i
	}
	return e
}

// With devolve uma Entity nova com os campos extras no fim (campos com o
// mesmo nome são substituídos).
func (e Entity) With(extra ...Field) Entity {
	fields := e.Fields()
	for _, f := range extra {
		if i, ok := e.index[f.Name]; ok {
			fields[i] = f
			continue
		}
		fields = append(fields, f)
	}
	return New(e.Kind, e.Version, e.Seq, fields)
}

// IsZero diz se a Entity nunca foi preenchida.
func (e Entity) IsZero() bool { return e.Kind == "" && len(e.fields) == 0 }

// Fields devolve uma cópia dos campos.
func (e Entity) Fields() []Field {
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

func (e Entity) Get(name string) (Value, bool) {
	i, ok := e.index[name]
	if !ok {
		return Value{}, false
	}
	return e.fields[i].Value, true
}

// Num devolve o valor numérico de um campo.
func (e Entity) Num(name string) (float64, bool) {
	v, ok := e.Get(name)
	if !ok || v.IsString() {
		return 0, false
	}
	return v.Num, true
}

func (e Entity) Str(name string) string {
	v, _ := e.Get(name)
	return v.Str
}

// Numeric devolve todos os campos numéricos como mapa.
func (e Entity) Numeric() map[string]float64 {
	out := make(map[string]float64, len(e.fields))
	for _, f := range e.fields {
		if !f.Value.IsString() {
			out[f.Name] = f.Value.Num
		}
	}
	return out
}

func (e Entity) UnitID() int {
	v, _ := e.Num(FieldUnitID)
	return int(v)
}

func (e Entity) Name() string { return e.Str(FieldName) }

func (e Entity) Category() int {
	v, _ := e.Num(FieldCategory)
	return int(v)
}

func (e Entity) Class() int {
	v, _ := e.Num(FieldClass)
	return int(v)
}

// Equal compara tipo, versão e campos. Seq não entra na comparação.
func (e Entity) Equal(o Entity) bool {
	if e.Kind != o.Kind || e.Version != o.Version || len(e.fields) != len(o.fields) {
		return false
	}
	for i := range e.fields {
		if e.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

func (e Entity) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s#%d{", e.Kind, e.Seq)
	for i, f := range e.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", f.Name, f.Value)
	}
	sb.WriteString("}")
	return sb.String()
}
