package decoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/text/encoding/charmap"

	"sruwatch/entity"
	"sruwatch/layout"
	"sruwatch/memory"
)

// ErrDecode marca bytes que não formam uma entidade válida para o layout.
var ErrDecode = errors.New("decode failed")

// DecodeError diz qual campo falhou e por quê.
type DecodeError struct {
	Kind    layout.Kind
	Version string
	Field   string
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s/%s: field %s: %s", e.Kind, e.Version, e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

// Decode transforma um snapshot cru numa Entity segundo o descritor.
// Função pura: os mesmos bytes e o mesmo descritor dão sempre a mesma Entity.
func Decode(raw memory.Snapshot, d layout.Descriptor) (entity.Entity, error) {
	fail := func(field, format string, args ...any) (entity.Entity, error) {
		return entity.Entity{}, &DecodeError{Kind: d.Kind, Version: d.Version, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	if len(raw.Bytes) < d.Size {
		return fail("*", "snapshot has %d bytes, layout needs %d", len(raw.Bytes), d.Size)
	}

	fields := make([]entity.Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		width := f.Width
		if width == 0 {
			width = 4
		}
		if f.Offset < 0 || f.Offset+width > len(raw.Bytes) {
			return fail(f.Name, "range [0x%X,0x%X) outside snapshot", f.Offset, f.Offset+width)
		}
		b := raw.Bytes[f.Offset : f.Offset+width]

		v, err := value(f, b)
		if err != nil {
			return fail(f.Name, "%v", err)
		}
		if v.Type != layout.String {
			if f.Min != nil && v.Num < *f.Min {
				return fail(f.Name, "value %v below minimum %v", v.Num, *f.Min)
			}
			if f.Max != nil && v.Num > *f.Max {
				return fail(f.Name, "value %v above maximum %v", v.Num, *f.Max)
			}
		}
		fields = append(fields, entity.Field{Name: f.Name, Value: v})
	}
	return entity.New(d.Kind, d.Version, raw.Seq, fields), nil
}

func value(f layout.Field, b []byte) (entity.Value, error) {
	v := entity.Value{Type: f.Type}
	switch f.Type {
	case layout.Int32:
		v.Num = float64(int32(binary.LittleEndian.Uint32(b)))
	case layout.Uint32:
		v.Num = float64(binary.LittleEndian.Uint32(b))
	case layout.Float32:
		x := float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return v, fmt.Errorf("non-finite float %v", x)
		}
		v.Num = x
	case layout.Fixed:
		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		v.Num = float64(int32(binary.LittleEndian.Uint32(b))) * scale
	case layout.Bitfield:
		var u uint32
		switch len(b) {
		case 1:
			u = uint32(b[0])
		case 2:
			u = uint32(binary.LittleEndian.Uint16(b))
		case 4:
			u = binary.LittleEndian.Uint32(b)
		default:
			return v, fmt.Errorf("bitfield width %d", len(b))
		}
		mask := f.Mask
		if mask == 0 {
			mask = ^uint32(0)
		}
		v.Num = float64((u >> f.Shift) & mask)
	case layout.String:
		s, err := cString(b)
		if err != nil {
			return v, err
		}
		v.Str = s
	default:
		return v, fmt.Errorf("unknown type %q", f.Type)
	}
	return v, nil
}

// cString corta no primeiro NUL e decodifica como Windows-1252.
func cString(b []byte) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("string: %v", err)
	}
	return string(out), nil
}
