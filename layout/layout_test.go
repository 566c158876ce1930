package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuiltinDescriptorsValid(t *testing.T) {
	for _, d := range []Descriptor{SRUUnit(), SRUEconomy(), SRUMarket()} {
		if err := d.Validate(); err != nil {
			t.Fatalf("%s/%s: %v", d.Kind, d.Version, err)
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() Descriptor {
		return Descriptor{
			Kind:    KindUnit,
			Version: "test",
			Size:    16,
			Fields: []Field{
				{Name: "a", Offset: 0, Type: Int32},
				{Name: "b", Offset: 4, Width: 8, Type: String},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		if err := base().Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("overlapping fields", func(t *testing.T) {
		d := base()
		d.Fields = append(d.Fields, Field{Name: "c", Offset: 10, Type: Int32})
		if err := d.Validate(); err == nil {
			t.Fatalf("expected overlap error")
		}
	})

	t.Run("field past size", func(t *testing.T) {
		d := base()
		d.Fields = append(d.Fields, Field{Name: "c", Offset: 14, Type: Int32})
		if err := d.Validate(); err == nil {
			t.Fatalf("expected bounds error")
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		d := base()
		d.Fields[1].Name = "a"
		if err := d.Validate(); err == nil {
			t.Fatalf("expected duplicate error")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		d := base()
		d.Fields[0].Type = "double"
		if err := d.Validate(); err == nil {
			t.Fatalf("expected type error")
		}
	})

	t.Run("bitfield shift past width", func(t *testing.T) {
		d := base()
		d.Fields[0] = Field{Name: "a", Offset: 0, Width: 1, Type: Bitfield, Shift: 8}
		if err := d.Validate(); err == nil {
			t.Fatalf("expected shift error")
		}
	})
}

func TestResolve(t *testing.T) {
	reg := Builtin()

	t.Run("exact version", func(t *testing.T) {
		d, err := reg.Resolve(KindUnit, VersionSRU)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if d.Version != VersionSRU {
			t.Fatalf("expected %s, got %s", VersionSRU, d.Version)
		}
	})

	t.Run("declared compatible version", func(t *testing.T) {
		d, err := reg.Resolve(KindEconomy, VersionSRULegacy)
		if err != nil {
			t.Fatalf("expected fallback, got %v", err)
		}
		if d.Version != VersionSRU {
			t.Fatalf("expected fallback to %s, got %s", VersionSRU, d.Version)
		}
	})

	t.Run("unit has no legacy fallback", func(t *testing.T) {
		_, err := reg.Resolve(KindUnit, VersionSRULegacy)
		if !errors.Is(err, ErrUnknownLayout) {
			t.Fatalf("expected ErrUnknownLayout, got %v", err)
		}
	})

	t.Run("unknown version never guesses", func(t *testing.T) {
		_, err := reg.Resolve(KindUnit, "sr2030")
		if !errors.Is(err, ErrUnknownLayout) {
			t.Fatalf("expected ErrUnknownLayout, got %v", err)
		}
	})

	t.Run("lowest compatible candidate wins", func(t *testing.T) {
		mk := func(v string) Descriptor {
			return Descriptor{Kind: KindMarket, Version: v, Size: 4, Compatible: []string{"old"},
				Fields: []Field{{Name: "p", Offset: 0, Type: Float32}}}
		}
		r, err := NewRegistry(mk("b"), mk("a"), mk("c"))
		if err != nil {
			t.Fatalf("registry: %v", err)
		}
		for i := 0; i < 10; i++ {
			d, err := r.Resolve(KindMarket, "old")
			if err != nil || d.Version != "a" {
				t.Fatalf("expected a, got %q (%v)", d.Version, err)
			}
		}
	})
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(SRUUnit(), SRUUnit()); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestEqualCoveredIgnoresPadding(t *testing.T) {
	d := SRUUnit()
	a := make([]byte, d.Size)
	b := make([]byte, d.Size)
	a[0x27], b[0x27] = 0x11, 0x22
	a[0x95], b[0x95] = 0xAA, 0xBB
	if !d.EqualCovered(a, b) {
		t.Fatalf("expected padding differences to be ignored")
	}
	b[0x28] = 1
	if d.EqualCovered(a, b) {
		t.Fatalf("expected hp difference to be detected")
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		descs, err := LoadFile(filepath.Join("testdata", "patch.yaml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(descs) != 1 {
			t.Fatalf("expected 1 layout, got %d", len(descs))
		}
		reg, err := Builtin().With(descs...)
		if err != nil {
			t.Fatalf("with: %v", err)
		}
		d, err := reg.Resolve(KindUnit, "sru-v9-beta")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		f, ok := d.Field("hp")
		if !ok {
			t.Fatalf("expected hp field")
		}
		want := Field{Name: "hp", Offset: 0x2C, Width: 4, Type: Int32, Min: bound(0)}
		if diff := cmp.Diff(want, f); diff != "" {
			t.Fatalf("hp field mismatch (-want +got):\n%s", diff)
		}
		if got := reg.Versions(KindUnit); !cmp.Equal(got, []string{"sru-v9", "sru-v9-patch2"}) {
			t.Fatalf("unexpected versions %v", got)
		}
	})

	t.Run("invalid layout", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		body := "layouts:\n  - kind: unit\n    version: x\n    size: 4\n    fields:\n      - {name: a, offset: 2, type: int32}\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatalf("expected error")
		}
	})
}
