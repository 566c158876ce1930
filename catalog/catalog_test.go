package catalog

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sruwatch/entity"
	"sruwatch/layout"
	"sruwatch/rules"
)

func loadFixture(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(Paths{
		Units:   "testdata/DEFAULT.UNIT",
		Techs:   "testdata/DEFAULT.TTRX",
		Effects: "testdata/effects.yaml",
		Ranges:  "testdata/ranges.csv",
	})
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func TestParseUnits(t *testing.T) {
	c := loadFixture(t)
	if units, _, _, _ := c.Counts(); units != 2 {
		t.Fatalf("expected 2 units, got %d", units)
	}

	u, ok := c.Unit(1001)
	if !ok {
		t.Fatalf("expected unit 1001")
	}
	if u.Name != "Leopard 2A4" || u.Year != 1979 || u.Region != "GER" {
		t.Fatalf("unexpected identity %+v", u)
	}
	if u.Strength != 4 || u.Personnel() != 16 {
		t.Fatalf("expected strength 4 personnel 16, got %d %d", u.Strength, u.Personnel())
	}
	if u.Cost != 10 || u.Fuel != 4.8 || u.Supply != 2 || u.Days != 120 || u.Weight != 220 {
		t.Fatalf("unexpected per-battalion figures cost=%v fuel=%v supply=%v days=%d weight=%d", u.Cost, u.Fuel, u.Supply, u.Days, u.Weight)
	}
	if diff := cmp.Diff(Spotting{ID: 13, RangeKM: 20, Strength: 90}, u.Spot1); diff != "" {
		t.Fatalf("spot1 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]bool{"indirect_fire": true, "ecm": true}, u.Flags); diff != "" {
		t.Fatalf("flags mismatch (-want +got):\n%s", diff)
	}
	if u.LaunchTypes() != "Land, Naval" || u.MissileMax != 2 {
		t.Fatalf("unexpected launch info %q %d", u.LaunchTypes(), u.MissileMax)
	}
	if u.TechReq1 != 500 || u.UpgradeTo != 1002 {
		t.Fatalf("unexpected upgrade path %+v", u)
	}

	t.Run("range database preferred over raw ranges", func(t *testing.T) {
		if u.RawRanges.Ground != 3 || u.Ranges.Ground != 4.5 || u.MissileRange != 12 {
			t.Fatalf("unexpected ranges raw=%+v def=%+v missile=%v", u.RawRanges, u.Ranges, u.MissileRange)
		}
		m, _ := c.Unit(1002)
		if m.Ranges.Ground != 15 {
			t.Fatalf("expected raw fallback 15 for empty database row, got %v", m.Ranges.Ground)
		}
	})

	t.Run("latin-1 quoted name and default strength", func(t *testing.T) {
		m, _ := c.Unit(1002)
		if m.Name != "Mörser, schwer" || m.Strength != 1 {
			t.Fatalf("unexpected unit %q strength %d", m.Name, m.Strength)
		}
	})
}

func TestParseTechs(t *testing.T) {
	c := loadFixture(t)
	if diff := cmp.Diff([]int{500, 501, 502, 504}, c.TechIDs()); diff != "" {
		t.Fatalf("tech ids mismatch (-want +got):\n%s", diff)
	}

	raw, _ := c.RawTech(502)
	want := Tech{
		ID:       502,
		Title:    "Tech 502",
		Category: 2,
		Level:    1985,
		Prereqs:  []int{500, 501},
		Effects:  []TechEffect{{EffectID: 12, Value: 0.05}, {EffectID: 13, Value: 5}},
		Time:     90,
		Cost:     300,
	}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Fatalf("tech 502 mismatch (-want +got):\n%s", diff)
	}
	if g, _ := c.RawTech(504); g.Title != "Géographie" {
		t.Fatalf("expected windows-1252 title, got %q", g.Title)
	}
}

func TestTechRule(t *testing.T) {
	c := loadFixture(t)

	r, ok := c.Tech(500)
	if !ok {
		t.Fatalf("expected tech 500")
	}
	want := rules.TechRule{
		ID:       500,
		Title:    "Composite Armor",
		Priority: 1970,
		Effects: []rules.Effect{
			{Field: "soft", Op: rules.OpMul, Value: 10, Applies: rules.Predicate{Classes: []int{3}}},
		},
		Grants:   []int{1001},
		Prereqs:  nil,
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Fatalf("rule mismatch (-want +got):\n%s", diff)
	}

	mixed, _ := c.Tech(502)
	wantEffects := []rules.Effect{
		{Field: "soft", Op: rules.OpMul, Value: 5, Applies: rules.Predicate{Classes: []int{3}}},
		{Field: "speed", Op: rules.OpAdd, Value: 5},
	}
	if diff := cmp.Diff(wantEffects, mixed.Effects); diff != "" {
		t.Fatalf("mixed effects mismatch (-want +got):\n%s", diff)
	}
	unmapped, _ := c.Tech(504)
	if len(unmapped.Effects) != 0 {
		t.Fatalf("unmapped effect ids must be dropped, got %+v", unmapped.Effects)
	}
}

func TestCatalogFeedsResolver(t *testing.T) {
	c := loadFixture(t)
	set, err := c.RuleSet([]int{500})
	if err != nil {
		t.Fatalf("rule set: %v", err)
	}

	leo := entity.New(layout.KindUnit, layout.VersionSRU, 1, []entity.Field{
		{Name: entity.FieldUnitID, Value: entity.Value{Type: layout.Int32, Num: 1001}},
		{Name: entity.FieldClass, Value: entity.Value{Type: layout.Bitfield, Num: 3}},
	})
	d := rules.Resolve(leo, set, c)
	if math.Abs(d.Effective["soft"]-11) > 1e-9 {
		t.Fatalf("expected baseline soft 10 +10%%, got %v", d.Effective["soft"])
	}
	if d.Unlock.Status != rules.Unlocked {
		t.Fatalf("expected 1001 unlocked, got %+v", d.Unlock)
	}

	mortar := entity.New(layout.KindUnit, layout.VersionSRU, 1, []entity.Field{
		{Name: entity.FieldUnitID, Value: entity.Value{Type: layout.Int32, Num: 1002}},
	})
	if u := rules.Resolve(mortar, set, c).Unlock; u.Status != rules.Unlockable {
		t.Fatalf("expected 1002 unlockable, got %+v", u)
	}
}

func TestMixedTechKeepsEffectPredicates(t *testing.T) {
	c := loadFixture(t)
	set, err := c.RuleSet([]int{502})
	if err != nil {
		t.Fatalf("rule set: %v", err)
	}
	base, ok := c.Baseline(1002)
	if !ok {
		t.Fatalf("expected baseline for 1002")
	}

	mortar := entity.New(layout.KindUnit, layout.VersionSRU, 1, []entity.Field{
		{Name: entity.FieldUnitID, Value: entity.Value{Type: layout.Int32, Num: 1002}},
		{Name: entity.FieldClass, Value: entity.Value{Type: layout.Bitfield, Num: 1}},
	})
	d := rules.Resolve(mortar, set, c)
	if d.Effective["soft"] != base["soft"] {
		t.Fatalf("class-3 soft bonus leaked to class 1: soft %v, baseline %v", d.Effective["soft"], base["soft"])
	}
	if math.Abs(d.Effective["speed"]-(base["speed"]+5)) > 1e-9 {
		t.Fatalf("expected speed baseline+5, got %v (baseline %v)", d.Effective["speed"], base["speed"])
	}
	if diff := cmp.Diff([]int{502}, d.Applied); diff != "" {
		t.Fatalf("applied mismatch (-want +got):\n%s", diff)
	}

	tank := entity.New(layout.KindUnit, layout.VersionSRU, 1, []entity.Field{
		{Name: entity.FieldUnitID, Value: entity.Value{Type: layout.Int32, Num: 1001}},
		{Name: entity.FieldClass, Value: entity.Value{Type: layout.Bitfield, Num: 3}},
	})
	leo, _ := c.Baseline(1001)
	if got := rules.Resolve(tank, set, c).Effective["soft"]; math.Abs(got-leo["soft"]*1.05) > 1e-9 {
		t.Fatalf("expected class-3 soft +5%%, got %v (baseline %v)", got, leo["soft"])
	}
}

func TestSearch(t *testing.T) {
	c := loadFixture(t)
	names := func(us []UnitStats) []string {
		var out []string
		for _, u := range us {
			out = append(out, u.Name)
		}
		return out
	}
	if diff := cmp.Diff([]string{"Mörser, schwer"}, names(c.Search("MÖR"))); diff != "" {
		t.Fatalf("name search mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Leopard 2A4"}, names(c.Search("1001"))); diff != "" {
		t.Fatalf("id search mismatch (-want +got):\n%s", diff)
	}
	if got := c.Search(""); len(got) != 0 {
		t.Fatalf("empty query must match nothing, got %d", len(got))
	}
}

func TestSpotRange(t *testing.T) {
	cases := []struct {
		id   int
		want Spotting
	}{
		{0, Spotting{ID: 0}},
		{14, Spotting{ID: 14, RangeKM: 25, Strength: 100}},
		{596, Spotting{ID: 596, RangeKM: 70, Strength: 180}},
		{7, Spotting{ID: 7, RangeKM: 7, Strength: 35}},
		{40, Spotting{ID: 40, RangeKM: 20, Strength: 80}},
		{150, Spotting{ID: 150, RangeKM: 50, Strength: 150}},
		{300, Spotting{ID: 300, RangeKM: 30, Strength: 150}},
		{700, Spotting{ID: 700, RangeKM: 46, Strength: 233}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, SpotRange(tc.id)); diff != "" {
			t.Fatalf("spot %d mismatch (-want +got):\n%s", tc.id, diff)
		}
	}
}

func TestLaunchTypes(t *testing.T) {
	if LaunchTypes(0) != "-" || LaunchTypes(15) != "Land, Air, Naval, Sub" {
		t.Fatalf("unexpected launch names %q %q", LaunchTypes(0), LaunchTypes(15))
	}
}

func TestParseRangesRequiresColumns(t *testing.T) {
	if _, err := ParseRanges(strings.NewReader("unit_id,ground\n1,2\n")); err == nil {
		t.Fatalf("expected missing column error")
	}
}

func TestParseEffectsRejectsUnknownOp(t *testing.T) {
	_, err := ParseEffects(strings.NewReader("effects:\n  - id: 1\n    field: soft\n    op: pow\n"))
	if err == nil {
		t.Fatalf("expected unknown op error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(Paths{Units: "testdata/nope.unit"}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
