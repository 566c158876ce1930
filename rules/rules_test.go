package rules

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"sruwatch/entity"
	"sruwatch/layout"
)

type baseline map[int]map[string]float64

func (b baseline) Baseline(id int) (map[string]float64, bool) {
	s, ok := b[id]
	return s, ok
}

func unit(id, class int, hp float64) entity.Entity {
	return entity.New(layout.KindUnit, layout.VersionSRU, 1, []entity.Field{
		{Name: entity.FieldUnitID, Value: entity.Value{Type: layout.Int32, Num: float64(id)}},
		{Name: entity.FieldName, Value: entity.Value{Type: layout.String, Str: "unit"}},
		{Name: entity.FieldClass, Value: entity.Value{Type: layout.Bitfield, Num: float64(class)}},
		{Name: "hp", Value: entity.Value{Type: layout.Int32, Num: hp}},
	})
}

func mustSet(t *testing.T, rules []TechRule, active ...int) *RuleSet {
	t.Helper()
	s, err := NewRuleSet(rules, active)
	if err != nil {
		t.Fatalf("rule set: %v", err)
	}
	return s
}

func TestResolveAppliesMatchingRules(t *testing.T) {
	set := mustSet(t, []TechRule{
		{ID: 10, Priority: 1, Applies: Predicate{UnitIDs: []int{42}}, Effects: []Effect{{Field: "hp", Op: OpAdd, Value: 20}}},
		{ID: 11, Priority: 2, Applies: Predicate{UnitIDs: []int{42}}, Effects: []Effect{{Field: "hp", Op: OpMul, Value: 50}}},
		{ID: 12, Priority: 1, Applies: Predicate{UnitIDs: []int{7}}, Effects: []Effect{{Field: "hp", Op: OpAdd, Value: 1000}}},
		{ID: 13, Priority: 0, Effects: []Effect{{Field: "hp", Op: OpAdd, Value: 1}}},
	}, 10, 11, 12)

	d := Resolve(unit(42, 3, 100), set, nil)
	if diff := cmp.Diff([]int{10, 11}, d.Applied); diff != "" {
		t.Fatalf("applied mismatch (-want +got):\n%s", diff)
	}
	// (100 + 20) * 1.5
	if d.Effective["hp"] != 180 {
		t.Fatalf("expected hp 180, got %v", d.Effective["hp"])
	}
	if d.Base.UnitID() != 42 {
		t.Fatalf("expected base entity kept")
	}
}

func TestPriorityOrderAndTies(t *testing.T) {
	rules := []TechRule{
		{ID: 5, Priority: 1, Effects: []Effect{{Field: "hp", Op: OpSet, Value: 10}}},
		{ID: 3, Priority: 1, Effects: []Effect{{Field: "hp", Op: OpSet, Value: 30}}},
		{ID: 1, Priority: 0, Effects: []Effect{{Field: "hp", Op: OpMul, Value: 100}}},
	}
	d := Resolve(unit(1, 0, 50), mustSet(t, rules, 1, 3, 5), nil)
	if diff := cmp.Diff([]int{1, 3, 5}, d.Applied); diff != "" {
		t.Fatalf("applied order mismatch (-want +got):\n%s", diff)
	}
	if d.Effective["hp"] != 10 {
		t.Fatalf("expected last set to win with hp 10, got %v", d.Effective["hp"])
	}
}

func TestPredicateByClass(t *testing.T) {
	set := mustSet(t, []TechRule{
		{ID: 1, Applies: Predicate{Classes: []int{4}}, Effects: []Effect{{Field: "speed", Op: OpAdd, Value: 5}}},
	}, 1)
	if d := Resolve(unit(1, 4, 1), set, nil); d.Effective["speed"] != 5 {
		t.Fatalf("expected class 4 to get speed 5, got %v", d.Effective["speed"])
	}
	if d := Resolve(unit(1, 2, 1), set, nil); len(d.Applied) != 0 {
		t.Fatalf("expected class 2 untouched, got %v", d.Applied)
	}
}

func TestEffectPredicateIsPerEffect(t *testing.T) {
	set := mustSet(t, []TechRule{
		{ID: 500, Effects: []Effect{
			{Field: "soft", Op: OpMul, Value: 50, Applies: Predicate{Classes: []int{3}}},
			{Field: "speed", Op: OpAdd, Value: 2},
		}},
		{ID: 501, Effects: []Effect{
			{Field: "hp", Op: OpAdd, Value: 10, Applies: Predicate{Classes: []int{3}}},
		}},
	}, 500, 501)
	base := baseline{1: {"soft": 10, "speed": 5}}

	d := Resolve(unit(1, 1, 100), set, base)
	want := map[string]float64{"unit_id": 1, "class": 1, "hp": 100, "soft": 10, "speed": 7}
	if diff := cmp.Diff(want, d.Effective); diff != "" {
		t.Fatalf("effective mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{500}, d.Applied); diff != "" {
		t.Fatalf("a tech with no matching effect must not count as applied (-want +got):\n%s", diff)
	}

	d = Resolve(unit(1, 3, 100), set, base)
	if d.Effective["soft"] != 15 || d.Effective["speed"] != 7 || d.Effective["hp"] != 110 {
		t.Fatalf("expected class 3 to get every effect, got %v", d.Effective)
	}
}

func TestBaselineOverlaidByDecodedFields(t *testing.T) {
	base := baseline{42: {"hp": 1, "fuel": 300}}
	d := Resolve(unit(42, 0, 100), nil, base)
	if d.Effective["hp"] != 100 || d.Effective["fuel"] != 300 {
		t.Fatalf("unexpected effective %v", d.Effective)
	}
	if d.Unlock.Status != Unlocked {
		t.Fatalf("expected unlocked without rules, got %s", d.Unlock.Status)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	set := mustSet(t, []TechRule{
		{ID: 1, Effects: []Effect{{Field: "hp", Op: OpMul, Value: 10}}},
		{ID: 2, Grants: []int{42}, Prereqs: []int{1, 9}},
	}, 1)
	base := baseline{42: {"fuel": 10}}
	e := unit(42, 0, 100)
	first := Resolve(e, set, base)
	for i := 0; i < 3; i++ {
		again := Resolve(e, set, base)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("resolve %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestUnlock(t *testing.T) {
	rules := []TechRule{
		{ID: 100, Grants: []int{42}, Prereqs: []int{1, 2}},
		{ID: 101, Grants: []int{42}, Prereqs: []int{3}},
	}

	t.Run("ungranted unit is unlocked", func(t *testing.T) {
		d := Resolve(unit(7, 0, 1), mustSet(t, rules), nil)
		if d.Unlock.Status != Unlocked {
			t.Fatalf("expected unlocked, got %+v", d.Unlock)
		}
	})

	t.Run("active grant unlocks", func(t *testing.T) {
		d := Resolve(unit(42, 0, 1), mustSet(t, rules, 101), nil)
		if diff := cmp.Diff(UnlockInfo{Status: Unlocked, GrantedBy: []int{101}}, d.Unlock); diff != "" {
			t.Fatalf("unlock mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("prereqs met is unlockable", func(t *testing.T) {
		d := Resolve(unit(42, 0, 1), mustSet(t, rules, 1, 2), nil)
		if diff := cmp.Diff(UnlockInfo{Status: Unlockable, GrantedBy: []int{100}}, d.Unlock); diff != "" {
			t.Fatalf("unlock mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing prereqs is locked", func(t *testing.T) {
		d := Resolve(unit(42, 0, 1), mustSet(t, rules, 1), nil)
		want := UnlockInfo{Status: Locked, GrantedBy: []int{100}, Missing: []int{2}}
		if diff := cmp.Diff(want, d.Unlock); diff != "" {
			t.Fatalf("unlock mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNewRuleSetValidation(t *testing.T) {
	if _, err := NewRuleSet([]TechRule{{ID: 1}, {ID: 1}}, nil); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if _, err := NewRuleSet([]TechRule{{ID: 1, Effects: []Effect{{Field: "hp", Op: "pow"}}}}, nil); err == nil {
		t.Fatalf("expected unknown op error")
	}
	s := mustSet(t, []TechRule{{ID: 1}, {ID: 2}}, 2)
	other := s.WithActive(1)
	if s.Active(1) || !other.Active(1) || other.Active(2) {
		t.Fatalf("WithActive must not change the original set")
	}
	if diff := cmp.Diff([]int{1}, other.ActiveIDs()); diff != "" {
		t.Fatalf("active ids mismatch (-want +got):\n%s", diff)
	}
}
