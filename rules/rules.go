// Package rules aplica os efeitos das tecnologias nas unidades decodificadas
// e diz se a unidade está liberada para o jogador.
package rules

import (
	"fmt"
	"sort"

	"sruwatch/entity"
)

type Op string

const (
	OpAdd Op = "add"
	// OpMul: Value é porcentagem, v *= 1 + Value/100.
	OpMul Op = "mul"
	OpSet Op = "set"
)

// Effect altera um campo. Applies restringe o efeito além do predicado
// da regra; vazio vale para toda unidade que a regra alcança.
type Effect struct {
	Field   string    `yaml:"field"`
	Op      Op        `yaml:"op"`
	Value   float64   `yaml:"value"`
	Applies Predicate `yaml:"applies,omitempty"`
}

func (e Effect) apply(v float64) float64 {
	switch e.Op {
	case OpAdd:
		return v + e.Value
	case OpMul:
		return v * (1 + e.Value/100)
	case OpSet:
		return e.Value
	}
	return v
}

// Predicate escolhe as unidades. Lista vazia aceita tudo; as não vazias
// precisam bater todas.
type Predicate struct {
	UnitIDs    []int `yaml:"unit_ids,omitempty"`
	Classes    []int `yaml:"classes,omitempty"`
	Categories []int `yaml:"categories,omitempty"`
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (p Predicate) Matches(e entity.Entity) bool {
	if len(p.UnitIDs) > 0 && !contains(p.UnitIDs, e.UnitID()) {
		return false
	}
	if len(p.Classes) > 0 && !contains(p.Classes, e.Class()) {
		return false
	}
	if len(p.Categories) > 0 && !contains(p.Categories, e.Category()) {
		return false
	}
	return true
}

type TechRule struct {
	ID       int
	Title    string
	Priority int
	Applies  Predicate
	Effects  []Effect
	Grants   []int
	Prereqs  []int
}

// RuleSet é imutável depois de criado e pode ser compartilhado.
type RuleSet struct {
	rules  []TechRule
	byID   map[int]int
	active map[int]bool
}

// NewRuleSet valida as regras e ordena por prioridade, depois por id.
func NewRuleSet(rules []TechRule, active []int) (*RuleSet, error) {
	s := &RuleSet{
		rules:  make([]TechRule, len(rules)),
		byID:   make(map[int]int, len(rules)),
		active: make(map[int]bool, len(active)),
	}
	copy(s.rules, rules)
	sort.SliceStable(s.rules, func(i, j int) bool {
		if s.rules[i].Priority != s.rules[j].Priority {
			return s.rules[i].Priority < s.rules[j].Priority
		}
		return s.rules[i].ID < s.rules[j].ID
	})
	for i, r := range s.rules {
		if _, dup := s.byID[r.ID]; dup {
			return nil, fmt.Errorf("tech %d defined twice", r.ID)
		}
		for _, eff := range r.Effects {
			switch eff.Op {
			case OpAdd, OpMul, OpSet:
			default:
				return nil, fmt.Errorf("tech %d: field %s: unknown op %q", r.ID, eff.Field, eff.Op)
			}
		}
		s.byID[r.ID] = i
	}
	for _, id := range active {
		s.active[id] = true
	}
	return s, nil
}

// WithActive devolve uma cópia de s com outro conjunto pesquisado.
func (s *RuleSet) WithActive(ids ...int) *RuleSet {
	out := &RuleSet{rules: s.rules, byID: s.byID, active: make(map[int]bool, len(ids))}
	for _, id := range ids {
		out.active[id] = true
	}
	return out
}

func (s *RuleSet) Active(id int) bool { return s.active[id] }

func (s *RuleSet) Rule(id int) (TechRule, bool) {
	i, ok := s.byID[id]
	if !ok {
		return TechRule{}, false
	}
	return s.rules[i], true
}

func (s *RuleSet) Len() int { return len(s.rules) }

// ActiveIDs lista as techs pesquisadas em ordem crescente.
func (s *RuleSet) ActiveIDs() []int {
	out := make([]int, 0, len(s.active))
	for id := range s.active {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

type UnlockStatus string

const (
	Unlocked   UnlockStatus = "unlocked"
	Unlockable UnlockStatus = "unlockable"
	Locked     UnlockStatus = "locked"
)

type UnlockInfo struct {
	Status    UnlockStatus
	GrantedBy []int
	Missing   []int
}

type DerivedAttributes struct {
	Base      entity.Entity
	Applied   []int
	Effective map[string]float64
	Unlock    UnlockInfo
}

// Baseline fornece os stats estáticos de uma unidade (DEFAULT.UNIT).
type Baseline interface {
	Baseline(unitID int) (map[string]float64, bool)
}

// Resolve calcula os stats efetivos e a liberação de e. Não guarda estado:
// mesma entrada, mesmo resultado.
func Resolve(e entity.Entity, set *RuleSet, base Baseline) DerivedAttributes {
	out := DerivedAttributes{Base: e, Effective: make(map[string]float64)}
	if base != nil {
		if stats, ok := base.Baseline(e.UnitID()); ok {
			for k, v := range stats {
				out.Effective[k] = v
			}
		}
	}
	for k, v := range e.Numeric() {
		out.Effective[k] = v
	}
	if set == nil {
		out.Unlock = UnlockInfo{Status: Unlocked}
		return out
	}

	for _, r := range set.rules {
		if !set.active[r.ID] || len(r.Effects) == 0 || !r.Applies.Matches(e) {
			continue
		}
		applied := false
		for _, eff := range r.Effects {
			if !eff.Applies.Matches(e) {
				continue
			}
			out.Effective[eff.Field] = eff.apply(out.Effective[eff.Field])
			applied = true
		}
		if applied {
			out.Applied = append(out.Applied, r.ID)
		}
	}
	out.Unlock = unlock(e.UnitID(), set)
	return out
}

func unlock(unitID int, set *RuleSet) UnlockInfo {
	var granting []TechRule
	for _, r := range set.rules {
		if contains(r.Grants, unitID) {
			granting = append(granting, r)
		}
	}
	if len(granting) == 0 {
		return UnlockInfo{Status: Unlocked}
	}
	sort.Slice(granting, func(i, j int) bool { return granting[i].ID < granting[j].ID })

	info := UnlockInfo{Status: Locked}
	for _, r := range granting {
		if set.active[r.ID] {
			if info.Status != Unlocked {
				info = UnlockInfo{Status: Unlocked}
			}
			info.GrantedBy = append(info.GrantedBy, r.ID)
		}
	}
	if info.Status == Unlocked {
		return info
	}

	// mostra a tech que libera com menos pré-requisitos faltando
	var best []int
	bestID := -1
	for _, r := range granting {
		var missing []int
		for _, p := range r.Prereqs {
			if !set.active[p] {
				missing = append(missing, p)
			}
		}
		if len(missing) == 0 {
			return UnlockInfo{Status: Unlockable, GrantedBy: []int{r.ID}}
		}
		if bestID < 0 || len(missing) < len(best) {
			best, bestID = missing, r.ID
		}
	}
	sort.Ints(best)
	return UnlockInfo{Status: Locked, GrantedBy: []int{bestID}, Missing: best}
}
