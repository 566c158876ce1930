// Package catalog é a consulta somente leitura aos arquivos estáticos do
// SRU (DEFAULT.UNIT e DEFAULT.TTRX) mais o mapa de efeitos e o banco de
// alcances.
package catalog

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"sruwatch/rules"
)

// Paths dos arquivos estáticos. Caminho vazio é ignorado.
type Paths struct {
	Units   string `yaml:"units" env:"UNITS"`
	Techs   string `yaml:"techs" env:"TECHS"`
	Effects string `yaml:"effects" env:"EFFECTS"`
	Ranges  string `yaml:"ranges" env:"RANGES"`
}

type Catalog struct {
	units   map[int]UnitStats
	techs   map[int]Tech
	effects map[int]EffectSpec
	ranges  map[int]RangeEntry
	// grants: id da tech -> unidades que dependem dela
	grants map[int][]int
}

// New monta um catálogo com dados já lidos.
func New(units []UnitStats, techs []Tech, effects map[int]EffectSpec, ranges map[int]RangeEntry) *Catalog {
	c := &Catalog{
		units:   make(map[int]UnitStats, len(units)),
		techs:   make(map[int]Tech, len(techs)),
		effects: effects,
		ranges:  ranges,
		grants:  make(map[int][]int),
	}
	if c.effects == nil {
		c.effects = map[int]EffectSpec{}
	}
	if c.ranges == nil {
		c.ranges = map[int]RangeEntry{}
	}
	for _, t := range techs {
		c.techs[t.ID] = t
	}
	for _, u := range units {
		if r, ok := c.ranges[u.ID]; ok {
			u.Ranges = r.Ranges.prefer(u.RawRanges)
			u.MissileRange = r.Missile
		}
		c.units[u.ID] = u
		for _, req := range []int{u.TechReq1, u.TechReq2} {
			if req != 0 {
				c.grants[req] = append(c.grants[req], u.ID)
			}
		}
	}
	for id := range c.grants {
		sort.Ints(c.grants[id])
	}
	return c
}

func parseFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	v, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Load lê os arquivos que estiverem em p.
func Load(p Paths) (*Catalog, error) {
	var (
		units   []UnitStats
		techs   []Tech
		effects map[int]EffectSpec
		ranges  map[int]RangeEntry
		err     error
	)
	if p.Ranges != "" {
		if ranges, err = parseFile(p.Ranges, ParseRanges); err != nil {
			return nil, err
		}
	}
	if p.Units != "" {
		if units, err = parseFile(p.Units, ParseUnits); err != nil {
			return nil, err
		}
	}
	if p.Techs != "" {
		if techs, err = parseFile(p.Techs, ParseTechs); err != nil {
			return nil, err
		}
	}
	if p.Effects != "" {
		if effects, err = LoadEffects(p.Effects); err != nil {
			return nil, err
		}
	}
	return New(units, techs, effects, ranges), nil
}

func (c *Catalog) Unit(id int) (UnitStats, bool) {
	u, ok := c.units[id]
	return u, ok
}

// Baseline implementa rules.Baseline.
func (c *Catalog) Baseline(id int) (map[string]float64, bool) {
	u, ok := c.units[id]
	if !ok {
		return nil, false
	}
	return u.Stats(), true
}

// RawTech devolve a linha do TTRX como foi lida.
func (c *Catalog) RawTech(id int) (Tech, bool) {
	t, ok := c.techs[id]
	return t, ok
}

// Tech devolve a tech como regra, com efeitos mapeados e pré-requisitos.
// Grants são as unidades que pedem a tech. Cada efeito leva o próprio
// Applies; efeito sem mapeamento some.
func (c *Catalog) Tech(id int) (rules.TechRule, bool) {
	t, ok := c.techs[id]
	if !ok {
		return rules.TechRule{}, false
	}
	r := rules.TechRule{
		ID:       t.ID,
		Title:    t.Title,
		Priority: t.Level,
		Prereqs:  append([]int(nil), t.Prereqs...),
		Grants:   append([]int(nil), c.grants[t.ID]...),
	}
	for _, e := range t.Effects {
		fx, ok := c.effects[e.EffectID]
		if !ok {
			continue
		}
		r.Effects = append(r.Effects, rules.Effect{
			Field:   fx.Field,
			Op:      fx.Op,
			Value:   e.Value * fx.Scale,
			Applies: fx.Applies,
		})
		if fx.Priority != 0 {
			r.Priority = fx.Priority
		}
	}
	return r, true
}

// RuleSet monta a tabela de regras de todas as techs; active é o que já
// foi pesquisado.
func (c *Catalog) RuleSet(active []int) (*rules.RuleSet, error) {
	ids := c.TechIDs()
	out := make([]rules.TechRule, 0, len(ids))
	for _, id := range ids {
		r, _ := c.Tech(id)
		out = append(out, r)
	}
	return rules.NewRuleSet(out, active)
}

func (c *Catalog) TechIDs() []int {
	ids := make([]int, 0, len(c.techs))
	for id := range c.techs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Units lista todas as unidades por id.
func (c *Catalog) Units() []UnitStats {
	out := make([]UnitStats, 0, len(c.units))
	for _, u := range c.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Search acha unidades pelo id exato ou por trecho do nome (sem caixa).
func (c *Catalog) Search(query string) []UnitStats {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []UnitStats
	for _, u := range c.Units() {
		if strconv.Itoa(u.ID) == q || (q != "" && strings.Contains(strings.ToLower(u.Name), q)) {
			out = append(out, u)
		}
	}
	return out
}

// Counts diz quantas linhas de cada arquivo foram carregadas.
func (c *Catalog) Counts() (units, techs, effects, ranges int) {
	return len(c.units), len(c.techs), len(c.effects), len(c.ranges)
}
