// Package overlay mantém o estado exibido pelo overlay: a última entidade
// de cada slot, os avisos de estado e a comparação A x B.
package overlay

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sruwatch/distributor"
	"sruwatch/entity"
	"sruwatch/tracker"
)

// Campos comparados entre A e B, na ordem de exibição.
var compareFields = []string{
	"hp", "efficiency", "speed", "move_range",
	"soft", "hard", "fort",
	"air_low", "air_mid", "air_high",
	"naval_surf", "naval_sub", "close_combat",
	"def_ground", "def_air", "def_indirect", "def_close",
	"range_ground", "range_air", "range_surf", "range_sub",
	"fuel", "supply", "cost",
}

// Campos econômicos mostrados no rodapé.
var economyFields = []string{
	"Treasury", "Population", "GDP/c", "Inflation",
	"Domestic Approval", "Credit Rating",
}

type slotView struct {
	state    tracker.State
	delivery distributor.Delivery
	has      bool
}

// View é um consumidor do distribuidor. Deliver só guarda estado; Lines
// formata sob leitura, chamado pelo loop de desenho.
type View struct {
	mu      sync.RWMutex
	slots   map[tracker.Slot]*slotView
	updates uint64
	printer *message.Printer
}

func NewView() *View {
	v := &View{
		slots:   make(map[tracker.Slot]*slotView),
		printer: message.NewPrinter(language.English),
	}
	for _, s := range []tracker.Slot{tracker.SlotA, tracker.SlotB, tracker.SlotEconomy} {
		v.slots[s] = &slotView{state: tracker.StateIdle}
	}
	return v
}

func (v *View) Deliver(d distributor.Delivery) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	s, ok := v.slots[d.Slot]
	if !ok {
		return fmt.Errorf("overlay: unknown slot %q", d.Slot)
	}
	v.updates++
	if d.Notice != nil {
		s.state = d.Notice.State
		if d.Notice.State == tracker.StateIdle {
			s.has = false
			s.delivery = distributor.Delivery{}
		}
		return nil
	}
	s.state = tracker.StateCaptured
	s.delivery = d
	s.has = true
	return nil
}

// State devolve o estado atual do slot.
func (v *View) State(slot tracker.Slot) tracker.State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if s, ok := v.slots[slot]; ok {
		return s.state
	}
	return tracker.StateIdle
}

// Updates conta as entregas recebidas.
func (v *View) Updates() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.updates
}

// stats devolve os valores efetivos (com regras) ou os crus.
func (s *slotView) stats() map[string]float64 {
	if !s.has {
		return nil
	}
	if s.delivery.Derived != nil && s.delivery.Derived.Effective != nil {
		return s.delivery.Derived.Effective
	}
	return s.delivery.Current.Numeric()
}

func (v *View) header(slot tracker.Slot) string {
	s := v.slots[slot]
	if !s.has {
		return fmt.Sprintf("%s [%s] -", slot, s.state)
	}
	e := s.delivery.Current
	line := fmt.Sprintf("%s [%s] #%d %s", slot, s.state, e.UnitID(), e.Name())
	if d := s.delivery.Derived; d != nil && d.Unlock.Status != "" {
		line += fmt.Sprintf(" (%s)", d.Unlock.Status)
	}
	return line
}

// Lines formata o overlay completo.
func (v *View) Lines() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	lines := []string{
		"SRU WATCH",
		v.header(tracker.SlotA),
		v.header(tracker.SlotB),
	}

	a, b := v.slots[tracker.SlotA].stats(), v.slots[tracker.SlotB].stats()
	if a != nil || b != nil {
		lines = append(lines, fmt.Sprintf("%-14s %10s %10s %9s", "stat", "A", "B", "A-B"))
		for _, name := range compareFields {
			av, aok := a[name]
			bv, bok := b[name]
			if !aok && !bok {
				continue
			}
			lines = append(lines, fmt.Sprintf("%-14s %10s %10s %9s",
				name, cell(av, aok), cell(bv, bok), delta(av, aok, bv, bok)))
		}
	}

	econ := v.slots[tracker.SlotEconomy]
	lines = append(lines, fmt.Sprintf("E [%s]", econ.state))
	if econ.has {
		e := econ.delivery.Current
		for _, name := range economyFields {
			if n, ok := e.Num(name); ok {
				lines = append(lines, fmt.Sprintf("  %-18s %s", name, v.number(n)))
			}
		}
	}
	return lines
}

func cell(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

func delta(a float64, aok bool, b float64, bok bool) string {
	if !aok || !bok {
		return ""
	}
	return fmt.Sprintf("%+.1f", a-b)
}

// number agrupa milhares nos valores grandes da economia.
func (v *View) number(n float64) string {
	if math.Abs(n) >= 1000 {
		return v.printer.Sprintf("%d", int64(math.Round(n)))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", n), "0"), ".")
}

// Latest devolve a última entidade recebida para o slot.
func (v *View) Latest(slot tracker.Slot) (entity.Entity, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.slots[slot]
	if !ok || !s.has {
		return entity.Entity{}, false
	}
	return s.delivery.Current, true
}
