// Package tracker vigia os dois ponteiros de unidade (A = clique no mapa,
// B = diálogo de blueprint) e a economia, e decide o que mudou a cada ciclo.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sruwatch/decoder"
	"sruwatch/entity"
	"sruwatch/layout"
	"sruwatch/memory"
)

type Slot string

const (
	SlotA       Slot = "A"
	SlotB       Slot = "B"
	SlotEconomy Slot = "E"
	// SlotMarket não é publicado; só aparece em Config.Refresh.
	SlotMarket Slot = "M"
)

// State é o estado visível de um slot.
type State string

const (
	StateIdle        State = "idle"
	StateCaptured    State = "captured"
	StateDegraded    State = "degraded"
	StateUnavailable State = "unavailable"
	StateRecovered   State = "recovered"
)

var tracer = otel.Tracer("sruwatch/tracker")

var (
	// ErrNoTreasury: o registro econômico ainda não foi preenchido pelo jogo.
	ErrNoTreasury = errors.New("economy snapshot has no treasury")
	// ErrUnresolved: o ponteiro da região ainda é nulo (menu principal, save carregando).
	ErrUnresolved = errors.New("region pointer not resolved")
)

// ChangeEvent é emitido quando o conteúdo material de um slot muda.
type ChangeEvent struct {
	Slot     Slot
	Seq      uint64
	Previous *entity.Entity
	Current  entity.Entity
}

// Notice avisa os consumidores de transições de estado sem entidade nova.
type Notice struct {
	Slot  Slot
	State State
	Seq   uint64
	Err   error
}

// Cycle é o resultado de um Poll, já na ordem A, B, E.
type Cycle struct {
	Seq     uint64
	Events  []ChangeEvent
	Notices []Notice
}

// Capturer é o que o tracker precisa da camada de memória.
type Capturer interface {
	Capture(region memory.Region, seq uint64) (memory.Snapshot, error)
}

type Config struct {
	SlotA   memory.Region
	SlotB   memory.Region
	Economy memory.Region
	// Market é opcional; Size 0 desliga.
	Market  memory.Region
	Version string
	// FailureThreshold falhas seguidas viram um aviso "unavailable".
	FailureThreshold int
	// EconomyInterval controla a cadência do slot E; 0 lê a cada ciclo.
	// Economy.Size 0 desliga o slot.
	EconomyInterval time.Duration
	// Refresh segue de novo o ponteiro de E ou M. Chamado enquanto a base
	// for zero e a cada ciclo com o slot unavailable. nil desliga.
	Refresh         func(slot Slot) (memory.Region, error)
	Logger          *log.Logger
	Now             func() time.Time
}

type slotState struct {
	slot        Slot
	region      memory.Region
	desc        layout.Descriptor
	state       State
	lastBytes   []byte
	good        *entity.Entity
	failures    int
	unavailable bool
	degraded    bool
	announced   bool
}

type Tracker struct {
	mu       sync.Mutex
	reader   Capturer
	registry *layout.Registry
	cfg      Config
	log      *log.Logger
	now      func() time.Time

	version string
	market  layout.Descriptor
	seq     uint64
	slots   []*slotState
	econ    *slotState
	lastE   time.Time
}

// New resolve os layouts da versão pedida. ErrUnknownLayout aqui é fatal.
func New(reader Capturer, registry *layout.Registry, cfg Config) (*Tracker, error) {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	t := &Tracker{
		reader:   reader,
		registry: registry,
		cfg:      cfg,
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	if t.log == nil {
		t.log = log.New(io.Discard, "", 0)
	}
	if t.now == nil {
		t.now = time.Now
	}
	t.slots = []*slotState{
		{slot: SlotA, region: cfg.SlotA, state: StateIdle},
		{slot: SlotB, region: cfg.SlotB, state: StateIdle},
	}
	if cfg.Economy.Size > 0 {
		t.econ = &slotState{slot: SlotEconomy, region: cfg.Economy, state: StateIdle}
	}
	if err := t.resolve(cfg.Version); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) resolve(version string) error {
	unit, err := t.registry.Resolve(layout.KindUnit, version)
	if err != nil {
		return err
	}
	var econ, market layout.Descriptor
	if t.econ != nil {
		if econ, err = t.registry.Resolve(layout.KindEconomy, version); err != nil {
			return err
		}
		if t.cfg.Market.Size > 0 {
			if market, err = t.registry.Resolve(layout.KindMarket, version); err != nil {
				return err
			}
		}
	}
	for _, s := range t.slots {
		if s.region.Size < unit.Size {
			return fmt.Errorf("slot %s: region %s smaller than layout %s (0x%X)", s.slot, s.region, unit.Version, unit.Size)
		}
	}
	for _, s := range t.slots {
		s.desc = unit
		s.lastBytes = nil
	}
	if t.econ != nil {
		t.econ.desc = econ
		t.econ.lastBytes = nil
	}
	t.market = market
	t.version = version
	return nil
}

// SwitchLayout troca a versão de layout no meio da sessão. Em caso de erro
// os descritores anteriores continuam valendo.
func (t *Tracker) SwitchLayout(version string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.resolve(version); err != nil {
		return err
	}
	t.log.Printf("layout switched to %s (unit %s)", version, t.slots[0].desc.Version)
	return nil
}

// SetLimits troca o limite de falhas e a cadência da economia sem zerar
// os contadores dos slots.
func (t *Tracker) SetLimits(threshold int, economyInterval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if threshold > 0 {
		t.cfg.FailureThreshold = threshold
	}
	t.cfg.EconomyInterval = economyInterval
}

func (t *Tracker) Version() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// Latest devolve o último valor bom do slot e o estado atual.
func (t *Tracker) Latest(slot Slot) (entity.Entity, State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.find(slot)
	if s == nil || s.good == nil {
		if s == nil {
			return entity.Entity{}, StateIdle, false
		}
		return entity.Entity{}, s.state, false
	}
	return *s.good, s.state, true
}

func (t *Tracker) find(slot Slot) *slotState {
	for _, s := range t.slots {
		if s.slot == slot {
			return s
		}
	}
	if t.econ != nil && t.econ.slot == slot {
		return t.econ
	}
	return nil
}

// Poll roda um ciclo: A, depois B, depois E se estiver na hora.
// Só ErrAccessDenied (ou ctx cancelado) volta como erro.
func (t *Tracker) Poll(ctx context.Context) (Cycle, error) {
	if err := ctx.Err(); err != nil {
		return Cycle{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	cycle := Cycle{Seq: t.seq}

	ctx, span := tracer.Start(ctx, "tracker.poll",
		trace.WithAttributes(attribute.Int64("sruwatch.seq", int64(t.seq))))
	defer span.End()

	for _, s := range t.slots {
		if err := t.pollUnit(s, &cycle); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return cycle, err
		}
	}
	if t.econ != nil && t.economyDue() {
		if err := t.pollEconomy(ctx, &cycle); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return cycle, err
		}
	}
	span.SetAttributes(
		attribute.Int("sruwatch.events", len(cycle.Events)),
		attribute.Int("sruwatch.notices", len(cycle.Notices)),
	)
	return cycle, nil
}

func (t *Tracker) economyDue() bool {
	now := t.now()
	if !t.lastE.IsZero() && now.Sub(t.lastE) < t.cfg.EconomyInterval {
		return false
	}
	t.lastE = now
	return true
}

func (t *Tracker) pollUnit(s *slotState, cycle *Cycle) error {
	snap, err := t.reader.Capture(s.region, t.seq)
	if err != nil {
		if errors.Is(err, memory.ErrAccessDenied) {
			return fmt.Errorf("slot %s: %w", s.slot, err)
		}
		t.fail(s, err, false, cycle)
		return nil
	}

	if s.lastBytes != nil && s.desc.EqualCovered(s.lastBytes, snap.Bytes) {
		t.succeed(s, cycle)
		return nil
	}

	e, err := decoder.Decode(snap, s.desc)
	if err != nil {
		t.fail(s, err, true, cycle)
		return nil
	}
	s.lastBytes = snap.Bytes

	if emptySelection(e, s.desc) {
		t.succeed(s, cycle)
		if s.state != StateIdle || !s.announced {
			s.good = nil
			s.state = StateIdle
			s.announced = true
			cycle.Notices = append(cycle.Notices, Notice{Slot: s.slot, State: StateIdle, Seq: t.seq})
		}
		return nil
	}
	t.accept(s, e, cycle)
	return nil
}

func (t *Tracker) pollEconomy(ctx context.Context, cycle *Cycle) error {
	s := t.econ
	_, span := tracer.Start(ctx, "tracker.economy")
	defer span.End()

	if s.region.Base == 0 || s.unavailable {
		if err := t.rebase(s); err != nil {
			return err
		}
	}
	if s.region.Base == 0 {
		t.fail(s, fmt.Errorf("%w: %s", ErrUnresolved, s.region), false, cycle)
		return nil
	}

	snap, err := t.reader.Capture(s.region, t.seq)
	if err != nil {
		if errors.Is(err, memory.ErrAccessDenied) {
			return fmt.Errorf("slot %s: %w", s.slot, err)
		}
		t.fail(s, err, false, cycle)
		return nil
	}
	e, err := decoder.Decode(snap, s.desc)
	if err != nil {
		t.fail(s, err, true, cycle)
		return nil
	}
	if !hasTreasury(e) {
		t.fail(s, ErrNoTreasury, true, cycle)
		return nil
	}

	// mercado é opcional: se falhar, o snapshot econômico segue sem preços
	if t.cfg.Market.Size > 0 && t.cfg.Market.Base != 0 {
		msnap, err := t.reader.Capture(t.cfg.Market, t.seq)
		switch {
		case errors.Is(err, memory.ErrAccessDenied):
			return fmt.Errorf("market: %w", err)
		case err != nil:
			t.log.Printf("market read failed: %v", err)
		default:
			m, err := decoder.Decode(msnap, t.market)
			if err != nil {
				t.log.Printf("market decode failed: %v", err)
			} else {
				e = e.With(m.Fields()...)
			}
		}
	}
	t.accept(s, e, cycle)
	return nil
}

// rebase segue de novo os ponteiros da economia e do mercado. Só
// ErrAccessDenied volta; outras falhas deixam a região como estava.
func (t *Tracker) rebase(s *slotState) error {
	if t.cfg.Refresh == nil {
		return nil
	}
	region, err := t.cfg.Refresh(SlotEconomy)
	switch {
	case errors.Is(err, memory.ErrAccessDenied):
		return fmt.Errorf("slot %s: %w", s.slot, err)
	case err != nil:
		t.log.Printf("slot %s pointer refresh failed: %v", s.slot, err)
	case region != s.region:
		t.log.Printf("slot %s rebased %s -> %s", s.slot, s.region, region)
		s.region = region
		s.lastBytes = nil
	}

	if t.cfg.Market.Size == 0 {
		return nil
	}
	market, err := t.cfg.Refresh(SlotMarket)
	switch {
	case errors.Is(err, memory.ErrAccessDenied):
		return fmt.Errorf("market: %w", err)
	case err != nil:
		t.log.Printf("market pointer refresh failed: %v", err)
	case market != t.cfg.Market:
		t.log.Printf("market rebased %s -> %s", t.cfg.Market, market)
		t.cfg.Market = market
	}
	return nil
}

// accept compara com o último valor bom e emite ChangeEvent se houve
// mudança material.
func (t *Tracker) accept(s *slotState, e entity.Entity, cycle *Cycle) {
	t.succeed(s, cycle)
	prev := s.good
	s.state = StateCaptured
	s.announced = true
	if prev != nil && !Changed(*prev, e) {
		s.good = &e
		return
	}
	s.good = &e
	cycle.Events = append(cycle.Events, ChangeEvent{Slot: s.slot, Seq: t.seq, Previous: prev, Current: e})
}

func (t *Tracker) succeed(s *slotState, cycle *Cycle) {
	if s.unavailable || s.degraded {
		cycle.Notices = append(cycle.Notices, Notice{Slot: s.slot, State: StateRecovered, Seq: t.seq})
		t.log.Printf("slot %s recovered after %d failures", s.slot, s.failures)
		if s.good != nil {
			s.state = StateCaptured
		} else {
			s.state = StateIdle
		}
	}
	s.failures = 0
	s.unavailable = false
	s.degraded = false
}

// fail conta a falha. Erros de decodificação marcam o slot como degradado
// na hora; erros de leitura só aparecem quando chegam no limite.
func (t *Tracker) fail(s *slotState, err error, decode bool, cycle *Cycle) {
	s.failures++
	if decode && !s.degraded && s.good != nil {
		s.degraded = true
		s.state = StateDegraded
		cycle.Notices = append(cycle.Notices, Notice{Slot: s.slot, State: StateDegraded, Seq: t.seq, Err: err})
		t.log.Printf("slot %s degraded: %v", s.slot, err)
	}
	if !s.unavailable && s.failures >= t.cfg.FailureThreshold {
		s.unavailable = true
		s.state = StateUnavailable
		cycle.Notices = append(cycle.Notices, Notice{Slot: s.slot, State: StateUnavailable, Seq: t.seq, Err: err})
		t.log.Printf("slot %s unavailable after %d failures: %v", s.slot, s.failures, err)
	}
}

// Changed é o predicado de mudança: qualquer campo decodificado difere
// (identidade incluída).
func Changed(prev, cur entity.Entity) bool {
	if prev.Kind != cur.Kind || prev.Version != cur.Version {
		return true
	}
	pf, cf := prev.Fields(), cur.Fields()
	if len(pf) != len(cf) {
		return true
	}
	for i := range cf {
		if pf[i].Name != cf[i].Name || pf[i].Value != cf[i].Value {
			return true
		}
	}
	return false
}

// emptySelection: todos os campos de identidade zerados = nenhuma unidade
// selecionada.
func emptySelection(e entity.Entity, d layout.Descriptor) bool {
	ids := 0
	for _, f := range d.Fields {
		if !f.Identity {
			continue
		}
		ids++
		v, _ := e.Get(f.Name)
		if v.Num != 0 || v.Str != "" {
			return false
		}
	}
	return ids > 0
}

func hasTreasury(e entity.Entity) bool {
	treasury, ok := e.Num(entity.FieldTreasury)
	if !ok {
		return false
	}
	pop, _ := e.Num(entity.FieldPopulace)
	return treasury != 0 || pop != 0
}
