// Package session liga tudo: acha o processo, resolve as regiões, monta o
// tracker e publica cada ciclo no distribuidor.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"sync"
	"time"

	"sruwatch/catalog"
	"sruwatch/config"
	"sruwatch/distributor"
	"sruwatch/layout"
	"sruwatch/memory"
	"sruwatch/process"
	"sruwatch/rules"
	"sruwatch/tracker"
)

// Target é o processo aberto.
type Target struct {
	PID    int
	Base   uintptr
	Reader *memory.Reader
}

// AttachFunc abre o processo alvo; os testes trocam por um memory.Fake.
type AttachFunc func(cfg config.Config) (Target, error)

// Attach acha o processo pelo nome e abre o handle de leitura.
func Attach(cfg config.Config) (Target, error) {
	pid, err := process.FindProcess(cfg.Process)
	if err != nil {
		return Target{}, fmt.Errorf("processo %s: %w", cfg.Process, err)
	}
	base, err := process.GetModuleBase(pid, cfg.ModuleName())
	if err != nil {
		return Target{}, fmt.Errorf("módulo %s: %w", cfg.ModuleName(), err)
	}
	reader, err := memory.Open(pid, cfg.ReadTimeout)
	if err != nil {
		return Target{}, err
	}
	return Target{PID: pid, Base: base, Reader: reader}, nil
}

type Options struct {
	Config      config.Config
	Distributor *distributor.Distributor
	Attach      AttachFunc
	Logger      *log.Logger
	// Now é repassado ao tracker (cadência da economia).
	Now func() time.Time
}

type Session struct {
	// step serializa Step e Update: uma troca de config nunca cai no meio de um ciclo
	step sync.Mutex

	mu       sync.RWMutex
	opts     Options
	cfg      config.Config
	target   Target
	tracker  *tracker.Tracker
	catalog  *catalog.Catalog
	rules    *rules.RuleSet
	dist     *distributor.Distributor
	log      *log.Logger
	running  bool
	cycles   uint64
	interval chan time.Duration

	// OnCycle é chamado depois de cada ciclo publicado.
	OnCycle func(tracker.Cycle)
}

// Open prepara uma sessão. Qualquer erro aqui é fatal: processo ausente,
// ponteiro de slot inválido, layout desconhecido ou catálogo ilegível.
// Ponteiro nulo da economia ou do mercado não é fatal.
func Open(opts Options) (*Session, error) {
	if opts.Distributor == nil {
		return nil, errors.New("session: distributor is required")
	}
	if opts.Attach == nil {
		opts.Attach = Attach
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	opts.Logger = logger
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	p, err := build(opts, cfg)
	if err != nil {
		return nil, err
	}
	return &Session{
		opts:     opts,
		cfg:      cfg,
		target:   p.target,
		tracker:  p.tracker,
		catalog:  p.catalog,
		rules:    p.rules,
		dist:     opts.Distributor,
		log:      logger,
		interval: make(chan time.Duration, 1),
	}, nil
}

// parts é o que depende do processo e dos arquivos: trocado inteiro no Update.
type parts struct {
	target  Target
	tracker *tracker.Tracker
	catalog *catalog.Catalog
	rules   *rules.RuleSet
}

func build(opts Options, cfg config.Config) (parts, error) {
	logger := opts.Logger
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return parts{}, fmt.Errorf("catálogo: %w", err)
	}
	set, err := cat.RuleSet(cfg.Research)
	if err != nil {
		return parts{}, fmt.Errorf("regras: %w", err)
	}
	registry, err := loadLayouts(cfg.LayoutFiles)
	if err != nil {
		return parts{}, err
	}

	target, err := opts.Attach(cfg)
	if err != nil {
		return parts{}, err
	}

	tc := tracker.Config{
		Version:          cfg.Layout,
		FailureThreshold: cfg.FailureThreshold,
		EconomyInterval:  cfg.EconomyInterval,
		Logger:           logger,
		Now:              opts.Now,
	}
	for _, r := range []struct {
		name string
		src  config.Region
		dst  *memory.Region
	}{
		{"A", cfg.Slots.A, &tc.SlotA},
		{"B", cfg.Slots.B, &tc.SlotB},
		{"E", cfg.Economy, &tc.Economy},
		{"M", cfg.Market, &tc.Market},
	} {
		if !r.src.Enabled() {
			continue
		}
		region, err := ResolveRegion(target.Reader, target.Base, r.name, r.src)
		if err != nil {
			// ponteiro nulo de E/M é normal no menu principal; o tracker tenta de novo
			if r.src.Pointer && (r.name == "E" || r.name == "M") && !errors.Is(err, memory.ErrAccessDenied) {
				logger.Printf("[SESSION] %v; tentando de novo a cada ciclo", err)
				*r.dst = memory.Region{Name: r.name, Size: r.src.Size}
				continue
			}
			target.Reader.Close()
			return parts{}, err
		}
		*r.dst = region
	}
	tc.Refresh = refresher(target, cfg)

	tr, err := tracker.New(target.Reader, registry, tc)
	if err != nil {
		target.Reader.Close()
		return parts{}, err
	}

	logger.Printf("[SESSION] pid=%d base=0x%X layout=%s A=%s B=%s E=%s",
		target.PID, target.Base, tr.Version(), tc.SlotA, tc.SlotB, tc.Economy)
	return parts{target: target, tracker: tr, catalog: cat, rules: set}, nil
}

func loadLayouts(paths []string) (*layout.Registry, error) {
	registry := layout.Builtin()
	for _, path := range paths {
		descs, err := layout.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if registry, err = registry.With(descs...); err != nil {
			return nil, fmt.Errorf("layouts %s: %w", path, err)
		}
	}
	return registry, nil
}

// ResolveRegion transforma a região configurada num endereço absoluto,
// seguindo o ponteiro de 32 bits quando Pointer está ligado.
func ResolveRegion(r *memory.Reader, base uintptr, name string, src config.Region) (memory.Region, error) {
	addr := uintptr(src.Address)
	if src.RVA != 0 {
		addr = base + uintptr(src.RVA)
	}
	if src.Pointer {
		ptr, err := r.ReadPointer(addr)
		if err != nil {
			return memory.Region{}, fmt.Errorf("slot %s: ponteiro em 0x%X (jogo carregado?): %w", name, addr, err)
		}
		addr = ptr
	}
	return memory.Region{Name: name, Base: addr, Size: src.Size}, nil
}

// refresher segue de novo os ponteiros de E e M a partir da config.
func refresher(target Target, cfg config.Config) func(tracker.Slot) (memory.Region, error) {
	return func(slot tracker.Slot) (memory.Region, error) {
		switch slot {
		case tracker.SlotEconomy:
			return ResolveRegion(target.Reader, target.Base, string(slot), cfg.Economy)
		case tracker.SlotMarket:
			return ResolveRegion(target.Reader, target.Base, string(slot), cfg.Market)
		}
		return memory.Region{}, fmt.Errorf("slot %s não tem ponteiro", slot)
	}
}

// Tracker devolve o tracker atual; um Update pode trocá-lo.
func (s *Session) Tracker() *tracker.Tracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker
}

func (s *Session) Catalog() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Config devolve a config em uso.
func (s *Session) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update aplica uma config nova com a sessão rodando. Intervalos, limite de
// falhas, layout e pesquisas mudam no lugar; processo, regiões, catálogo ou
// arquivos de layout reabrem o alvo e montam um tracker novo. Em caso de
// erro a config anterior continua valendo.
func (s *Session) Update(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	s.step.Lock()
	defer s.step.Unlock()

	old := s.Config()
	if needsRebuild(old, cfg) {
		p, err := build(s.opts, cfg)
		if err != nil {
			return err
		}
		prev := s.target
		s.mu.Lock()
		s.target, s.tracker, s.catalog, s.rules = p.target, p.tracker, p.catalog, p.rules
		s.mu.Unlock()
		if prev.Reader != p.target.Reader {
			prev.Reader.Close()
		}
		s.log.Printf("[SESSION] alvo reaberto: pid=%d layout=%s", p.target.PID, cfg.Layout)
	} else {
		set := s.rules
		if !slices.Equal(cfg.Research, old.Research) {
			var err error
			if set, err = s.catalog.RuleSet(cfg.Research); err != nil {
				return fmt.Errorf("regras: %w", err)
			}
		}
		if cfg.Layout != old.Layout {
			if err := s.tracker.SwitchLayout(cfg.Layout); err != nil {
				return err
			}
		}
		s.tracker.SetLimits(cfg.FailureThreshold, cfg.EconomyInterval)
		s.mu.Lock()
		s.rules = set
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	if cfg.PollInterval != old.PollInterval {
		// só o valor mais novo interessa
		select {
		case <-s.interval:
		default:
		}
		s.interval <- cfg.PollInterval
		s.log.Printf("[SESSION] intervalo %s -> %s", old.PollInterval, cfg.PollInterval)
	}
	return nil
}

func needsRebuild(old, cur config.Config) bool {
	return old.Process != cur.Process ||
		old.Module != cur.Module ||
		old.ReadTimeout != cur.ReadTimeout ||
		old.Slots != cur.Slots ||
		old.Economy != cur.Economy ||
		old.Market != cur.Market ||
		old.Catalog != cur.Catalog ||
		!slices.Equal(old.LayoutFiles, cur.LayoutFiles)
}

func (s *Session) Cycles() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

// Run roda o loop de polling até ctx ser cancelado ou o processo sumir.
// Só um Run por vez.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("session: already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.Config().PollInterval)
	defer ticker.Stop()

	for {
		if err := s.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case d := <-s.interval:
			ticker.Reset(d)
		case <-ticker.C:
		}
	}
}

// Step roda um ciclo do tracker e publica o resultado.
func (s *Session) Step(ctx context.Context) error {
	s.step.Lock()
	defer s.step.Unlock()
	cycle, err := s.tracker.Poll(ctx)
	if err != nil {
		if errors.Is(err, memory.ErrAccessDenied) {
			if !process.IsRunning(s.target.PID) {
				s.log.Printf("[SESSION] processo %d encerrado", s.target.PID)
			} else {
				s.log.Printf("[SESSION] acesso negado: %v", err)
			}
		}
		return err
	}
	if err := s.publish(cycle); err != nil {
		return err
	}

	s.mu.Lock()
	s.cycles++
	s.mu.Unlock()
	if s.OnCycle != nil {
		s.OnCycle(cycle)
	}
	return nil
}

// publish entrega na ordem A, B, E; dentro do slot, aviso antes do evento.
func (s *Session) publish(cycle tracker.Cycle) error {
	for _, slot := range []tracker.Slot{tracker.SlotA, tracker.SlotB, tracker.SlotEconomy} {
		for i := range cycle.Notices {
			n := cycle.Notices[i]
			if n.Slot != slot {
				continue
			}
			if err := s.dist.Publish(distributor.Delivery{Slot: slot, Seq: cycle.Seq, Notice: &n}); err != nil {
				return err
			}
		}
		for _, ev := range cycle.Events {
			if ev.Slot != slot {
				continue
			}
			del := distributor.Delivery{
				Slot:     slot,
				Seq:      cycle.Seq,
				Current:  ev.Current,
				Previous: ev.Previous,
			}
			if ev.Current.Kind == layout.KindUnit {
				derived := rules.Resolve(ev.Current, s.rules, s.catalog)
				del.Derived = &derived
			}
			if err := s.dist.Publish(del); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close libera o handle do processo. O distribuidor é do chamador.
func (s *Session) Close() error {
	s.mu.RLock()
	reader := s.target.Reader
	s.mu.RUnlock()
	return reader.Close()
}
