// Package distributor espalha a saída do tracker para consumidores
// independentes. Cada um tem goroutine e fila próprias: consumidor lento só
// perde as próprias entregas.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sruwatch/entity"
	"sruwatch/rules"
	"sruwatch/tracker"
)

var (
	ErrClosed    = errors.New("distributor closed")
	ErrDuplicate = errors.New("consumer already registered")
)

// Delivery é um item entregue: atualização de entidade (com atributos
// derivados, para unidades) ou aviso de slot.
type Delivery struct {
	Slot     tracker.Slot
	Seq      uint64
	Current  entity.Entity
	Previous *entity.Entity
	Derived  *rules.DerivedAttributes
	Notice   *tracker.Notice
}

func (d Delivery) IsNotice() bool { return d.Notice != nil }

func (d Delivery) String() string {
	if d.Notice != nil {
		return fmt.Sprintf("%s#%d %s", d.Slot, d.Seq, d.Notice.State)
	}
	return fmt.Sprintf("%s#%d %s", d.Slot, d.Seq, d.Current.Kind)
}

type Consumer interface {
	Deliver(Delivery) error
}

// ConsumerFunc adapta uma função a Consumer.
type ConsumerFunc func(Delivery) error

func (f ConsumerFunc) Deliver(d Delivery) error { return f(d) }

// closer: consumidores que seguram recursos.
type closer interface {
	Close(context.Context) error
}

type Config struct {
	// QueueSize por consumidor; padrão 64.
	QueueSize        int
	DropWarnInterval time.Duration
	Logger           *log.Logger
}

type Stats struct {
	Published uint64
	Delivered map[string]uint64
	Dropped   map[string]uint64
}

type Distributor struct {
	cfg      Config
	fallback *log.Logger

	mu      sync.RWMutex
	workers map[string]*worker
	closed  bool
	wg      sync.WaitGroup

	published atomic.Uint64
}

func New(cfg Config) *Distributor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.DropWarnInterval <= 0 {
		cfg.DropWarnInterval = 5 * time.Second
	}
	fallback := cfg.Logger
	if fallback == nil {
		fallback = log.New(os.Stderr, "[distributor] ", log.LstdFlags)
	}
	return &Distributor{cfg: cfg, fallback: fallback, workers: make(map[string]*worker)}
}

// Register sobe um worker para c com o nome name.
func (d *Distributor) Register(name string, c Consumer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, ok := d.workers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	w := &worker{
		name:     name,
		consumer: c,
		size:     d.cfg.QueueSize,
		fallback: d.fallback,
		warnGap:  d.cfg.DropWarnInterval,
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
	d.workers[name] = w
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		w.run()
	}()
	return nil
}

// Unregister para de entregar a name. O que está na fila ainda é entregue
// antes do worker sair. Diz se name estava registrado.
func (d *Distributor) Unregister(name string) bool {
	d.mu.Lock()
	w, ok := d.workers[name]
	if ok {
		delete(d.workers, name)
		w.stop()
	}
	d.mu.Unlock()
	if ok {
		<-w.done
		if c, isCloser := w.consumer.(closer); isCloser {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.Close(ctx); err != nil {
				d.fallback.Printf("consumer %s close: %v", name, err)
			}
		}
	}
	return ok
}

// Publish enfileira del para todos e nunca bloqueia.
func (d *Distributor) Publish(del Delivery) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	d.published.Add(1)
	for _, w := range d.workers {
		w.enqueue(del)
	}
	return nil
}

// Names lista os consumidores registrados.
func (d *Distributor) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.workers))
	for name := range d.workers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (d *Distributor) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Stats{
		Published: d.published.Load(),
		Delivered: make(map[string]uint64, len(d.workers)),
		Dropped:   make(map[string]uint64, len(d.workers)),
	}
	for name, w := range d.workers {
		s.Delivered[name] = w.delivered.Load()
		s.Dropped[name] = w.dropped.Load()
	}
	return s
}

// Close para de aceitar entregas e esvazia as filas. Depois fecha os
// consumidores que seguram recursos.
func (d *Distributor) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	workers := make([]*worker, 0, len(d.workers))
	for _, w := range d.workers {
		w.stop()
		workers = append(workers, w)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, w := range workers {
		c, ok := w.consumer.(closer)
		if !ok {
			continue
		}
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("consumer %s: %w", w.name, err)
		}
	}
	return firstErr
}

// worker entrega na ordem de chegada. A fila tem limite só para entidades:
// com ela cheia, a entidade nova substitui a última do mesmo slot ainda na
// fila, ou é descartada. Avisos nunca são descartados.
type worker struct {
	name     string
	consumer Consumer
	size     int
	fallback *log.Logger
	warnGap  time.Duration
	done     chan struct{}

	mu     sync.Mutex
	items  []Delivery
	closed bool
	wake   chan struct{}

	delivered   atomic.Uint64
	dropped     atomic.Uint64
	lastDropLog atomic.Int64
}

func (w *worker) enqueue(del Delivery) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if del.IsNotice() || len(w.items) < w.size {
		w.items = append(w.items, del)
		w.mu.Unlock()
		w.signal()
		return
	}
	dropped := del
	for i := len(w.items) - 1; i >= 0; i-- {
		if w.items[i].Slot != del.Slot {
			continue
		}
		if !w.items[i].IsNotice() {
			// o consumidor nunca viu o substituído; o anterior dele continua valendo
			dropped = w.items[i]
			del.Previous = dropped.Previous
			w.items[i] = del
		}
		break
	}
	w.mu.Unlock()
	w.reportDrop(dropped)
}

func (w *worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// stop fecha a fila; o que já está nela ainda é entregue.
func (w *worker) stop() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()
}

func (w *worker) next() (Delivery, bool) {
	for {
		w.mu.Lock()
		if len(w.items) > 0 {
			del := w.items[0]
			w.items[0] = Delivery{}
			w.items = w.items[1:]
			w.mu.Unlock()
			return del, true
		}
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return Delivery{}, false
		}
		<-w.wake
	}
}

func (w *worker) run() {
	defer close(w.done)
	for {
		del, ok := w.next()
		if !ok {
			return
		}
		if err := w.consumer.Deliver(del); err != nil {
			w.fallback.Printf("consumer %s failed on %s: %v", w.name, del, err)
			continue
		}
		w.delivered.Add(1)
	}
}

func (w *worker) reportDrop(del Delivery) {
	w.dropped.Add(1)
	now := time.Now().UnixNano()
	next := w.lastDropLog.Load()
	if next == 0 || now >= next {
		if w.lastDropLog.CompareAndSwap(next, now+w.warnGap.Nanoseconds()) {
			w.fallback.Printf("consumer %s backlog full, dropping %s (%d dropped so far)", w.name, del, w.dropped.Load())
		}
	}
}
