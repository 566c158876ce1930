// Package econlog grava o slot da economia como série diária. A data do
// jogo não está na memória; os dias são contados pelas mudanças de Treasury
// e Population.
package econlog

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"sruwatch/distributor"
	"sruwatch/tracker"
)

type Options struct {
	Game   string
	Nation string
	// Start vale quando o banco ainda não tem linhas deste jogo.
	Start  time.Time
	Mode   SaveMode
	Logger *log.Logger
}

// Logger é um consumidor do distribuidor para o slot E.
type Logger struct {
	mu        sync.Mutex
	store     *Store
	opts      Options
	cal       *Calendar
	lastSaved time.Time
	log       *log.Logger
	saved     int
}

// NewLogger continua do último dia salvo do mesmo jogo, se houver.
func NewLogger(ctx context.Context, store *Store, opts Options) (*Logger, error) {
	if opts.Mode == "" {
		opts.Mode = Daily
	}
	l := &Logger{store: store, opts: opts, log: opts.Logger}
	if l.log == nil {
		l.log = log.New(io.Discard, "", 0)
	}
	last, err := store.LastDate(ctx, opts.Game, opts.Nation)
	if err != nil {
		return nil, err
	}
	start := opts.Start
	if !last.IsZero() {
		start = last
		l.lastSaved = last
		l.log.Printf("resuming %s/%s at %s", opts.Game, opts.Nation, last.Format(dateLayout))
	}
	l.cal = NewCalendar(start)
	return l, nil
}

func (l *Logger) Deliver(d distributor.Delivery) error {
	if d.Slot != tracker.SlotEconomy || d.IsNotice() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.cal.Date()
	if !l.cal.Observe(d.Current) {
		return nil
	}
	date := l.cal.Date()
	l.log.Printf("day change %s -> %s", prev.Format(dateLayout), date.Format(dateLayout))
	if !ShouldSave(l.opts.Mode, date, l.lastSaved) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := l.store.Save(ctx, Sample{
		Game:   l.opts.Game,
		Nation: l.opts.Nation,
		Date:   date,
		Seq:    d.Seq,
		Values: d.Current.Numeric(),
	})
	if err != nil {
		return err
	}
	l.lastSaved = date
	l.saved++
	l.log.Printf("saved %s (%s)", date.Format(dateLayout), l.opts.Mode)
	return nil
}

// SetMode troca a cadência de gravação; vale a partir do próximo dia.
func (l *Logger) SetMode(mode SaveMode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if mode != "" && mode != l.opts.Mode {
		l.log.Printf("save mode %s -> %s", l.opts.Mode, mode)
		l.opts.Mode = mode
	}
}

// Date é a data do jogo contada pelo logger.
func (l *Logger) Date() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cal.Date()
}

func (l *Logger) Saved() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saved
}

func (l *Logger) Close(ctx context.Context) error {
	return l.store.Close(ctx)
}
