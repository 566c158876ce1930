package econlog

import (
	"fmt"
	"math"
	"strings"
	"time"

	"sruwatch/entity"
)

const dateLayout = "2006-01-02"

// DefaultStart é o início da campanha do SRU.
var DefaultStart = time.Date(1936, 1, 1, 0, 0, 0, 0, time.UTC)

// DaySignature identifica o dia do jogo por Treasury e Population, que
// mudam uma vez por dia. ok é falso se faltar algum dos dois.
func DaySignature(e entity.Entity) (string, bool) {
	t, okT := e.Num(entity.FieldTreasury)
	p, okP := e.Num(entity.FieldPopulace)
	if !okT || !okP {
		return "", false
	}
	return fmt.Sprintf("T:%d_P:%d", int64(math.Trunc(t)), int64(math.Trunc(p))), true
}

// Calendar avança a data um dia a cada assinatura nova. A primeira leitura
// só marca a referência.
type Calendar struct {
	date    time.Time
	lastSig string
	primed  bool
}

func NewCalendar(start time.Time) *Calendar {
	if start.IsZero() {
		start = DefaultStart
	}
	y, m, d := start.Date()
	return &Calendar{date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (c *Calendar) Date() time.Time { return c.date }

// Observe recebe um snapshot da economia e diz se começou um dia novo.
func (c *Calendar) Observe(e entity.Entity) bool {
	sig, ok := DaySignature(e)
	if !ok {
		return false
	}
	if !c.primed {
		c.lastSig = sig
		c.primed = true
		return false
	}
	if sig == c.lastSig {
		return false
	}
	c.lastSig = sig
	c.date = c.date.AddDate(0, 0, 1)
	return true
}

type SaveMode string

const (
	Daily   SaveMode = "daily"
	Weekly  SaveMode = "weekly"
	Monthly SaveMode = "monthly"
)

func ParseSaveMode(s string) (SaveMode, error) {
	switch m := SaveMode(strings.ToLower(strings.TrimSpace(s))); m {
	case Daily, Weekly, Monthly:
		return m, nil
	case "":
		return Daily, nil
	}
	return "", fmt.Errorf("unknown save mode %q (want daily, weekly or monthly)", s)
}

// ShouldSave decide se cur vira linha, dado o último dia salvo. last zero
// sempre salva.
func ShouldSave(mode SaveMode, cur, last time.Time) bool {
	if last.IsZero() {
		return true
	}
	switch mode {
	case Daily:
		return cur.After(last)
	case Weekly:
		_, wc := cur.ISOWeek()
		_, wl := last.ISOWeek()
		return wc != wl || cur.Year() != last.Year()
	case Monthly:
		return cur.Month() != last.Month() || cur.Year() != last.Year()
	}
	return false
}
