package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Ranges são os alcances das armas, em km.
type Ranges struct {
	Ground  float64
	Air     float64
	Surface float64
	Sub     float64
}

// RangeEntry é uma linha do banco de alcances do jogo.
type RangeEntry struct {
	Ranges
	Missile float64
}

// prefer devolve r com os zeros preenchidos por raw.
func (r Ranges) prefer(raw Ranges) Ranges {
	pick := func(a, b float64) float64 {
		if a != 0 {
			return a
		}
		return b
	}
	return Ranges{
		Ground:  pick(r.Ground, raw.Ground),
		Air:     pick(r.Air, raw.Air),
		Surface: pick(r.Surface, raw.Surface),
		Sub:     pick(r.Sub, raw.Sub),
	}
}

// ParseRanges lê o CSV de alcances (cabeçalho unit_id, ground, air, surface,
// sub e opcionalmente special_41_B). Linha ruim é pulada.
func ParseRanges(r io.Reader) (map[int]RangeEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return map[int]RangeEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("range database header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, required := range []string{"unit_id", "ground", "air", "surface", "sub"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("range database: missing column %q", required)
		}
	}

	get := func(row []string, name string) (float64, bool) {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return 0, true
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}

	out := make(map[int]RangeEntry)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("range database: %w", err)
		}
		if idx["unit_id"] >= len(row) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[idx["unit_id"]]))
		if err != nil {
			continue
		}
		var e RangeEntry
		var ok [5]bool
		e.Ground, ok[0] = get(row, "ground")
		e.Air, ok[1] = get(row, "air")
		e.Surface, ok[2] = get(row, "surface")
		e.Sub, ok[3] = get(row, "sub")
		e.Missile, ok[4] = get(row, "special_41_B")
		if ok != [5]bool{true, true, true, true, true} {
			continue
		}
		out[id] = e
	}
	return out, nil
}
