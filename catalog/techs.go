package catalog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// TechEffect é um par (id do efeito, valor) de uma linha do TTRX.
type TechEffect struct {
	EffectID int
	Value    float64
}

// Tech é uma linha do DEFAULT.TTRX.
type Tech struct {
	ID       int
	Title    string
	Category int
	Level    int
	Prereqs  []int
	Effects  []TechEffect
	Time     float64
	Cost     float64
}

const minTechCols = 10

// ParseTechs lê o DEFAULT.TTRX (Windows-1252). Os dados começam depois de
// &&TTR ou &&TECHS, ou na primeira linha que começa com número. O título
// curto é o comentário // no fim da linha.
func ParseTechs(r io.Reader) ([]Tech, error) {
	sc := bufio.NewScanner(charmap.Windows1252.NewDecoder().Reader(r))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tech file: %w", err)
	}

	start := -1
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "&&TTR") || strings.HasPrefix(t, "&&TECHS") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		for i, l := range lines {
			t := strings.TrimSpace(l)
			if t == "" || strings.HasPrefix(t, "//") {
				continue
			}
			first := strings.TrimSpace(strings.SplitN(t, ",", 2)[0])
			if _, err := strconv.Atoi(first); err == nil {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return nil, nil
	}

	var techs []Tech
	for _, line := range lines[start:] {
		data, comment, _ := strings.Cut(line, "//")
		if strings.TrimSpace(data) == "" {
			continue
		}
		cr := csv.NewReader(strings.NewReader(data))
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		row, err := cr.Read()
		if err != nil || len(row) < minTechCols {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil || id == 0 {
			continue
		}
		t := Tech{
			ID:       id,
			Title:    strings.TrimSpace(comment),
			Category: parseInt(row[1]),
			Level:    parseInt(row[2]),
		}
		if t.Title == "" {
			t.Title = fmt.Sprintf("Tech %d", id)
		}
		for _, c := range []int{4, 5} {
			if p := parseInt(row[c]); p != 0 {
				t.Prereqs = append(t.Prereqs, p)
			}
		}
		// Effect 1/2 casa com Effect Value 1/2 pela coluna.
		for _, c := range []int{6, 7} {
			eid := parseInt(row[c])
			if eid == 0 {
				continue
			}
			t.Effects = append(t.Effects, TechEffect{EffectID: eid, Value: parseFloat(row[c+2])})
		}
		if len(row) > 10 {
			t.Time = parseFloat(row[10])
		}
		if len(row) > 11 {
			t.Cost = parseFloat(row[11])
		}
		techs = append(techs, t)
	}
	return techs, nil
}
