package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// UnitStats é uma linha do DEFAULT.UNIT. Valores por veículo que o jogo
// mostra por batalhão (custo, combustível, suprimento...) já vêm
// multiplicados por Strength.
type UnitStats struct {
	ID       int
	Name     string
	Class    int
	Year     int
	Region   string
	Strength int
	Crew     int

	TechReq1  int
	TechReq2  int
	UpgradeTo int
	ReplaceBy int
	RefitTo   int

	Initiative int
	Stealth    int

	CarrierCap   int
	MissileCap   int
	CargoCap     int
	TransportCap int

	Spot1, Spot2 Spotting

	Days     int
	Cost     float64
	IGCost   float64
	URCost   float64
	Weight   int
	Speed    int
	Range    int
	Fuel     float64
	CombatTm int
	Supply   float64

	Soft, Hard, Fort               float64
	AirLow, AirMid, AirHigh        float64
	NavalSurf, NavalSub, Close     float64
	DefGround, DefAir, DefIndirect float64
	DefClose                       float64

	// RawRanges vêm do arquivo de unidades; Ranges preferem o banco de
	// alcances do jogo quando ele foi carregado.
	RawRanges    Ranges
	Ranges       Ranges
	MissileRange float64

	Flags      map[string]bool
	LaunchType int
	MissileMax int
}

func (u UnitStats) Personnel() int { return u.Strength * u.Crew }

func (u UnitStats) LaunchTypes() string { return LaunchTypes(u.LaunchType) }

// Stats achata os valores numéricos com os nomes do layout de unidade,
// para os campos decodificados poderem sobrescrever.
func (u UnitStats) Stats() map[string]float64 {
	return map[string]float64{
		"unit_id":        float64(u.ID),
		"class":          float64(u.Class),
		"launch_type":    float64(u.LaunchType),
		"strength":       float64(u.Strength),
		"personnel":      float64(u.Personnel()),
		"initiative":     float64(u.Initiative),
		"stealth":        float64(u.Stealth),
		"speed":          float64(u.Speed),
		"move_range":     float64(u.Range),
		"fuel":           u.Fuel,
		"supply":         u.Supply,
		"combat_time":    float64(u.CombatTm),
		"cost":           u.Cost,
		"ig_cost":        u.IGCost,
		"ur_cost":        u.URCost,
		"days":           float64(u.Days),
		"weight":         float64(u.Weight),
		"missile_cap":    float64(u.MissileCap),
		"cargo_cap":      float64(u.CargoCap),
		"transport_cap":  float64(u.TransportCap),
		"carrier_cap":    float64(u.CarrierCap),
		"missile_max":    float64(u.MissileMax),
		"soft":           u.Soft,
		"hard":           u.Hard,
		"fort":           u.Fort,
		"air_low":        u.AirLow,
		"air_mid":        u.AirMid,
		"air_high":       u.AirHigh,
		"naval_surf":     u.NavalSurf,
		"naval_sub":      u.NavalSub,
		"close_combat":   u.Close,
		"def_ground":     u.DefGround,
		"def_air":        u.DefAir,
		"def_indirect":   u.DefIndirect,
		"def_close":      u.DefClose,
		"range_ground":   u.Ranges.Ground,
		"range_air":      u.Ranges.Air,
		"range_surf":     u.Ranges.Surface,
		"range_sub":      u.Ranges.Sub,
		"missile_range":  u.MissileRange,
		"spot1_range_km": float64(u.Spot1.RangeKM),
		"spot1_strength": float64(u.Spot1.Strength),
		"spot2_range_km": float64(u.Spot2.RangeKM),
		"spot2_strength": float64(u.Spot2.Strength),
	}
}

var flagColumns = []struct {
	col  int
	name string
}{
	{56, "indirect_fire"},
	{57, "ballistic_art"},
	{58, "nbc"},
	{64, "ecm"},
	{65, "no_eff_loss_move"},
	{66, "river_xing"},
	{67, "airdrop"},
	{68, "air_tanker"},
	{69, "air_refuel"},
	{72, "amphibious"},
	{75, "bridge_build"},
	{77, "engineering"},
	{79, "stand_off"},
	{80, "move_fire_penalty"},
	{81, "no_land_cap"},
	{82, "has_production"},
	{83, "supply_move_only"},
	{84, "low_visibility"},
}

const (
	unitsMarker   = "&&UNITS"
	minUnitCols   = 80
	launchCol     = 109
	missileMaxCol = 110
)

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// ParseUnits lê o DEFAULT.UNIT (Latin-1). Pula o que vem antes de &&UNITS,
// as linhas de comentário e as com menos de 80 colunas.
func ParseUnits(r io.Reader) ([]UnitStats, error) {
	data, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(r))
	if err != nil {
		return nil, fmt.Errorf("read unit file: %w", err)
	}
	text := string(data)
	if i := strings.Index(text, unitsMarker); i >= 0 {
		text = text[i:]
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = ""
		}
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var units []UnitStats
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parse unit file: %w", err)
		}
		if len(row) == 0 || strings.HasPrefix(strings.TrimSpace(row[0]), "//") || len(row) < minUnitCols {
			continue
		}
		units = append(units, unitFromRow(row))
	}
	return units, nil
}

func unitFromRow(row []string) UnitStats {
	col := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	u := UnitStats{
		ID:         parseInt(row[0]),
		Name:       strings.Trim(strings.TrimSpace(row[1]), `"`),
		Class:      parseInt(row[2]),
		Region:     strings.TrimSpace(row[12]),
		Strength:   parseInt(row[13]),
		Crew:       parseInt(row[14]),
		UpgradeTo:  parseInt(row[15]),
		ReplaceBy:  parseInt(row[16]),
		RefitTo:    parseInt(row[17]),
		TechReq1:   parseInt(row[23]),
		TechReq2:   parseInt(row[24]),
		Initiative: parseInt(row[9]),
		Stealth:    parseInt(row[10]),
		CarrierCap: parseInt(row[11]),
		CargoCap:   parseInt(row[30]),
		Speed:      parseInt(row[19]),
		Range:      parseInt(row[32]),
		CombatTm:   parseInt(row[35]),
		Flags:      make(map[string]bool),
	}
	if u.Strength == 0 {
		u.Strength = 1
	}
	if y := parseInt(row[4]); y > 0 {
		u.Year = 1900 + y
	}
	str := float64(u.Strength)

	u.MissileCap = parseInt(row[20]) * u.Strength
	u.TransportCap = parseInt(row[31])
	u.Spot1 = SpotRange(parseInt(row[21]))
	u.Spot2 = SpotRange(parseInt(row[22]))

	u.Days = int(parseFloat(row[25]) * str)
	u.Cost = parseFloat(row[26]) * str
	u.IGCost = parseFloat(row[27]) * str
	u.URCost = parseFloat(row[28]) * str
	u.Weight = int(parseFloat(row[29]) * str)
	u.Fuel = round(parseFloat(row[34])*str, 1)
	u.Supply = round(parseFloat(row[36])*str, 2)

	u.Soft = parseFloat(row[37])
	u.Hard = parseFloat(row[38])
	u.Fort = parseFloat(row[39])
	u.AirLow = parseFloat(row[40])
	u.AirMid = parseFloat(row[41])
	u.AirHigh = parseFloat(row[42])
	u.NavalSurf = parseFloat(row[43])
	u.NavalSub = parseFloat(row[44])
	u.Close = parseFloat(row[45])
	u.DefGround = parseFloat(row[46])
	u.DefAir = parseFloat(row[47])
	u.DefIndirect = parseFloat(row[48])
	u.DefClose = parseFloat(row[49])

	u.RawRanges = Ranges{
		Ground:  float64(parseInt(row[50])),
		Air:     float64(parseInt(row[51])),
		Surface: float64(parseInt(row[52])),
		Sub:     float64(parseInt(row[53])),
	}
	u.Ranges = u.RawRanges

	for _, f := range flagColumns {
		if parseInt(col(f.col)) != 0 {
			u.Flags[f.name] = true
		}
	}
	if len(row) > missileMaxCol {
		u.LaunchType = parseInt(row[launchCol])
		u.MissileMax = parseInt(row[missileMaxCol])
	}
	return u
}

// LaunchTypes escreve a máscara de lançamento: 1 terra, 2 ar, 4 naval, 8 sub.
func LaunchTypes(mask int) string {
	var names []string
	for _, lt := range []struct {
		bit  int
		name string
	}{{1, "Land"}, {2, "Air"}, {4, "Naval"}, {8, "Sub"}} {
		if mask&lt.bit != 0 {
			names = append(names, lt.name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
