package catalog

// Spotting é o alcance e a força de detecção de um sensor.
type Spotting struct {
	ID       int
	RangeKM  int
	Strength int
}

var spotTable = map[int][2]int{
	0:   {0, 0},
	9:   {7, 50},
	10:  {10, 60},
	11:  {12, 70},
	12:  {15, 80},
	13:  {20, 90},
	14:  {25, 100},
	15:  {30, 110},
	18:  {35, 120},
	28:  {40, 130},
	30:  {45, 140},
	34:  {50, 150},
	45:  {55, 160},
	50:  {60, 170},
	59:  {70, 180},
	79:  {80, 190},
	89:  {90, 200},
	96:  {100, 210},
	99:  {110, 220},
	106: {120, 230},
	112: {130, 240},
	117: {140, 250},
	119: {150, 260},
	134: {160, 270},
	159: {170, 280},
	// radares navais
	535: {25, 100},
	541: {30, 110},
	543: {35, 120},
	552: {40, 130},
	553: {45, 140},
	556: {50, 150},
	578: {55, 160},
	580: {60, 170},
	596: {70, 180},
}

// SpotRange converte um id de SpotType. Id fora da tabela ganha uma
// estimativa que cresce com o id.
func SpotRange(id int) Spotting {
	if v, ok := spotTable[id]; ok {
		return Spotting{ID: id, RangeKM: v[0], Strength: v[1]}
	}
	s := Spotting{ID: id}
	switch {
	case id <= 0:
	case id < 20:
		s.RangeKM, s.Strength = id, id*5
	case id < 100:
		s.RangeKM, s.Strength = id/2, id*2
	case id < 200:
		s.RangeKM, s.Strength = id/3, id
	case id < 600:
		s.RangeKM, s.Strength = id/10, id/2
	default:
		s.RangeKM, s.Strength = id/15, id/3
	}
	return s
}
