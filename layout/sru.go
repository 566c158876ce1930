package layout

// Versões dos layouts embutidos do SRU.
const (
	VersionSRU       = "sru-v9"
	VersionSRULegacy = "sru-v8"
)

func bound(v float64) *float64 { return &v }

func f32(name string, off int) Field {
	return Field{Name: name, Offset: off, Width: 4, Type: Float32}
}

func stock(name string, off int) Field {
	return Field{Name: name, Offset: off, Width: 4, Type: Float32, Min: bound(0)}
}

// SRUEconomy é o registro principal do país, atrás do ponteiro no RVA
// 0x0104D130.
func SRUEconomy() Descriptor {
	return Descriptor{
		Kind:       KindEconomy,
		Version:    VersionSRU,
		Size:       0x8794,
		Compatible: []string{VersionSRULegacy},
		Fields: []Field{
			f32("World Market Opinion", 0x7AB0),
			f32("Treaty Integrity", 0x7AB4),
			f32("Domestic Approval", 0x7ABC),
			f32("Military Approval", 0x7AC0),
			f32("Subsidy Rate", 0x7AC8),
			f32("Credit Rating", 0x7AD0),
			f32("Tourism", 0x7AD4),
			f32("Literacy", 0x7AD8),

			stock("Population", 0x7AF0),
			stock("Active Personnel", 0x7B08),
			stock("Reserve Personnel", 0x7B0C),
			f32("Unemployment", 0x7B10),
			f32("Immigration", 0x7B14),
			f32("Emigration", 0x7B18),
			f32("Births", 0x7B1C),
			f32("Deaths", 0x7B20),

			f32("Treasury", 0x7B30),
			f32("Bond Debt", 0x7B3C),
			f32("GDP/c", 0x7BE0),
			f32("Inflation", 0x7BF0),
			f32("Research Efficiency", 0x7C74),

			stock("Agriculture", 0x7D18),
			f32("Agriculture Production Cost", 0x7D50),
			f32("Agriculture Trades", 0x7D54),
			stock("Rubber", 0x7DF0),
			f32("Rubber Production Cost", 0x7E28),
			f32("Rubber Trades", 0x7E2C),
			stock("Timber", 0x7EC8),
			f32("Timber Production Cost", 0x7ECC),
			f32("Timber Trades", 0x7F04),
			stock("Petroleum", 0x7FA0),
			f32("Petroleum Production Cost", 0x7FD8),
			f32("Petroleum Trades", 0x7FDC),
			stock("Coal", 0x8078),
			f32("Coal Production Cost", 0x807C),
			f32("Coal Trades", 0x80B4),
			stock("Metal Ore", 0x8150),
			f32("Metal Ore Production Cost", 0x8154),
			f32("Metal Ore Trades", 0x818C),
			stock("Uranium", 0x8228),
			f32("Uranium Production Cost", 0x822C),
			f32("Uranium Trades", 0x8260),
			stock("Electric Power", 0x8300),
			f32("Electric Power Production Cost", 0x8338),
			f32("Electric Power Trades", 0x833C),
			stock("Consumer Goods", 0x83D8),
			f32("Consumer Goods Production Cost", 0x8410),
			f32("Consumer Goods Trades", 0x8414),
			stock("Industry Goods", 0x84B0),
			f32("Industry Goods Production Cost", 0x84E8),
			f32("Industry Goods Trades", 0x84EC),
			stock("Military Goods", 0x8588),
			f32("Military Goods Production Cost", 0x85C0),
			f32("Military Goods Trades", 0x85C4),

			f32("Health Care", 0x8774),
			f32("Education", 0x8778),
			f32("Infrastructure", 0x877C),
			f32("Environment", 0x8780),
			f32("Family Subsidy", 0x8784),
			f32("Law Enforcement", 0x8788),
			f32("Culture Subsidy", 0x878C),
			f32("Social Assistance", 0x8790),
		},
	}
}

// SRUMarket é o mercado mundial, atrás do ponteiro no RVA 0x01105DEC.
func SRUMarket() Descriptor {
	return Descriptor{
		Kind:       KindMarket,
		Version:    VersionSRU,
		Size:       0x598,
		Compatible: []string{VersionSRULegacy},
		Fields: []Field{
			stock("Agriculture Market Price", 0x06C),
			stock("Rubber Market Price", 0x0F0),
			stock("Timber Market Price", 0x178),
			stock("Petroleum Market Price", 0x1F8),
			stock("Coal Market Price", 0x27C),
			stock("Metal Ore Market Price", 0x300),
			stock("Uranium Market Price", 0x384),
			stock("Electric Power Market Price", 0x408),
			stock("Consumer Goods Market Price", 0x48C),
			stock("Industry Goods Market Price", 0x510),
			stock("Military Goods Market Price", 0x594),
		},
	}
}

// SRUUnit é o registro da unidade selecionada, o mesmo para o clique no
// mapa e para o blueprint. 0x90-0x9F é padding e pode ter lixo.
func SRUUnit() Descriptor {
	return Descriptor{
		Kind:    KindUnit,
		Version: VersionSRU,
		Size:    0xA0,
		Fields: []Field{
			{Name: "unit_id", Offset: 0x00, Width: 4, Type: Int32, Min: bound(0), Identity: true},
			{Name: "name", Offset: 0x04, Width: 32, Type: String, Identity: true},
			{Name: "category", Offset: 0x24, Width: 1, Type: Bitfield, Mask: 0xFF, Max: bound(10)},
			{Name: "class", Offset: 0x25, Width: 1, Type: Bitfield, Mask: 0x3F},
			{Name: "launch_type", Offset: 0x26, Width: 1, Type: Bitfield, Mask: 0x0F},
			{Name: "hp", Offset: 0x28, Width: 4, Type: Int32, Min: bound(0)},
			{Name: "efficiency", Offset: 0x2C, Width: 4, Type: Fixed, Scale: 0.01, Min: bound(0), Max: bound(100)},
			{Name: "speed", Offset: 0x30, Width: 4, Type: Int32, Min: bound(0)},
			{Name: "move_range", Offset: 0x34, Width: 4, Type: Int32, Min: bound(0)},
			{Name: "stealth", Offset: 0x38, Width: 4, Type: Int32},
			{Name: "initiative", Offset: 0x3C, Width: 4, Type: Int32},
			f32("soft", 0x40),
			f32("hard", 0x44),
			f32("fort", 0x48),
			f32("air_low", 0x4C),
			f32("air_mid", 0x50),
			f32("air_high", 0x54),
			f32("naval_surf", 0x58),
			f32("naval_sub", 0x5C),
			f32("close_combat", 0x60),
			f32("def_ground", 0x64),
			f32("def_air", 0x68),
			f32("def_indirect", 0x6C),
			f32("def_close", 0x70),
			stock("range_ground", 0x74),
			stock("range_air", 0x78),
			stock("range_surf", 0x7C),
			stock("range_sub", 0x80),
			{Name: "fuel", Offset: 0x84, Width: 4, Type: Float32, Min: bound(0)},
			{Name: "supply", Offset: 0x88, Width: 4, Type: Float32, Min: bound(0)},
			{Name: "cost", Offset: 0x8C, Width: 4, Type: Fixed, Scale: 0.001, Min: bound(0)},
		},
	}
}

// Builtin devolve um registro com os layouts do SRU.
func Builtin() *Registry {
	r, err := NewRegistry(SRUUnit(), SRUEconomy(), SRUMarket())
	if err != nil {
		panic("layout: builtin descriptors invalid: " + err.Error())
	}
	return r
}
