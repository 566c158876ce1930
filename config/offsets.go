package config

// ============================================================
// SUPREME RULER ULTIMATE - OFFSETS (binário x86, base 0x400000)
// ============================================================

const (
	PROCESS_NAME = "SupremeRulerUltimate.exe"

	// ===== PONTEIROS GLOBAIS (módulo + RVA, 32 bits) =====
	PTR_MAIN   uint64 = 0x0104D130 // registro do país do jogador
	PTR_MARKET uint64 = 0x01105DEC // mercado mundial

	// ===== TAMANHOS DAS ESTRUTURAS =====
	SIZE_MAIN   = 0x8794 // até Social Assistance (0x8790) + 4
	SIZE_MARKET = 0x598  // até Military Goods Market Price (0x594) + 4
	SIZE_UNIT   = 0xA0   // registro de unidade selecionada
)

// ===== TIMING =====
const (
	DEFAULT_POLL_MS    = 250
	DEFAULT_ECONOMY_MS = 1000
	DEFAULT_TIMEOUT_MS = 200
	DEFAULT_FAIL_LIMIT = 5
	MIN_POLL_MS        = 10
	MAX_POLL_MS        = 1000
)
