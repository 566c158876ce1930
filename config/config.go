package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sruwatch/catalog"
	"sruwatch/econlog"
)

// Region descreve onde fica uma estrutura: RVA relativo ao módulo ou
// endereço absoluto. Pointer indica que o endereço guarda um ponteiro de
// 32 bits para a estrutura (resolvido uma vez no início da sessão).
type Region struct {
	RVA     uint64 `yaml:"rva,omitempty"`
	Address uint64 `yaml:"address,omitempty"`
	Pointer bool   `yaml:"pointer,omitempty"`
	Size    int    `yaml:"size"`
}

func (r Region) Enabled() bool { return r.Size > 0 }

type Slots struct {
	A Region `yaml:"a"`
	B Region `yaml:"b"`
}

type LogConfig struct {
	DB     string `yaml:"db,omitempty" env:"DB"`
	Game   string `yaml:"game,omitempty" env:"GAME"`
	Nation string `yaml:"nation,omitempty" env:"NATION"`
	Start  string `yaml:"start" env:"START"`
	Mode   string `yaml:"mode" env:"MODE"`
}

type OverlayConfig struct {
	Enabled      bool `yaml:"enabled" env:"ENABLED"`
	Width        int  `yaml:"width"`
	Height       int  `yaml:"height"`
	Alpha        int  `yaml:"alpha"`
	ClickThrough bool `yaml:"click_through"`
}

// Config é a configuração de uma sessão.
type Config struct {
	Process          string        `yaml:"process" env:"PROCESS"`
	Module           string        `yaml:"module,omitempty" env:"MODULE"`
	Layout           string        `yaml:"layout" env:"LAYOUT"`
	LayoutFiles      []string      `yaml:"layout_files,omitempty" env:"LAYOUT_FILES" envSeparator:","`
	PollInterval     time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	EconomyInterval  time.Duration `yaml:"economy_interval" env:"ECONOMY_INTERVAL"`
	ReadTimeout      time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	FailureThreshold int           `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`

	Slots   Slots  `yaml:"slots"`
	Economy Region `yaml:"economy"`
	Market  Region `yaml:"market"`

	Catalog  catalog.Paths `yaml:"catalog" envPrefix:"CATALOG_"`
	Research []int         `yaml:"research,omitempty" env:"RESEARCH" envSeparator:","`

	Log          LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Overlay      OverlayConfig `yaml:"overlay" envPrefix:"OVERLAY_"`
	OTelEndpoint string        `yaml:"otel_endpoint,omitempty" env:"OTEL_ENDPOINT"`
}

// Defaults devolve a configuração padrão do SRU. Os slots de unidade não
// têm endereço padrão e precisam vir do arquivo ou do ambiente.
func Defaults() Config {
	return Config{
		Process:          PROCESS_NAME,
		Layout:           "sru-v9",
		PollInterval:     DEFAULT_POLL_MS * time.Millisecond,
		EconomyInterval:  DEFAULT_ECONOMY_MS * time.Millisecond,
		ReadTimeout:      DEFAULT_TIMEOUT_MS * time.Millisecond,
		FailureThreshold: DEFAULT_FAIL_LIMIT,
		Slots: Slots{
			A: Region{Size: SIZE_UNIT},
			B: Region{Size: SIZE_UNIT},
		},
		Economy: Region{RVA: PTR_MAIN, Pointer: true, Size: SIZE_MAIN},
		Market:  Region{RVA: PTR_MARKET, Pointer: true, Size: SIZE_MARKET},
		Log:     LogConfig{Start: "1936-01-01", Mode: string(econlog.Daily)},
		Overlay: OverlayConfig{Enabled: true, Width: 420, Height: 360, Alpha: 220, ClickThrough: true},
	}
}

// ModuleName é o módulo base dos RVAs; por padrão o próprio executável.
func (c Config) ModuleName() string {
	if c.Module != "" {
		return c.Module
	}
	return c.Process
}

// StartDate devolve a data inicial do calendário do logger.
func (c Config) StartDate() (time.Time, error) {
	return time.Parse("2006-01-02", c.Log.Start)
}

func validateRegion(name string, r Region, required bool) error {
	if !r.Enabled() {
		if required {
			return fmt.Errorf("%s: size is required", name)
		}
		return nil
	}
	if r.RVA == 0 && r.Address == 0 {
		return fmt.Errorf("%s: rva or address is required", name)
	}
	if r.RVA != 0 && r.Address != 0 {
		return fmt.Errorf("%s: set rva or address, not both", name)
	}
	return nil
}

// Validate junta todos os problemas numa mensagem só.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.Process) == "" {
		add("process name is required")
	}
	if strings.TrimSpace(c.Layout) == "" {
		add("layout version is required")
	}
	minPoll, maxPoll := MIN_POLL_MS*time.Millisecond, MAX_POLL_MS*time.Millisecond
	if c.PollInterval < minPoll || c.PollInterval > maxPoll {
		add("poll_interval %s outside %s..%s", c.PollInterval, minPoll, maxPoll)
	}
	if c.EconomyInterval < 0 {
		add("economy_interval must not be negative")
	}
	if c.ReadTimeout <= 0 {
		add("read_timeout must be positive")
	} else if c.ReadTimeout > c.PollInterval && c.PollInterval > 0 {
		add("read_timeout %s longer than poll_interval %s", c.ReadTimeout, c.PollInterval)
	}
	if c.FailureThreshold < 1 {
		add("failure_threshold must be at least 1")
	}
	for _, r := range []struct {
		name     string
		region   Region
		required bool
	}{
		{"slots.a", c.Slots.A, true},
		{"slots.b", c.Slots.B, true},
		{"economy", c.Economy, false},
		{"market", c.Market, false},
	} {
		if err := validateRegion(r.name, r.region, r.required); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Market.Enabled() && !c.Economy.Enabled() {
		add("market requires economy")
	}
	if _, err := econlog.ParseSaveMode(c.Log.Mode); err != nil {
		add("log.mode: %v", err)
	}
	if _, err := c.StartDate(); err != nil {
		add("log.start %q: want YYYY-MM-DD", c.Log.Start)
	}
	if c.Overlay.Alpha < 0 || c.Overlay.Alpha > 255 {
		add("overlay.alpha %d outside 0..255", c.Overlay.Alpha)
	}
	if c.Overlay.Enabled && (c.Overlay.Width <= 0 || c.Overlay.Height <= 0) {
		add("overlay size must be positive")
	}
	return errors.Join(errs...)
}
