package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sample = `
process: SupremeRulerUltimate.exe
poll_interval: 100ms
slots:
  a: {rva: 0x01050000, pointer: true, size: 160}
  b: {address: 0x2000000, size: 160}
catalog:
  units: Maps/DATA/DEFAULT.UNIT
research: [500, 501]
log:
  db: sqlite://econ.db
  nation: Brazil
  mode: weekly
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sruwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Defaults()
	want.PollInterval = 100 * time.Millisecond
	want.Slots.A = Region{RVA: 0x01050000, Pointer: true, Size: 160}
	want.Slots.B = Region{Address: 0x2000000, Size: 160}
	want.Catalog.Units = "Maps/DATA/DEFAULT.UNIT"
	want.Research = []int{500, 501}
	want.Log.DB = "sqlite://econ.db"
	want.Log.Nation = "Brazil"
	want.Log.Mode = "weekly"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.ModuleName() != PROCESS_NAME {
		t.Fatalf("expected module to default to process, got %q", cfg.ModuleName())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SRUWATCH_POLL_INTERVAL", "500ms")
	t.Setenv("SRUWATCH_LOG_NATION", "Chile")
	t.Setenv("SRUWATCH_CATALOG_TECHS", "/tmp/DEFAULT.TTRX")
	t.Setenv("SRUWATCH_RESEARCH", "7,8,9")
	t.Setenv("SRUWATCH_OVERLAY_ENABLED", "false")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("expected env poll interval, got %s", cfg.PollInterval)
	}
	if cfg.Log.Nation != "Chile" {
		t.Fatalf("expected env nation, got %q", cfg.Log.Nation)
	}
	if cfg.Catalog.Techs != "/tmp/DEFAULT.TTRX" {
		t.Fatalf("expected env techs path, got %q", cfg.Catalog.Techs)
	}
	if diff := cmp.Diff([]int{7, 8, 9}, cfg.Research); diff != "" {
		t.Fatalf("research mismatch (-want +got):\n%s", diff)
	}
	if cfg.Overlay.Enabled {
		t.Fatal("expected overlay disabled by env")
	}
	// valores fora do ambiente continuam vindo do arquivo
	if cfg.Log.DB != "sqlite://econ.db" {
		t.Fatalf("expected file db, got %q", cfg.Log.DB)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("SRUWATCH_FAILURE_THRESHOLD", "many")

	cfg := Defaults()
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing slots", "process: x.exe\n", "slots.a: rva or address is required"},
		{"both addresses", strings.Replace(sample, "{address: 0x2000000", "{rva: 1, address: 0x2000000", 1), "slots.b: set rva or address, not both"},
		{"poll too fast", strings.Replace(sample, "100ms", "5ms", 1), "poll_interval 5ms outside"},
		{"poll too slow", strings.Replace(sample, "100ms", "2s", 1), "poll_interval 2s outside"},
		{"bad mode", strings.Replace(sample, "weekly", "hourly", 1), "log.mode"},
		{"bad start", sample + "  start: 1936/01/01\n", "log.start"},
		{"unknown key", sample + "colour: red\n", "field colour not found"},
		{"threshold", sample + "failure_threshold: 0\n", "failure_threshold must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load saved: %v", err)
	}
	if diff := cmp.Diff(cfg, again); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
