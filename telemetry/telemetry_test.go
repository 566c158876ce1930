package telemetry_test

import (
	"context"
	"testing"

	"sruwatch/telemetry"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	for _, endpoint := range []string{"", "  ", "off"} {
		shutdown, err := telemetry.Setup(context.Background(), endpoint, "test-service")
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", endpoint, err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := shutdown(ctx); err != nil {
			t.Fatalf("noop shutdown should not error: %v", err)
		}
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// endereço sem rota, nada é exportado
	shutdown, err := telemetry.Setup(context.Background(), "http://192.0.2.1:4318", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
