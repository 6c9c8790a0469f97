package panel

import "testing"

func TestBusConfigWithDefaults(t *testing.T) {
	cfg := BusConfig{}.withDefaults()
	if cfg.PinRST == "" || cfg.PinDC == "" || cfg.PinCS == "" || cfg.PinBusy == "" {
		t.Fatalf("withDefaults left a pin unset: %+v", cfg)
	}
	if cfg.MaxHz != 2_000_000 {
		t.Errorf("MaxHz default = %d, want 2000000", cfg.MaxHz)
	}
}

func TestBusConfigWithDefaultsPreservesOverrides(t *testing.T) {
	cfg := BusConfig{PinRST: "GPIO99", MaxHz: 500_000}.withDefaults()
	if cfg.PinRST != "GPIO99" {
		t.Errorf("withDefaults overwrote an explicit PinRST: %q", cfg.PinRST)
	}
	if cfg.MaxHz != 500_000 {
		t.Errorf("withDefaults overwrote an explicit MaxHz: %d", cfg.MaxHz)
	}
}
