package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()

	if o.Trading.Symbol != "XAUUSD" || o.Trading.Timeframe != "M5" {
		t.Errorf("trading = %s/%s, want XAUUSD/M5", o.Trading.Symbol, o.Trading.Timeframe)
	}
	if o.Risk.RiskPerTradePct != 1.0 || o.Risk.MaxTotalRiskPct != 5.0 {
		t.Errorf("risk = %v/%v, want 1/5", o.Risk.RiskPerTradePct, o.Risk.MaxTotalRiskPct)
	}
	if !o.Risk.ScaleOutEnabled || !o.Signals.EnableMTF {
		t.Errorf("bool defaults not applied")
	}
	if o.Signals.RegimeModes["RANGING"] != "SNIPER_ONLY" {
		t.Errorf("RegimeModes[RANGING] = %q, want SNIPER_ONLY", o.Signals.RegimeModes["RANGING"])
	}
	if got := o.Regime.BreakoutMomentumFor("XAUUSD"); got != 0.003 {
		t.Errorf("BreakoutMomentumFor(XAUUSD) = %v, want 0.003", got)
	}
	if got := o.Regime.BreakoutMomentumFor("GBPJPY"); got != 0.005 {
		t.Errorf("BreakoutMomentumFor(GBPJPY) = %v, want 0.005", got)
	}
	if err := Validate(o); err != nil {
		t.Errorf("Validate(defaults) error = %v", err)
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		o, err := LoadOptions(filepath.Join(dir, "nope.yaml"))
		if err != nil {
			t.Fatalf("LoadOptions() error = %v", err)
		}
		if o.Trading.Bars != 500 {
			t.Errorf("Bars = %d, want 500", o.Trading.Bars)
		}
	})

	t.Run("overrides and explicit false", func(t *testing.T) {
		path := filepath.Join(dir, "settings.yaml")
		body := "trading:\n  timeframe: m15\nrisk_management:\n  risk_per_trade_pct: 8\n  max_total_risk_pct: 4\n  scale_out_enabled: false\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		o, err := LoadOptions(path)
		if err != nil {
			t.Fatalf("LoadOptions() error = %v", err)
		}
		if o.Trading.Timeframe != "M15" {
			t.Errorf("Timeframe = %q, want M15", o.Trading.Timeframe)
		}
		if o.Risk.RiskPerTradePct != 4 {
			t.Errorf("RiskPerTradePct = %v, want clamped to 4", o.Risk.RiskPerTradePct)
		}
		if o.Risk.ScaleOutEnabled {
			t.Errorf("ScaleOutEnabled = true, want explicit false kept")
		}
		if o.Risk.ATRMultiplierSL != 1.5 {
			t.Errorf("ATRMultiplierSL = %v, want default 1.5", o.Risk.ATRMultiplierSL)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("trading:\n  max_positions: 50\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadOptions(path); !errors.Is(err, ErrInvalidOption) {
			t.Errorf("LoadOptions() error = %v, want ErrInvalidOption", err)
		}
	})
}

func TestStoreSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
		want    string
	}{
		{"float", "risk_management.risk_per_trade_pct", "2.5", nil, "2.5"},
		{"upper cased", "trading.timeframe", "h1", nil, "H1"},
		{"mode", "signal_requirements.strategy_mode_override", "trend_only", nil, "TREND_ONLY"},
		{"bool", "filters.news_filter_enabled", "false", nil, "false"},
		{"out of range", "risk_management.risk_per_trade_pct", "150", ErrInvalidOption, "1"},
		{"not a number", "trading.max_positions", "many", ErrInvalidOption, "5"},
		{"bad enum", "trading.timeframe", "W1", ErrInvalidOption, "M5"},
		{"unknown", "trading.colour", "red", ErrUnknownOption, ""},
		{"section only", "trading", "x", ErrUnknownOption, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(DefaultOptions())
			err := s.Set(tt.key, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Set() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if tt.want == "" {
				return
			}
			got, err := s.Get(tt.key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Get(%s) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSnapshotIsolated(t *testing.T) {
	s := NewStore(DefaultOptions())
	snap := s.Snapshot()
	snap.Filters.Spread.Overrides["XAUUSD"] = 999
	snap.Filters.AllowedSessions[0] = "sydney"

	again := s.Snapshot()
	if again.Filters.Spread.Overrides["XAUUSD"] != 50 {
		t.Errorf("override leaked into store: %d", again.Filters.Spread.Overrides["XAUUSD"])
	}
	if again.Filters.AllowedSessions[0] != "asian" {
		t.Errorf("session leaked into store: %s", again.Filters.AllowedSessions[0])
	}
}

func TestApplyPreset(t *testing.T) {
	s := NewStore(DefaultOptions())

	if err := s.ApplyPreset("scalper_gold"); err != nil {
		t.Fatalf("ApplyPreset() error = %v", err)
	}
	o := s.Snapshot()
	if o.ActivePreset != "SCALPER_GOLD" {
		t.Errorf("ActivePreset = %q, want SCALPER_GOLD", o.ActivePreset)
	}
	if o.Risk.RiskPerTradePct != 1.5 || o.Signals.EnableMTF || o.Filters.Spread.Overrides["XAUUSD"] != 60 {
		t.Errorf("preset not merged: risk=%v mtf=%v spread=%d",
			o.Risk.RiskPerTradePct, o.Signals.EnableMTF, o.Filters.Spread.Overrides["XAUUSD"])
	}
	if o.Filters.Spread.Overrides["XAUEUR"] != 150 {
		t.Errorf("deep merge dropped XAUEUR override")
	}
	if status, _ := o.Health(); status != "HEALTHY" {
		t.Errorf("Health() = %s, want HEALTHY for scalper preset", status)
	}

	if err := s.ApplyPreset("YOLO"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("ApplyPreset(YOLO) error = %v, want ErrUnknownOption", err)
	}
}

func TestHealth(t *testing.T) {
	o := DefaultOptions()
	o.Risk.MarginFilterEnabled = false
	if status, warns := o.Health(); status != "CRITICAL" || len(warns) != 1 {
		t.Errorf("Health() = %s %v, want CRITICAL with one warning", status, warns)
	}
}
