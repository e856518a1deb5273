package risk

import (
	"math"
	"testing"

	"github.com/Alias1177/goldscalper/internal/config"
	"github.com/Alias1177/goldscalper/models"
)

var gold = models.SymbolInfo{
	Name:         "XAUUSD",
	Point:        0.01,
	Digits:       2,
	VolumeMin:    0.01,
	VolumeMax:    100,
	VolumeStep:   0.01,
	ContractSize: 100,
	Spread:       20,
}

func newTestManager() *Manager {
	return NewManager(config.DefaultOptions())
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTierFor(t *testing.T) {
	tests := []struct {
		balance  float64
		wantTier Tier
		wantPct  float64
	}{
		{40, TierSurvival, 25},
		{50, TierGrowth, 8},
		{199.99, TierGrowth, 8},
		{500, TierStandard, 3},
		{1000, TierPro, 1},
		{50000, TierPro, 1},
	}
	for _, tt := range tests {
		tier, pct := TierFor(tt.balance, 1.0)
		if tier != tt.wantTier || pct != tt.wantPct {
			t.Errorf("TierFor(%v) = %s %v, want %s %v", tt.balance, tier, pct, tt.wantTier, tt.wantPct)
		}
	}
	if _, pct := TierFor(5000, 4.0); pct != 2.0 {
		t.Errorf("TierFor(PRO, 4%%) = %v, want capped at 2", pct)
	}
}

func TestLotSize(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		sl      float64
		want    float64
	}{
		{"survival rounds up to min lot", 40, 1980, 0.01},
		{"survival with tight stop", 40, 1995, 0.02},
		{"below ten dollars refuses", 5, 1980, 0},
		{"pro uses setting", 10000, 1995, 0.2},
		{"stop tighter than min calc distance", 10000, 1999.5, 0.5},
	}

	m := newTestManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.LotSize(tt.balance, 2000, tt.sl, gold); !almostEqual(got, tt.want) {
				t.Errorf("LotSize(%v) = %v, want %v", tt.balance, got, tt.want)
			}
		})
	}
}

func TestStopLevels(t *testing.T) {
	tests := []struct {
		name   string
		side   models.Side
		atr    float64
		mode   models.Mode
		wantSL float64
		wantTP float64
	}{
		{"sniper buy", models.SideBuy, 2, models.ModeSniper, 1997.3, 2005},
		{"trend sell", models.SideSell, 2, models.ModeTrend, 2003.6, 1990},
		{"tiny atr clamps to min stop", models.SideBuy, 0.1, models.ModeSniper, 1999, 2001.5},
		{"huge atr clamps to max stop", models.SideBuy, 50, models.ModePullback, 1980, 2125},
	}

	m := newTestManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sl, tp, err := m.StopLevels(2000, tt.side, tt.atr, gold, tt.mode)
			if err != nil {
				t.Fatalf("StopLevels() error = %v", err)
			}
			if !almostEqual(sl, tt.wantSL) || !almostEqual(tp, tt.wantTP) {
				t.Errorf("StopLevels() = %v/%v, want %v/%v", sl, tp, tt.wantSL, tt.wantTP)
			}
		})
	}

	if _, _, err := m.StopLevels(2000, models.SideBuy, 0, gold, models.ModeAuto); err == nil {
		t.Errorf("StopLevels(atr=0) error = nil, want error")
	}
}

func TestCanOpen(t *testing.T) {
	open := []models.Position{{Ticket: 1, Side: models.SideBuy, Volume: 0.48, PriceOpen: 2000, SL: 1990}}

	tests := []struct {
		name       string
		balance    float64
		positions  []models.Position
		newRisk    float64
		wantOK     bool
		wantReason string
	}{
		{"survival single slot", 40, open, 1, false, "Max positions limit (1/1) for Balance $40"},
		{"small account skips risk budget", 80, nil, 500, true, "OK (Auto-Flex Entry)"},
		{"over total risk", 6000, open, 60, false, "Total Risk Limit: $540.00 > $300.00"},
		{"within tolerance", 6000, nil, 350, true, "OK"},
	}

	m := newTestManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := m.CanOpen(tt.balance, tt.positions, tt.newRisk, gold)
			if ok != tt.wantOK || reason != tt.wantReason {
				t.Errorf("CanOpen() = %v %q, want %v %q", ok, reason, tt.wantOK, tt.wantReason)
			}
		})
	}
}

func TestBreakevenFiresOnce(t *testing.T) {
	m := newTestManager()
	pos := models.Position{Ticket: 10, Side: models.SideBuy, Volume: 0.05, PriceOpen: 2000, SL: 1995}

	if _, ok := m.Breakeven(pos, 2004, gold); ok {
		t.Fatalf("Breakeven() fired before 1R")
	}
	sl, ok := m.Breakeven(pos, 2005.5, gold)
	if !ok || !almostEqual(sl, 2000.6) {
		t.Fatalf("Breakeven() = %v %v, want 2000.6 true", sl, ok)
	}
	m.MarkBreakeven(pos.Ticket)
	if _, ok := m.Breakeven(pos, 2010, gold); ok {
		t.Errorf("Breakeven() fired twice")
	}

	short := models.Position{Ticket: 11, Side: models.SideSell, Volume: 0.05, PriceOpen: 2000, SL: 2005}
	if sl, ok := m.Breakeven(short, 1994, gold); !ok || !almostEqual(sl, 1999.4) {
		t.Errorf("Breakeven(short) = %v %v, want 1999.4 true", sl, ok)
	}
}

func TestScaleOut(t *testing.T) {
	m := newTestManager()
	pos := models.Position{Ticket: 20, Side: models.SideBuy, Volume: 0.05, PriceOpen: 2000, SL: 1995}

	if _, ok := m.ScaleOut(pos, 2007, gold); ok {
		t.Fatalf("ScaleOut() fired before 1.5R")
	}
	lot, ok := m.ScaleOut(pos, 2008, gold)
	if !ok || !almostEqual(lot, 0.02) {
		t.Fatalf("ScaleOut() = %v %v, want 0.02 true", lot, ok)
	}
	m.MarkScaledOut(pos.Ticket)
	if _, ok := m.ScaleOut(pos, 2010, gold); ok {
		t.Errorf("ScaleOut() fired twice")
	}

	single := models.Position{Ticket: 21, Side: models.SideBuy, Volume: 0.01, PriceOpen: 2000, SL: 1995}
	if _, ok := m.ScaleOut(single, 2010, gold); ok {
		t.Errorf("ScaleOut() on a minimum lot must not leave less than one step")
	}
}

func TestTrailingStop(t *testing.T) {
	m := newTestManager()
	pos := models.Position{Ticket: 30, Side: models.SideBuy, Volume: 0.05, PriceOpen: 2000, SL: 2000.6}

	if _, ok := m.TrailingStop(pos, 2010, 2, gold); ok {
		t.Fatalf("TrailingStop() active before breakeven")
	}
	m.MarkBreakeven(pos.Ticket)

	prices := []float64{2010, 2010.3, 2012, 2009, 2015, 2003}
	for _, p := range prices {
		sl, ok := m.TrailingStop(pos, p, 2, gold)
		if !ok {
			continue
		}
		if sl <= pos.SL {
			t.Fatalf("TrailingStop(%v) = %v, loosened from %v", p, sl, pos.SL)
		}
		if sl < pos.PriceOpen {
			t.Fatalf("TrailingStop(%v) = %v, crossed entry", p, sl)
		}
		pos.SL = sl
	}
	if !almostEqual(pos.SL, 2011) {
		t.Errorf("final trailing stop = %v, want 2011", pos.SL)
	}

	m.Forget(pos.Ticket)
	if m.AtBreakeven(pos.Ticket) {
		t.Errorf("AtBreakeven() after Forget() = true")
	}
}

func TestRetain(t *testing.T) {
	m := newTestManager()
	m.MarkBreakeven(1)
	m.MarkBreakeven(2)
	m.Retain([]models.Position{{Ticket: 2}})
	if m.AtBreakeven(1) || !m.AtBreakeven(2) {
		t.Errorf("Retain() kept %v/%v, want only ticket 2", m.AtBreakeven(1), m.AtBreakeven(2))
	}
}
