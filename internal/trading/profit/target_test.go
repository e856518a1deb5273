package profit

import (
	"context"
	"testing"
	"time"

	"github.com/Alias1177/goldscalper/internal/config"
)

func newTestTracker(action string, enabled bool) (*Tracker, *time.Time) {
	opts := config.DefaultOptions().ProfitTarget
	opts.Enabled = enabled
	opts.Action = action
	tr := NewTracker(opts, NewMemoryStore())
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestAddTradeResult(t *testing.T) {
	tests := []struct {
		name       string
		action     string
		wantTrade  bool
		wantMult   float64
		wantReason string
	}{
		{"stop", ActionStop, false, 1.0, "🎯 Daily target reached! ($21.00 / $20.00)"},
		{"reduce lot", ActionReduceLot, true, 0.5, "🎯 Target reached! Reducing lot size to 50%"},
		{"continue", ActionContinue, true, 1.0, "🎯 Target reached! Continue trading."},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTestTracker(tt.action, true)
			if ok, _ := tr.AddTradeResult(ctx, 12); !ok {
				t.Fatalf("AddTradeResult(12) stopped trading below target")
			}
			ok, reason := tr.AddTradeResult(ctx, 9)
			if ok != tt.wantTrade || reason != tt.wantReason {
				t.Errorf("AddTradeResult(9) = %v %q, want %v %q", ok, reason, tt.wantTrade, tt.wantReason)
			}
			if got := tr.LotMultiplier(ctx); got != tt.wantMult {
				t.Errorf("LotMultiplier() = %v, want %v", got, tt.wantMult)
			}
			canTrade, _ := tr.CanTrade(ctx)
			if canTrade != (tt.action != ActionStop) {
				t.Errorf("CanTrade() = %v after target with %s", canTrade, tt.action)
			}
		})
	}
}

func TestDisabledStillRecords(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(ActionStop, false)
	tr.AddTradeResult(ctx, -7.5)
	tr.AddTradeResult(ctx, 50)

	if got := tr.Today(ctx); got.Profit != 42.5 || got.Trades != 2 || got.TargetReached {
		t.Errorf("Today() = %+v, want profit 42.5 over 2 trades without target", got)
	}
	if ok, _ := tr.CanTrade(ctx); !ok {
		t.Errorf("CanTrade() = false with target disabled")
	}
	if p := tr.Progress(ctx); p.Status != StatusDisabled {
		t.Errorf("Progress().Status = %s, want %s", p.Status, StatusDisabled)
	}
}

func TestRollover(t *testing.T) {
	ctx := context.Background()
	tr, now := newTestTracker(ActionStop, true)
	tr.AddTradeResult(ctx, 25)
	if ok, _ := tr.CanTrade(ctx); ok {
		t.Fatalf("CanTrade() = true after target with STOP")
	}

	*now = now.Add(24 * time.Hour)
	if ok, _ := tr.CanTrade(ctx); !ok {
		t.Errorf("CanTrade() on a new day = false, want true")
	}
	if got := tr.Today(ctx); got.Profit != 0 || got.Date != "2024-05-07" {
		t.Errorf("Today() = %+v, want a fresh 2024-05-07", got)
	}

	hist, err := tr.History(ctx, 7)
	if err != nil || len(hist) != 2 || hist[0].Date != "2024-05-07" || hist[1].Profit != 25 {
		t.Errorf("History() = %+v, %v; want two days newest first", hist, err)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name        string
		profit      float64
		wantStatus  string
		wantPercent float64
		wantBar     string
	}{
		{"neutral", 0, StatusNeutral, 0, "[░░░░░░░░░░]"},
		{"halfway", 10, StatusProfit, 50, "[█████░░░░░]"},
		{"loss", -5, StatusLoss, 0, "[░░░░░░░░░░]"},
		{"reached", 30, StatusTargetReached, 100, "[██████████]"},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTestTracker(ActionContinue, true)
			if tt.profit != 0 {
				tr.AddTradeResult(ctx, tt.profit)
			}
			p := tr.Progress(ctx)
			if p.Status != tt.wantStatus || p.Percent != tt.wantPercent || p.Bar != tt.wantBar {
				t.Errorf("Progress() = %s %v %s, want %s %v %s",
					p.Status, p.Percent, p.Bar, tt.wantStatus, tt.wantPercent, tt.wantBar)
			}
			if p.Summary() == "" {
				t.Errorf("Summary() is empty")
			}
		})
	}
}
