// Package profit tracks realized profit per day against a daily target.
package profit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/config"
)

// Actions taken once the daily target is reached.
const (
	ActionStop      = "STOP"
	ActionReduceLot = "REDUCE_LOT"
	ActionContinue  = "CONTINUE"
)

// Status labels reported by Progress.
const (
	StatusDisabled      = "DISABLED"
	StatusTargetReached = "TARGET_REACHED"
	StatusLoss          = "LOSS"
	StatusProfit        = "PROFIT"
	StatusNeutral       = "NEUTRAL"
)

// Progress is a snapshot of the day against the target.
type Progress struct {
	Enabled       bool    `json:"enabled"`
	Target        float64 `json:"target"`
	Current       float64 `json:"current"`
	Remaining     float64 `json:"remaining"`
	Percent       float64 `json:"progress_pct"`
	PctOfTarget   float64 `json:"percentage_of_target"`
	Trades        int     `json:"trades"`
	Status        string  `json:"status"`
	TargetReached bool    `json:"target_reached"`
	Action        string  `json:"action"`
	Bar           string  `json:"progress_bar"`
	Message       string  `json:"message"`
}

// Tracker accumulates realized profit for the current day. Profit is
// recorded even when the target is disabled so the daily loss limit keeps
// working. It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	opts  config.ProfitTargetOptions
	store StatsStore
	today Stats
	now   func() time.Time

	logger zerolog.Logger
}

// NewTracker creates a tracker persisting through store.
func NewTracker(opts config.ProfitTargetOptions, store StatsStore) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		opts:   opts,
		store:  store,
		now:    time.Now,
		logger: log.With().Str("component", "profit_target").Logger(),
	}
}

// Reconfigure applies new target options.
func (t *Tracker) Reconfigure(opts config.ProfitTargetOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts = opts
}

// rollover loads today's stats, starting a fresh day when the date changed.
// Callers hold t.mu.
func (t *Tracker) rollover(ctx context.Context) {
	date := t.now().Format(DateLayout)
	if t.today.Date == date {
		return
	}
	s, err := t.store.Load(ctx, date)
	switch {
	case err == nil:
		t.today = s
		return
	case !errors.Is(err, ErrNoStats):
		t.logger.Warn().Err(err).Str("date", date).Msg("failed to load daily stats, starting fresh")
	}
	t.today = Stats{Date: date}
	t.save(ctx)
}

func (t *Tracker) save(ctx context.Context) {
	s := t.today
	s.Profit = calculate.Round(s.Profit, 2)
	if err := t.store.Save(ctx, s); err != nil {
		t.logger.Error().Err(err).Str("date", s.Date).Msg("failed to save daily stats")
	}
}

// AddTradeResult records a closed trade. It returns false when trading must
// stop because the target was just reached with the STOP action.
func (t *Tracker) AddTradeResult(ctx context.Context, profit float64) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(ctx)

	t.today.Profit += profit
	t.today.Trades++

	if !t.opts.Enabled {
		t.save(ctx)
		return true, "Profit target disabled"
	}
	if t.today.TargetReached || t.today.Profit < t.opts.DailyTargetUSD {
		t.save(ctx)
		return true, "Trading continues"
	}

	at := t.now()
	t.today.TargetReached = true
	t.today.StoppedAt = &at
	t.save(ctx)
	t.logger.Info().
		Float64("profit", t.today.Profit).
		Float64("target", t.opts.DailyTargetUSD).
		Str("action", t.opts.Action).
		Msg("daily target reached")

	switch t.opts.Action {
	case ActionStop:
		return false, fmt.Sprintf("🎯 Daily target reached! ($%.2f / $%.2f)", t.today.Profit, t.opts.DailyTargetUSD)
	case ActionReduceLot:
		return true, fmt.Sprintf("🎯 Target reached! Reducing lot size to %.0f%%", t.opts.ReduceLotPct)
	}
	return true, "🎯 Target reached! Continue trading."
}

// CanTrade refuses new entries once the target is reached under STOP.
func (t *Tracker) CanTrade(ctx context.Context) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.opts.Enabled {
		return true, "Profit target disabled"
	}
	t.rollover(ctx)
	if t.today.TargetReached && t.opts.Action == ActionStop {
		stopped := "-"
		if t.today.StoppedAt != nil {
			stopped = t.today.StoppedAt.Format(time.DateTime)
		}
		return false, fmt.Sprintf("Daily target reached ($%.2f). Stopped at %s", t.today.Profit, stopped)
	}
	return true, "OK"
}

// LotMultiplier is the lot scaling after the target was reached under REDUCE_LOT.
func (t *Tracker) LotMultiplier(ctx context.Context) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.opts.Enabled {
		return 1.0
	}
	t.rollover(ctx)
	if t.today.TargetReached && t.opts.Action == ActionReduceLot {
		return max(0.01, t.opts.ReduceLotPct/100)
	}
	return 1.0
}

// Today returns the current day's stats.
func (t *Tracker) Today(ctx context.Context) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(ctx)
	return t.today
}

// Reset clears the current day.
func (t *Tracker) Reset(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.today = Stats{Date: t.now().Format(DateLayout)}
	t.save(ctx)
}

// History returns the stored days, newest first.
func (t *Tracker) History(ctx context.Context, days int) ([]Stats, error) {
	return t.store.History(ctx, days)
}

// Progress reports the day against the target.
func (t *Tracker) Progress(ctx context.Context) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(ctx)

	if !t.opts.Enabled {
		return Progress{
			Status:  StatusDisabled,
			Bar:     progressBar(0, false),
			Message: "Profit target is disabled",
		}
	}

	target := t.opts.DailyTargetUSD
	cur := t.today.Profit
	pct := 0.0
	if target > 0 {
		pct = cur / target * 100
	}

	status := StatusNeutral
	switch {
	case t.today.TargetReached:
		status = StatusTargetReached
	case cur < 0:
		status = StatusLoss
	case cur > 0:
		status = StatusProfit
	}

	return Progress{
		Enabled:       true,
		Target:        calculate.Round(target, 2),
		Current:       calculate.Round(cur, 2),
		Remaining:     calculate.Round(max(0, target-cur), 2),
		Percent:       calculate.Round(min(100, max(0, pct)), 1),
		PctOfTarget:   calculate.Round(pct, 1),
		Trades:        t.today.Trades,
		Status:        status,
		TargetReached: t.today.TargetReached,
		Action:        t.opts.Action,
		Bar:           progressBar(pct, cur < 0),
		Message:       message(cur, target, pct),
	}
}

func progressBar(pct float64, loss bool) string {
	const width = 10
	pct = min(100, max(0, pct))
	filled := int(pct / 100 * width)
	fill := "█"
	if loss {
		fill = "▓"
	}
	return "[" + strings.Repeat(fill, filled) + strings.Repeat("░", width-filled) + "]"
}

func message(cur, target, pct float64) string {
	remaining := target - cur
	switch {
	case cur < 0:
		return fmt.Sprintf("💪 Down $%.2f, trade smart to recover!", -cur)
	case pct >= 100:
		over := 0.0
		if target > 0 {
			over = (cur/target - 1) * 100
		}
		return fmt.Sprintf("🎉 TARGET SMASHED! Up $%.2f extra (+%.1f%% over target)!", cur-target, over)
	case pct >= 90:
		return fmt.Sprintf("🔥 SO CLOSE! Only $%.2f to go!", remaining)
	case pct >= 50:
		return fmt.Sprintf("⚡ Halfway there! $%.2f more to target!", remaining)
	}
	return fmt.Sprintf("🎯 $%.2f to target!", remaining)
}

// Summary renders the progress as a multi-line status block.
func (p Progress) Summary() string {
	if !p.Enabled {
		return "Profit Target: DISABLED ⏸️"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 DAILY PROFIT TARGET\n")
	fmt.Fprintf(&b, "%s %.1f%% ($%+.2f / $%.2f)\n", p.Bar, p.PctOfTarget, p.Current, p.Target)
	if p.TargetReached {
		fmt.Fprintf(&b, "✨ Excess: $%+.2f\n", p.Current-p.Target)
	} else {
		fmt.Fprintf(&b, "📊 Remaining: $%.2f\n", p.Remaining)
	}
	fmt.Fprintf(&b, "📈 Trades: %d\n", p.Trades)
	fmt.Fprintf(&b, "💬 %s", p.Message)
	return b.String()
}
