// Package executor runs the trading control loop. One goroutine owns all
// decision state; operator commands reach it through a buffered channel.
package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/internal/analysis/regime"
	"github.com/Alias1177/goldscalper/internal/analysis/strategy"
	"github.com/Alias1177/goldscalper/internal/config"
	"github.com/Alias1177/goldscalper/internal/filters"
	"github.com/Alias1177/goldscalper/internal/market"
	"github.com/Alias1177/goldscalper/internal/metrics"
	"github.com/Alias1177/goldscalper/internal/trading/profit"
	"github.com/Alias1177/goldscalper/internal/trading/risk"
	"github.com/Alias1177/goldscalper/models"
)

var (
	// ErrOrderRejected is returned when the broker refused an order under
	// every fill mode it was offered.
	ErrOrderRejected = errors.New("order rejected")
	// ErrTickPanic wraps a panic recovered at the tick boundary.
	ErrTickPanic = errors.New("tick panicked")
)

const (
	commandBuffer    = 16
	fridayStopPeriod = time.Minute
	calibrationBars  = 200
)

// Deps are the collaborators of an Executor. Profit, News and Notifier are
// optional.
type Deps struct {
	Gateway  models.Gateway
	Store    *config.Store
	Profit   *profit.Tracker
	News     *filters.NewsFilter
	Notifier Notifier
}

// tracked is a position opened (or adopted) by the bot.
type tracked struct {
	side   models.Side
	opened time.Time
}

// Executor is the execution coordinator. Run drives it; Tick runs a single
// cycle and is exported for tests and one-shot tools.
type Executor struct {
	gw       models.Gateway
	store    *config.Store
	profit   *profit.Tracker
	news     *filters.NewsFilter
	notifier Notifier

	opts   config.Options
	symbol string
	tf     models.Timeframe
	htfTF  models.Timeframe

	strategy *strategy.Engine
	risk     *risk.Manager
	detector *regime.Detector
	sessions *filters.SessionFilter
	spread   *filters.SpreadFilter

	commands chan Command

	main          *market.Series
	tracked       map[int64]tracked
	paused        bool
	sessionMode   models.Mode
	assessment    regime.Assessment
	lotMultiplier float64
	lastSignal    strategy.Result
	cache         *analysis

	lastRegimeCheck time.Time
	lastOrderAt     time.Time
	lastOrderBar    time.Time

	mu      sync.Mutex
	state   State
	label   string
	lastErr string

	now    func() time.Time
	logger zerolog.Logger
}

// New builds an executor from the current options in deps.Store.
func New(deps Deps) (*Executor, error) {
	if deps.Gateway == nil || deps.Store == nil {
		return nil, errors.New("executor: gateway and options store are required")
	}
	opts := deps.Store.Snapshot()
	tf, err := models.ParseTimeframe(opts.Trading.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}
	htf, err := models.ParseTimeframe(opts.Signals.HigherTimeframe)
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}
	if deps.Profit == nil {
		deps.Profit = profit.NewTracker(opts.ProfitTarget, nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.News != nil {
		deps.News.Reconfigure(opts.Filters)
	}

	return &Executor{
		gw:            deps.Gateway,
		store:         deps.Store,
		profit:        deps.Profit,
		news:          deps.News,
		notifier:      deps.Notifier,
		opts:          opts,
		symbol:        opts.Trading.Symbol,
		tf:            tf,
		htfTF:         htf,
		strategy:      strategy.NewEngine(opts),
		risk:          risk.NewManager(opts),
		detector:      regime.NewDetector(opts.Regime, opts.Trading.Symbol),
		sessions:      filters.NewSessionFilter(opts.Filters),
		spread:        filters.NewSpreadFilter(opts.Filters.Spread),
		commands:      make(chan Command, commandBuffer),
		main:          &market.Series{},
		tracked:       make(map[int64]tracked),
		sessionMode:   models.ModeAuto,
		assessment:    regime.Assessment{Regime: regime.Unknown},
		lotMultiplier: 1,
		state:         StateStarting,
		now:           time.Now,
		logger:        log.With().Str("component", "executor").Str("symbol", opts.Trading.Symbol).Logger(),
	}, nil
}

// Submit queues cmd for the control loop. It returns false when the queue is
// full.
func (e *Executor) Submit(cmd Command) bool {
	select {
	case e.commands <- cmd:
		return true
	default:
		return false
	}
}

// State returns the current loop state and session label.
func (e *Executor) State() (State, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.label
}

// LastError returns the message of the last failed tick, empty after a
// successful one.
func (e *Executor) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Executor) setState(s State, label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != s {
		e.logger.Info().Str("from", string(e.state)).Str("to", string(s)).Str("session", label).Msg("state changed")
	}
	e.state = s
	e.label = label
	if s != StateError {
		e.lastErr = ""
	}
}

func (e *Executor) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateError
	e.lastErr = err.Error()
}

// logFor returns the tick logger carried by ctx, or the component logger
// outside a tick.
func (e *Executor) logFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &e.logger
}

// Run connects, calibrates and then ticks until ctx is cancelled. Tick
// failures are logged and never end the loop.
func (e *Executor) Run(ctx context.Context) error {
	if err := e.start(ctx); err != nil {
		e.fail(err)
		e.notifier.NotifyStatus("ERROR", err.Error())
		return err
	}
	defer e.notifier.NotifyStatus("STOPPED", "User Shutdown")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("control loop stopped")
			return nil
		case cmd := <-e.commands:
			e.handle(ctx, cmd)
		case <-timer.C:
			e.refreshNews(ctx)
			_ = e.Tick(ctx)
			timer.Reset(e.period())
		}
	}
}

func (e *Executor) period() time.Duration {
	if s, _ := e.State(); s == StateFridayStop {
		return fridayStopPeriod
	}
	return time.Duration(max(1, e.opts.Trading.TickSeconds)) * time.Second
}

func (e *Executor) start(ctx context.Context) error {
	e.setState(StateStarting, "")
	if err := e.gw.Connect(ctx); err != nil {
		return fmt.Errorf("connecting gateway: %w", err)
	}
	if err := e.syncMain(ctx); err != nil {
		return err
	}
	info, err := e.gw.SymbolInfo(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("symbol %s: %w", e.symbol, err)
	}
	if !info.TradeAllowed {
		return fmt.Errorf("symbol %s is not tradable", e.symbol)
	}

	if e.main.Len() >= calibrationBars {
		e.detector.Calibrate(e.main)
	} else {
		e.logger.Warn().Int("bars", e.main.Len()).Msg("calibration skipped, insufficient data")
	}
	if err := e.adopt(ctx); err != nil {
		return err
	}

	acc, err := e.gw.Account(ctx)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	e.logger.Info().Float64("balance", acc.Balance).Str("timeframe", string(e.tf)).Msg("executor started")
	e.notifier.NotifyStatus("STARTED", fmt.Sprintf("Online\nSymbol: %s\nBal: $%.2f", e.symbol, acc.Balance))
	e.setState(StateRunning, "")
	return nil
}

func (e *Executor) refreshNews(ctx context.Context) {
	if e.news == nil {
		return
	}
	// Refresh logs its own failures and keeps the previous calendar.
	_ = e.news.Refresh(ctx)
	e.news.Prune(e.now())
}

// Tick runs one control cycle behind a fault barrier: errors and panics are
// logged, counted and recorded as the ERROR state.
func (e *Executor) Tick(ctx context.Context) (err error) {
	start := time.Now()
	logger := e.logger.With().Str("tick", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx)
	metrics.Ticks.Inc()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTickPanic, r)
		}
		if err != nil {
			metrics.TickFailures.Inc()
			e.fail(err)
			logger.Error().Err(err).Msg("tick failed")
		}
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	return e.tick(ctx)
}

func (e *Executor) tick(ctx context.Context) error {
	e.cache = nil
	e.drain(ctx)
	if err := e.refreshOptions(ctx); err != nil {
		return err
	}
	if !e.gw.Connected(ctx) {
		if err := e.gw.Connect(ctx); err != nil {
			return fmt.Errorf("reconnecting gateway: %w", err)
		}
	}
	now, err := e.gw.ServerTime(ctx)
	if err != nil {
		return fmt.Errorf("server time: %w", err)
	}

	state, label, mode := sessionRules(now, e.opts.Filters.AsiaSessionMode)
	switch state {
	case StateFridayStop:
		e.setState(StateFridayStop, label)
		_, err := e.closeAll(ctx, "Friday Hard Exit")
		return err
	case StatePausedSwap:
		e.setState(StatePausedSwap, label)
		return nil
	}
	if mode != e.sessionMode {
		e.logFor(ctx).Info().Str("from", string(e.sessionMode)).Str("to", string(mode)).Msg("session mode switch")
		e.sessionMode = mode
	}
	if e.paused {
		e.setState(StatePaused, label)
		return nil
	}
	e.setState(StateRunning, label)

	if err := e.syncMain(ctx); err != nil {
		return err
	}
	if interval := time.Duration(e.opts.Regime.CheckSeconds) * time.Second; now.Sub(e.lastRegimeCheck) >= interval {
		e.updateRegime(ctx, now)
		e.lastRegimeCheck = now
	}

	if ok, reason := e.profit.CanTrade(ctx); !ok {
		e.setState(StatePausedPTM, label)
		e.logFor(ctx).Debug().Str("reason", reason).Msg("profit target gate closed")
		return nil
	}
	e.lotMultiplier = regime.Recommend(e.assessment).LotMultiplier * e.profit.LotMultiplier(ctx)

	info, err := e.gw.SymbolInfo(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("symbol info: %w", err)
	}
	acc, err := e.gw.Account(ctx)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	ok, session, reasons := e.canTrade(ctx, now, info, acc)
	if !ok {
		e.logFor(ctx).Debug().Str("reasons", strings.Join(reasons, ", ")).Msg("trading blocked")
		return nil
	}

	if err := e.reconcile(ctx); err != nil {
		return err
	}
	if err := e.manage(ctx, info); err != nil {
		return err
	}
	if err := e.checkExits(ctx, session); err != nil {
		return err
	}
	return e.tryEntry(ctx, now, session)
}

// refreshOptions applies a changed options snapshot to every component.
func (e *Executor) refreshOptions(ctx context.Context) error {
	opts := e.store.Snapshot()
	if reflect.DeepEqual(opts, e.opts) {
		return nil
	}
	tf, err := models.ParseTimeframe(opts.Trading.Timeframe)
	if err != nil {
		return fmt.Errorf("options: %w", err)
	}
	htf, err := models.ParseTimeframe(opts.Signals.HigherTimeframe)
	if err != nil {
		return fmt.Errorf("options: %w", err)
	}

	if opts.Trading.Symbol != e.symbol || tf != e.tf {
		e.main = &market.Series{}
		e.lastOrderBar = time.Time{}
	}
	if opts.Trading.Symbol != e.symbol || !reflect.DeepEqual(opts.Regime, e.opts.Regime) {
		e.detector = regime.NewDetector(opts.Regime, opts.Trading.Symbol)
		e.lastRegimeCheck = time.Time{}
	}
	e.strategy.Reconfigure(opts)
	e.risk.Reconfigure(opts)
	e.sessions.Reconfigure(opts.Filters)
	e.spread.Reconfigure(opts.Filters.Spread)
	e.profit.Reconfigure(opts.ProfitTarget)
	if e.news != nil {
		e.news.Reconfigure(opts.Filters)
	}

	e.opts, e.symbol, e.tf, e.htfTF = opts, opts.Trading.Symbol, tf, htf
	e.logFor(ctx).Info().Str("preset", opts.ActivePreset).Str("mode", opts.Signals.ModeOverride).Msg("options reloaded")
	return nil
}

// sessionRules applies the server-time trading schedule. It returns the
// state forced by the clock (RUNNING when trading may go on), a label and the
// strategy mode the session asks for.
func sessionRules(t time.Time, asiaMode string) (State, string, models.Mode) {
	hour := t.Hour()
	if t.Weekday() == time.Friday && hour >= 23 {
		return StateFridayStop, "FRIDAY HARD EXIT", ""
	}
	switch {
	case hour >= 4 && hour < 13:
		if strings.EqualFold(asiaMode, "AGGRESSIVE") {
			return StateRunning, "ASIA (Aggressive Override)", models.ModeAuto
		}
		return StateRunning, "ASIA (Defensive)", models.ModeSniper
	case hour >= 13 || hour < 3:
		return StateRunning, "LONDON/US (Aggressive)", models.ModeAuto
	}
	return StatePausedSwap, "SWAP GAP (Paused)", ""
}

// modeOverride is the operator override when set, else the session mode.
func (e *Executor) modeOverride() models.Mode {
	if m, err := models.ParseMode(e.opts.Signals.ModeOverride); err == nil && m != models.ModeAuto {
		return m
	}
	return e.sessionMode
}

func (e *Executor) syncMain(ctx context.Context) error {
	bars, err := e.gw.Bars(ctx, e.symbol, e.tf, e.opts.Trading.Bars)
	if err != nil {
		return fmt.Errorf("fetching %s bars: %w", e.tf, err)
	}
	if err := e.main.Sync(bars); err != nil {
		return fmt.Errorf("syncing %s bars: %w", e.tf, err)
	}
	return nil
}

func (e *Executor) updateRegime(ctx context.Context, now time.Time) {
	a := e.detector.Detect(e.main)
	prev := e.assessment.Regime
	if a.Regime != prev {
		e.strategy.UpdateDynamicConfidence(a)
		rec := regime.Recommend(a)
		e.logFor(ctx).Info().
			Str("from", string(prev)).
			Str("to", string(a.Regime)).
			Float64("confidence", a.Confidence).
			Str("suggested_mode", string(rec.Mode)).
			Msg("regime updated")
		if a.Regime != regime.Unknown {
			e.notifier.NotifyRegime(RegimeEvent{From: prev, To: a.Regime, Assessment: a, Recommendation: rec, Time: now})
		}
	} else {
		e.strategy.SetRegimeDetails(a.Details)
	}
	e.assessment = a
	metrics.SetRegime(string(a.Regime), a.Confidence)
}

// canTrade evaluates the gating collaborators. It returns the session label
// to trade under and every reason that blocks trading.
func (e *Executor) canTrade(ctx context.Context, now time.Time, info models.SymbolInfo, acc models.Account) (bool, string, []string) {
	var reasons []string

	ok, session := e.sessions.Allowed(now)
	if !ok {
		reasons = append(reasons, session)
		session = ""
	}
	if e.news != nil {
		if hit, msg, _ := e.news.Check(e.symbol, now); hit {
			reasons = append(reasons, "News filter: "+msg)
		}
	}
	r := e.opts.Risk
	if r.MarginFilterEnabled && acc.Margin > 0 && acc.MarginLevel < r.MinMarginLevelPct {
		reasons = append(reasons, fmt.Sprintf("Margin Level too low: %.1f%% (min: %.0f%%)", acc.MarginLevel, r.MinMarginLevelPct))
	}
	if ok, msg := e.spread.Check(info, session); !ok {
		reasons = append(reasons, "Spread filter: "+msg)
	}
	if ok, msg := e.dailyLimit(ctx, acc.Balance); !ok {
		reasons = append(reasons, msg)
	}
	return len(reasons) == 0, session, reasons
}

func (e *Executor) dailyLimit(ctx context.Context, balance float64) (bool, string) {
	pct := e.opts.Risk.DailyLossLimitPct
	if pct <= 0 || balance <= 0 {
		return true, "OK"
	}
	today := e.profit.Today(ctx).Profit
	if today < 0 && -today/balance*100 >= pct {
		return false, fmt.Sprintf("Daily Loss Limit Hit! ($%.2f / -%g%%)", today, pct)
	}
	return true, "OK"
}

func (e *Executor) drain(ctx context.Context) {
	for {
		select {
		case cmd := <-e.commands:
			e.handle(ctx, cmd)
		default:
			return
		}
	}
}

func (e *Executor) handle(ctx context.Context, cmd Command) {
	e.logFor(ctx).Info().Str("command", string(cmd.Kind)).Int64("ticket", cmd.Ticket).Msg("operator command")

	var reply string
	switch cmd.Kind {
	case CmdPause:
		e.paused = true
		e.setState(StatePaused, "")
		reply = "Bot PAUSED ⏸️"
	case CmdResume:
		e.paused = false
		reply = "Bot RESUMED ▶️"
	case CmdCloseAll:
		n, err := e.closeAll(ctx, "Telegram Panic")
		if err != nil {
			reply = fmt.Sprintf("❌ Close all failed after %d positions: %v", n, err)
			break
		}
		reply = fmt.Sprintf("✅ PANIC EXECUTION COMPLETE\nClosed %d positions.", n)
	case CmdClose:
		if err := e.closeTicket(ctx, cmd.Ticket, "Telegram Close"); err != nil {
			reply = fmt.Sprintf("❌ Failed to close #%d: %v", cmd.Ticket, err)
			break
		}
		reply = fmt.Sprintf("Closed #%d ✅", cmd.Ticket)
	case CmdSetMode:
		if err := e.store.SetMode(string(cmd.Mode)); err != nil {
			reply = fmt.Sprintf("❌ %v", err)
			break
		}
		reply = fmt.Sprintf("🔄 Mode changed to %s", cmd.Mode)
	case CmdStatus:
		reply = e.Status(ctx)
	case CmdPositions:
		reply = e.PositionsReport(ctx)
	default:
		reply = fmt.Sprintf("Unknown command %q", cmd.Kind)
	}
	if cmd.Reply != nil {
		cmd.Reply(reply)
	}
}

// Status renders the live status report.
func (e *Executor) Status(ctx context.Context) string {
	state, label := e.State()
	var b strings.Builder
	b.WriteString("📊 LIVE STATUS\n━━━━━━━━━━━━━━━━\n")

	acc, err := e.gw.Account(ctx)
	if err != nil {
		b.WriteString("⚠️ Gateway unavailable: " + err.Error() + "\n")
	} else {
		pnl := e.profit.Today(ctx).Profit
		icon := "🟢"
		if pnl < 0 {
			icon = "🔴"
		}
		fmt.Fprintf(&b, "💵 Balance: $%.2f\n💎 Equity: $%.2f\n%s Day P/L: $%+.2f\n", acc.Balance, acc.Equity, icon, pnl)
		if acc.Margin > 0 {
			fmt.Fprintf(&b, "📐 Margin Level: %.0f%%\n", acc.MarginLevel)
		}
	}
	if p := e.profit.Progress(ctx); p.Enabled {
		b.WriteString(p.Summary() + "\n")
	}

	mode := e.opts.Signals.ModeOverride
	if m := e.modeOverride(); m != models.ModeAuto {
		mode = string(m)
	}
	fmt.Fprintf(&b, "\n⚙️ System:\n• Mode: %s\n• Regime: %s\n• Session: %s\n• State: %s\n", mode, e.detector.Summary(), label, state)
	if e.lastSignal.Mode != "" {
		fmt.Fprintf(&b, "• Last signal: %s\n", strategy.Summary(e.lastSignal))
	}
	if msg := e.LastError(); msg != "" {
		fmt.Fprintf(&b, "• Last error: %s\n", msg)
	}
	return b.String()
}
