package strategy

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/internal/analysis/pattern"
	"github.com/Alias1177/goldscalper/internal/analysis/regime"
	"github.com/Alias1177/goldscalper/internal/config"
	"github.com/Alias1177/goldscalper/internal/indicators"
	"github.com/Alias1177/goldscalper/internal/market"
	"github.com/Alias1177/goldscalper/models"
)

const (
	// MinBars is the shortest main series the engine will analyze.
	MinBars = 100
	// A higher-timeframe series confirms only when longer than MinHTFBars.
	MinHTFBars = 50
)

// Thresholds are the minimum scores a direction needs per mode.
type Thresholds struct {
	Sniper   float64
	Trend    float64
	Pullback float64
	Breakout float64
}

// For returns the threshold of mode.
func (t Thresholds) For(mode models.Mode) float64 {
	switch mode {
	case models.ModeSniper:
		return t.Sniper
	case models.ModeTrend:
		return t.Trend
	case models.ModePullback:
		return t.Pullback
	case models.ModeBreakout:
		return t.Breakout
	}
	return t.Sniper
}

type indicatorSet struct {
	ma     *indicators.MovingAverage
	maLong *indicators.MovingAverage
	maHTF  *indicators.MovingAverage
	rsi    *indicators.RSI
	macd   *indicators.MACD
	bb     *indicators.Bollinger
	atr    *indicators.ATR
	atrHTF *indicators.ATR
	stoch  *indicators.Stochastic
	fib    *indicators.Fibonacci
}

func newIndicatorSet(o config.IndicatorOptions) indicatorSet {
	ma := indicators.NewMovingAverage(o.MAPeriod)
	ma.Shift = o.MAShift
	maLong := indicators.NewMovingAverage(o.MALongPeriod)
	maLong.Shift = o.MAShift
	return indicatorSet{
		ma:     ma,
		maLong: maLong,
		maHTF:  indicators.NewMovingAverage(o.HTFMAPeriod),
		rsi:    indicators.NewRSI(o.RSIPeriod, o.RSIOverbought, o.RSIOversold),
		macd:   indicators.NewMACD(o.MACDFast, o.MACDSlow, o.MACDSignal),
		bb:     indicators.NewBollinger(o.BBPeriod, o.BBDeviation),
		atr:    indicators.NewATR(o.ATRPeriod),
		atrHTF: indicators.NewATR(o.ATRPeriod),
		stoch:  indicators.NewStochastic(o.StochK, o.StochD, o.StochSlowing, o.StochOverbought, o.StochOversold),
		fib:    indicators.NewFibonacci(o.FibLookback, o.FibMinSwingPct),
	}
}

// Engine turns bar series into scored trade signals. It is driven from the
// control loop and is not safe for concurrent use.
type Engine struct {
	opts     config.Options
	ind      indicatorSet
	patterns *pattern.Analyzer

	base    Thresholds
	current Thresholds

	regime  regime.Regime
	details regime.Details

	// Best Fibonacci zone observed per open ticket, for zone-loss exits.
	fibSeen map[int64]indicators.FibZone

	logger zerolog.Logger
}

// NewEngine builds an engine from an options snapshot.
func NewEngine(opts config.Options) *Engine {
	e := &Engine{
		patterns: pattern.NewAnalyzer(),
		regime:   regime.Unknown,
		fibSeen:  make(map[int64]indicators.FibZone),
		logger:   log.With().Str("component", "strategy").Logger(),
	}
	e.Reconfigure(opts)
	return e
}

// Reconfigure swaps in a new options snapshot. Indicators are rebuilt only
// when their parameters changed; regime-driven threshold adjustments are
// re-applied on top of the new base thresholds.
func (e *Engine) Reconfigure(opts config.Options) {
	if e.ind.ma == nil || opts.Indicators != e.opts.Indicators {
		e.ind = newIndicatorSet(opts.Indicators)
	}
	e.opts = opts.Clone()
	sig := opts.Signals
	e.base = Thresholds{
		Sniper:   sig.MinConfSniper,
		Trend:    sig.MinConfTrend,
		Pullback: sig.MinConfPullback,
		Breakout: sig.MinConfBreakout,
	}
	e.applyRegime()
}

// Thresholds returns the thresholds currently in effect.
func (e *Engine) Thresholds() Thresholds { return e.current }

// Regime returns the last regime pushed through UpdateDynamicConfidence.
func (e *Engine) Regime() regime.Regime { return e.regime }

// UpdateDynamicConfidence stores the regime and re-tunes the per-mode
// thresholds for it.
func (e *Engine) UpdateDynamicConfidence(a regime.Assessment) {
	e.regime = a.Regime
	e.details = a.Details
	e.applyRegime()
	e.logger.Debug().
		Str("regime", string(a.Regime)).
		Float64("sniper", e.current.Sniper).
		Float64("trend", e.current.Trend).
		Float64("pullback", e.current.Pullback).
		Float64("breakout", e.current.Breakout).
		Msg("thresholds updated")
}

// SetRegimeDetails refreshes the stored details without re-tuning thresholds.
func (e *Engine) SetRegimeDetails(d regime.Details) { e.details = d }

func (e *Engine) applyRegime() {
	b := e.base
	t := b
	switch e.regime {
	case regime.Volatile:
		t.Sniper += 2.0
		t.Breakout = max(1.0, b.Breakout-0.2)
	case regime.Trending:
		if e.details.Strength == "STRONG" {
			t.Trend = max(1.0, b.Trend-0.5)
			t.Pullback = max(1.0, b.Pullback-0.5)
			t.Sniper += 2.0
		}
	case regime.Ranging:
		t.Sniper = max(1.5, b.Sniper-0.5)
	}
	e.current = t
}

// SelectMode resolves the operating mode. A non-AUTO override wins; otherwise
// a large deviation from the main average selects BREAKOUT_ONLY, then the
// regime table applies, and without a known regime the session decides.
func (e *Engine) SelectMode(main *market.Series, session string, override models.Mode) models.Mode {
	if override != "" && override != models.ModeAuto {
		return override
	}
	if dev, ok := e.ind.ma.Deviation(main); ok && dev*100 > e.opts.Signals.BreakoutDeviationPct {
		return models.ModeBreakout
	}
	if name, ok := e.opts.Signals.RegimeModes[string(e.regime)]; ok {
		if mode, err := models.ParseMode(name); err == nil && mode != models.ModeAuto {
			return mode
		}
	}
	if session == "asian" {
		return models.ModeSniper
	}
	return models.ModeTrend
}

// Analyze scores the main series, optionally confirmed by a higher-timeframe
// series (nil when unavailable). It returns false when main is too short.
func (e *Engine) Analyze(main, htf *market.Series, session string, override models.Mode) (Result, bool) {
	if main == nil || main.Len() < MinBars {
		return Result{}, false
	}
	if htf != nil && htf.Len() <= MinHTFBars {
		htf = nil
	}

	mode := e.SelectMode(main, session, override)
	b := e.gather(main, htf, mode)
	total := e.totalScore(mode)
	if total <= 0 {
		total = 1
	}

	buy, sell := e.score(main, htf, b, mode)
	minConf := e.current.For(mode)

	res := Result{
		BuyScore:  buy,
		SellScore: sell,
		Mode:      mode,
		MinConf:   minConf,
		Total:     total,
		Signals:   b,
	}
	switch {
	case buy >= minConf && buy > sell:
		res.Side = models.SideBuy
		res.Confidence = buy / total * 100
	case sell >= minConf && sell > buy:
		res.Side = models.SideSell
		res.Confidence = sell / total * 100
	}
	res.Confidence = min(res.Confidence, 99.9)
	return res, true
}

func (e *Engine) gather(main, htf *market.Series, mode models.Mode) Bundle {
	sc := e.opts.Signals
	var b Bundle

	if sc.UseATR {
		b.ATR, b.HasATR = e.ind.atr.Value(main)
		b.Volatility = e.ind.atr.VolatilityState(main)
	}

	b.Pattern = e.patterns.Analyze(main, b.ATR, e.ind.ma.Trend(main))

	if sc.EnableMTF && htf != nil {
		b.HTFTrend = e.ind.maHTF.Trend(htf)
		htfATR, _ := e.ind.atrHTF.Value(htf)
		p := e.patterns.Analyze(htf, htfATR, b.HTFTrend)
		b.HTFPattern = &p
	}

	if sc.UseRSI {
		b.RSIValue, b.HasRSIValue = e.ind.rsi.Value(main)
	}
	if sc.UseMA {
		b.MALong = e.ind.maLong.Signal(main)
	}
	if sc.UseFibonacci {
		if lv, ok := e.ind.fib.Levels(main); ok {
			b.Fib = &lv
			b.FibZone = lv.Zone(main.Last().Close)
		} else {
			b.FibZone = indicators.ZoneUnknown
		}
	}

	switch mode {
	case models.ModeSniper:
		if sc.UseRSI {
			b.RSI = e.ind.rsi.Signal(main)
		}
		if sc.UseBB {
			b.BB = e.ind.bb.Position(main)
		}
		if sc.UseStoch {
			b.Stoch = e.ind.stoch.Signal(main)
		}
	case models.ModeTrend:
		if sc.UseMA {
			b.MA = e.ind.ma.Signal(main)
		}
		if sc.UseMACD {
			b.MACD = e.ind.macd.State(main)
		}
		if sc.UseBB {
			b.BB = e.ind.bb.Position(main)
		}
	case models.ModePullback:
		if sc.UseRSI {
			b.RSI = e.ind.rsi.Signal(main)
		}
		if sc.UseStoch {
			b.Stoch = e.ind.stoch.Signal(main)
		}
	case models.ModeBreakout:
		b.Regime = e.regime
		b.RegimeDetails = e.details
	}
	return b
}

func (e *Engine) totalScore(mode models.Mode) float64 {
	s := e.opts.Signals.Scoring
	switch mode {
	case models.ModeSniper:
		return s.SniperSetup + s.SniperConfirm
	case models.ModeTrend:
		return s.TrendMA + s.TrendMACD
	case models.ModePullback:
		return s.PullbackTrend + s.PullbackRSI + s.PullbackStoch
	case models.ModeBreakout:
		return s.BreakoutSignal + s.BreakoutConfirm
	}
	return 2.0
}

// Validate is the last sanity check before a signal is acted on.
func (e *Engine) Validate(side models.Side, main *market.Series) (bool, string) {
	if !side.Valid() {
		return false, fmt.Sprintf("invalid side %q", side)
	}
	if main == nil || main.Len() < MinBars {
		return false, "Insufficient data"
	}
	return true, "OK"
}

// ATR returns the main-timeframe ATR for risk calculations.
func (e *Engine) ATR(main *market.Series) (float64, bool) {
	return e.ind.atr.Value(main)
}

// RSILimits returns the configured overbought and oversold levels.
func (e *Engine) RSILimits() (overbought, oversold float64) {
	return e.opts.Indicators.RSIOverbought, e.opts.Indicators.RSIOversold
}
