package regime

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/config"
	"github.com/Alias1177/goldscalper/internal/indicators"
	"github.com/Alias1177/goldscalper/internal/market"
)

const (
	minBars         = 60
	calibrationBars = 200
	bandPeriod      = 20
	indicatorPeriod = 14
)

type entry struct {
	regime     Regime
	confidence float64
	at         time.Time
}

// Detector classifies the market regime of one symbol and keeps a short
// history for stability metrics. It is not safe for concurrent use.
type Detector struct {
	symbol      string
	defaults    Thresholds
	th          Thresholds
	recalibrate time.Duration
	maxHistory  int

	calibrated     bool
	lastCalibrated time.Time
	history        []entry

	adx *indicators.ADX
	atr *indicators.ATR

	widthMemo struct {
		series  *market.Series
		version uint64
		values  []float64
	}

	now    func() time.Time
	logger zerolog.Logger
}

// NewDetector creates a detector seeded with the configured thresholds.
func NewDetector(opts config.RegimeOptions, symbol string) *Detector {
	th := Thresholds{
		ADXTrending:      opts.ADXTrending,
		ADXRanging:       opts.ADXRanging,
		ATRVolatileRatio: opts.ATRVolatileRatio,
		BBWRangingPct:    opts.BBWRangingPct,
		BreakoutMomentum: opts.BreakoutMomentumFor(symbol),
	}
	maxHistory := opts.HistorySize
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &Detector{
		symbol:      symbol,
		defaults:    th,
		th:          th,
		recalibrate: time.Duration(opts.RecalibrateSeconds) * time.Second,
		maxHistory:  maxHistory,
		adx:         indicators.NewADX(indicatorPeriod),
		atr:         indicators.NewATR(indicatorPeriod),
		now:         time.Now,
		logger:      log.With().Str("component", "regime").Str("symbol", symbol).Logger(),
	}
}

// Thresholds returns the thresholds currently in effect.
func (d *Detector) Thresholds() Thresholds { return d.th }

// Calibrated reports whether calibration has succeeded at least once.
func (d *Detector) Calibrated() bool { return d.calibrated }

// Calibrate derives the volatility and ranging thresholds from the series.
// Series shorter than 200 bars leave the thresholds unchanged. Without band
// widths only the volatility threshold moves and false is returned.
func (d *Detector) Calibrate(s *market.Series) bool {
	if s.Len() < calibrationBars {
		return false
	}

	atr := calculate.FillNaN(append([]float64(nil), d.atr.Series(s)...), 0)
	median := calculate.Quantile(atr, 0.5)
	q75 := calculate.Quantile(atr, 0.75)
	ratio := 1.5
	if median > 0 {
		ratio = q75 / median
	}
	d.th.ATRVolatileRatio = math.Max(1.3, math.Min(ratio, 2.5))

	closes := s.Closes()
	widths := d.widths(s)
	pct := make([]float64, len(widths))
	for i, w := range widths {
		c := closes[i]
		if c == 0 {
			c = 1e-9
		}
		pct[i] = w / c
	}
	q25 := calculate.Quantile(pct, 0.25)
	if math.IsNaN(q25) {
		return false
	}

	d.th.BBWRangingPct = math.Max(0.01, q25)
	d.calibrated = true
	d.lastCalibrated = d.now()

	d.logger.Debug().
		Float64("atr_volatile_ratio", d.th.ATRVolatileRatio).
		Float64("bbw_ranging_pct", d.th.BBWRangingPct).
		Msg("thresholds calibrated")
	return true
}

// Reset drops calibration and history and restores the seed thresholds.
func (d *Detector) Reset() {
	d.th = d.defaults
	d.calibrated = false
	d.history = nil
}

// Detect classifies the series. Fewer than 60 bars yield UNKNOWN.
func (d *Detector) Detect(s *market.Series) Assessment {
	if s.Len() < minBars {
		return Assessment{Regime: Unknown, Details: Details{Reason: "Insufficient data"}}
	}

	if !d.calibrated || (d.recalibrate > 0 && d.now().Sub(d.lastCalibrated) > d.recalibrate) {
		d.Calibrate(s)
	}

	adxSeries := d.adx.Series(s)
	atrSeries := d.atr.Series(s)
	widths := d.widths(s)
	if len(adxSeries) == 0 || len(atrSeries) == 0 {
		return Assessment{Regime: Unknown, Details: Details{Reason: "Indicator calculation failed"}}
	}

	adx := calculate.Last(adxSeries)
	currentATR := calculate.Last(atrSeries)
	avgATR := calculate.Last(calculate.SMA(atrSeries, bandPeriod))
	atrRatio := 1.0
	if avgATR > 0 {
		atrRatio = currentATR / avgATR
	}

	price := s.Last().Close
	if price == 0 {
		price = 1e-9
	}
	bbwPct := calculate.Last(widths) / price

	regime, confidence, scores := Score(adx, atrRatio, bbwPct, d.breakout(s, widths), d.th)
	highVol := scores[Volatile] > 50 || atrRatio > d.th.ATRVolatileRatio

	d.record(regime, confidence)

	details := d.details(regime, s, adx, currentATR, atrRatio, bbwPct)
	details.HighVolatility = highVol
	if highVol {
		details.Warning = "High Volatility Detected!"
	}

	return Assessment{
		Regime:     regime,
		Confidence: calculate.Round(confidence, 2),
		Scores:     scores,
		Details:    details,
	}
}

func (d *Detector) record(r Regime, confidence float64) {
	if n := len(d.history); n > 0 && d.history[n-1].regime != r {
		d.logger.Info().
			Str("from", string(d.history[n-1].regime)).
			Str("to", string(r)).
			Float64("confidence", confidence).
			Msg("regime changed")
	}
	d.history = append(d.history, entry{regime: r, confidence: confidence, at: d.now()})
	if len(d.history) > d.maxHistory {
		d.history = d.history[len(d.history)-d.maxHistory:]
	}
}

// widths returns the Bollinger width series (4 standard deviations of close),
// zero where undefined.
func (d *Detector) widths(s *market.Series) []float64 {
	m := &d.widthMemo
	if m.series == s && m.version == s.Version() && m.values != nil {
		return m.values
	}
	std := calculate.Std(s.Closes(), bandPeriod)
	for i := range std {
		std[i] *= 4
	}
	m.values = calculate.FillNaN(std, 0)
	m.series, m.version = s, s.Version()
	return m.values
}

// breakout detects a close beyond the 2-sigma band confirmed by an impulse
// candle or an expanding band.
func (d *Detector) breakout(s *market.Series, widths []float64) bool {
	n := s.Len()
	if n < bandPeriod {
		return false
	}
	closes := s.Closes()
	window := closes[n-bandPeriod:]
	ma := calculate.Average(window)
	std := calculate.SampleStd(window)
	curr := closes[n-1]
	if curr <= ma+2*std && curr >= ma-2*std {
		return false
	}

	const impulseWindow = 10
	bodies := make([]float64, impulseWindow)
	for i := 0; i < impulseWindow; i++ {
		bodies[i] = s.Back(i).Body()
	}
	impulse := s.Last().Body() > 2*calculate.Average(bodies)
	expanding := widths[n-1] > calculate.Average(widths[n-impulseWindow:])
	return impulse || expanding
}

func (d *Detector) details(r Regime, s *market.Series, adx, atr, atrRatio, bbwPct float64) Details {
	det := Details{
		ADX:        calculate.Round(adx, 2),
		ATRRatio:   calculate.Round(atrRatio, 2),
		BBWidthPct: calculate.Round(bbwPct*100, 2),
	}
	curr := s.Last().Close

	switch r {
	case Trending:
		det.Direction = direction(curr, s.Back(19).Close)
		det.Strength = "MODERATE"
		if adx > 40 {
			det.Strength = "STRONG"
		}
		det.Consistency = consistency(s.Closes(), 20)
	case Ranging:
		hi := calculate.Last(calculate.RollingMax(s.Highs(), bandPeriod))
		lo := calculate.Last(calculate.RollingMin(s.Lows(), bandPeriod))
		if curr > 0 {
			det.RangePct = calculate.Round((hi-lo)/curr*100, 2)
		}
		det.Support = calculate.Round(lo, 2)
		det.Resistance = calculate.Round(hi, 2)
		det.PricePosition = rangePosition(curr, lo, hi)
	case Volatile:
		det.CurrentATR = calculate.Round(atr, 2)
		det.StopMultiplier = calculate.Round(atrRatio*1.5, 1)
	case Breakout:
		det.Direction = direction(curr, s.Back(4).Close)
		det.Note = "MOMENTUM SURGE - DO NOT FADE"
		det.ADXMomentum = adx
	default:
		det.Note = "Mixed signals"
		det.Stability = calculate.Round(d.Stability(), 2)
	}
	return det
}

func direction(curr, ref float64) indicators.Signal {
	if curr > ref {
		return indicators.Bullish
	}
	return indicators.Bearish
}

// consistency grades how one-sided the last period closes moved.
func consistency(closes []float64, period int) string {
	if len(closes) < period {
		return "UNKNOWN"
	}
	diffs := calculate.Diff(closes[len(closes)-period:])[1:]
	var up, down int
	for _, v := range diffs {
		switch {
		case v > 0:
			up++
		case v < 0:
			down++
		}
	}
	if len(diffs) == 0 {
		return "LOW"
	}
	if float64(max(up, down))/float64(len(diffs)) > 0.7 {
		return "HIGH"
	}
	return "LOW"
}

func rangePosition(price, support, resistance float64) string {
	size := resistance - support
	if size <= 0 {
		return "NEUTRAL"
	}
	switch pct := (price - support) / size * 100; {
	case pct > 75:
		return "NEAR_RESISTANCE"
	case pct < 25:
		return "NEAR_SUPPORT"
	}
	return "MID_RANGE"
}

// Stability is 1 minus the share of label transitions over the last 10
// assessments; 0.5 until five assessments exist.
func (d *Detector) Stability() float64 {
	if len(d.history) < 5 {
		return 0.5
	}
	recent := d.history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	transitions := 0
	for i := 1; i < len(recent); i++ {
		if recent[i].regime != recent[i-1].regime {
			transitions++
		}
	}
	return 1 - float64(transitions)/float64(len(recent)-1)
}

// Latest returns the most recent label, or UNKNOWN before the first assessment.
func (d *Detector) Latest() Regime {
	if len(d.history) == 0 {
		return Unknown
	}
	return d.history[len(d.history)-1].regime
}

var regimeEmoji = map[Regime]string{
	Trending: "📈",
	Ranging:  "↔️",
	Volatile: "⚡",
	Breakout: "🚀",
	Neutral:  "⚪",
	Unknown:  "❓",
}

// Emoji returns the display icon of r.
func (r Regime) Emoji() string {
	if e, ok := regimeEmoji[r]; ok {
		return e
	}
	return regimeEmoji[Unknown]
}

// Summary renders the latest assessment as a one-line status.
func (d *Detector) Summary() string {
	if len(d.history) == 0 {
		return "No regime data"
	}
	latest := d.history[len(d.history)-1]
	emoji := latest.regime.Emoji()

	filled := int(latest.confidence * 5)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 5-filled)

	stability := d.Stability()
	lock := "⚠️"
	switch {
	case stability > 0.7:
		lock = "🔒"
	case stability > 0.4:
		lock = "🔄"
	}
	return fmt.Sprintf("%s %s [%s] %.0f%% %s", emoji, latest.regime, bar, latest.confidence*100, lock)
}
