package regime

import (
	"math"
	"testing"
	"time"

	"github.com/Alias1177/goldscalper/internal/config"
	"github.com/Alias1177/goldscalper/internal/indicators"
	"github.com/Alias1177/goldscalper/internal/market"
	"github.com/Alias1177/goldscalper/models"
)

var defaultThresholds = Thresholds{
	ADXTrending:      25,
	ADXRanging:       20,
	ATRVolatileRatio: 1.5,
	BBWRangingPct:    0.05,
}

func generateTestBars(n int, f func(i int) models.Bar) *market.Series {
	t0 := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		b := f(i)
		b.Time = t0.Add(time.Duration(i) * 5 * time.Minute)
		if b.Volume == 0 {
			b.Volume = 100
		}
		bars[i] = b
	}
	return market.MustSeries(bars)
}

func wave(i int) models.Bar {
	c := 2000 + 5*math.Sin(float64(i)/7)
	o := 2000 + 5*math.Sin(float64(i-1)/7)
	return models.Bar{Open: o, High: math.Max(o, c) + 1, Low: math.Min(o, c) - 1, Close: c}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name           string
		adx, ratio     float64
		bbwPct         float64
		breakout       bool
		want           Regime
		wantConfidence float64
	}{
		{"trending with stable atr", 30, 1.0, 0.10, false, Trending, 0.45},
		{"strong trend", 50, 1.0, 0.10, false, Trending, 0.95},
		{"tight range", 10, 1.0, 0.01, false, Ranging, 0.85},
		{"volatile", 22, 2.2, 0.10, false, Volatile, 1.0},
		{"nothing stands out", 22, 1.0, 0.10, false, Neutral, 0.30},
		{"breakout beats trend", 60, 1.0, 0.10, true, Breakout, 1.0},
		{"breakout beats volatility", 22, 3.0, 0.10, true, Breakout, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conf, scores := Score(tt.adx, tt.ratio, tt.bbwPct, tt.breakout, defaultThresholds)
			if got != tt.want {
				t.Errorf("Score() = %s (scores %v), want %s", got, scores, tt.want)
			}
			if math.Abs(conf-tt.wantConfidence) > 1e-9 {
				t.Errorf("Score() confidence = %v, want %v", conf, tt.wantConfidence)
			}
			if scores[Neutral] != 30 {
				t.Errorf("NEUTRAL baseline = %v, want 30", scores[Neutral])
			}
		})
	}
}

func TestScoreWinnerIsHighest(t *testing.T) {
	for adx := 0.0; adx <= 60; adx += 2.5 {
		for ratio := 0.5; ratio <= 3; ratio += 0.25 {
			got, _, scores := Score(adx, ratio, 0.03, false, defaultThresholds)
			for r, s := range scores {
				if s > scores[got] {
					t.Fatalf("Score(%v, %v) = %s with %v, but %s scored %v", adx, ratio, got, scores[got], r, s)
				}
			}
		}
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name     string
		regime   Regime
		highVol  bool
		wantMode models.Mode
		wantLot  float64
	}{
		{"trending", Trending, false, models.ModeTrend, 1.0},
		{"ranging", Ranging, false, models.ModeSniper, 1.0},
		{"volatile", Volatile, true, models.ModeBreakout, 0.7},
		{"breakout", Breakout, true, models.ModeTrend, 1.2},
		{"neutral", Neutral, false, models.ModeSniper, 0.8},
		{"unknown", Unknown, false, models.ModeSniper, 0.8},
		{"volatile range", Ranging, true, models.ModeBreakout, 0.7},
		{"volatile trend", Trending, true, models.ModeTrend, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommend(Assessment{Regime: tt.regime, Details: Details{HighVolatility: tt.highVol}})
			if rec.Mode != tt.wantMode || math.Abs(rec.LotMultiplier-tt.wantLot) > 1e-9 {
				t.Errorf("Recommend(%s) = %s x%v, want %s x%v", tt.regime, rec.Mode, rec.LotMultiplier, tt.wantMode, tt.wantLot)
			}
		})
	}

	// The table itself must not be mutated by the high-volatility override.
	if rec := Recommend(Assessment{Regime: Trending}); rec.LotMultiplier != 1.0 {
		t.Errorf("Recommend(TRENDING) after override = %v, want 1.0", rec.LotMultiplier)
	}
}

func newTestDetector() *Detector {
	d := NewDetector(config.DefaultOptions().Regime, "XAUUSD")
	fixed := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }
	return d
}

func TestDetectInsufficientData(t *testing.T) {
	d := newTestDetector()
	got := d.Detect(generateTestBars(59, wave))
	if got.Regime != Unknown || got.Details.Reason == "" {
		t.Errorf("Detect(59 bars) = %+v, want UNKNOWN with reason", got)
	}
	if d.Latest() != Unknown {
		t.Errorf("insufficient data must not be recorded, Latest() = %s", d.Latest())
	}
}

func TestDetectIdempotent(t *testing.T) {
	d := newTestDetector()
	s := generateTestBars(300, wave)

	first := d.Detect(s)
	if !d.Calibrated() {
		t.Fatalf("detector not calibrated with 300 bars")
	}
	th := d.Thresholds()
	if th.ATRVolatileRatio < 1.3 || th.ATRVolatileRatio > 2.5 {
		t.Errorf("calibrated ATR ratio = %v, want within [1.3, 2.5]", th.ATRVolatileRatio)
	}
	if th.BBWRangingPct < 0.01 {
		t.Errorf("calibrated width threshold = %v, want >= 0.01", th.BBWRangingPct)
	}

	second := d.Detect(s)
	if first.Regime != second.Regime || first.Confidence != second.Confidence {
		t.Errorf("Detect() not idempotent: %s/%v then %s/%v",
			first.Regime, first.Confidence, second.Regime, second.Confidence)
	}
}

func TestCalibrateWithoutWidths(t *testing.T) {
	d := newTestDetector()
	// Quiet bars then a sustained wide range: q75/median of ATR sits near 1.
	s := generateTestBars(300, func(i int) models.Bar {
		if i < 100 {
			return models.Bar{Open: 2000, High: 2000.1, Low: 1999.9, Close: 2000}
		}
		return models.Bar{Open: 2000, High: 2005, Low: 1995, Close: 2000}
	})
	widths := make([]float64, s.Len())
	for i := range widths {
		widths[i] = math.NaN()
	}
	d.widthMemo.series, d.widthMemo.version, d.widthMemo.values = s, s.Version(), widths

	if d.Calibrate(s) {
		t.Fatal("Calibrate() = true without band widths, want false")
	}
	if d.Calibrated() {
		t.Error("Calibrated() = true after a partial calibration")
	}
	th := d.Thresholds()
	if th.BBWRangingPct != defaultThresholds.BBWRangingPct {
		t.Errorf("width threshold = %v, want seed %v", th.BBWRangingPct, defaultThresholds.BBWRangingPct)
	}
	if th.ATRVolatileRatio != 1.3 {
		t.Errorf("ATR ratio = %v, want calibrated floor 1.3", th.ATRVolatileRatio)
	}
}

func TestDetectBreakout(t *testing.T) {
	s := generateTestBars(120, func(i int) models.Bar {
		if i == 119 {
			return models.Bar{Open: 100, High: 105.2, Low: 99.9, Close: 105}
		}
		c := 100 + 0.2*float64(i%2)
		return models.Bar{Open: c, High: c + 0.1, Low: c - 0.1, Close: c}
	})

	got := newTestDetector().Detect(s)
	if got.Regime != Breakout || got.Confidence != 1 {
		t.Fatalf("Detect() = %s/%v (scores %v), want BREAKOUT/1", got.Regime, got.Confidence, got.Scores)
	}
	if got.Details.Direction != indicators.Bullish {
		t.Errorf("breakout direction = %s, want BULLISH", got.Details.Direction)
	}
	if got.Details.Note == "" {
		t.Errorf("breakout note missing")
	}
}

func TestStability(t *testing.T) {
	d := newTestDetector()
	if got := d.Stability(); got != 0.5 {
		t.Errorf("Stability() with no history = %v, want 0.5", got)
	}

	for _, r := range []Regime{Trending, Trending, Trending, Trending, Trending} {
		d.record(r, 0.8)
	}
	if got := d.Stability(); got != 1 {
		t.Errorf("Stability() steady = %v, want 1", got)
	}

	for _, r := range []Regime{Ranging, Trending, Ranging, Trending, Ranging} {
		d.record(r, 0.5)
	}
	// last 10: T T T T T R T R T R -> 5 transitions over 9 gaps
	if got, want := d.Stability(), 1-5.0/9; math.Abs(got-want) > 1e-9 {
		t.Errorf("Stability() choppy = %v, want %v", got, want)
	}

	for i := 0; i < 150; i++ {
		d.record(Neutral, 0.3)
	}
	if len(d.history) != 100 {
		t.Errorf("history length = %d, want capped at 100", len(d.history))
	}
}

func TestSummary(t *testing.T) {
	d := newTestDetector()
	if got := d.Summary(); got != "No regime data" {
		t.Errorf("Summary() = %q, want %q", got, "No regime data")
	}
	d.record(Trending, 0.8)
	if got, want := d.Summary(), "📈 TRENDING [████░] 80% 🔄"; got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
