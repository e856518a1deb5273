package pattern

import (
	"testing"
	"time"

	"github.com/Alias1177/goldscalper/internal/indicators"
	"github.com/Alias1177/goldscalper/internal/market"
	"github.com/Alias1177/goldscalper/models"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

// withTail builds 30 quiet filler bars followed by tail.
func withTail(tail ...models.Bar) *market.Series {
	var bars []models.Bar
	for i := 0; i < 30; i++ {
		bars = append(bars, models.Bar{Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 100})
	}
	bars = append(bars, tail...)
	for i := range bars {
		bars[i].Time = t0.Add(time.Duration(i) * time.Minute)
		if bars[i].Volume == 0 {
			bars[i].Volume = 100
		}
	}
	return market.MustSeries(bars)
}

func TestAnalyzeBullishEngulfing(t *testing.T) {
	s := withTail(
		models.Bar{Open: 105, High: 105.5, Low: 99.5, Close: 100},
		// body 6 vs prior 5 (ratio 1.2), close position 0.80
		models.Bar{Open: 100, High: 108, Low: 98, Close: 106},
	)

	got := NewAnalyzer().Analyze(s, 2.0, indicators.Neutral)

	if !got.Has(BullishEngulfing) {
		t.Fatalf("Analyze() patterns = %v, want BULLISH_ENGULFING", got.Patterns)
	}
	if got.Score <= 0 {
		t.Errorf("Analyze() score = %d, want positive", got.Score)
	}
	if got.Score != 4 || got.Signal != Bullish {
		t.Errorf("Analyze() = %d %s, want 4 BULLISH", got.Score, got.Signal)
	}
	if got.CloseStrength != 0.8 {
		t.Errorf("CloseStrength = %v, want 0.8", got.CloseStrength)
	}
}

func TestAnalyzeThreeSoldiersWithMarubozu(t *testing.T) {
	s := withTail(
		models.Bar{Open: 100, High: 101.1, Low: 99.9, Close: 101},
		models.Bar{Open: 101, High: 102.1, Low: 100.9, Close: 102},
		models.Bar{Open: 102, High: 103.1, Low: 101.9, Close: 103},
	)

	got := NewAnalyzer().Analyze(s, 2.0, indicators.Neutral)

	if !got.Has(ThreeWhiteSoldiers) || !got.Has(BullishMarubozu) {
		t.Fatalf("Analyze() patterns = %v", got.Patterns)
	}
	if got.Score != 6 || got.Signal != StrongBullish || got.Strength != StrengthHigh {
		t.Errorf("Analyze() = %d %s %s, want 6 STRONG_BULLISH HIGH", got.Score, got.Signal, got.Strength)
	}
}

func TestAnalyzeDefaults(t *testing.T) {
	tests := []struct {
		name string
		s    *market.Series
		note string
	}{
		{"short series", market.MustSeries([]models.Bar{{Time: t0, Open: 1, High: 2, Low: 0, Close: 1}}), "Insufficient data for pattern analysis"},
		{"flat candle", withTail(models.Bar{Open: 100, High: 100, Low: 100, Close: 100}), "Flat candle (range 0)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAnalyzer().Analyze(tt.s, 1.0, indicators.Neutral)
			if got.Signal != Neutral || got.Score != 0 || got.VolumeMultiplier != 1 || got.Note != tt.note {
				t.Errorf("Analyze() = %+v", got)
			}
		})
	}
}

func TestNoisePenalty(t *testing.T) {
	s := withTail(
		models.Bar{Open: 105, High: 105.5, Low: 99.5, Close: 100},
		models.Bar{Open: 100, High: 108, Low: 98, Close: 106},
	)
	// range 10 < 0.3 * 40 halves the score: 3 * 0.5 * 1.5 = 2.25
	got := NewAnalyzer().Analyze(s, 40, indicators.Neutral)
	if got.Score != 2 {
		t.Errorf("Analyze() score = %d, want 2", got.Score)
	}
}
