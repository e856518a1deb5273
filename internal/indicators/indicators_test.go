package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/Alias1177/goldscalper/internal/market"
	"github.com/Alias1177/goldscalper/models"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func seriesOf(closes ...float64) *market.Series {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Time: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 100}
	}
	return market.MustSeries(bars)
}

func flat(n int, c float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestClassifyRSI(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr float64
		want       Signal
	}{
		{"oversold exit", 28, 32, Buy},
		{"overbought exit", 72, 68, Sell},
		{"deep oversold", 25, 22, Oversold},
		{"deep overbought", 75, 78, Overbought},
		{"bullish", 50, 60, Bullish},
		{"bearish", 50, 40, Bearish},
		{"neutral", 50, 50, Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyRSI(tt.prev, tt.curr, 70, 30); got != tt.want {
				t.Errorf("ClassifyRSI(%v, %v) = %v, want %v", tt.prev, tt.curr, got, tt.want)
			}
		})
	}
}

func TestUnavailableOnShortSeries(t *testing.T) {
	s := seriesOf(1, 2, 3)

	if _, ok := NewMovingAverage(5).Value(s); ok {
		t.Errorf("MovingAverage.Value() ok on 3 bars")
	}
	if _, ok := NewRSI(14, 70, 30).Value(s); ok {
		t.Errorf("RSI.Value() ok on 3 bars")
	}
	if _, ok := NewMACD(12, 26, 9).Value(s); ok {
		t.Errorf("MACD.Value() ok on 3 bars")
	}
	if _, ok := NewBollinger(20, 2).Value(s); ok {
		t.Errorf("Bollinger.Value() ok on 3 bars")
	}
	if _, ok := NewATR(14).Value(s); ok {
		t.Errorf("ATR.Value() ok on 3 bars")
	}
	if _, _, ok := NewStochastic(14, 3, 3, 80, 20).Value(s); ok {
		t.Errorf("Stochastic.Value() ok on 3 bars")
	}
	if _, ok := NewFibonacci(100, 0.002).Levels(s); ok {
		t.Errorf("Fibonacci.Levels() ok on 3 bars")
	}
	if got := NewRSI(14, 70, 30).Signal(s); got != Neutral {
		t.Errorf("RSI.Signal() = %v, want NEUTRAL", got)
	}
	if got := NewATR(14).VolatilityState(s); got != VolatilityUnknown {
		t.Errorf("ATR.VolatilityState() = %v, want UNKNOWN", got)
	}
}

func TestMovingAverageRefreshesOnIntrabarUpdate(t *testing.T) {
	s := seriesOf(1, 2, 3)
	ma := NewMovingAverage(2)

	if v, _ := ma.Value(s); v != 2.5 {
		t.Fatalf("Value() = %v, want 2.5", v)
	}
	b := s.Last()
	b.Close = 5
	if err := s.UpdateLast(b); err != nil {
		t.Fatal(err)
	}
	if v, _ := ma.Value(s); v != 3.5 {
		t.Errorf("Value() after update = %v, want 3.5", v)
	}
}

func TestMovingAverageSignal(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   Signal
	}{
		{"cross up", []float64{10, 10, 9, 12}, Buy},
		{"cross down", []float64{10, 10, 11, 8}, Sell},
		{"above", []float64{10, 11, 12, 13}, Bullish},
		{"below", []float64{13, 12, 11, 10}, Bearish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewMovingAverage(2).Signal(seriesOf(tt.closes...)); got != tt.want {
				t.Errorf("Signal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStochasticSignal(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   Signal
	}{
		{"overbought", []float64{10, 11, 12, 13, 14}, Overbought},
		{"oversold", []float64{14, 13, 12, 11, 10}, Oversold},
		{"bullish cross", []float64{10, 10, 10, 10, 10.2}, BullishCross},
		{"bearish cross", []float64{10, 10, 10, 10, 9.8}, BearishCross},
		{"cross up from oversold", []float64{30, 25, 20, 15, 10, 10.5}, Buy},
		{"cross down from overbought", []float64{10, 15, 20, 25, 30, 29.5}, Sell},
		{"flat", []float64{10, 10, 10, 10, 10}, Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewStochastic(3, 2, 1, 80, 20).Signal(seriesOf(tt.closes...)); got != tt.want {
				t.Errorf("Signal(%v) = %v, want %v", tt.closes, got, tt.want)
			}
		})
	}
}

func TestMACDCrossover(t *testing.T) {
	tests := []struct {
		name      string
		closes    []float64
		want      Signal
		wantState Signal
	}{
		{"line crosses above signal", []float64{10, 10, 10, 10, 12}, Buy, Bullish},
		{"line crosses below signal", []float64{10, 10, 10, 10, 8}, Sell, Bearish},
		{"no cross", []float64{10, 10, 10, 10, 10}, Neutral, Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMACD(2, 3, 2)
			s := seriesOf(tt.closes...)
			if got := m.Signal(s); got != tt.want {
				t.Errorf("Signal(%v) = %v, want %v", tt.closes, got, tt.want)
			}
			if got := m.State(s); got != tt.wantState {
				t.Errorf("State(%v) = %v, want %v", tt.closes, got, tt.wantState)
			}
		})
	}
}

func TestRSIRisingSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	v, ok := NewRSI(14, 70, 30).Value(seriesOf(closes...))
	if !ok || v < 99 {
		t.Errorf("Value() = %v, %v, want ~100", v, ok)
	}
}

func TestATRConstantRange(t *testing.T) {
	s := seriesOf(flat(30, 100)...)
	atr := NewATR(14)
	v, ok := atr.Value(s)
	if !ok || math.Abs(v-1) > 1e-9 {
		t.Errorf("Value() = %v, %v, want 1", v, ok)
	}
	if got := atr.VolatilityState(s); got != VolatilityNormal {
		t.Errorf("VolatilityState() = %v, want NORMAL_VOLATILITY", got)
	}
}

func TestBollingerFlat(t *testing.T) {
	s := seriesOf(flat(25, 100)...)
	bb := NewBollinger(20, 2)
	v, ok := bb.Value(s)
	if !ok || v.Upper != 100 || v.Lower != 100 || v.Width != 0 {
		t.Errorf("Value() = %+v, %v", v, ok)
	}
	if got := bb.Position(s); got != Neutral {
		t.Errorf("Position() = %v, want NEUTRAL", got)
	}
}

func TestFibonacciUpSwing(t *testing.T) {
	bars := make([]models.Bar, 100)
	for i := range bars {
		bars[i] = models.Bar{Time: t0.Add(time.Duration(i) * time.Minute), Open: 100, High: 100.5, Low: 99.5, Close: 100}
	}
	bars[10].Low = 90
	bars[80].High = 110
	s := market.MustSeries(bars)

	fib := NewFibonacci(100, 0.002)
	lv, ok := fib.Levels(s)
	if !ok {
		t.Fatal("Levels() not ok")
	}
	if lv.Trend != SwingUp || lv.LowIndex != 10 || lv.HighIndex != 80 {
		t.Errorf("Levels() = %+v, want UP swing 10->80", lv)
	}

	tests := []struct {
		ratio float64
		want  float64
	}{
		{0, 110},
		{0.5, 100},
		{1, 90},
		{1.272, 115.44},
	}
	for _, tt := range tests {
		if got := lv.Level(tt.ratio); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Level(%v) = %v, want %v", tt.ratio, got, tt.want)
		}
	}

	if got := lv.Zone(100); got != ZoneGolden {
		t.Errorf("Zone(100) = %v, want IN_GOLDEN_ZONE", got)
	}
	if got := lv.Zone(105); got != ZoneAbove {
		t.Errorf("Zone(105) = %v, want ABOVE_ZONE", got)
	}
	if got := lv.Zone(92); got != ZoneBelow {
		t.Errorf("Zone(92) = %v, want BELOW_ZONE", got)
	}
}

func TestFibonacciRejectsSmallSwing(t *testing.T) {
	if _, ok := NewFibonacci(100, 0.05).Levels(seriesOf(flat(100, 100)...)); ok {
		t.Errorf("Levels() ok for a 1%% swing with 5%% minimum")
	}
}
