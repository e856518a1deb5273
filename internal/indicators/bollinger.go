package indicators

import (
	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/market"
)

// Bands is one Bollinger Bands reading.
type Bands struct {
	Upper    float64
	Middle   float64
	Lower    float64
	Width    float64 // (upper-lower)/middle
	PercentB float64
}

// Bollinger computes Bollinger Bands around a simple moving average.
type Bollinger struct {
	Period    int
	Deviation float64

	memo   memo
	middle []float64
	upper  []float64
	lower  []float64
	width  []float64
}

// NewBollinger creates bands of period bars at deviation standard deviations.
func NewBollinger(period int, deviation float64) *Bollinger {
	return &Bollinger{Period: period, Deviation: deviation}
}

func (b *Bollinger) compute(s *market.Series) bool {
	if s.Len() < b.Period {
		return false
	}
	if b.memo.fresh(s) {
		return true
	}
	closes := s.Closes()
	b.middle = calculate.SMA(closes, b.Period)
	std := calculate.Std(closes, b.Period)
	n := len(closes)
	b.upper = make([]float64, n)
	b.lower = make([]float64, n)
	b.width = make([]float64, n)
	for i := 0; i < n; i++ {
		b.upper[i] = b.middle[i] + std[i]*b.Deviation
		b.lower[i] = b.middle[i] - std[i]*b.Deviation
		mid := b.middle[i]
		if mid == 0 {
			mid = 1e-9
		}
		b.width[i] = (b.upper[i] - b.lower[i]) / mid
	}
	b.memo.mark(s)
	return true
}

// Value returns the latest bands.
func (b *Bollinger) Value(s *market.Series) (Bands, bool) {
	if !b.compute(s) {
		return Bands{}, false
	}
	i := len(b.upper) - 1
	if isNaN(b.upper[i]) {
		return Bands{}, false
	}
	rng := b.upper[i] - b.lower[i]
	if rng == 0 {
		rng = 1e-9
	}
	return Bands{
		Upper:    b.upper[i],
		Middle:   b.middle[i],
		Lower:    b.lower[i],
		Width:    b.width[i],
		PercentB: (s.Last().Close - b.lower[i]) / rng * 100,
	}, true
}

// Widths returns the band-width series aligned to the bars.
func (b *Bollinger) Widths(s *market.Series) []float64 {
	if !b.compute(s) {
		return nil
	}
	return b.width
}

// Position reports where the latest close sits relative to the bands.
func (b *Bollinger) Position(s *market.Series) Signal {
	v, ok := b.Value(s)
	if !ok {
		return Neutral
	}
	switch c := s.Last().Close; {
	case c > v.Upper:
		return Overbought
	case c < v.Lower:
		return Oversold
	case c > v.Middle:
		return Bullish
	case c < v.Middle:
		return Bearish
	}
	return Neutral
}

// Bounce reports a close back inside the bands after closing outside them.
func (b *Bollinger) Bounce(s *market.Series) Signal {
	if !b.compute(s) || s.Len() < 2 {
		return Neutral
	}
	prevLower, currLower, ok := lastTwo(b.lower)
	if !ok {
		return Neutral
	}
	prevUpper, currUpper, _ := lastTwo(b.upper)
	curr, prev := s.Back(0).Close, s.Back(1).Close
	switch {
	case prev <= prevLower && curr > currLower:
		return Buy
	case prev >= prevUpper && curr < currUpper:
		return Sell
	}
	return Neutral
}
