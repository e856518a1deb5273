package indicators

import (
	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/market"
)

// MovingAverage computes simple and exponential moving averages of closes.
type MovingAverage struct {
	Period int
	Shift  int

	smaMemo memo
	sma     []float64
	emaMemo memo
	ema     []float64
}

// NewMovingAverage creates a moving average over period bars.
func NewMovingAverage(period int) *MovingAverage {
	return &MovingAverage{Period: period}
}

func (m *MovingAverage) smaSeries(s *market.Series) []float64 {
	if s.Len() < m.Period {
		return nil
	}
	if m.smaMemo.fresh(s) {
		return m.sma
	}
	m.sma = shift(calculate.SMA(s.Closes(), m.Period), m.Shift)
	m.smaMemo.mark(s)
	return m.sma
}

func (m *MovingAverage) emaSeries(s *market.Series) []float64 {
	if s.Len() < m.Period {
		return nil
	}
	if m.emaMemo.fresh(s) {
		return m.ema
	}
	m.ema = shift(calculate.EMA(s.Closes(), m.Period), m.Shift)
	m.emaMemo.mark(s)
	return m.ema
}

// Value returns the latest SMA.
func (m *MovingAverage) Value(s *market.Series) (float64, bool) {
	return last(m.smaSeries(s))
}

// EMA returns the latest exponential moving average.
func (m *MovingAverage) EMA(s *market.Series) (float64, bool) {
	return last(m.emaSeries(s))
}

// Signal reports a price/SMA crossover (BUY/SELL) or which side of the
// average price is on (BULLISH/BEARISH).
func (m *MovingAverage) Signal(s *market.Series) Signal {
	prevMA, currMA, ok := lastTwo(m.smaSeries(s))
	if !ok {
		return Neutral
	}
	curr, prev := s.Back(0).Close, s.Back(1).Close

	switch {
	case prev <= prevMA && curr > currMA:
		return Buy
	case prev >= prevMA && curr < currMA:
		return Sell
	case curr > currMA:
		return Bullish
	case curr < currMA:
		return Bearish
	}
	return Neutral
}

// Trend reports which side of the SMA the latest close is on.
func (m *MovingAverage) Trend(s *market.Series) Signal {
	v, ok := m.Value(s)
	if !ok {
		return Neutral
	}
	switch c := s.Last().Close; {
	case c > v:
		return Bullish
	case c < v:
		return Bearish
	}
	return Neutral
}

// Deviation returns |close - SMA| / SMA for the latest bar.
func (m *MovingAverage) Deviation(s *market.Series) (float64, bool) {
	v, ok := m.Value(s)
	if !ok || v == 0 {
		return 0, false
	}
	d := (s.Last().Close - v) / v
	if d < 0 {
		d = -d
	}
	return d, true
}

func shift(values []float64, n int) []float64 {
	if n <= 0 {
		return values
	}
	out := make([]float64, len(values))
	for i := range out {
		if i < n {
			out[i] = calculate.NaN
			continue
		}
		out[i] = values[i-n]
	}
	return out
}
