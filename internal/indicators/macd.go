package indicators

import (
	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/market"
)

// MACDValue is one reading of the MACD line, its signal line and histogram.
type MACDValue struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD is the Moving Average Convergence/Divergence indicator.
type MACD struct {
	Fast, Slow, SignalPeriod int

	memo   memo
	line   []float64
	signal []float64
	hist   []float64
}

// NewMACD creates a MACD with the given fast, slow and signal spans.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{Fast: fast, Slow: slow, SignalPeriod: signal}
}

func (m *MACD) compute(s *market.Series) bool {
	if s.Len() < m.Slow {
		return false
	}
	if m.memo.fresh(s) {
		return true
	}
	closes := s.Closes()
	fast := calculate.EMA(closes, m.Fast)
	slow := calculate.EMA(closes, m.Slow)

	m.line = make([]float64, len(closes))
	for i := range closes {
		m.line[i] = fast[i] - slow[i]
	}
	m.signal = calculate.EMA(m.line, m.SignalPeriod)
	m.hist = make([]float64, len(closes))
	for i := range closes {
		m.hist[i] = m.line[i] - m.signal[i]
	}
	m.memo.mark(s)
	return true
}

// Value returns the latest MACD reading.
func (m *MACD) Value(s *market.Series) (MACDValue, bool) {
	if !m.compute(s) {
		return MACDValue{}, false
	}
	n := len(m.line) - 1
	if isNaN(m.line[n]) {
		return MACDValue{}, false
	}
	return MACDValue{Line: m.line[n], Signal: m.signal[n], Histogram: m.hist[n]}, true
}

// State reports the histogram sign as BULLISH, BEARISH or NEUTRAL.
func (m *MACD) State(s *market.Series) Signal {
	v, ok := m.Value(s)
	switch {
	case !ok:
		return Neutral
	case v.Histogram > 0:
		return Bullish
	case v.Histogram < 0:
		return Bearish
	}
	return Neutral
}

// Signal reports a line/signal crossover on the last bar.
func (m *MACD) Signal(s *market.Series) Signal {
	if !m.compute(s) {
		return Neutral
	}
	prevLine, currLine, ok := lastTwo(m.line)
	if !ok {
		return Neutral
	}
	prevSig, currSig, _ := lastTwo(m.signal)
	switch {
	case prevLine <= prevSig && currLine > currSig:
		return Buy
	case prevLine >= prevSig && currLine < currSig:
		return Sell
	}
	return Neutral
}
