package indicators

import (
	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/market"
)

// ATR is the Average True Range, smoothed with an EMA of span Period.
type ATR struct {
	Period int

	memo   memo
	values []float64
}

// NewATR creates an ATR over period bars.
func NewATR(period int) *ATR {
	return &ATR{Period: period}
}

// Series returns the ATR series aligned to the bars, or nil when there are
// fewer than Period+1 bars.
func (a *ATR) Series(s *market.Series) []float64 {
	if s.Len() < a.Period+1 {
		return nil
	}
	if a.memo.fresh(s) {
		return a.values
	}
	tr := calculate.TrueRange(s.Highs(), s.Lows(), s.Closes())
	a.values = calculate.EMA(tr, a.Period)
	a.memo.mark(s)
	return a.values
}

// Value returns the latest ATR.
func (a *ATR) Value(s *market.Series) (float64, bool) {
	return last(a.Series(s))
}

// VolatilityState compares the latest ATR with the mean of the previous 20.
func (a *ATR) VolatilityState(s *market.Series) Volatility {
	const lookback = 20
	values := a.Series(s)
	if len(values) < lookback+1 {
		return VolatilityUnknown
	}
	n := len(values)
	curr := values[n-1]
	avg := calculate.Average(values[n-1-lookback : n-1])
	if isNaN(curr) || avg == 0 {
		return VolatilityNormal
	}
	switch ratio := curr / avg; {
	case ratio > 1.5:
		return VolatilityHigh
	case ratio < 0.8:
		return VolatilityLow
	}
	return VolatilityNormal
}
