package indicators

import (
	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/market"
)

// Stochastic is the slow stochastic oscillator.
type Stochastic struct {
	KPeriod    int
	DPeriod    int
	Slowing    int
	Overbought float64
	Oversold   float64

	memo memo
	k    []float64
	d    []float64
}

// NewStochastic creates a stochastic oscillator.
func NewStochastic(kPeriod, dPeriod, slowing int, overbought, oversold float64) *Stochastic {
	return &Stochastic{KPeriod: kPeriod, DPeriod: dPeriod, Slowing: slowing, Overbought: overbought, Oversold: oversold}
}

func (st *Stochastic) compute(s *market.Series) bool {
	if s.Len() < st.KPeriod {
		return false
	}
	if st.memo.fresh(s) {
		return true
	}
	closes := s.Closes()
	lowMin := calculate.RollingMin(s.Lows(), st.KPeriod)
	highMax := calculate.RollingMax(s.Highs(), st.KPeriod)
	raw := make([]float64, len(closes))
	for i := range closes {
		den := highMax[i] - lowMin[i]
		if den == 0 {
			den = 1e-9
		}
		raw[i] = 100 * (closes[i] - lowMin[i]) / den
	}
	st.k = calculate.SMA(raw, st.Slowing)
	st.d = calculate.SMA(st.k, st.DPeriod)
	st.memo.mark(s)
	return true
}

// Value returns the latest %K and %D.
func (st *Stochastic) Value(s *market.Series) (k, d float64, ok bool) {
	if !st.compute(s) {
		return 0, 0, false
	}
	k, ok = last(st.k)
	if !ok {
		return 0, 0, false
	}
	return k, st.d[len(st.d)-1], true
}

// Signal classifies the last two %K/%D readings.
func (st *Stochastic) Signal(s *market.Series) Signal {
	if !st.compute(s) {
		return Neutral
	}
	prevK, currK, ok := lastTwo(st.k)
	if !ok {
		return Neutral
	}
	prevD, currD := calculate.Prev(st.d), calculate.Last(st.d)
	bullCross := prevK <= prevD && currK > currD
	bearCross := prevK >= prevD && currK < currD

	switch {
	case currK < st.Oversold && bullCross:
		return Buy
	case currK > st.Overbought && bearCross:
		return Sell
	case bullCross:
		return BullishCross
	case bearCross:
		return BearishCross
	case currK < st.Oversold:
		return Oversold
	case currK > st.Overbought:
		return Overbought
	}
	return Neutral
}
