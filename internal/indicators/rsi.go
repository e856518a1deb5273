package indicators

import (
	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/market"
)

// RSI is the Relative Strength Index with Wilder smoothing.
type RSI struct {
	Period     int
	Overbought float64
	Oversold   float64

	memo   memo
	values []float64
}

// NewRSI creates an RSI with the given period and zone thresholds.
func NewRSI(period int, overbought, oversold float64) *RSI {
	return &RSI{Period: period, Overbought: overbought, Oversold: oversold}
}

func (r *RSI) series(s *market.Series) []float64 {
	if s.Len() < r.Period+1 {
		return nil
	}
	if r.memo.fresh(s) {
		return r.values
	}

	delta := calculate.Diff(s.Closes())
	gain := make([]float64, len(delta))
	loss := make([]float64, len(delta))
	for i, d := range delta {
		switch {
		case isNaN(d):
			gain[i], loss[i] = calculate.NaN, calculate.NaN
		case d > 0:
			gain[i] = d
		default:
			loss[i] = -d
		}
	}
	avgGain := calculate.Wilder(gain, r.Period)
	avgLoss := calculate.Wilder(loss, r.Period)

	out := make([]float64, len(delta))
	for i := range out {
		if isNaN(avgGain[i]) || isNaN(avgLoss[i]) {
			out[i] = calculate.NaN
			continue
		}
		l := avgLoss[i]
		if l == 0 {
			l = 1e-9
		}
		out[i] = 100 - 100/(1+avgGain[i]/l)
	}

	r.values = out
	r.memo.mark(s)
	return out
}

// Value returns the latest RSI.
func (r *RSI) Value(s *market.Series) (float64, bool) {
	return last(r.series(s))
}

// Signal classifies the last two RSI readings.
func (r *RSI) Signal(s *market.Series) Signal {
	prev, curr, ok := lastTwo(r.series(s))
	if !ok {
		return Neutral
	}
	return ClassifyRSI(prev, curr, r.Overbought, r.Oversold)
}

// ClassifyRSI maps a pair of consecutive RSI readings to a signal: exits from
// the extreme zones are BUY/SELL, otherwise the zone or trend label.
func ClassifyRSI(prev, curr, overbought, oversold float64) Signal {
	switch {
	case prev < oversold && curr > oversold:
		return Buy
	case prev > overbought && curr < overbought:
		return Sell
	case curr < oversold:
		return Oversold
	case curr > overbought:
		return Overbought
	case curr > 55:
		return Bullish
	case curr < 45:
		return Bearish
	}
	return Neutral
}
