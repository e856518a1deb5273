package calculate

import "math"

// TrueRange returns max(h-l, |h-prevC|, |l-prevC|) per bar; the first bar uses h-l.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(high))
	for i := range high {
		tr := high[i] - low[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
			tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		}
		out[i] = tr
	}
	return out
}

// DirectionalMovement returns +DM and -DM per bar (zero for the first bar).
func DirectionalMovement(high, low []float64) (plus, minus []float64) {
	plus = make([]float64, len(high))
	minus = make([]float64, len(high))
	for i := 1; i < len(high); i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plus[i] = up
		}
		if down > up && down > 0 {
			minus[i] = down
		}
	}
	return plus, minus
}

// Diff returns values[i]-values[i-1] with NaN at index 0.
func Diff(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}
