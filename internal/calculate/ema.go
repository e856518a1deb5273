package calculate

import "math"

// EMA computes an exponential moving average with alpha = 2/(span+1), seeded
// with the first valid value (no bias adjustment). Leading NaNs stay NaN.
func EMA(values []float64, span int) []float64 {
	if span < 1 {
		span = 1
	}
	return EWM(values, 2.0/float64(span+1), 0)
}

// EWM computes an exponentially weighted mean with the given alpha. Output is
// NaN until minPeriods valid observations have been seen. NaN inputs after the
// seed carry the previous mean forward.
func EWM(values []float64, alpha float64, minPeriods int) []float64 {
	out := make([]float64, len(values))
	mean := math.NaN()
	seen := 0
	for i, v := range values {
		if math.IsNaN(v) {
			if seen >= minPeriods && seen > 0 {
				out[i] = mean
			} else {
				out[i] = math.NaN()
			}
			continue
		}
		seen++
		if math.IsNaN(mean) {
			mean = v
		} else {
			mean = alpha*v + (1-alpha)*mean
		}
		if seen >= minPeriods {
			out[i] = mean
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Wilder computes Wilder's smoothing (alpha = 1/period) with min periods = period.
func Wilder(values []float64, period int) []float64 {
	if period < 1 {
		period = 1
	}
	return EWM(values, 1.0/float64(period), period)
}
