package calculate

import (
	"math"
	"sort"
)

// rolling applies fn to every full window; windows containing NaN yield NaN.
func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if window < 1 || i+1 < window {
			out[i] = math.NaN()
			continue
		}
		w := values[i+1-window : i+1]
		hasNaN := false
		for _, v := range w {
			if math.IsNaN(v) {
				hasNaN = true
				break
			}
		}
		if hasNaN {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(w)
	}
	return out
}

// SMA is the rolling simple moving average.
func SMA(values []float64, window int) []float64 {
	return rolling(values, window, Average)
}

// Std is the rolling sample standard deviation (ddof = 1).
func Std(values []float64, window int) []float64 {
	return rolling(values, window, SampleStd)
}

// RollingMin is the rolling minimum.
func RollingMin(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Min(m, v)
		}
		return m
	})
}

// RollingMax is the rolling maximum.
func RollingMax(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Max(m, v)
		}
		return m
	})
}

// SampleStd returns the sample standard deviation of w.
func SampleStd(w []float64) float64 {
	if len(w) < 2 {
		return math.NaN()
	}
	mean := Average(w)
	var ss float64
	for _, v := range w {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(w)-1))
}

// Quantile returns the q-quantile of the non-NaN values using linear
// interpolation between closest ranks.
func Quantile(values []float64, q float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	pos := q * float64(len(clean)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return clean[lo]
	}
	frac := pos - float64(lo)
	return clean[lo] + (clean[hi]-clean[lo])*frac
}

// FillNaN replaces NaN values with v in place and returns the slice.
func FillNaN(values []float64, v float64) []float64 {
	for i := range values {
		if math.IsNaN(values[i]) {
			values[i] = v
		}
	}
	return values
}
