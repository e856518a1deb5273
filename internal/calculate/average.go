package calculate

import "math"

// NaN marks positions where a derived series has no value yet.
var NaN = math.NaN()

// IsNaN is shorthand for math.IsNaN.
func IsNaN(v float64) bool { return math.IsNaN(v) }

// Average calculates the simple average of the non-NaN values.
func Average(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Last returns the final element, or NaN for an empty slice.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return NaN
	}
	return values[len(values)-1]
}

// Prev returns the element before the final one, or NaN.
func Prev(values []float64) float64 {
	if len(values) < 2 {
		return NaN
	}
	return values[len(values)-2]
}

// Round rounds v to the given number of decimals.
func Round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
