package indicators

import "github.com/Alias1177/goldscalper/internal/market"

// memo remembers which series version a derived result was computed for.
// Each indicator instance owns its memos; they are never shared.
type memo struct {
	series  *market.Series
	version uint64
	valid   bool
}

func (m *memo) fresh(s *market.Series) bool {
	return m.valid && m.series == s && m.version == s.Version()
}

func (m *memo) mark(s *market.Series) {
	m.series = s
	m.version = s.Version()
	m.valid = true
}

// lastTwo returns the final two values of a derived series, with ok false
// when either is missing.
func lastTwo(values []float64) (prev, curr float64, ok bool) {
	n := len(values)
	if n < 2 {
		return 0, 0, false
	}
	prev, curr = values[n-2], values[n-1]
	if isNaN(prev) || isNaN(curr) {
		return 0, 0, false
	}
	return prev, curr, true
}

func last(values []float64) (float64, bool) {
	if len(values) == 0 || isNaN(values[len(values)-1]) {
		return 0, false
	}
	return values[len(values)-1], true
}

func isNaN(v float64) bool { return v != v }
