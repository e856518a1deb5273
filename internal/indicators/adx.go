package indicators

import (
	"math"

	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/market"
)

// ADX is the Average Directional Index, smoothed with EMAs of span Period.
type ADX struct {
	Period int

	memo   memo
	values []float64
}

// NewADX creates an ADX over period bars.
func NewADX(period int) *ADX {
	return &ADX{Period: period}
}

// Series returns the ADX series aligned to the bars. Missing values are zero.
func (a *ADX) Series(s *market.Series) []float64 {
	if s.Len() < 2 {
		return nil
	}
	if a.memo.fresh(s) {
		return a.values
	}
	highs, lows := s.Highs(), s.Lows()
	tr := calculate.EMA(calculate.TrueRange(highs, lows, s.Closes()), a.Period)
	plusDM, minusDM := calculate.DirectionalMovement(highs, lows)
	plus := calculate.EMA(plusDM, a.Period)
	minus := calculate.EMA(minusDM, a.Period)

	dx := make([]float64, len(tr))
	for i := range tr {
		pdi := 100 * plus[i] / tr[i]
		mdi := 100 * minus[i] / tr[i]
		den := pdi + mdi
		if den == 0 {
			den = 1
		}
		dx[i] = 100 * math.Abs(pdi-mdi) / den
	}
	a.values = calculate.FillNaN(calculate.EMA(dx, a.Period), 0)
	a.memo.mark(s)
	return a.values
}

// Value returns the latest ADX.
func (a *ADX) Value(s *market.Series) (float64, bool) {
	return last(a.Series(s))
}
