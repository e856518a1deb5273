package market

import (
	"errors"
	"fmt"

	"github.com/Alias1177/goldscalper/models"
)

// ErrOutOfOrder is returned when a bar does not advance the series in time.
var ErrOutOfOrder = errors.New("bar timestamp out of order")

// Series is a time-ordered, newest-last bar series. Every change to its
// content increments Version, which indicators use as their cache key.
type Series struct {
	bars    []models.Bar
	version uint64
}

// NewSeries builds a series from bars, oldest first.
func NewSeries(bars []models.Bar) (*Series, error) {
	s := &Series{}
	if err := s.Sync(bars); err != nil {
		return nil, err
	}
	return s, nil
}

// MustSeries is NewSeries for callers holding bars that are known to be ordered.
func MustSeries(bars []models.Bar) *Series {
	s, err := NewSeries(bars)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of bars.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bars)
}

// Version returns the content version counter.
func (s *Series) Version() uint64 { return s.version }

// Bars returns the underlying bars. Callers must not modify them.
func (s *Series) Bars() []models.Bar { return s.bars }

// Back returns the bar n positions from the end (0 = newest).
func (s *Series) Back(n int) models.Bar { return s.bars[len(s.bars)-1-n] }

// Last returns the newest bar.
func (s *Series) Last() models.Bar { return s.Back(0) }

// Append adds a bar that must be strictly newer than the current last bar.
func (s *Series) Append(b models.Bar) error {
	if n := len(s.bars); n > 0 && !b.Time.After(s.bars[n-1].Time) {
		return fmt.Errorf("append %s after %s: %w", b.Time, s.bars[n-1].Time, ErrOutOfOrder)
	}
	s.bars = append(s.bars, b)
	s.version++
	return nil
}

// UpdateLast revises the newest bar in place (intrabar update).
func (s *Series) UpdateLast(b models.Bar) error {
	n := len(s.bars)
	if n == 0 || !b.Time.Equal(s.bars[n-1].Time) {
		return fmt.Errorf("update bar %s: %w", b.Time, ErrOutOfOrder)
	}
	if s.bars[n-1] != b {
		s.bars[n-1] = b
		s.version++
	}
	return nil
}

// Sync replaces the content with a fresh snapshot from the data source. The
// version only moves when the snapshot differs from what is held.
func (s *Series) Sync(bars []models.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return fmt.Errorf("bar %d at %s: %w", i, bars[i].Time, ErrOutOfOrder)
		}
	}
	if s.same(bars) {
		return nil
	}
	s.bars = append(s.bars[:0:0], bars...)
	s.version++
	return nil
}

func (s *Series) same(bars []models.Bar) bool {
	if len(bars) != len(s.bars) || len(bars) == 0 {
		return false
	}
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i] != s.bars[i] {
			return false
		}
	}
	return true
}

// Opens returns the open prices.
func (s *Series) Opens() []float64 { return s.column(func(b models.Bar) float64 { return b.Open }) }

// Highs returns the high prices.
func (s *Series) Highs() []float64 { return s.column(func(b models.Bar) float64 { return b.High }) }

// Lows returns the low prices.
func (s *Series) Lows() []float64 { return s.column(func(b models.Bar) float64 { return b.Low }) }

// Closes returns the close prices.
func (s *Series) Closes() []float64 { return s.column(func(b models.Bar) float64 { return b.Close }) }

// Volumes returns the bar volumes.
func (s *Series) Volumes() []float64 { return s.column(func(b models.Bar) float64 { return b.Volume }) }

func (s *Series) column(f func(models.Bar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = f(b)
	}
	return out
}
