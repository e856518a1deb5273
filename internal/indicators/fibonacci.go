package indicators

import "github.com/Alias1177/goldscalper/internal/market"

// SwingTrend is the direction of the impulse a Fibonacci grid is drawn on.
type SwingTrend string

const (
	SwingUp   SwingTrend = "UP"
	SwingDown SwingTrend = "DOWN"
)

// FibZone is the price position relative to the 0.5-0.786 golden zone.
type FibZone string

const (
	ZoneUnknown FibZone = "UNKNOWN"
	ZoneAbove   FibZone = "ABOVE_ZONE"
	ZoneGolden  FibZone = "IN_GOLDEN_ZONE"
	ZoneBelow   FibZone = "BELOW_ZONE"
)

var (
	RetracementRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1.0}
	ExtensionRatios   = []float64{1.272, 1.414, 1.618, 2.0, 2.618}
)

// FibLevels describes the swing found in the lookback window.
type FibLevels struct {
	Trend     SwingTrend
	SwingHigh float64
	SwingLow  float64
	HighIndex int
	LowIndex  int
}

// Level returns the price at a retracement (<= 1) or extension (> 1) ratio.
func (f FibLevels) Level(ratio float64) float64 {
	diff := f.SwingHigh - f.SwingLow
	if f.Trend == SwingUp {
		if ratio <= 1 {
			return f.SwingHigh - ratio*diff
		}
		return f.SwingHigh + (ratio-1)*diff
	}
	if ratio <= 1 {
		return f.SwingLow + ratio*diff
	}
	return f.SwingLow - (ratio-1)*diff
}

// Zone locates price relative to the golden zone.
func (f FibLevels) Zone(price float64) FibZone {
	half, deep := f.Level(0.5), f.Level(0.786)
	switch f.Trend {
	case SwingUp:
		switch {
		case price > half:
			return ZoneAbove
		case price < deep:
			return ZoneBelow
		}
		return ZoneGolden
	case SwingDown:
		switch {
		case price < half:
			return ZoneBelow
		case price > deep:
			return ZoneAbove
		}
		return ZoneGolden
	}
	return ZoneUnknown
}

// Fibonacci finds the dominant swing over a lookback window.
type Fibonacci struct {
	Lookback    int
	MinSwingPct float64

	memo   memo
	levels FibLevels
	ok     bool
}

// NewFibonacci creates a retracement finder.
func NewFibonacci(lookback int, minSwingPct float64) *Fibonacci {
	return &Fibonacci{Lookback: lookback, MinSwingPct: minSwingPct}
}

// Levels returns the swing levels, or false when the window is short or the
// swing is smaller than MinSwingPct of the low.
func (f *Fibonacci) Levels(s *market.Series) (FibLevels, bool) {
	if s.Len() < f.Lookback {
		return FibLevels{}, false
	}
	if f.memo.fresh(s) {
		return f.levels, f.ok
	}

	bars := s.Bars()[s.Len()-f.Lookback:]
	hi, lo := 0, 0
	for i, b := range bars {
		if b.High > bars[hi].High {
			hi = i
		}
		if b.Low < bars[lo].Low {
			lo = i
		}
	}
	maxV, minV := bars[hi].High, bars[lo].Low
	diff := maxV - minV

	f.levels, f.ok = FibLevels{}, false
	if diff != 0 && minV != 0 && diff/minV >= f.MinSwingPct {
		trend := SwingDown
		if lo < hi {
			trend = SwingUp
		}
		offset := s.Len() - f.Lookback
		f.levels = FibLevels{Trend: trend, SwingHigh: maxV, SwingLow: minV, HighIndex: offset + hi, LowIndex: offset + lo}
		f.ok = true
	}
	f.memo.mark(s)
	return f.levels, f.ok
}

// Zone returns the golden-zone position of the latest close.
func (f *Fibonacci) Zone(s *market.Series) FibZone {
	lv, ok := f.Levels(s)
	if !ok {
		return ZoneUnknown
	}
	return lv.Zone(s.Last().Close)
}
