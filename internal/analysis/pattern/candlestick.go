package pattern

import (
	"math"

	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/indicators"
	"github.com/Alias1177/goldscalper/internal/market"
)

// Pattern names a detected candle formation.
type Pattern string

const (
	DragonflyDoji      Pattern = "DRAGONFLY_DOJI"
	GravestoneDoji     Pattern = "GRAVESTONE_DOJI"
	BullishPinBar      Pattern = "BULLISH_PINBAR"
	BearishPinBar      Pattern = "BEARISH_PINBAR"
	BullishEngulfing   Pattern = "BULLISH_ENGULFING"
	BearishEngulfing   Pattern = "BEARISH_ENGULFING"
	InsideBar          Pattern = "INSIDE_BAR"
	BullishMarubozu    Pattern = "BULLISH_MARUBOZU"
	BearishMarubozu    Pattern = "BEARISH_MARUBOZU"
	MorningStar        Pattern = "MORNING_STAR"
	EveningStar        Pattern = "EVENING_STAR"
	ThreeWhiteSoldiers Pattern = "THREE_WHITE_SOLDIERS"
	ThreeBlackCrows    Pattern = "THREE_BLACK_CROWS"
)

var patternWeight = map[Pattern]float64{
	BullishEngulfing:   1.5,
	BearishEngulfing:   1.5,
	MorningStar:        1.4,
	EveningStar:        1.4,
	BullishPinBar:      1.0,
	BearishPinBar:      1.0,
	BullishMarubozu:    1.0,
	BearishMarubozu:    1.0,
	ThreeWhiteSoldiers: 1.3,
	ThreeBlackCrows:    1.3,
	DragonflyDoji:      0.6,
	GravestoneDoji:     0.6,
}

// Weight returns the scoring weight of a pattern (1.0 when unlisted).
func (p Pattern) Weight() float64 {
	if w, ok := patternWeight[p]; ok {
		return w
	}
	return 1.0
}

// Bias is the overall direction read from the last bars.
type Bias string

const (
	StrongBullish Bias = "STRONG_BULLISH"
	Bullish       Bias = "BULLISH"
	Neutral       Bias = "NEUTRAL"
	Bearish       Bias = "BEARISH"
	StrongBearish Bias = "STRONG_BEARISH"
)

// IsBullish reports BULLISH or STRONG_BULLISH.
func (b Bias) IsBullish() bool { return b == Bullish || b == StrongBullish }

// IsBearish reports BEARISH or STRONG_BEARISH.
func (b Bias) IsBearish() bool { return b == Bearish || b == StrongBearish }

// IsStrong reports either strong label.
func (b Bias) IsStrong() bool { return b == StrongBullish || b == StrongBearish }

// Strength grades how much weight a pattern result deserves.
type Strength string

const (
	StrengthHigh Strength = "HIGH"
	StrengthLow  Strength = "LOW"
)

// Result is the outcome of one pattern analysis.
type Result struct {
	Signal           Bias
	Score            int
	Strength         Strength
	Patterns         []Pattern
	Doji             bool
	RVOL             float64
	BodyDominance    float64
	CloseStrength    float64
	VolumeMultiplier float64
	Note             string
}

// Has reports whether p was detected.
func (r Result) Has(p Pattern) bool {
	for _, q := range r.Patterns {
		if q == p {
			return true
		}
	}
	return false
}

// Defaults returns the neutral result used when no analysis is possible.
func Defaults(note string) Result {
	return Result{Signal: Neutral, Strength: StrengthLow, VolumeMultiplier: 1.0, Note: note}
}

// Analyzer scores the shapes of the most recent bars.
type Analyzer struct {
	MinBars          int
	DojiThreshold    float64
	PinBarTailRatio  float64
	RVOLThreshold    float64
	EngulfMinRatio   float64
	WeakCandleRatio  float64
	NoiseATRFraction float64
}

// NewAnalyzer creates an analyzer with the standard thresholds.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		MinBars:          25,
		DojiThreshold:    0.1,
		PinBarTailRatio:  2.0,
		RVOLThreshold:    1.5,
		EngulfMinRatio:   1.2,
		WeakCandleRatio:  0.2,
		NoiseATRFraction: 0.3,
	}
}

// Analyze reads the last four bars of s. atr is the current ATR (zero when
// unknown) and trend the prevailing trend label.
func (a *Analyzer) Analyze(s *market.Series, atr float64, trend indicators.Signal) Result {
	if s.Len() < a.MinBars {
		return Defaults("Insufficient data for pattern analysis")
	}

	c0, c1, c2 := s.Back(0), s.Back(1), s.Back(2)

	range0 := c0.Range()
	body0 := c0.Body()
	if range0 == 0 {
		return Defaults("Flat candle (range 0)")
	}

	// Relative volume against bars [-22, -2)
	rvol, volumeMultiplier := 1.0, 1.0
	vols := s.Volumes()
	n := len(vols)
	if avg := calculate.Average(vols[n-22 : n-2]); avg > 0 {
		rvol = c0.Volume / avg
	}
	switch {
	case rvol > 2.5:
		volumeMultiplier = 1.5
	case rvol > a.RVOLThreshold:
		volumeMultiplier = 1.2
	}

	closePosition := (c0.Close - c0.Low) / range0
	bodyRatio := body0 / range0

	noisePenalty := 1.0
	if atr > 0 && range0 < atr*a.NoiseATRFraction {
		noisePenalty = 0.5
	}

	upper0 := c0.High - math.Max(c0.Close, c0.Open)
	lower0 := math.Min(c0.Close, c0.Open) - c0.Low

	weakPenalty := 1.0
	if bodyRatio < a.WeakCandleRatio && bodyRatio > a.DojiThreshold {
		weakPenalty = 0.7
	}

	var patterns []Pattern
	score := 0

	// Doji with directional tail
	isDoji := bodyRatio <= a.DojiThreshold
	if isDoji {
		if lower0 > range0*0.6 {
			patterns = append(patterns, DragonflyDoji)
			if trend == indicators.Bearish {
				score += 2
			}
		} else if upper0 > range0*0.6 {
			patterns = append(patterns, GravestoneDoji)
			if trend == indicators.Bullish {
				score -= 2
			}
		}
	}

	// Pin bars, only against or without a trend
	if lower0 > body0*a.PinBarTailRatio && upper0 < range0*0.2 && closePosition > 0.5 && trend != indicators.Bullish {
		patterns = append(patterns, BullishPinBar)
		score += 2
	}
	if upper0 > body0*a.PinBarTailRatio && lower0 < range0*0.2 && closePosition < 0.5 && trend != indicators.Bearish {
		patterns = append(patterns, BearishPinBar)
		score -= 2
	}

	// Engulfing
	body1 := c1.Body()
	engulfRatio := 1.0
	if body1 > 0 {
		engulfRatio = body0 / body1
	}
	if c1.Bearish() && c0.Bullish() && c0.Open <= c1.Close && c0.Close >= c1.Open &&
		engulfRatio >= a.EngulfMinRatio && closePosition > 0.75 {
		patterns = append(patterns, BullishEngulfing)
		score += engulfingPoints(engulfRatio, volumeMultiplier, trend == indicators.Bearish)
	}
	if c1.Bullish() && c0.Bearish() && c0.Open >= c1.Close && c0.Close <= c1.Open &&
		engulfRatio >= a.EngulfMinRatio && closePosition < 0.25 {
		patterns = append(patterns, BearishEngulfing)
		score -= engulfingPoints(engulfRatio, volumeMultiplier, trend == indicators.Bullish)
	}

	// Inside bar
	if c0.High <= c1.High && c0.Low >= c1.Low {
		patterns = append(patterns, InsideBar)
		if mother := c1.Range(); mother > 0 {
			inMother := (c0.Close - c1.Low) / mother
			if inMother > 0.7 {
				score++
			} else if inMother < 0.3 {
				score--
			}
		}
	}

	// Marubozu
	if bodyRatio > 0.7 && range0 > atr*0.5 {
		if c0.Bullish() && closePosition > 0.8 {
			patterns = append(patterns, BullishMarubozu)
			score += int(2 * volumeMultiplier)
		} else if c0.Bearish() && closePosition < 0.2 {
			patterns = append(patterns, BearishMarubozu)
			score -= int(2 * volumeMultiplier)
		}
	}

	// Morning / evening star
	mid2 := (c2.Open + c2.Close) / 2
	if c2.Body() > atr*0.5 && c1.Body() < atr*0.3 {
		if c2.Bearish() && c0.Bullish() && c0.Close > mid2 {
			patterns = append(patterns, MorningStar)
			score += 4
		}
		if c2.Bullish() && c0.Bearish() && c0.Close < mid2 {
			patterns = append(patterns, EveningStar)
			score -= 4
		}
	}

	// Three soldiers / crows
	if c0.Bullish() && c1.Bullish() && c2.Bullish() && c0.Close > c1.Close && c1.Close > c2.Close {
		patterns = append(patterns, ThreeWhiteSoldiers)
		score += 3
	}
	if c0.Bearish() && c1.Bearish() && c2.Bearish() && c0.Close < c1.Close && c1.Close < c2.Close {
		patterns = append(patterns, ThreeBlackCrows)
		score -= 3
	}

	final := float64(score) * noisePenalty * weakPenalty
	if len(patterns) > 0 {
		maxWeight := 0.0
		for _, p := range patterns {
			maxWeight = math.Max(maxWeight, p.Weight())
		}
		final *= maxWeight
	}
	score = int(final)

	strength := StrengthLow
	if abs(score) >= 5 || volumeMultiplier >= 1.2 {
		strength = StrengthHigh
	}

	return Result{
		Signal:           biasFor(score),
		Score:            score,
		Strength:         strength,
		Patterns:         patterns,
		Doji:             isDoji,
		RVOL:             calculate.Round(rvol, 2),
		BodyDominance:    calculate.Round(bodyRatio, 2),
		CloseStrength:    calculate.Round(closePosition, 2),
		VolumeMultiplier: volumeMultiplier,
	}
}

func engulfingPoints(ratio, volumeMultiplier float64, counterTrend bool) int {
	points := 3
	if ratio >= 1.5 {
		points++
	}
	points = int(float64(points) * volumeMultiplier)
	if counterTrend {
		points++
	}
	return points
}

func biasFor(score int) Bias {
	switch {
	case score >= 5:
		return StrongBullish
	case score > 0:
		return Bullish
	case score <= -5:
		return StrongBearish
	case score < 0:
		return Bearish
	}
	return Neutral
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
