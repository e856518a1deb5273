package regime

import (
	"github.com/Alias1177/goldscalper/internal/indicators"
	"github.com/Alias1177/goldscalper/models"
)

// Regime is a discrete market-condition label.
type Regime string

const (
	Trending Regime = "TRENDING"
	Ranging  Regime = "RANGING"
	Volatile Regime = "VOLATILE"
	Breakout Regime = "BREAKOUT"
	Neutral  Regime = "NEUTRAL"
	Unknown  Regime = "UNKNOWN"
)

// scored lists the labels that take part in scoring, in tie-break order.
var scored = []Regime{Trending, Ranging, Volatile, Breakout, Neutral}

func (r Regime) String() string { return string(r) }

// Thresholds are the classification cut-offs. Volatile and RangingWidth are
// replaced by calibration; the rest stay as configured.
type Thresholds struct {
	ADXTrending      float64
	ADXRanging       float64
	ATRVolatileRatio float64
	BBWRangingPct    float64
	BreakoutMomentum float64
}

// Details carries the per-regime context attached to an assessment. Only the
// fields relevant to the chosen regime are populated.
type Details struct {
	ADX        float64
	ATRRatio   float64
	BBWidthPct float64

	// TRENDING and BREAKOUT
	Direction   indicators.Signal
	Strength    string
	Consistency string
	ADXMomentum float64

	// RANGING
	RangePct      float64
	Support       float64
	Resistance    float64
	PricePosition string

	// VOLATILE
	CurrentATR     float64
	StopMultiplier float64

	Stability      float64
	HighVolatility bool
	Note           string
	Warning        string
	Reason         string
}

// Assessment is one regime evaluation.
type Assessment struct {
	Regime     Regime
	Confidence float64
	Scores     map[Regime]float64
	Details    Details
}

// Recommendation is the suggested strategy mode and lot scaling for a regime.
type Recommendation struct {
	Mode          models.Mode
	LotMultiplier float64
	Note          string
}

var recommendations = map[Regime]Recommendation{
	Trending: {Mode: models.ModeTrend, LotMultiplier: 1.0, Note: "Follow the trend."},
	Ranging:  {Mode: models.ModeSniper, LotMultiplier: 1.0, Note: "Buy support, sell resistance."},
	Volatile: {Mode: models.ModeBreakout, LotMultiplier: 0.7, Note: "High risk. Wide stops needed."},
	Breakout: {Mode: models.ModeTrend, LotMultiplier: 1.2, Note: "Aggressive entry allowed."},
	Neutral:  {Mode: models.ModeSniper, LotMultiplier: 0.8, Note: "Scalp carefully."},
}

// Recommend maps an assessment to a mode and lot multiplier. High volatility
// outside VOLATILE and BREAKOUT shrinks the lot, and a volatile range is
// traded as a pending breakout.
func Recommend(a Assessment) Recommendation {
	rec, ok := recommendations[a.Regime]
	if !ok {
		rec = recommendations[Neutral]
	}
	if a.Details.HighVolatility && a.Regime != Volatile && a.Regime != Breakout {
		rec.LotMultiplier *= 0.7
		rec.Note += " [WARNING: High Volatility]"
		if a.Regime == Ranging {
			rec.Mode = models.ModeBreakout
			rec.Note = "Ranging but volatile, expect breakout."
		}
	}
	return rec
}

// Score computes the additive regime scores from the current readings and
// picks the winner. A detected breakout always wins with full confidence.
func Score(adx, atrRatio, bbwPct float64, breakout bool, th Thresholds) (Regime, float64, map[Regime]float64) {
	scores := make(map[Regime]float64, len(scored))
	for _, r := range scored {
		scores[r] = 0
	}

	if adx > th.ADXTrending {
		scores[Trending] += max(0, (adx-20)*2.5)
		if atrRatio > 0.8 && atrRatio < 1.5 {
			scores[Trending] += 20
		}
	}
	if adx < th.ADXRanging {
		scores[Ranging] += max(0, (25-adx)*3)
		if bbwPct < th.BBWRangingPct {
			scores[Ranging] += 40
		}
	}
	if atrRatio > th.ATRVolatileRatio {
		scores[Volatile] += min((atrRatio-1)*100, 100)
	}
	if breakout {
		scores[Breakout] += 150
	}
	scores[Neutral] = 30

	best := scored[0]
	for _, r := range scored[1:] {
		if scores[r] > scores[best] {
			best = r
		}
	}
	confidence := min(scores[best]/100, 1.0)

	if scores[Breakout] >= 100 {
		best = Breakout
		confidence = 1.0
	}
	return best, confidence, scores
}
