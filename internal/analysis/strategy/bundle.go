package strategy

import (
	"fmt"
	"strings"

	"github.com/Alias1177/goldscalper/internal/analysis/pattern"
	"github.com/Alias1177/goldscalper/internal/analysis/regime"
	"github.com/Alias1177/goldscalper/internal/indicators"
	"github.com/Alias1177/goldscalper/models"
)

// Bundle holds the readings gathered for one analysis. Fields a mode does not
// use are left at their zero value.
type Bundle struct {
	ATR        float64
	HasATR     bool
	Volatility indicators.Volatility

	Pattern    pattern.Result
	HTFPattern *pattern.Result
	HTFTrend   indicators.Signal

	RSI         indicators.Signal
	RSIValue    float64
	HasRSIValue bool
	BB          indicators.Signal
	Stoch       indicators.Signal
	MA          indicators.Signal
	MACD        indicators.Signal
	MALong      indicators.Signal

	Regime        regime.Regime
	RegimeDetails regime.Details

	Fib     *indicators.FibLevels
	FibZone indicators.FibZone
}

// Result is the outcome of one analysis.
type Result struct {
	Side       models.Side
	Confidence float64
	BuyScore   float64
	SellScore  float64
	Mode       models.Mode
	MinConf    float64
	Total      float64
	Signals    Bundle
}

// HasSignal reports whether a direction was chosen.
func (r Result) HasSignal() bool { return r.Side.Valid() }

// Summary renders the notable readings of a result on one line.
func Summary(r Result) string {
	var parts []string
	b := r.Signals
	if len(b.Pattern.Patterns) > 0 {
		parts = append(parts, "PAT: "+joinPatterns(b.Pattern.Patterns))
	}
	if b.HTFPattern != nil && len(b.HTFPattern.Patterns) > 0 {
		parts = append(parts, "HTF_PAT: "+joinPatterns(b.HTFPattern.Patterns))
	}

	add := func(name string, v fmt.Stringer) {
		s := v.String()
		if s != "" && s != string(indicators.Neutral) {
			parts = append(parts, name+": "+s)
		}
	}
	add("RSI", b.RSI)
	add("BB", b.BB)
	add("STOCH", b.Stoch)
	add("MA", b.MA)
	add("MACD", b.MACD)
	add("MA_LONG", b.MALong)
	if b.Regime != "" {
		add("REGIME", b.Regime)
	}
	if b.FibZone != "" && b.FibZone != indicators.ZoneUnknown {
		parts = append(parts, "FIB: "+string(b.FibZone))
	}

	mode := string(r.Mode)
	if mode == "" {
		mode = "N/A"
	}
	parts = append(parts, "MODE: "+mode)
	return strings.Join(parts, " | ")
}

func joinPatterns(ps []pattern.Pattern) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ",")
}
