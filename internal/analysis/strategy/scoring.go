package strategy

import (
	"fmt"

	"github.com/Alias1177/goldscalper/internal/analysis/pattern"
	"github.com/Alias1177/goldscalper/internal/analysis/regime"
	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/indicators"
	"github.com/Alias1177/goldscalper/internal/market"
	"github.com/Alias1177/goldscalper/models"
)

const (
	panicBodyMultiplier = 2.5
	htfPatternBonus     = 2.0
	trendPatternBonus   = 1.5
	bandExtremeBonus    = 3.0
	insideBarBonus      = 1.5
	rsiExitMargin       = 15.0
)

var (
	bullishReversals = []pattern.Pattern{pattern.BullishPinBar, pattern.MorningStar, pattern.BullishEngulfing}
	bearishReversals = []pattern.Pattern{pattern.BearishPinBar, pattern.EveningStar, pattern.BearishEngulfing}
)

func (e *Engine) score(main, htf *market.Series, b Bundle, mode models.Mode) (buy, sell float64) {
	s := e.opts.Signals.Scoring

	pat := b.Pattern
	mult := 1.0
	if pat.Strength == pattern.StrengthHigh {
		mult = 1.5
	}
	switch bonus := float64(pat.Score) * 0.5 * mult; {
	case bonus > 0:
		buy += bonus
	case bonus < 0:
		sell -= bonus
	}

	htfScore := 0
	if b.HTFPattern != nil {
		htfScore = b.HTFPattern.Score
	}
	switch {
	case htfScore > 0:
		buy += htfPatternBonus
	case htfScore < 0:
		sell += htfPatternBonus
	}

	if (pat.Score > 0 && htfScore < 0) || (pat.Score < 0 && htfScore > 0) {
		e.logger.Debug().Int("pattern", pat.Score).Int("htf_pattern", htfScore).Msg("pattern conflict veto")
		buy *= 0.5
		sell *= 0.5
	}
	if pat.Doji {
		buy *= 0.8
		sell *= 0.8
	}

	switch mode {
	case models.ModeSniper:
		panicCandle := isPanicCandle(main)
		var overbought, oversold float64
		if b.RSI == indicators.Overbought || b.RSI == indicators.Sell {
			overbought++
		}
		if b.BB == indicators.Overbought {
			overbought++
		}
		if b.Stoch == indicators.Overbought || b.Stoch == indicators.Sell {
			overbought++
		}
		if b.RSI == indicators.Oversold || b.RSI == indicators.Buy {
			oversold++
		}
		if b.BB == indicators.Oversold {
			oversold++
		}
		if b.Stoch == indicators.Oversold || b.Stoch == indicators.Buy {
			oversold++
		}
		// A panic candle into an extreme is a falling knife unless a reversal
		// pattern confirms it.
		if oversold > 0 && (!panicCandle || hasAny(pat, bullishReversals)) {
			buy += s.SniperSetup*(oversold/3) + s.SniperConfirm
		}
		if overbought > 0 && (!panicCandle || hasAny(pat, bearishReversals)) {
			sell += s.SniperSetup*(overbought/3) + s.SniperConfirm
		}

	case models.ModeTrend:
		switch {
		case b.MA.IsBullish():
			buy += s.TrendMA
		case b.MA.IsBearish():
			sell += s.TrendMA
		}
		switch {
		case b.MACD.IsBullish():
			buy += s.TrendMACD
		case b.MACD.IsBearish():
			sell += s.TrendMACD
		}
		switch {
		case pat.Signal.IsBullish():
			buy += trendPatternBonus
		case pat.Signal.IsBearish():
			sell += trendPatternBonus
		}
		switch {
		case e.details.Direction == indicators.Bullish && b.BB == indicators.Oversold:
			buy += bandExtremeBonus
		case e.details.Direction == indicators.Bearish && b.BB == indicators.Overbought:
			sell += bandExtremeBonus
		}

	case models.ModePullback:
		switch b.MALong {
		case indicators.Buy, indicators.Bullish:
			buy += s.PullbackTrend
			if b.RSI == indicators.Buy || b.RSI == indicators.Oversold {
				buy += s.PullbackRSI
			}
			if b.Stoch == indicators.Buy || b.Stoch == indicators.Oversold || b.Stoch == indicators.BullishCross {
				buy += s.PullbackStoch
			}
		case indicators.Sell, indicators.Bearish:
			sell += s.PullbackTrend
			if b.RSI == indicators.Sell || b.RSI == indicators.Overbought {
				sell += s.PullbackRSI
			}
			if b.Stoch == indicators.Sell || b.Stoch == indicators.Overbought || b.Stoch == indicators.BearishCross {
				sell += s.PullbackStoch
			}
		}

	case models.ModeBreakout:
		if b.Regime == regime.Breakout || b.Regime == regime.Volatile {
			dir := b.RegimeDetails.Direction
			bonus := s.BreakoutSignal + s.BreakoutConfirm
			if pat.Has(pattern.InsideBar) {
				bonus += insideBarBonus
			}
			switch dir {
			case indicators.Bullish:
				buy += bonus
			case indicators.Bearish:
				sell += bonus
			}
		}
	}

	if e.opts.Signals.EnableMTF && htf != nil {
		buy, sell = e.filterHTF(buy, sell, b.HTFTrend, mode)
	}
	return buy, sell
}

// filterHTF rewards scores aligned with the higher-timeframe trend and vetoes
// or dampens the ones against it.
func (e *Engine) filterHTF(buy, sell float64, trend indicators.Signal, mode models.Mode) (float64, float64) {
	s := e.opts.Signals.Scoring
	against := func(v float64) float64 {
		if mode == models.ModePullback {
			return v * s.MTFPenaltyPct
		}
		return 0
	}
	if buy > 0 {
		switch trend {
		case indicators.Bullish:
			buy += s.MTFBonus
		case indicators.Bearish:
			buy = against(buy)
		}
	}
	if sell > 0 {
		switch trend {
		case indicators.Bearish:
			sell += s.MTFBonus
		case indicators.Bullish:
			sell = against(sell)
		}
	}
	return buy, sell
}

// isPanicCandle reports a last body larger than 2.5 times the mean body of
// the ten bars before it.
func isPanicCandle(s *market.Series) bool {
	if s.Len() < 11 {
		return false
	}
	bodies := make([]float64, 10)
	for i := range bodies {
		bodies[i] = s.Back(i + 1).Body()
	}
	return s.Last().Body() > calculate.Average(bodies)*panicBodyMultiplier
}

func hasAny(r pattern.Result, ps []pattern.Pattern) bool {
	for _, p := range ps {
		if r.Has(p) {
			return true
		}
	}
	return false
}

// ShouldClose decides whether an open position must be closed early given
// the latest analysis of the main series.
func (e *Engine) ShouldClose(pos models.Position, r Result) (bool, string) {
	minExit := e.opts.Signals.MinExitScore
	b := r.Signals

	switch {
	case pos.Side == models.SideBuy && r.Side == models.SideSell && r.SellScore >= minExit:
		return true, "Strong SELL signal"
	case pos.Side == models.SideSell && r.Side == models.SideBuy && r.BuyScore >= minExit:
		return true, "Strong BUY signal"
	}

	if b.HasRSIValue {
		ob, os := e.RSILimits()
		switch {
		case pos.Side == models.SideBuy && b.RSIValue > ob+rsiExitMargin:
			return true, fmt.Sprintf("RSI extremely overbought (%.1f)", b.RSIValue)
		case pos.Side == models.SideSell && b.RSIValue < os-rsiExitMargin:
			return true, fmt.Sprintf("RSI extremely oversold (%.1f)", b.RSIValue)
		}
	}

	switch {
	case pos.Side == models.SideBuy && b.Pattern.Signal == pattern.StrongBearish:
		return true, fmt.Sprintf("Exit due to Strong Bearish Pattern (%s)", joinPatterns(b.Pattern.Patterns))
	case pos.Side == models.SideSell && b.Pattern.Signal == pattern.StrongBullish:
		return true, fmt.Sprintf("Exit due to Strong Bullish Pattern (%s)", joinPatterns(b.Pattern.Patterns))
	}

	switch {
	case pos.Side == models.SideBuy && b.MALong == indicators.Sell:
		return true, "Trend reversal: price crossed below long MA"
	case pos.Side == models.SideSell && b.MALong == indicators.Buy:
		return true, "Trend reversal: price crossed above long MA"
	}

	if lost, zone := e.fibZoneLost(pos, b); lost {
		return true, fmt.Sprintf("Fibonacci zone lost (%s)", zone)
	}
	return false, "Hold"
}

// fibZoneLost tracks, per ticket, whether price has been on the favorable
// side of the golden zone and reports when it falls through it.
func (e *Engine) fibZoneLost(pos models.Position, b Bundle) (bool, indicators.FibZone) {
	if b.Fib == nil {
		return false, b.FibZone
	}
	zone := b.FibZone
	var valid, lost bool
	switch pos.Side {
	case models.SideBuy:
		if b.Fib.Trend != indicators.SwingUp {
			return false, zone
		}
		valid = zone == indicators.ZoneGolden || zone == indicators.ZoneAbove
		lost = zone == indicators.ZoneBelow
	case models.SideSell:
		if b.Fib.Trend != indicators.SwingDown {
			return false, zone
		}
		valid = zone == indicators.ZoneGolden || zone == indicators.ZoneBelow
		lost = zone == indicators.ZoneAbove
	}

	if valid {
		e.fibSeen[pos.Ticket] = zone
		return false, zone
	}
	if _, seen := e.fibSeen[pos.Ticket]; seen && lost {
		delete(e.fibSeen, pos.Ticket)
		return true, zone
	}
	return false, zone
}

// Forget drops per-position state once a ticket is closed.
func (e *Engine) Forget(ticket int64) {
	delete(e.fibSeen, ticket)
}
