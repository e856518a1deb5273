package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/goldscalper/internal/analysis/strategy"
	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/market"
	"github.com/Alias1177/goldscalper/internal/metrics"
	"github.com/Alias1177/goldscalper/internal/trading/risk"
	"github.com/Alias1177/goldscalper/models"
)

const (
	htfBars      = 200
	maxDeviation = 200
)

// analysis caches the strategy outcome of the current tick.
type analysis struct {
	result strategy.Result
	ok     bool
}

// analyze scores the main series once per tick. A missing or short
// higher-timeframe series only disables confirmation.
func (e *Executor) analyze(ctx context.Context, session string) (strategy.Result, bool) {
	if e.cache != nil {
		return e.cache.result, e.cache.ok
	}

	var htf *market.Series
	if e.opts.Signals.EnableMTF {
		bars, err := e.gw.Bars(ctx, e.symbol, e.htfTF, htfBars)
		switch {
		case err != nil:
			e.logFor(ctx).Debug().Err(err).Str("timeframe", string(e.htfTF)).Msg("higher timeframe unavailable")
		case len(bars) <= strategy.MinHTFBars:
			e.logFor(ctx).Debug().Int("bars", len(bars)).Msg("higher timeframe too short")
		default:
			htf = &market.Series{}
			if err := htf.Sync(bars); err != nil {
				e.logFor(ctx).Debug().Err(err).Msg("higher timeframe rejected")
				htf = nil
			}
		}
	}

	res, ok := e.strategy.Analyze(e.main, htf, session, e.modeOverride())
	e.cache = &analysis{result: res, ok: ok}
	if ok {
		e.lastSignal = res
	}
	return res, ok
}

// barClosing reports whether t falls in the last seconds of a bar, the only
// window in which bar-close entries are taken.
func barClosing(tf models.Timeframe, t time.Time) bool {
	minute, sec := t.Minute(), t.Second()
	switch tf {
	case models.M1:
		return sec >= 55
	case models.M5:
		return minute%5 == 4 && sec >= 55
	case models.M15:
		return minute%15 == 14 && sec >= 55
	}
	return true
}

// entryLimits enforces the cooldown after the last order and the one order
// per bar rule.
func (e *Executor) entryLimits(now time.Time) (bool, string) {
	if !e.lastOrderAt.IsZero() {
		cooldown := time.Duration(e.opts.Signals.CooldownBars) * e.tf.Duration()
		if elapsed := now.Sub(e.lastOrderAt); elapsed < cooldown {
			return false, fmt.Sprintf("Cooldown active (waiting %.0fs after last open)", (cooldown - elapsed).Seconds())
		}
	}
	if e.opts.Signals.OneOrderPerBar && e.main.Len() > 0 && !e.lastOrderBar.IsZero() && !e.main.Last().Time.After(e.lastOrderBar) {
		return false, "One order per bar limit active (waiting for new bar)"
	}
	return true, "OK"
}

func (e *Executor) tryEntry(ctx context.Context, now time.Time, session string) error {
	logger := e.logFor(ctx)
	if e.opts.Trading.BarCloseEntry && !barClosing(e.tf, now) {
		return nil
	}
	if e.main.Len() < strategy.MinBars {
		logger.Debug().Int("bars", e.main.Len()).Msg("not enough bars for entry")
		return nil
	}
	if ok, reason := e.entryLimits(now); !ok {
		logger.Debug().Msg(reason)
		return nil
	}

	res, ok := e.analyze(ctx, session)
	if !ok {
		return nil
	}
	if !res.HasSignal() {
		logger.Debug().Str("mode", string(res.Mode)).Msgf("Scores too low (buy=%.1f, sell=%.1f)", res.BuyScore, res.SellScore)
		return nil
	}
	if ok, reason := e.strategy.Validate(res.Side, e.main); !ok {
		logger.Info().Str("reason", reason).Msg("signal failed validation")
		return nil
	}

	info, err := e.gw.SymbolInfo(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("symbol info: %w", err)
	}
	acc, err := e.gw.Account(ctx)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	entry := info.EntryPrice(res.Side)

	atr := res.Signals.ATR
	if !res.Signals.HasATR {
		atr, _ = e.strategy.ATR(e.main)
	}

	plan, err := e.risk.Plan(acc.Balance, entry, res.Side, atr, info, res.Mode)
	if err != nil {
		logger.Warn().Err(err).Msg("position sizing failed")
		return nil
	}
	plan.Lot = e.entryLot(plan.Lot, info)
	if plan.Lot <= 0 {
		logger.Info().Float64("balance", acc.Balance).Msg("balance too small for minimum lot")
		return nil
	}
	plan.Risk = risk.PositionRisk(entry, plan.StopLoss, plan.Lot, info)

	open, err := e.gw.Positions(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("listing positions: %w", err)
	}
	if ok, reason := e.risk.CanOpen(acc.Balance, open, plan.Risk, info); !ok {
		logger.Info().Str("reason", reason).Msg("risk check blocked entry")
		return nil
	}

	req := models.OrderRequest{
		Symbol:    e.symbol,
		Side:      res.Side,
		Volume:    plan.Lot,
		Price:     entry,
		SL:        plan.StopLoss,
		TP:        plan.TakeProfit,
		Deviation: deviation(info),
		Magic:     e.opts.Trading.Magic,
		Comment:   commentPrefix + res.Mode.Short(),
	}
	fill, err := e.send(ctx, req)
	if err != nil {
		return err
	}

	e.tracked[fill.Ticket] = tracked{side: res.Side, opened: now}
	e.lastOrderAt = now
	e.lastOrderBar = e.main.Last().Time

	price := entry
	if fill.Price > 0 {
		price = fill.Price
	}
	logger.Info().
		Int64("ticket", fill.Ticket).
		Str("side", string(res.Side)).
		Str("mode", string(res.Mode)).
		Float64("lot", plan.Lot).
		Float64("price", price).
		Float64("sl", plan.StopLoss).
		Float64("tp", plan.TakeProfit).
		Float64("confidence", res.Confidence).
		Msg("order filled")

	trend := res.Signals.MALong
	if trend == "" {
		trend = res.Signals.MA
	}
	e.notifier.NotifyEntry(EntryEvent{
		Ticket:     fill.Ticket,
		Symbol:     e.symbol,
		Side:       res.Side,
		Volume:     plan.Lot,
		Entry:      price,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
		Risk:       calculate.Round(plan.Risk, 2),
		Mode:       res.Mode,
		Session:    session,
		Regime:     e.assessment.Regime,
		Score:      max(res.BuyScore, res.SellScore),
		MinConf:    res.MinConf,
		Confidence: res.Confidence,
		RSI:        res.Signals.RSIValue,
		HasRSI:     res.Signals.HasRSIValue,
		ATR:        atr,
		MATrend:    trend,
		Balance:    acc.Balance,
		Equity:     acc.Equity,
		Time:       now,
	})
	return nil
}

// entryLot scales the risk-sized lot by the regime and profit multipliers.
// A positive default_lot replaces the risk-sized lot as the base. A zero
// planned lot means the balance cannot carry the minimum and stays zero.
func (e *Executor) entryLot(planned float64, info models.SymbolInfo) float64 {
	if planned <= 0 {
		return 0
	}
	base := planned
	if e.opts.Trading.DefaultLot > 0 {
		base = e.opts.Trading.DefaultLot
	}
	return risk.NormalizeVolume(base*e.lotMultiplier, info)
}

// deviation is the accepted slippage in points.
func deviation(info models.SymbolInfo) int {
	base := 20
	if info.IsGold() {
		base = 50
	}
	return min(base+info.Spread, maxDeviation)
}

// send tries the fill policies in order, moving on only when the broker
// refuses the policy itself.
func (e *Executor) send(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	logger := e.logFor(ctx)
	var last models.OrderResult
	for _, mode := range models.DefaultFillModes {
		req.FillMode = mode
		res, err := e.gw.SendOrder(ctx, req)
		if err != nil {
			metrics.Orders.WithLabelValues("failed").Inc()
			return models.OrderResult{}, fmt.Errorf("sending order: %w", err)
		}
		if res.Done() {
			metrics.Orders.WithLabelValues("filled").Inc()
			return res, nil
		}
		last = res
		if res.Retcode != models.RetcodeInvalidFilling {
			break
		}
		logger.Debug().Str("fill_mode", mode.String()).Msg("fill mode unsupported, trying next")
	}
	metrics.Orders.WithLabelValues("rejected").Inc()
	return last, fmt.Errorf("%w: retcode %d (%s)", ErrOrderRejected, last.Retcode, last.Comment)
}
