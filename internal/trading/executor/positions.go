package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Alias1177/goldscalper/internal/calculate"
	"github.com/Alias1177/goldscalper/internal/metrics"
	"github.com/Alias1177/goldscalper/models"
)

// commentPrefix marks orders placed by the bot.
const commentPrefix = "Bot-"

// adopt re-tracks the bot's own positions that survived a restart.
func (e *Executor) adopt(ctx context.Context) error {
	positions, err := e.gw.Positions(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("listing positions: %w", err)
	}
	for _, p := range positions {
		if !strings.HasPrefix(p.Comment, commentPrefix) {
			continue
		}
		e.tracked[p.Ticket] = tracked{side: p.Side, opened: p.OpenTime}
		e.logger.Info().Int64("ticket", p.Ticket).Str("side", string(p.Side)).Msg("adopted open position")
	}
	return nil
}

// reconcile finalizes tracked tickets that the broker no longer lists.
func (e *Executor) reconcile(ctx context.Context) error {
	if len(e.tracked) == 0 {
		return nil
	}
	open, err := e.gw.Positions(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("listing positions: %w", err)
	}
	live := make(map[int64]bool, len(open))
	for _, p := range open {
		live[p.Ticket] = true
	}
	for _, ticket := range e.trackedTickets() {
		if !live[ticket] {
			e.finalize(ctx, ticket, "SL/TP Hit (or Manual)")
		}
	}
	e.risk.Retain(open)
	return nil
}

func (e *Executor) trackedTickets() []int64 {
	out := make([]int64, 0, len(e.tracked))
	for t := range e.tracked {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// finalize books the realized profit of a closed ticket from the trade
// history, drops its state and reports the exit.
func (e *Executor) finalize(ctx context.Context, ticket int64, reason string) {
	logger := e.logFor(ctx)
	t, ok := e.tracked[ticket]
	if !ok {
		return
	}
	delete(e.tracked, ticket)
	e.risk.Forget(ticket)
	e.strategy.Forget(ticket)

	var realized float64
	deals, err := e.gw.HistoryDeals(ctx, ticket)
	if err != nil {
		logger.Warn().Err(err).Int64("ticket", ticket).Msg("failed to fetch deals, booking zero profit")
	}
	for _, d := range deals {
		if d.Closing() {
			realized += d.Profit
		}
	}
	realized = calculate.Round(realized, 2)

	before := e.profit.Today(ctx).TargetReached
	_, msg := e.profit.AddTradeResult(ctx, realized)
	today := e.profit.Today(ctx)
	if today.TargetReached && !before {
		e.notifier.NotifyStatus("TARGET_REACHED", msg)
	}

	now := e.now()
	logger.Info().
		Int64("ticket", ticket).
		Float64("profit", realized).
		Str("reason", reason).
		Float64("day_profit", today.Profit).
		Msg("position closed")

	ev := ExitEvent{
		Ticket: ticket,
		Side:   t.side,
		Profit: realized,
		Reason: reason,
		Today:  today,
		Time:   now,
	}
	if !t.opened.IsZero() {
		ev.Duration = now.Sub(t.opened)
	}
	if e.opts.ProfitTarget.Enabled {
		ev.Target = e.opts.ProfitTarget.DailyTargetUSD
	}
	e.notifier.NotifyExit(ev)
}

// manage runs scale-out, breakeven and trailing stop on the tracked
// positions. Trailing only applies to tickets already at breakeven before
// this cycle.
func (e *Executor) manage(ctx context.Context, info models.SymbolInfo) error {
	positions, err := e.gw.Positions(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("listing positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}
	logger := e.logFor(ctx)
	atr, _ := e.strategy.ATR(e.main)

	for _, pos := range positions {
		if _, ok := e.tracked[pos.Ticket]; !ok {
			continue
		}
		price := info.ExitPrice(pos.Side)
		wasBreakeven := e.risk.AtBreakeven(pos.Ticket)

		if vol, ok := e.risk.ScaleOut(pos, price, info); ok {
			comment := fmt.Sprintf("Scale Out %gR", e.opts.Risk.ScaleOutRR)
			if err := e.gw.ClosePosition(ctx, pos.Ticket, vol, comment); err != nil {
				logger.Warn().Err(err).Int64("ticket", pos.Ticket).Float64("volume", vol).Msg("partial close failed")
			} else {
				e.risk.MarkScaledOut(pos.Ticket)
				pos.Volume = calculate.Round(pos.Volume-vol, 8)
				e.action(ctx, ActionEvent{Kind: ActionScaleOut, Ticket: pos.Ticket, Volume: vol})
			}
		}

		if !wasBreakeven {
			if sl, ok := e.risk.Breakeven(pos, price, info); ok {
				if err := e.gw.ModifyPosition(ctx, pos.Ticket, sl, pos.TP); err != nil {
					logger.Warn().Err(err).Int64("ticket", pos.Ticket).Float64("sl", sl).Msg("breakeven modify failed")
					continue
				}
				e.risk.MarkBreakeven(pos.Ticket)
				pos.SL = sl
				e.action(ctx, ActionEvent{Kind: ActionBreakeven, Ticket: pos.Ticket, StopLoss: sl, Locked: lockedProfit(pos, info)})
			}
			continue
		}

		if sl, ok := e.risk.TrailingStop(pos, price, atr, info); ok && sl != pos.SL {
			if err := e.gw.ModifyPosition(ctx, pos.Ticket, sl, pos.TP); err != nil {
				logger.Warn().Err(err).Int64("ticket", pos.Ticket).Float64("sl", sl).Msg("trailing modify failed")
				continue
			}
			pos.SL = sl
			e.action(ctx, ActionEvent{Kind: ActionTrailing, Ticket: pos.Ticket, StopLoss: sl, Locked: lockedProfit(pos, info)})
		}
	}
	return nil
}

// lockedProfit is the profit secured by the position's stop, never negative.
func lockedProfit(pos models.Position, info models.SymbolInfo) float64 {
	diff := pos.SL - pos.PriceOpen
	if pos.Side == models.SideSell {
		diff = -diff
	}
	return calculate.Round(math.Max(0, diff*pos.Volume*info.ContractUnits()), 2)
}

func (e *Executor) action(ctx context.Context, ev ActionEvent) {
	ev.Time = e.now()
	metrics.LifecycleActions.WithLabelValues(string(ev.Kind)).Inc()
	e.logFor(ctx).Info().
		Str("action", string(ev.Kind)).
		Int64("ticket", ev.Ticket).
		Float64("sl", ev.StopLoss).
		Float64("volume", ev.Volume).
		Msg("position managed")
	e.notifier.NotifyAction(ev)
}

// checkExits closes tracked positions the strategy wants out of.
func (e *Executor) checkExits(ctx context.Context, session string) error {
	positions, err := e.gw.Positions(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("listing positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}
	res, ok := e.analyze(ctx, session)
	if !ok {
		return nil
	}
	for _, pos := range positions {
		if _, ok := e.tracked[pos.Ticket]; !ok {
			continue
		}
		exit, reason := e.strategy.ShouldClose(pos, res)
		if !exit {
			continue
		}
		if err := e.gw.ClosePosition(ctx, pos.Ticket, 0, reason); err != nil {
			e.logFor(ctx).Warn().Err(err).Int64("ticket", pos.Ticket).Str("reason", reason).Msg("exit close failed")
			continue
		}
		e.finalize(ctx, pos.Ticket, reason)
	}
	return nil
}

// closeAll closes every tracked position and returns how many were closed.
func (e *Executor) closeAll(ctx context.Context, reason string) (int, error) {
	positions, err := e.gw.Positions(ctx, e.symbol)
	if err != nil {
		return 0, fmt.Errorf("listing positions: %w", err)
	}
	var errs []error
	closed := 0
	for _, pos := range positions {
		if _, ok := e.tracked[pos.Ticket]; !ok {
			continue
		}
		if err := e.gw.ClosePosition(ctx, pos.Ticket, 0, reason); err != nil {
			errs = append(errs, fmt.Errorf("close %d: %w", pos.Ticket, err))
			continue
		}
		e.finalize(ctx, pos.Ticket, reason)
		closed++
	}
	if closed > 0 {
		e.logFor(ctx).Info().Int("closed", closed).Str("reason", reason).Msg("closed all positions")
	}
	return closed, errors.Join(errs...)
}

// closeTicket closes one position, tracked or not.
func (e *Executor) closeTicket(ctx context.Context, ticket int64, reason string) error {
	if err := e.gw.ClosePosition(ctx, ticket, 0, reason); err != nil {
		return err
	}
	e.finalize(ctx, ticket, reason)
	return nil
}

// PositionsReport lists the open positions on the traded symbol.
func (e *Executor) PositionsReport(ctx context.Context) string {
	positions, err := e.gw.Positions(ctx, e.symbol)
	if err != nil {
		return "⚠️ Gateway unavailable: " + err.Error()
	}
	if len(positions) == 0 {
		return "💼 No Open Positions"
	}

	var total float64
	for _, p := range positions {
		total += p.Profit
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💼 OPEN POSITIONS (%d)\nTotal P/L: $%+.2f\n━━━━━━━━━━━━━━━━\n", len(positions), total)
	for _, p := range positions {
		icon := "🟢"
		if p.Profit < 0 {
			icon = "🔴"
		}
		fmt.Fprintf(&b, "%s #%d %s %.2f @ %.2f ($%.2f)\n", icon, p.Ticket, p.Side, p.Volume, p.PriceOpen, p.Profit)
	}
	return b.String()
}
