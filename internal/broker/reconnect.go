package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/models"
)

// Reconnecting wraps a gateway so that a call failing with ErrDisconnected
// triggers one reconnect and one retry of the call.
type Reconnecting struct {
	gw         models.Gateway
	maxElapsed time.Duration
	logger     zerolog.Logger
}

// NewReconnecting decorates gw. Connect retries with exponential backoff for
// at most maxElapsed.
func NewReconnecting(gw models.Gateway, maxElapsed time.Duration) *Reconnecting {
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	return &Reconnecting{
		gw:         gw,
		maxElapsed: maxElapsed,
		logger:     log.With().Str("component", "gateway").Logger(),
	}
}

// Connect opens the session, retrying with backoff.
func (r *Reconnecting) Connect(ctx context.Context) error {
	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = 500 * time.Millisecond
	strategy.MaxElapsedTime = r.maxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		err := r.gw.Connect(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Int("attempt", attempt).Msg("gateway connect failed")
		}
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return fmt.Errorf("connecting gateway: %w", err)
	}
	return nil
}

// Connected reports the wrapped gateway's session state without reconnecting.
func (r *Reconnecting) Connected(ctx context.Context) bool { return r.gw.Connected(ctx) }

// retry runs fn and, when it fails with ErrDisconnected, reconnects and runs
// it once more.
func (r *Reconnecting) retry(ctx context.Context, fn func() error) error {
	err := fn()
	if !errors.Is(err, ErrDisconnected) {
		return err
	}
	r.logger.Warn().Msg("gateway disconnected, reconnecting")
	if cerr := r.Connect(ctx); cerr != nil {
		return errors.Join(err, cerr)
	}
	return fn()
}

// call is retry for calls that return a value.
func call[T any](ctx context.Context, r *Reconnecting, fn func() (T, error)) (T, error) {
	var out T
	err := r.retry(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// ServerTime returns the broker clock.
func (r *Reconnecting) ServerTime(ctx context.Context) (time.Time, error) {
	return call(ctx, r, func() (time.Time, error) { return r.gw.ServerTime(ctx) })
}

// Bars returns up to count bars, oldest first.
func (r *Reconnecting) Bars(ctx context.Context, symbol string, tf models.Timeframe, count int) ([]models.Bar, error) {
	return call(ctx, r, func() ([]models.Bar, error) { return r.gw.Bars(ctx, symbol, tf, count) })
}

// SymbolInfo returns the symbol's contract details and current quote.
func (r *Reconnecting) SymbolInfo(ctx context.Context, symbol string) (models.SymbolInfo, error) {
	return call(ctx, r, func() (models.SymbolInfo, error) { return r.gw.SymbolInfo(ctx, symbol) })
}

// Account returns balance, equity and margin.
func (r *Reconnecting) Account(ctx context.Context) (models.Account, error) {
	return call(ctx, r, func() (models.Account, error) { return r.gw.Account(ctx) })
}

// Positions lists the open positions on symbol.
func (r *Reconnecting) Positions(ctx context.Context, symbol string) ([]models.Position, error) {
	return call(ctx, r, func() ([]models.Position, error) { return r.gw.Positions(ctx, symbol) })
}

// HistoryDeals returns the deals recorded for a position ticket.
func (r *Reconnecting) HistoryDeals(ctx context.Context, ticket int64) ([]models.Deal, error) {
	return call(ctx, r, func() ([]models.Deal, error) { return r.gw.HistoryDeals(ctx, ticket) })
}

// SendOrder submits a market order. Rejections are reported in the result,
// not as an error.
func (r *Reconnecting) SendOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	return call(ctx, r, func() (models.OrderResult, error) { return r.gw.SendOrder(ctx, req) })
}

// ModifyPosition moves the stop loss and take profit of an open position.
func (r *Reconnecting) ModifyPosition(ctx context.Context, ticket int64, sl, tp float64) error {
	return r.retry(ctx, func() error { return r.gw.ModifyPosition(ctx, ticket, sl, tp) })
}

// ClosePosition closes volume lots of a position at market.
func (r *Reconnecting) ClosePosition(ctx context.Context, ticket int64, volume float64, comment string) error {
	return r.retry(ctx, func() error { return r.gw.ClosePosition(ctx, ticket, volume, comment) })
}

var _ models.Gateway = (*Reconnecting)(nil)
var _ models.Gateway = (*Paper)(nil)
