// Package broker provides execution gateways: an in-memory paper gateway that
// fills orders against a bar source, and a decorator that reconnects a
// gateway after a dropped session.
package broker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/goldscalper/models"
)

var (
	// ErrDisconnected is returned by every call made while the session is down.
	ErrDisconnected = errors.New("gateway disconnected")
	// ErrNoTicket is returned for operations on an unknown position.
	ErrNoTicket = errors.New("position not found")
	// ErrInvalidStops is returned when SL/TP sit on the wrong side of the price.
	ErrInvalidStops = errors.New("invalid stops")
	// ErrNoPrice is returned before the first quote has been seen.
	ErrNoPrice = errors.New("no price available")
)

// PaperOptions configures a paper gateway.
type PaperOptions struct {
	Symbol    models.SymbolInfo
	Timeframe models.Timeframe
	Balance   float64
	Leverage  float64
	// Supported fill policies; orders with any other policy get retcode 10030.
	FillModes []models.FillMode
	Now       func() time.Time
}

// Paper is a simulated broker. Market orders fill at the current bid/ask,
// positions are closed when a refreshed bar touches their SL or TP.
type Paper struct {
	source models.BarSource
	opts   PaperOptions

	mu         sync.Mutex
	connected  bool
	balance    float64
	bid        float64
	positions  map[int64]*models.Position
	deals      []models.Deal
	nextTicket int64

	now    func() time.Time
	logger zerolog.Logger
}

// NewPaper creates a paper gateway quoting opts.Symbol from source.
func NewPaper(source models.BarSource, opts PaperOptions) *Paper {
	if opts.Leverage <= 0 {
		opts.Leverage = 100
	}
	if len(opts.FillModes) == 0 {
		opts.FillModes = []models.FillMode{models.FillIOC, models.FillReturn}
	}
	if opts.Timeframe == "" {
		opts.Timeframe = models.M5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Symbol.TradeAllowed = true
	return &Paper{
		source:     source,
		opts:       opts,
		balance:    opts.Balance,
		positions:  make(map[int64]*models.Position),
		nextTicket: 1,
		now:        opts.Now,
		logger:     log.With().Str("component", "paper_gateway").Logger(),
	}
}

// Connect opens the simulated session.
func (p *Paper) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		p.logger.Info().Str("symbol", p.opts.Symbol.Name).Float64("balance", p.balance).Msg("paper session opened")
	}
	p.connected = true
	return nil
}

// Disconnect drops the session; calls fail with ErrDisconnected until Connect.
func (p *Paper) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

// Connected reports whether the session is open.
func (p *Paper) Connected(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// ServerTime returns the wall clock in UTC.
func (p *Paper) ServerTime(ctx context.Context) (time.Time, error) {
	if !p.Connected(ctx) {
		return time.Time{}, ErrDisconnected
	}
	return p.now().UTC(), nil
}

// Bars passes through to the bar source. Bars of the quoted symbol and
// timeframe also move the price and trigger stops.
func (p *Paper) Bars(ctx context.Context, symbol string, tf models.Timeframe, count int) ([]models.Bar, error) {
	if !p.Connected(ctx) {
		return nil, ErrDisconnected
	}
	bars, err := p.source.Bars(ctx, symbol, tf, count)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s bars: %w", symbol, tf, err)
	}
	if len(bars) > 0 && symbol == p.opts.Symbol.Name && tf == p.opts.Timeframe {
		p.applyBar(bars[len(bars)-1])
	}
	return bars, nil
}

// Refresh pulls the latest bar, updates the quote and closes positions whose
// SL or TP the bar touched.
func (p *Paper) Refresh(ctx context.Context) error {
	if !p.Connected(ctx) {
		return ErrDisconnected
	}
	bars, err := p.source.Bars(ctx, p.opts.Symbol.Name, p.opts.Timeframe, 1)
	if err != nil {
		return fmt.Errorf("refreshing quote: %w", err)
	}
	if len(bars) == 0 {
		return ErrNoPrice
	}
	p.applyBar(bars[len(bars)-1])
	return nil
}

// SetPrice moves the bid and triggers stops at that price.
func (p *Paper) SetPrice(bid float64) {
	p.applyBar(models.Bar{Time: p.now(), Open: bid, High: bid, Low: bid, Close: bid})
}

func (p *Paper) applyBar(bar models.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bid = bar.Close
	spread := p.spread()

	for _, ticket := range p.tickets() {
		pos := p.positions[ticket]
		high, low := bar.High, bar.Low
		// Positions opened inside this bar only see its close.
		if !pos.OpenTime.Before(bar.Time) {
			high, low = bar.Close, bar.Close
		}
		var exit float64
		var reason string
		switch pos.Side {
		case models.SideBuy:
			if pos.SL > 0 && low <= pos.SL {
				exit, reason = pos.SL, "sl"
			} else if pos.TP > 0 && high >= pos.TP {
				exit, reason = pos.TP, "tp"
			}
		case models.SideSell:
			if pos.SL > 0 && high+spread >= pos.SL {
				exit, reason = pos.SL, "sl"
			} else if pos.TP > 0 && low+spread <= pos.TP {
				exit, reason = pos.TP, "tp"
			}
		}
		if reason != "" {
			p.close(pos, pos.Volume, exit, "["+reason+"]")
		}
	}
}

// SymbolInfo returns the instrument with the current quote.
func (p *Paper) SymbolInfo(ctx context.Context, symbol string) (models.SymbolInfo, error) {
	if !p.Connected(ctx) {
		return models.SymbolInfo{}, ErrDisconnected
	}
	if symbol != p.opts.Symbol.Name {
		return models.SymbolInfo{}, fmt.Errorf("symbol %s not offered", symbol)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bid <= 0 {
		return models.SymbolInfo{}, ErrNoPrice
	}
	info := p.opts.Symbol
	info.Bid = p.bid
	info.Ask = p.bid + p.spread()
	return info, nil
}

// Account reports balance, equity and margin usage.
func (p *Paper) Account(ctx context.Context) (models.Account, error) {
	if !p.Connected(ctx) {
		return models.Account{}, ErrDisconnected
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var floating, margin float64
	for _, pos := range p.positions {
		floating += p.floating(pos)
		margin += p.margin(pos.Volume, pos.PriceOpen)
	}
	acc := models.Account{
		Balance: p.balance,
		Equity:  p.balance + floating,
		Margin:  margin,
		Profit:  floating,
	}
	if margin > 0 {
		acc.MarginLevel = acc.Equity / margin * 100
	}
	return acc, nil
}

// Positions lists open positions on symbol ordered by ticket; an empty symbol
// lists all of them.
func (p *Paper) Positions(ctx context.Context, symbol string) ([]models.Position, error) {
	if !p.Connected(ctx) {
		return nil, ErrDisconnected
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.Position, 0, len(p.positions))
	for _, ticket := range p.tickets() {
		pos := *p.positions[ticket]
		if symbol != "" && pos.Symbol != symbol {
			continue
		}
		pos.Profit = p.floating(&pos)
		out = append(out, pos)
	}
	return out, nil
}

// HistoryDeals returns the deals recorded for ticket.
func (p *Paper) HistoryDeals(ctx context.Context, ticket int64) ([]models.Deal, error) {
	if !p.Connected(ctx) {
		return nil, ErrDisconnected
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []models.Deal
	for _, d := range p.deals {
		if d.Ticket == ticket {
			out = append(out, d)
		}
	}
	return out, nil
}

// SendOrder fills a market order. Rejections are reported through the
// retcode, not the error.
func (p *Paper) SendOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	if !p.Connected(ctx) {
		return models.OrderResult{}, ErrDisconnected
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	reject := func(code int, comment string) (models.OrderResult, error) {
		p.logger.Warn().Int("retcode", code).Str("reason", comment).Msg("order rejected")
		return models.OrderResult{Retcode: code, Comment: comment}, nil
	}

	if !p.supports(req.FillMode) {
		return reject(models.RetcodeInvalidFilling, "Unsupported filling mode")
	}
	if req.Symbol != p.opts.Symbol.Name || !req.Side.Valid() {
		return reject(models.RetcodeRejected, "Invalid request")
	}
	if p.bid <= 0 {
		return reject(models.RetcodeRejected, "No prices")
	}
	step, vmin, vmax := p.opts.Symbol.VolumeLimits()
	if req.Volume < vmin || req.Volume > vmax || !onStep(req.Volume, step) {
		return reject(models.RetcodeRejected, "Invalid volume")
	}

	price := p.bid
	if req.Side == models.SideBuy {
		price += p.spread()
	}
	if err := validStops(req.Side, price, req.SL, req.TP); err != nil {
		return reject(models.RetcodeInvalidStops, "Invalid stops")
	}

	used, equity := 0.0, p.balance
	for _, pos := range p.positions {
		used += p.margin(pos.Volume, pos.PriceOpen)
		equity += p.floating(pos)
	}
	if need := p.margin(req.Volume, price); used+need > equity {
		return reject(models.RetcodeNoMoney, "No money")
	}

	ticket := p.nextTicket
	p.nextTicket++
	p.positions[ticket] = &models.Position{
		Ticket:    ticket,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Volume:    req.Volume,
		PriceOpen: price,
		SL:        req.SL,
		TP:        req.TP,
		Comment:   req.Comment,
		OpenTime:  p.now(),
	}
	p.deals = append(p.deals, models.Deal{
		ID:     uuid.NewString(),
		Ticket: ticket,
		Entry:  models.DealEntryIn,
		Volume: req.Volume,
		Price:  price,
		Time:   p.now(),
	})

	p.logger.Info().
		Int64("ticket", ticket).
		Str("side", string(req.Side)).
		Float64("volume", req.Volume).
		Float64("price", price).
		Str("fill", req.FillMode.String()).
		Msg("order filled")

	return models.OrderResult{
		Retcode: models.RetcodeDone,
		Ticket:  ticket,
		Volume:  req.Volume,
		Price:   price,
		Comment: "Request executed",
	}, nil
}

// ModifyPosition replaces the SL and TP of ticket. Zero removes a level.
func (p *Paper) ModifyPosition(ctx context.Context, ticket int64, sl, tp float64) error {
	if !p.Connected(ctx) {
		return ErrDisconnected
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[ticket]
	if !ok {
		return fmt.Errorf("modify %d: %w", ticket, ErrNoTicket)
	}
	current := p.bid
	if pos.Side == models.SideSell {
		current += p.spread()
	}
	if err := validStops(pos.Side, current, sl, tp); err != nil {
		return fmt.Errorf("modify %d: %w", ticket, err)
	}
	pos.SL, pos.TP = sl, tp
	return nil
}

// ClosePosition closes volume lots of ticket at market; volume <= 0 or the
// full volume closes the position.
func (p *Paper) ClosePosition(ctx context.Context, ticket int64, volume float64, comment string) error {
	if !p.Connected(ctx) {
		return ErrDisconnected
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[ticket]
	if !ok {
		return fmt.Errorf("close %d: %w", ticket, ErrNoTicket)
	}
	if volume <= 0 || volume > pos.Volume {
		volume = pos.Volume
	}
	exit := p.bid
	if pos.Side == models.SideSell {
		exit += p.spread()
	}
	p.close(pos, volume, exit, comment)
	return nil
}

// close books a deal and realized profit; callers hold mu.
func (p *Paper) close(pos *models.Position, volume, exit float64, comment string) {
	profit := p.pnl(pos.Side, pos.PriceOpen, exit, volume)
	p.balance += profit

	remaining := round(pos.Volume-volume, 8)
	if remaining > 0 {
		pos.Volume = remaining
	} else {
		delete(p.positions, pos.Ticket)
	}
	p.deals = append(p.deals, models.Deal{
		ID:     uuid.NewString(),
		Ticket: pos.Ticket,
		Entry:  models.DealEntryOut,
		Volume: volume,
		Price:  exit,
		Profit: profit,
		Time:   p.now(),
	})

	p.logger.Info().
		Int64("ticket", pos.Ticket).
		Float64("volume", volume).
		Float64("price", exit).
		Float64("profit", profit).
		Str("comment", comment).
		Msg("position closed")
}

func (p *Paper) tickets() []int64 {
	out := make([]int64, 0, len(p.positions))
	for t := range p.positions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Paper) spread() float64 {
	return float64(p.opts.Symbol.Spread) * p.opts.Symbol.PointSize()
}

func (p *Paper) floating(pos *models.Position) float64 {
	exit := p.bid
	if pos.Side == models.SideSell {
		exit += p.spread()
	}
	return p.pnl(pos.Side, pos.PriceOpen, exit, pos.Volume)
}

func (p *Paper) pnl(side models.Side, entry, exit, volume float64) float64 {
	diff := exit - entry
	if side == models.SideSell {
		diff = -diff
	}
	return round(diff*volume*p.opts.Symbol.ContractUnits(), 2)
}

func (p *Paper) margin(volume, price float64) float64 {
	return volume * p.opts.Symbol.ContractUnits() * price / p.opts.Leverage
}

func (p *Paper) supports(mode models.FillMode) bool {
	for _, m := range p.opts.FillModes {
		if m == mode {
			return true
		}
	}
	return false
}

func validStops(side models.Side, price, sl, tp float64) error {
	switch side {
	case models.SideBuy:
		if (sl > 0 && sl >= price) || (tp > 0 && tp <= price) {
			return ErrInvalidStops
		}
	case models.SideSell:
		if (sl > 0 && sl <= price) || (tp > 0 && tp >= price) {
			return ErrInvalidStops
		}
	}
	return nil
}

func onStep(volume, step float64) bool {
	n := volume / step
	return math.Abs(n-math.Round(n)) < 1e-6
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
