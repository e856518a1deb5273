package models

import (
	"strings"
	"time"
)

// Bar represents a single OHLCV price bar
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Range returns high minus low.
func (b Bar) Range() float64 { return b.High - b.Low }

// Body returns the absolute open/close distance.
func (b Bar) Body() float64 {
	if b.Close > b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports whether the bar closed below its open.
func (b Bar) Bearish() bool { return b.Close < b.Open }

// Side is the direction of an order or position
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// SymbolInfo is the broker's view of the traded instrument
type SymbolInfo struct {
	Name         string  `json:"name"`
	Point        float64 `json:"point"`
	Digits       int     `json:"digits"`
	VolumeMin    float64 `json:"volume_min"`
	VolumeMax    float64 `json:"volume_max"`
	VolumeStep   float64 `json:"volume_step"`
	ContractSize float64 `json:"trade_contract_size"`
	Spread       int     `json:"spread"` // points
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	TradeAllowed bool    `json:"trade_allowed"`
}

// IsGold reports whether the symbol is a gold instrument.
func (s SymbolInfo) IsGold() bool {
	name := strings.ToUpper(s.Name)
	return strings.Contains(name, "XAU") || strings.Contains(name, "GOLD")
}

// PointSize returns the point value, falling back to 0.01.
func (s SymbolInfo) PointSize() float64 {
	if s.Point > 0 {
		return s.Point
	}
	return 0.01
}

// PriceDigits returns the quote precision, falling back to 2.
func (s SymbolInfo) PriceDigits() int {
	if s.Digits > 0 {
		return s.Digits
	}
	return 2
}

// ContractUnits returns the contract size with instrument-aware fallbacks.
func (s SymbolInfo) ContractUnits() float64 {
	if s.ContractSize > 0 {
		return s.ContractSize
	}
	if s.IsGold() {
		return 100
	}
	return 100000
}

// VolumeLimits returns step, min and max volume with fallbacks.
func (s SymbolInfo) VolumeLimits() (step, min, max float64) {
	step, min, max = s.VolumeStep, s.VolumeMin, s.VolumeMax
	if step <= 0 {
		step = 0.01
	}
	if min <= 0 {
		min = 0.01
	}
	if max <= 0 {
		max = 100
	}
	return step, min, max
}

// ExitPrice returns the price a position of the given side would close at.
func (s SymbolInfo) ExitPrice(side Side) float64 {
	if side == SideBuy {
		return s.Bid
	}
	return s.Ask
}

// EntryPrice returns the price a new order of the given side would fill at.
func (s SymbolInfo) EntryPrice(side Side) float64 {
	if side == SideBuy {
		return s.Ask
	}
	return s.Bid
}

// Account is a snapshot of the trading account
type Account struct {
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	MarginLevel float64 `json:"margin_level"`
	Profit      float64 `json:"profit"`
}

// Position is an open broker position
type Position struct {
	Ticket    int64     `json:"ticket"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"type"`
	Volume    float64   `json:"volume"`
	PriceOpen float64   `json:"price_open"`
	SL        float64   `json:"sl"`
	TP        float64   `json:"tp"`
	Profit    float64   `json:"profit"`
	Comment   string    `json:"comment,omitempty"`
	OpenTime  time.Time `json:"open_time"`
}

// DealEntry tells whether a deal opened or closed exposure
type DealEntry int

const (
	DealEntryIn DealEntry = iota
	DealEntryOut
	DealEntryInOut
)

// Deal is a history record used for realized profit
type Deal struct {
	ID     string    `json:"id"`
	Ticket int64     `json:"position_id"`
	Entry  DealEntry `json:"entry"`
	Volume float64   `json:"volume"`
	Price  float64   `json:"price"`
	Profit float64   `json:"profit"`
	Time   time.Time `json:"time"`
}

// Closing reports whether the deal reduced a position.
func (d Deal) Closing() bool { return d.Entry == DealEntryOut || d.Entry == DealEntryInOut }

// FillMode is the order filling policy
type FillMode int

const (
	FillFOK FillMode = iota
	FillIOC
	FillReturn
)

func (m FillMode) String() string {
	switch m {
	case FillFOK:
		return "FOK"
	case FillIOC:
		return "IOC"
	case FillReturn:
		return "RETURN"
	}
	return "UNKNOWN"
}

// DefaultFillModes is the order in which fill policies are attempted.
var DefaultFillModes = []FillMode{FillFOK, FillIOC, FillReturn}

// Trade server return codes
const (
	RetcodeDone           = 10009
	RetcodeRejected       = 10006
	RetcodeInvalidStops   = 10016
	RetcodeNoMoney        = 10019
	RetcodeInvalidFilling = 10030
)

// OrderRequest is a market order sent to the gateway
type OrderRequest struct {
	Symbol    string   `json:"symbol"`
	Side      Side     `json:"type"`
	Volume    float64  `json:"volume"`
	Price     float64  `json:"price"`
	SL        float64  `json:"sl"`
	TP        float64  `json:"tp"`
	Deviation int      `json:"deviation"`
	Magic     int64    `json:"magic"`
	Comment   string   `json:"comment"`
	FillMode  FillMode `json:"type_filling"`
}

// OrderResult is the gateway's answer to an OrderRequest
type OrderResult struct {
	Retcode int     `json:"retcode"`
	Ticket  int64   `json:"order"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Comment string  `json:"comment"`
}

// Done reports whether the order was filled.
func (r OrderResult) Done() bool { return r.Retcode == RetcodeDone }
