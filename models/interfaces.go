package models

import (
	"context"
	"time"
)

// BarSource supplies historical bars, oldest first.
type BarSource interface {
	Bars(ctx context.Context, symbol string, tf Timeframe, count int) ([]Bar, error)
}

// Gateway is the broker/execution collaborator the engine trades through.
type Gateway interface {
	BarSource

	Connect(ctx context.Context) error
	Connected(ctx context.Context) bool
	ServerTime(ctx context.Context) (time.Time, error)

	SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error)
	Account(ctx context.Context) (Account, error)
	Positions(ctx context.Context, symbol string) ([]Position, error)
	HistoryDeals(ctx context.Context, ticket int64) ([]Deal, error)

	SendOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ModifyPosition(ctx context.Context, ticket int64, sl, tp float64) error
	// ClosePosition closes volume lots of the position; volume <= 0 closes it fully.
	ClosePosition(ctx context.Context, ticket int64, volume float64, comment string) error
}
