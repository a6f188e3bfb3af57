// Package lifecycle holds the periodic loops that drive deals to completion:
// stale BUY replacement, SELL cascade on BUY fill, and deal closing. Each
// loop runs on its own interval and exits cooperatively between iterations;
// loops never block each other.
//
// The "place SELL on BUY fill" action is shared by the cascade handler (fast
// path, purely local state) and the completion monitor (reconciling backstop).
// Both go through DealStore.ClaimSellSubmission, a persisted compare-and-set,
// so the SELL is submitted at most once regardless of scheduling.
package lifecycle

import (
	"context"

	"dealcore/internal/deal"
	"dealcore/internal/order"
	"dealcore/internal/placement"
	"dealcore/pkg/exchange"
)

// OrderStore is the order persistence surface the loops need.
type OrderStore interface {
	Order(ctx context.Context, localID int64) (*order.Order, error)
	UpdateOrder(ctx context.Context, o *order.Order) error
	OrdersByDeal(ctx context.Context, dealID string) ([]*order.Order, error)
	OpenOrders(ctx context.Context) ([]*order.Order, error)
}

// DealStore is the deal persistence surface the loops need.
type DealStore interface {
	Deal(ctx context.Context, id string) (*deal.Deal, error)
	UpdateDeal(ctx context.Context, d *deal.Deal) error
	OpenDeals(ctx context.Context) ([]*deal.Deal, error)
	ClaimSellSubmission(ctx context.Context, dealID string) (bool, error)
}

// Placer submits orders.
type Placer interface {
	PlaceBuy(ctx context.Context, amount, price float64, dealID string) placement.ExecutionResult
	PlaceExisting(ctx context.Context, o *order.Order) placement.ExecutionResult
}

// Canceler cancels a single live order.
type Canceler interface {
	Cancel(ctx context.Context, o *order.Order, reason string) (*order.Order, error)
}

// StatusChecker refreshes one order from the venue.
type StatusChecker interface {
	CheckStatus(ctx context.Context, o *order.Order) (*order.Order, error)
}

// TickerSource supplies market prices.
type TickerSource interface {
	FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error)
}

// filled accepts either a fill quantity covering the full amount or a
// terminal FILLED status; venue fill reports can carry float noise on the
// quantity while the status is already final.
func filled(o *order.Order) bool {
	return o.IsFilled() || o.Status == order.StatusFilled
}
