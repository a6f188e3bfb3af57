// Package store defines the persistence contracts for orders and deals and
// ships the in-memory implementation used by tests and dry runs. The durable
// SQLite implementation lives in pkg/db.
package store

import (
	"context"

	"github.com/pkg/errors"

	"dealcore/internal/deal"
	"dealcore/internal/order"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

// OrderRepository persists orders. Implementations must be safe for
// concurrent use and serialize writes per order.
type OrderRepository interface {
	SaveOrder(ctx context.Context, o *order.Order) error
	UpdateOrder(ctx context.Context, o *order.Order) error
	Order(ctx context.Context, localID int64) (*order.Order, error)
	OrdersByDeal(ctx context.Context, dealID string) ([]*order.Order, error)
	// OpenOrders returns all orders in a non-terminal status.
	OpenOrders(ctx context.Context) ([]*order.Order, error)
}

// DealRepository persists deals.
type DealRepository interface {
	SaveDeal(ctx context.Context, d *deal.Deal) error
	UpdateDeal(ctx context.Context, d *deal.Deal) error
	Deal(ctx context.Context, id string) (*deal.Deal, error)
	OpenDeals(ctx context.Context) ([]*deal.Deal, error)
	// ClaimSellSubmission atomically sets the sell-submitted token and
	// reports whether this caller won the claim. It returns true exactly
	// once per deal.
	ClaimSellSubmission(ctx context.Context, dealID string) (bool, error)
}
