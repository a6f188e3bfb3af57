package exchange

import "context"

// Gateway abstracts a trading venue. Implementations must surface the error
// kinds in errors.go so callers can branch on them.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (OrderData, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (OrderData, error)
	FetchOrder(ctx context.Context, symbol, orderID string) (OrderData, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]OrderData, error)
	FetchBalance(ctx context.Context) (AccountBalance, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
}
