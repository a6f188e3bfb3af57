package exchange

import (
	"context"

	"golang.org/x/time/rate"
)

// ThrottledGateway wraps a Gateway with a token-bucket limiter so polling
// loops cannot breach venue rate limits. Results and errors pass through
// unchanged.
type ThrottledGateway struct {
	inner Gateway
	lim   *rate.Limiter
}

// Throttle decorates gw with a limiter of rps requests per second.
func Throttle(gw Gateway, rps float64, burst int) *ThrottledGateway {
	if burst <= 0 {
		burst = 1
	}
	return &ThrottledGateway{inner: gw, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *ThrottledGateway) CreateOrder(ctx context.Context, req OrderRequest) (OrderData, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return OrderData{}, err
	}
	return t.inner.CreateOrder(ctx, req)
}

func (t *ThrottledGateway) CancelOrder(ctx context.Context, symbol, orderID string) (OrderData, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return OrderData{}, err
	}
	return t.inner.CancelOrder(ctx, symbol, orderID)
}

func (t *ThrottledGateway) FetchOrder(ctx context.Context, symbol, orderID string) (OrderData, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return OrderData{}, err
	}
	return t.inner.FetchOrder(ctx, symbol, orderID)
}

func (t *ThrottledGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]OrderData, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.FetchOpenOrders(ctx, symbol)
}

func (t *ThrottledGateway) FetchBalance(ctx context.Context) (AccountBalance, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.FetchBalance(ctx)
}

func (t *ThrottledGateway) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return Ticker{}, err
	}
	return t.inner.FetchTicker(ctx, symbol)
}
