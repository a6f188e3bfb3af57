package order

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dealcore/pkg/exchange"
)

// Factory builds Order values for one currency pair, applying venue
// precision before construction. It does not persist anything.
type Factory struct {
	pair exchange.CurrencyPair
	seq  atomic.Int64
	now  func() time.Time
}

// NewFactory creates a factory whose local ids are seeded from the clock so
// ids stay unique across restarts.
func NewFactory(pair exchange.CurrencyPair) *Factory {
	f := &Factory{pair: pair, now: time.Now}
	f.seq.Store(time.Now().UnixMilli() * 1000)
	return f
}

// Pair returns the pair this factory builds orders for.
func (f *Factory) Pair() exchange.CurrencyPair { return f.pair }

// SetClock overrides the construction timestamp source.
func (f *Factory) SetClock(now func() time.Time) { f.now = now }

// Limit builds a PENDING limit order. BUY amounts round up to the step so
// the deal quota is covered; SELL amounts round down so we never offer more
// than we hold.
func (f *Factory) Limit(side exchange.Side, amount, price float64, dealID string) *Order {
	return f.build(side, exchange.OrderTypeLimit, amount, price, dealID)
}

// Market builds a PENDING market order. Price is left unset.
func (f *Factory) Market(side exchange.Side, amount float64, dealID string) *Order {
	return f.build(side, exchange.OrderTypeMarket, amount, 0, dealID)
}

func (f *Factory) build(side exchange.Side, typ exchange.OrderType, amount, price float64, dealID string) *Order {
	lim := f.pair.Limits
	amount = SnapAmount(amount, f.pair.StepSize, lim.MinAmount, lim.MaxAmount, side == exchange.SideBuy)
	if price > 0 {
		price = SnapPrice(price, f.pair.TickSize, lim.MinPrice, lim.MaxPrice)
	}

	now := f.now()
	return &Order{
		LocalID:       f.seq.Add(1),
		ClientOrderID: fmt.Sprintf("dc-%s", uuid.NewString()),
		DealID:        dealID,
		Symbol:        f.pair.Symbol,
		Side:          side,
		Type:          typ,
		Price:         price,
		Amount:        amount,
		Status:        StatusPending,
		CreatedAt:     now,
		LastUpdate:    now,
	}
}
