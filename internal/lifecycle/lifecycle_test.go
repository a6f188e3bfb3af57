package lifecycle

import (
	"context"
	"testing"
	"time"

	"dealcore/internal/balance"
	"dealcore/internal/cancellation"
	"dealcore/internal/deal"
	"dealcore/internal/monitoring"
	"dealcore/internal/order"
	"dealcore/internal/placement"
	"dealcore/internal/store"
	"dealcore/pkg/exchange"
)

func testPair() exchange.CurrencyPair {
	return exchange.CurrencyPair{
		Symbol:        "BTC/USDT",
		BaseCurrency:  "BTC",
		QuoteCurrency: "USDT",
		DealQuota:     100,
		ProfitMarkup:  0.01,
		StepSize:      0.001,
		TickSize:      0.01,
		Limits:        exchange.Limits{MinNotional: 10},
	}
}

type fix struct {
	pair exchange.CurrencyPair
	sim  *exchange.SimGateway
	mem  *store.Memory
	f    *order.Factory
	plc  *placement.Service
	mon  *monitoring.Service
	cnl  *cancellation.Service
}

func newFix(t *testing.T) *fix {
	t.Helper()
	pair := testPair()
	sim := exchange.NewSim(exchange.AccountBalance{
		"USDT": {Free: 10000, Total: 10000},
		"BTC":  {Free: 1, Total: 1},
	})
	mem := store.NewMemory()
	f := order.NewFactory(pair)
	bal := balance.NewCache(sim, time.Minute)
	return &fix{
		pair: pair,
		sim:  sim,
		mem:  mem,
		f:    f,
		plc:  placement.NewService(sim, mem, f, bal, placement.Config{}, nil, nil),
		mon:  monitoring.NewService(sim, mem, pair.Symbol, nil, nil),
		cnl:  cancellation.NewService(sim, mem, nil, nil),
	}
}

// openDeal places a live BUY, stores a local-only PENDING SELL and links both
// into a persisted OPEN deal.
func (fx *fix) openDeal(t *testing.T, buyAmt, buyPrice, sellPrice float64) (*deal.Deal, *order.Order, *order.Order) {
	t.Helper()
	ctx := context.Background()

	res := fx.plc.PlaceBuy(ctx, buyAmt, buyPrice, "")
	if res.Err != nil {
		t.Fatalf("place buy: %v", res.Err)
	}
	buy := res.Order

	d := &deal.Deal{
		ID:        "deal-" + buy.ClientOrderID,
		Symbol:    fx.pair.Symbol,
		Status:    deal.StatusOpen,
		CreatedAt: time.Now(),
	}

	sell := fx.f.Limit(exchange.SideSell, buy.Amount, sellPrice, d.ID)
	if err := fx.mem.SaveOrder(ctx, sell); err != nil {
		t.Fatal(err)
	}

	buy.DealID = d.ID
	if err := fx.mem.UpdateOrder(ctx, buy); err != nil {
		t.Fatal(err)
	}

	d.BuyOrderID = buy.LocalID
	d.SellOrderID = sell.LocalID
	if err := fx.mem.SaveDeal(ctx, d); err != nil {
		t.Fatal(err)
	}
	return d, buy, sell
}

// fillLocally marks the stored order fully filled, as if monitoring had
// already merged the venue fill.
func (fx *fix) fillLocally(t *testing.T, localID int64) {
	t.Helper()
	ctx := context.Background()
	o, err := fx.mem.Order(ctx, localID)
	if err != nil {
		t.Fatal(err)
	}
	o.Filled = o.Amount
	o.Cost = o.Amount * o.Price
	o.Average = o.Price
	o.Status = order.StatusFilled
	if err := fx.mem.UpdateOrder(ctx, o); err != nil {
		t.Fatal(err)
	}
}

func (fx *fix) orderStatus(t *testing.T, localID int64) order.Status {
	t.Helper()
	o, err := fx.mem.Order(context.Background(), localID)
	if err != nil {
		t.Fatal(err)
	}
	return o.Status
}
