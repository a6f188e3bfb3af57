package lifecycle

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"dealcore/internal/deal"
	"dealcore/internal/events"
	"dealcore/internal/order"
	"dealcore/internal/stats"
	"dealcore/pkg/exchange"
	"dealcore/pkg/logger"
)

// CompletionConfig bounds the completion loop.
type CompletionConfig struct {
	Interval time.Duration
	// GracePeriod skips status refresh for orders younger than this, so the
	// loop neither hammers the venue nor races just-placed orders.
	GracePeriod time.Duration
}

func (c *CompletionConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = time.Minute
	}
}

// DealCompletionMonitor refreshes both sides of every open deal, triggers
// the SELL when only the BUY has filled, and closes the deal once both
// orders are independently confirmed filled.
type DealCompletionMonitor struct {
	cfg     CompletionConfig
	pair    exchange.CurrencyPair
	orders  OrderStore
	deals   DealStore
	checker StatusChecker
	placer  Placer
	bus     *events.Bus
	stats   stats.Sink
	now     func() time.Time
}

// NewDealCompletionMonitor wires the completion loop.
func NewDealCompletionMonitor(cfg CompletionConfig, pair exchange.CurrencyPair, orders OrderStore, deals DealStore, checker StatusChecker, placer Placer, bus *events.Bus, sink stats.Sink) *DealCompletionMonitor {
	cfg.setDefaults()
	return &DealCompletionMonitor{
		cfg:     cfg,
		pair:    pair,
		orders:  orders,
		deals:   deals,
		checker: checker,
		placer:  placer,
		bus:     bus,
		stats:   stats.OrDefault(sink),
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (m *DealCompletionMonitor) SetClock(now func() time.Time) { m.now = now }

// Start runs the loop until ctx is canceled.
func (m *DealCompletionMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.Scan(ctx); err != nil {
					logger.Get().Errorw("completion scan", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	logger.Get().Infow("deal completion monitor started",
		"interval", m.cfg.Interval, "grace_period", m.cfg.GracePeriod)
}

// Scan runs one pass over open deals, handling each independently.
func (m *DealCompletionMonitor) Scan(ctx context.Context) error {
	open, err := m.deals.OpenDeals(ctx)
	if err != nil {
		return errors.Wrap(err, "completion: list open deals")
	}
	for _, d := range open {
		if err := m.check(ctx, d); err != nil {
			logger.Get().Errorw("completion", "deal", d.ID, "err", err)
		}
	}
	return nil
}

func (m *DealCompletionMonitor) check(ctx context.Context, d *deal.Deal) error {
	if d.BuyOrderID == 0 || d.SellOrderID == 0 {
		// Transient during creation; do not fail the deal over it.
		logger.Get().Debugw("open deal missing an order side", "deal", d.ID,
			"buy", d.BuyOrderID, "sell", d.SellOrderID)
		return nil
	}

	buy, err := m.orders.Order(ctx, d.BuyOrderID)
	if err != nil {
		return errors.Wrap(err, "load buy")
	}
	sell, err := m.orders.Order(ctx, d.SellOrderID)
	if err != nil {
		return errors.Wrap(err, "load sell")
	}

	buy = m.refresh(ctx, buy)
	sell = m.refresh(ctx, sell)

	if filled(buy) && sell.Status == order.StatusPending {
		won, err := m.deals.ClaimSellSubmission(ctx, d.ID)
		if err != nil {
			return errors.Wrap(err, "claim sell submission")
		}
		if won {
			if res := m.placer.PlaceExisting(ctx, sell); res.Err != nil {
				return errors.Wrap(res.Err, "place sell")
			}
			logger.Get().Infow("sell placed by completion monitor", "deal", d.ID, "sell", sell.LocalID)
		}
		return nil
	}

	if filled(buy) && filled(sell) {
		return m.close(ctx, d, buy, sell)
	}
	return nil
}

// refresh re-checks venue state unless the order is terminal, local-only, or
// still inside the grace period.
func (m *DealCompletionMonitor) refresh(ctx context.Context, o *order.Order) *order.Order {
	if o.ExchangeID == "" || o.Status.Terminal() {
		return o
	}
	if o.Age(m.now()) < m.cfg.GracePeriod {
		return o
	}
	updated, err := m.checker.CheckStatus(ctx, o)
	if err != nil {
		logger.Get().Warnw("completion status refresh", "order", o.LocalID, "err", err)
		return o
	}
	return updated
}

func (m *DealCompletionMonitor) close(ctx context.Context, d *deal.Deal, buy, sell *order.Order) error {
	profit := m.profit(buy, sell)
	if err := d.Close(profit, m.now()); err != nil {
		return err
	}
	if err := m.deals.UpdateDeal(ctx, d); err != nil {
		return errors.Wrap(err, "persist closed deal")
	}
	logger.Get().Infow("deal closed", "deal", d.ID, "profit", profit)
	m.stats.IncrementCounter("deal.closed", map[string]string{"symbol": d.Symbol})
	m.stats.UpdateGauge("deal.profit", profit, map[string]string{"symbol": d.Symbol})
	m.bus.Publish(events.TopicDealClosed, *d)
	return nil
}

// profit is the quote-currency result of the round trip, net of the fees the
// venue reported in quote currency.
func (m *DealCompletionMonitor) profit(buy, sell *order.Order) float64 {
	p := proceeds(sell) - proceeds(buy)
	for _, o := range []*order.Order{buy, sell} {
		if o.FeeCurrency == "" || o.FeeCurrency == m.pair.QuoteCurrency {
			p -= o.FeeCost
		}
	}
	return p
}

func proceeds(o *order.Order) float64 {
	if o.Cost > 0 {
		return o.Cost
	}
	price := o.Average
	if price <= 0 {
		price = o.Price
	}
	return price * o.Filled
}
