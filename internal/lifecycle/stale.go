package lifecycle

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"dealcore/internal/events"
	"dealcore/internal/order"
	"dealcore/internal/stats"
	"dealcore/pkg/exchange"
	"dealcore/pkg/logger"
)

// StaleConfig bounds how long and how far from market a BUY may sit.
type StaleConfig struct {
	Interval     time.Duration // scan interval
	MaxAge       time.Duration // replace BUYs older than this
	MaxDeviation float64       // replace BUYs further than this fraction from market
}

func (c *StaleConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 30 * time.Minute
	}
	if c.MaxDeviation <= 0 {
		c.MaxDeviation = 0.05
	}
}

// StaleOrderMonitor replaces open BUY orders whose age or price makes them
// unlikely to fill, repricing the paired local SELL to keep the intended
// markup. Without this, deals sit stuck behind a dead limit price forever.
type StaleOrderMonitor struct {
	cfg      StaleConfig
	pair     exchange.CurrencyPair
	orders   OrderStore
	deals    DealStore
	placer   Placer
	canceler Canceler
	tickers  TickerSource
	bus      *events.Bus
	stats    stats.Sink
	now      func() time.Time
}

// NewStaleOrderMonitor wires the stale-order loop.
func NewStaleOrderMonitor(cfg StaleConfig, pair exchange.CurrencyPair, orders OrderStore, deals DealStore, placer Placer, canceler Canceler, tickers TickerSource, bus *events.Bus, sink stats.Sink) *StaleOrderMonitor {
	cfg.setDefaults()
	return &StaleOrderMonitor{
		cfg:      cfg,
		pair:     pair,
		orders:   orders,
		deals:    deals,
		placer:   placer,
		canceler: canceler,
		tickers:  tickers,
		bus:      bus,
		stats:    stats.OrDefault(sink),
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (m *StaleOrderMonitor) SetClock(now func() time.Time) { m.now = now }

// Start runs the loop until ctx is canceled.
func (m *StaleOrderMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.Scan(ctx); err != nil {
					logger.Get().Errorw("stale order scan", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	logger.Get().Infow("stale order monitor started",
		"interval", m.cfg.Interval, "max_age", m.cfg.MaxAge, "max_deviation", m.cfg.MaxDeviation)
}

// Scan runs one pass over open BUY orders. Orders are handled independently;
// a failure on one never stops the rest.
func (m *StaleOrderMonitor) Scan(ctx context.Context) error {
	open, err := m.orders.OpenOrders(ctx)
	if err != nil {
		return errors.Wrap(err, "stale: list open orders")
	}

	var buys []*order.Order
	for _, o := range open {
		if o.Side == exchange.SideBuy && o.Status.Live() {
			buys = append(buys, o)
		}
	}
	if len(buys) == 0 {
		return nil
	}

	ticker, err := m.tickers.FetchTicker(ctx, m.pair.Symbol)
	if err != nil {
		return errors.Wrap(err, "stale: fetch ticker")
	}

	for _, o := range buys {
		stale, reason := m.isStale(o, ticker.Last)
		if !stale {
			continue
		}
		if err := m.replace(ctx, o, ticker, reason); err != nil {
			logger.Get().Errorw("stale order replacement", "order", o.LocalID, "err", err)
		}
	}
	return nil
}

func (m *StaleOrderMonitor) isStale(o *order.Order, market float64) (bool, string) {
	if age := o.Age(m.now()); age > m.cfg.MaxAge {
		return true, "max_age"
	}
	if market > 0 && o.Price > 0 {
		if dev := math.Abs(o.Price-market) / market; dev > m.cfg.MaxDeviation {
			return true, "price_deviation"
		}
	}
	return false, ""
}

// replace cancels the stale BUY, places a repriced one and propagates the new
// price/amount to the deal and its pending SELL.
func (m *StaleOrderMonitor) replace(ctx context.Context, o *order.Order, ticker exchange.Ticker, reason string) error {
	canceled, err := m.canceler.Cancel(ctx, o, "stale:"+reason)
	if err != nil {
		return errors.Wrap(err, "cancel stale buy")
	}
	if canceled == nil {
		// No longer live; another loop resolved it first.
		return nil
	}
	if filled(canceled) {
		// Filled during the cancel round-trip; the cascade takes over.
		return nil
	}

	newPrice := ticker.Bid
	if newPrice <= 0 {
		newPrice = ticker.Last
	}
	// Quota sizing only applies to untouched orders; once anything filled,
	// the replacement covers the unfilled remainder and nothing more.
	newAmount := canceled.Remaining()
	if canceled.Filled <= 0 && m.pair.DealQuota > 0 && newPrice > 0 {
		newAmount = m.pair.DealQuota / newPrice
	}

	res := m.placer.PlaceBuy(ctx, newAmount, newPrice, o.DealID)
	if res.Err != nil {
		return errors.Wrap(res.Err, "place replacement buy")
	}
	replacement := res.Order

	d, err := m.deals.Deal(ctx, o.DealID)
	if err != nil {
		return errors.Wrapf(err, "load deal %s", o.DealID)
	}
	d.BuyOrderID = replacement.LocalID
	if err := m.deals.UpdateDeal(ctx, d); err != nil {
		return errors.Wrapf(err, "persist deal %s", d.ID)
	}

	// Reprice the paired exit so the intended markup survives the move.
	if err := m.repriceSell(ctx, d.SellOrderID, replacement, canceled.Filled); err != nil {
		return err
	}

	logger.Get().Infow("stale buy replaced", "deal", d.ID, "old", o.LocalID,
		"new", replacement.LocalID, "price", replacement.Price, "amount", replacement.Amount, "reason", reason)
	m.stats.IncrementCounter("stale.replaced", map[string]string{"symbol": o.Symbol, "reason": reason})
	m.bus.Publish(events.TopicOrderReplaced, *replacement)
	return nil
}

func (m *StaleOrderMonitor) repriceSell(ctx context.Context, sellID int64, buy *order.Order, filledCarry float64) error {
	if sellID == 0 {
		return nil
	}
	sell, err := m.orders.Order(ctx, sellID)
	if err != nil {
		return errors.Wrapf(err, "load sell %d", sellID)
	}
	if sell.Status != order.StatusPending {
		// Already on the venue (or terminal); repricing would desync it.
		return nil
	}

	// The exit covers the replacement plus whatever the old BUY filled.
	lim := m.pair.Limits
	sell.Price = order.SnapPrice(buy.Price*(1+m.pair.ProfitMarkup), m.pair.TickSize, lim.MinPrice, lim.MaxPrice)
	sell.Amount = order.SnapAmount(buy.Amount+filledCarry, m.pair.StepSize, lim.MinAmount, lim.MaxAmount, false)
	sell.LastUpdate = m.now()
	return errors.Wrapf(m.orders.UpdateOrder(ctx, sell), "persist sell %d", sellID)
}
