package lifecycle

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"dealcore/internal/deal"
	"dealcore/internal/order"
	"dealcore/internal/stats"
	"dealcore/pkg/logger"
)

// CascadeConfig bounds the cascade loop.
type CascadeConfig struct {
	Interval time.Duration
}

func (c *CascadeConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
}

// CascadeHandler is the fast path of "place SELL on BUY fill": it reacts to
// locally-known fills without touching the venue. The completion monitor
// covers the same transition as a reconciling backstop; the persisted claim
// in DealStore keeps the two from double-submitting.
type CascadeHandler struct {
	cfg    CascadeConfig
	orders OrderStore
	deals  DealStore
	placer Placer
	stats  stats.Sink
}

// NewCascadeHandler wires the cascade loop.
func NewCascadeHandler(cfg CascadeConfig, orders OrderStore, deals DealStore, placer Placer, sink stats.Sink) *CascadeHandler {
	cfg.setDefaults()
	return &CascadeHandler{
		cfg:    cfg,
		orders: orders,
		deals:  deals,
		placer: placer,
		stats:  stats.OrDefault(sink),
	}
}

// Start runs the loop until ctx is canceled.
func (h *CascadeHandler) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := h.Scan(ctx); err != nil {
					logger.Get().Errorw("cascade scan", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	logger.Get().Infow("cascade handler started", "interval", h.cfg.Interval)
}

// Scan walks open deals and submits the exit SELL for every deal whose BUY
// is filled and whose SELL is still local-only.
func (h *CascadeHandler) Scan(ctx context.Context) error {
	deals, err := h.deals.OpenDeals(ctx)
	if err != nil {
		return errors.Wrap(err, "cascade: list open deals")
	}

	for _, d := range deals {
		if d.SellSubmitted {
			continue
		}
		if err := h.handle(ctx, d); err != nil {
			logger.Get().Errorw("cascade", "deal", d.ID, "err", err)
		}
	}
	return nil
}

func (h *CascadeHandler) handle(ctx context.Context, d *deal.Deal) error {
	if d.BuyOrderID == 0 || d.SellOrderID == 0 {
		// Deal creation still in flight.
		return nil
	}
	buy, err := h.orders.Order(ctx, d.BuyOrderID)
	if err != nil {
		return errors.Wrap(err, "load buy")
	}
	if !filled(buy) {
		return nil
	}
	sell, err := h.orders.Order(ctx, d.SellOrderID)
	if err != nil {
		return errors.Wrap(err, "load sell")
	}
	if sell.Status != order.StatusPending {
		return nil
	}

	won, err := h.deals.ClaimSellSubmission(ctx, d.ID)
	if err != nil {
		return errors.Wrap(err, "claim sell submission")
	}
	if !won {
		return nil
	}

	// The claim is consumed by dispatching one placement attempt; the
	// placement service's own retry budget is the only retry.
	res := h.placer.PlaceExisting(ctx, sell)
	if res.Err != nil {
		return errors.Wrap(res.Err, "place sell")
	}
	logger.Get().Infow("sell cascaded after buy fill", "deal", d.ID, "sell", sell.LocalID)
	h.stats.IncrementCounter("cascade.sell_placed", map[string]string{"symbol": d.Symbol})
	return nil
}
