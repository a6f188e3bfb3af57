// Package monitoring reconciles local order state against the venue.
package monitoring

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"dealcore/internal/events"
	"dealcore/internal/order"
	"dealcore/internal/stats"
	"dealcore/pkg/exchange"
	"dealcore/pkg/logger"
)

// OrderStore is the persistence surface monitoring needs.
type OrderStore interface {
	UpdateOrder(ctx context.Context, o *order.Order) error
	OpenOrders(ctx context.Context) ([]*order.Order, error)
}

// Service fetches venue order state and merges it into local records.
type Service struct {
	gateway exchange.Gateway
	store   OrderStore
	symbol  string
	bus     *events.Bus
	stats   stats.Sink
	now     func() time.Time
}

// NewService wires a monitoring service for one symbol.
func NewService(gw exchange.Gateway, st OrderStore, symbol string, bus *events.Bus, sink stats.Sink) *Service {
	return &Service{
		gateway: gw,
		store:   st,
		symbol:  symbol,
		bus:     bus,
		stats:   stats.OrDefault(sink),
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CheckStatus refreshes one order from the venue. A venue "not found" is a
// terminal resolution, not an error: the order is marked NOT_FOUND and
// persisted. The updated order is returned in either case.
func (s *Service) CheckStatus(ctx context.Context, o *order.Order) (*order.Order, error) {
	if o.ExchangeID == "" {
		// Local-only order; nothing to reconcile.
		return o, nil
	}

	data, err := s.gateway.FetchOrder(ctx, o.Symbol, o.ExchangeID)
	if err != nil {
		if exchange.IsNotFound(err) {
			return s.resolveNotFound(ctx, o)
		}
		return o, errors.Wrapf(err, "monitoring: fetch order %d", o.LocalID)
	}

	return s.merge(ctx, o, data)
}

func (s *Service) resolveNotFound(ctx context.Context, o *order.Order) (*order.Order, error) {
	if o.Status == order.StatusNotFound {
		return o, nil
	}
	o.Status = order.StatusNotFound
	o.LastUpdate = s.now()
	if err := s.store.UpdateOrder(ctx, o); err != nil {
		return o, errors.Wrap(err, "monitoring: persist not-found order")
	}
	logger.Get().Warnw("order unknown to venue, resolved as NOT_FOUND",
		"order", o.LocalID, "venue_id", o.ExchangeID)
	s.stats.IncrementCounter("monitoring.not_found", map[string]string{"symbol": o.Symbol})
	return o, nil
}

func (s *Service) merge(ctx context.Context, o *order.Order, data exchange.OrderData) (*order.Order, error) {
	wasFilled := o.IsFilled()
	changed := o.ApplyVenueData(data, s.now())
	if !changed {
		return o, nil
	}
	if err := s.store.UpdateOrder(ctx, o); err != nil {
		return o, errors.Wrapf(err, "monitoring: persist order %d", o.LocalID)
	}
	logger.Get().Infow("order state merged", "order", o.LocalID,
		"status", o.Status, "filled", o.Filled, "remaining", o.Remaining())
	if o.IsFilled() && !wasFilled {
		s.stats.IncrementCounter("monitoring.filled", map[string]string{"symbol": o.Symbol, "side": string(o.Side)})
		s.bus.Publish(events.TopicOrderFilled, *o)
	}
	return o, nil
}

// SyncAll reconciles every locally-live order in one pass: a single venue
// open-orders call covers the still-open ones, and orders absent from that
// result fall back to a per-order fetch (they have closed or been pruned).
func (s *Service) SyncAll(ctx context.Context) error {
	open, err := s.store.OpenOrders(ctx)
	if err != nil {
		return errors.Wrap(err, "monitoring: list local open orders")
	}

	var live []*order.Order
	for _, o := range open {
		if o.ExchangeID != "" && o.Status.Live() {
			live = append(live, o)
		}
	}
	if len(live) == 0 {
		return nil
	}

	venueOpen, err := s.gateway.FetchOpenOrders(ctx, s.symbol)
	if err != nil {
		return errors.Wrap(err, "monitoring: fetch venue open orders")
	}
	byID := make(map[string]exchange.OrderData, len(venueOpen))
	for _, d := range venueOpen {
		byID[d.ID] = d
	}

	var firstErr error
	for _, o := range live {
		if d, ok := byID[o.ExchangeID]; ok {
			_, err = s.merge(ctx, o, d)
		} else {
			_, err = s.CheckStatus(ctx, o)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
