// Package cancellation cancels venue orders, treating "not found" as success:
// if the venue no longer knows the order, it is no longer live, which is the
// goal of cancelling.
package cancellation

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"dealcore/internal/events"
	"dealcore/internal/order"
	"dealcore/internal/stats"
	"dealcore/pkg/exchange"
	"dealcore/pkg/logger"
)

// OrderStore is the persistence surface cancellation needs.
type OrderStore interface {
	UpdateOrder(ctx context.Context, o *order.Order) error
	OrdersByDeal(ctx context.Context, dealID string) ([]*order.Order, error)
	OpenOrders(ctx context.Context) ([]*order.Order, error)
}

// BatchResult aggregates per-order outcomes of a fan-out cancellation. A
// partial failure never raises; callers inspect the counts.
type BatchResult struct {
	Requested int
	Canceled  int
	Failed    int
	Errors    []error
	Orders    []*order.Order
}

// Service cancels orders against the venue.
type Service struct {
	gateway exchange.Gateway
	store   OrderStore
	bus     *events.Bus
	stats   stats.Sink
	now     func() time.Time
}

// NewService wires a cancellation service.
func NewService(gw exchange.Gateway, st OrderStore, bus *events.Bus, sink stats.Sink) *Service {
	return &Service{
		gateway: gw,
		store:   st,
		bus:     bus,
		stats:   stats.OrDefault(sink),
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Cancel cancels a single live order. Orders that are not currently live on
// the venue are a no-op returning (nil, nil), so a second cancel is always
// idempotent. A venue "not found" resolves the order as canceled.
func (s *Service) Cancel(ctx context.Context, o *order.Order, reason string) (*order.Order, error) {
	if o == nil || !o.Status.Live() || o.ExchangeID == "" {
		return nil, nil
	}

	data, err := s.gateway.CancelOrder(ctx, o.Symbol, o.ExchangeID)
	if err != nil && !exchange.IsNotFound(err) {
		return nil, errors.Wrapf(err, "cancellation: order %d", o.LocalID)
	}

	if err == nil {
		// Take the venue's final word on fill state before closing out.
		o.ApplyVenueData(data, s.now())
	}
	if !o.Status.Terminal() {
		o.Status = order.StatusCanceled
	}
	o.SetMeta("cancel_reason", reason)
	o.LastUpdate = s.now()

	if uerr := s.store.UpdateOrder(ctx, o); uerr != nil {
		return o, errors.Wrap(uerr, "cancellation: persist")
	}
	logger.Get().Infow("order canceled", "order", o.LocalID, "venue_id", o.ExchangeID, "reason", reason)
	s.stats.IncrementCounter("cancellation.canceled", map[string]string{"symbol": o.Symbol})
	s.bus.Publish(events.TopicOrderCanceled, *o)
	return o, nil
}

// CancelMultiple fans out concurrently and aggregates outcomes; one failure
// never blocks the others.
func (s *Service) CancelMultiple(ctx context.Context, orders []*order.Order, reason string) BatchResult {
	res := BatchResult{Requested: len(orders)}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, o := range orders {
		wg.Add(1)
		go func(o *order.Order) {
			defer wg.Done()
			canceled, err := s.Cancel(ctx, o, reason)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Failed++
				res.Errors = append(res.Errors, err)
			case canceled != nil:
				res.Canceled++
				res.Orders = append(res.Orders, canceled)
			}
		}(o)
	}
	wg.Wait()
	return res
}

// CancelByDeal cancels every live order belonging to a deal.
func (s *Service) CancelByDeal(ctx context.Context, dealID, reason string) (BatchResult, error) {
	orders, err := s.store.OrdersByDeal(ctx, dealID)
	if err != nil {
		return BatchResult{}, errors.Wrapf(err, "cancellation: load deal %s", dealID)
	}
	return s.CancelMultiple(ctx, orders, reason), nil
}

// CancelBySymbol cancels every live order for a symbol.
func (s *Service) CancelBySymbol(ctx context.Context, symbol, reason string) (BatchResult, error) {
	open, err := s.store.OpenOrders(ctx)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "cancellation: load open orders")
	}
	var subset []*order.Order
	for _, o := range open {
		if o.Symbol == symbol {
			subset = append(subset, o)
		}
	}
	return s.CancelMultiple(ctx, subset, reason), nil
}

// EmergencyCancelAll cancels everything live and reports successes versus
// attempted; it never raises for partial failure.
func (s *Service) EmergencyCancelAll(ctx context.Context) BatchResult {
	open, err := s.store.OpenOrders(ctx)
	if err != nil {
		logger.Get().Errorw("emergency cancel: load open orders", "err", err)
		return BatchResult{Errors: []error{err}}
	}
	res := s.CancelMultiple(ctx, open, "emergency")
	logger.Get().Warnw("emergency cancel finished",
		"requested", res.Requested, "canceled", res.Canceled, "failed", res.Failed)
	return res
}
