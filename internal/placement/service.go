// Package placement submits orders to the venue with balance gating,
// pre-flight validation and bounded retry.
package placement

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"dealcore/internal/balance"
	"dealcore/internal/events"
	"dealcore/internal/order"
	"dealcore/internal/stats"
	"dealcore/pkg/exchange"
	"dealcore/pkg/logger"
)

// Config bounds the retry loop.
type Config struct {
	MaxAttempts      int           // total create attempts per order
	RetryBase        time.Duration // first backoff delay, doubled per retry
	FetchAfterCreate bool          // re-fetch after acceptance to capture immediate fills
}

func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
}

// OrderStore is the persistence surface placement needs.
type OrderStore interface {
	SaveOrder(ctx context.Context, o *order.Order) error
	UpdateOrder(ctx context.Context, o *order.Order) error
}

// BalanceChecker gates placement on available funds.
type BalanceChecker interface {
	CheckSufficient(ctx context.Context, pair exchange.CurrencyPair, side exchange.Side, amount, price float64) (balance.Check, error)
}

// ExecutionResult reports a placement outcome as data; errors never escape
// the service boundary any other way.
type ExecutionResult struct {
	Success bool
	Order   *order.Order
	Err     error
}

// Service places orders for one currency pair.
type Service struct {
	gateway  exchange.Gateway
	store    OrderStore
	factory  *order.Factory
	balances BalanceChecker
	cfg      Config
	bus      *events.Bus
	stats    stats.Sink

	sleep func(ctx context.Context, d time.Duration) error
}

// NewService wires a placement service. bus and sink may be nil.
func NewService(gw exchange.Gateway, st OrderStore, f *order.Factory, bc BalanceChecker, cfg Config, bus *events.Bus, sink stats.Sink) *Service {
	cfg.setDefaults()
	return &Service{
		gateway:  gw,
		store:    st,
		factory:  f,
		balances: bc,
		cfg:      cfg,
		bus:      bus,
		stats:    stats.OrDefault(sink),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PlaceBuy builds and submits a limit BUY for the deal.
func (s *Service) PlaceBuy(ctx context.Context, amount, price float64, dealID string) ExecutionResult {
	o := s.factory.Limit(exchange.SideBuy, amount, price, dealID)
	return s.place(ctx, o)
}

// PlaceSell builds and submits a limit SELL for the deal.
func (s *Service) PlaceSell(ctx context.Context, amount, price float64, dealID string) ExecutionResult {
	o := s.factory.Limit(exchange.SideSell, amount, price, dealID)
	return s.place(ctx, o)
}

// PlaceMarket builds and submits a market order for the deal.
func (s *Service) PlaceMarket(ctx context.Context, side exchange.Side, amount float64, dealID string) ExecutionResult {
	o := s.factory.Market(side, amount, dealID)
	return s.place(ctx, o)
}

// PlaceExisting submits an order that was created locally earlier and kept
// PENDING, such as the deal's exit SELL. The order must not be on the venue.
func (s *Service) PlaceExisting(ctx context.Context, o *order.Order) ExecutionResult {
	if o.Status != order.StatusPending {
		return ExecutionResult{Order: o, Err: errors.Errorf("placement: order %d is %s, not PENDING", o.LocalID, o.Status)}
	}
	if o.ExchangeID != "" {
		return ExecutionResult{Order: o, Err: errors.Errorf("placement: order %d already on venue as %s", o.LocalID, o.ExchangeID)}
	}
	return s.submit(ctx, o)
}

// place persists the fresh order and runs the shared submission path.
func (s *Service) place(ctx context.Context, o *order.Order) ExecutionResult {
	pair := s.factory.Pair()

	if v := order.Validate(pair, o.Side, o.Type, o.Amount, o.Price); !v.Valid {
		return ExecutionResult{Order: o, Err: &ValidationError{Reasons: v.Errors}}
	} else if len(v.Warnings) > 0 {
		logger.Get().Warnw("order validation warnings", "order", o.LocalID, "warnings", v.Warnings)
	}

	check, err := s.balances.CheckSufficient(ctx, pair, o.Side, o.Amount, o.Price)
	if err != nil {
		// Balance refresh failure is non-critical for the check itself, but
		// we refuse to place blind.
		return ExecutionResult{Order: o, Err: errors.Wrap(err, "placement: balance check")}
	}
	if !check.Sufficient {
		s.stats.IncrementCounter("placement.insufficient_balance", map[string]string{"symbol": o.Symbol})
		return ExecutionResult{Order: o, Err: errors.Wrapf(ErrInsufficientBalance,
			"need %g %s, have %g", check.Required, check.Currency, check.Available)}
	}

	if err := s.store.SaveOrder(ctx, o); err != nil {
		return ExecutionResult{Order: o, Err: errors.Wrap(err, "placement: persist pending order")}
	}
	return s.submit(ctx, o)
}

// submit drives the venue create with bounded exponential backoff. Transient
// errors retry; anything else fails fast. Exhaustion marks the order FAILED,
// which is terminal for this service.
func (s *Service) submit(ctx context.Context, o *order.Order) ExecutionResult {
	log := logger.Get()
	req := exchange.OrderRequest{
		Symbol:        o.Symbol,
		Side:          o.Side,
		Type:          o.Type,
		Amount:        o.Amount,
		Price:         o.Price,
		ClientOrderID: o.ClientOrderID,
	}

	var (
		data    exchange.OrderData
		lastErr error
	)
	start := time.Now()
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			o.Retries++
			delay := backoffDelay(attempt-1, s.cfg.RetryBase)
			log.Infow("retrying order placement", "order", o.LocalID, "attempt", attempt+1, "delay", delay)
			if err := s.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		data, lastErr = s.gateway.CreateOrder(ctx, req)
		if lastErr == nil {
			break
		}
		if !exchange.IsTransient(lastErr) {
			break
		}
		log.Warnw("transient placement error", "order", o.LocalID, "err", lastErr)
	}
	s.stats.RecordTiming("placement.submit", time.Since(start), map[string]string{"symbol": o.Symbol})

	if lastErr != nil {
		o.Status = order.StatusFailed
		o.ErrorMessage = lastErr.Error()
		o.LastUpdate = time.Now()
		if err := s.store.UpdateOrder(ctx, o); err != nil {
			log.Errorw("persist failed order", "order", o.LocalID, "err", err)
		}
		s.stats.IncrementCounter("placement.failed", map[string]string{"symbol": o.Symbol})
		s.bus.Publish(events.TopicOrderFailed, *o)
		return ExecutionResult{Order: o, Err: errors.Wrapf(lastErr, "placement: order %d", o.LocalID)}
	}

	o.ExchangeID = data.ID
	o.Status = order.StatusOpen
	o.LastUpdate = time.Now()

	// Capture fills that happened inside the create round-trip.
	if s.cfg.FetchAfterCreate {
		if full, err := s.gateway.FetchOrder(ctx, o.Symbol, o.ExchangeID); err == nil {
			o.ApplyVenueData(full, time.Now())
		} else if !exchange.IsNotFound(err) {
			log.Debugw("post-create fetch failed", "order", o.LocalID, "err", err)
		}
	} else if data.Status != "" {
		o.ApplyVenueData(data, time.Now())
	}

	if err := s.store.UpdateOrder(ctx, o); err != nil {
		return ExecutionResult{Order: o, Err: errors.Wrap(err, "placement: persist open order")}
	}

	log.Infow("order placed", "order", o.LocalID, "venue_id", o.ExchangeID,
		"side", o.Side, "amount", o.Amount, "price", o.Price, "status", o.Status)
	s.stats.IncrementCounter("placement.placed", map[string]string{"symbol": o.Symbol, "side": string(o.Side)})
	s.bus.Publish(events.TopicOrderPlaced, *o)
	if o.IsFilled() {
		s.bus.Publish(events.TopicOrderFilled, *o)
	}
	return ExecutionResult{Success: true, Order: o}
}
