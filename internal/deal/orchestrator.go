package deal

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"dealcore/internal/cancellation"
	"dealcore/internal/events"
	"dealcore/internal/order"
	"dealcore/internal/placement"
	"dealcore/internal/stats"
	"dealcore/pkg/exchange"
	"dealcore/pkg/logger"
)

// OrderSpec names the amount/price intent for one side of a deal.
type OrderSpec struct {
	Amount float64
	Price  float64
}

// DealStore is the deal persistence surface the orchestrator needs.
type DealStore interface {
	SaveDeal(ctx context.Context, d *Deal) error
	UpdateDeal(ctx context.Context, d *Deal) error
	Deal(ctx context.Context, id string) (*Deal, error)
}

// OrderStore is the order persistence surface the orchestrator needs.
type OrderStore interface {
	SaveOrder(ctx context.Context, o *order.Order) error
	UpdateOrder(ctx context.Context, o *order.Order) error
	OrdersByDeal(ctx context.Context, dealID string) ([]*order.Order, error)
}

// Placer submits the entry order.
type Placer interface {
	PlaceBuy(ctx context.Context, amount, price float64, dealID string) placement.ExecutionResult
}

// Canceler tears down a deal's live orders.
type Canceler interface {
	CancelByDeal(ctx context.Context, dealID, reason string) (cancellation.BatchResult, error)
}

// Orchestrator owns the BUY/SELL pairing: it creates deals, commits the
// entry BUY to the venue immediately and keeps the exit SELL local-only
// until the entry is confirmed filled.
type Orchestrator struct {
	pair     exchange.CurrencyPair
	deals    DealStore
	orders   OrderStore
	factory  *order.Factory
	placer   Placer
	canceler Canceler
	bus      *events.Bus
	stats    stats.Sink
	now      func() time.Time
}

// NewOrchestrator wires a deal orchestrator. bus and sink may be nil.
func NewOrchestrator(pair exchange.CurrencyPair, deals DealStore, orders OrderStore, f *order.Factory, placer Placer, canceler Canceler, bus *events.Bus, sink stats.Sink) *Orchestrator {
	return &Orchestrator{
		pair:     pair,
		deals:    deals,
		orders:   orders,
		factory:  f,
		placer:   placer,
		canceler: canceler,
		bus:      bus,
		stats:    stats.OrDefault(sink),
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (oc *Orchestrator) SetClock(now func() time.Time) { oc.now = now }

// CreateDeal opens a deal: the SELL order is built and persisted PENDING
// (capital discipline: the exit is only committed once the entry fills), then
// the BUY is placed on the venue.
//
// When the BUY is rejected before any network call (validation, balance) the
// deal is canceled and an error returned. When placement exhausts its retries
// the deal is returned OPEN together with the error: the BUY order is marked
// FAILED and left for monitor-driven or manual recovery.
func (oc *Orchestrator) CreateDeal(ctx context.Context, buySpec, sellSpec OrderSpec) (*Deal, error) {
	log := logger.Get()

	d := &Deal{
		ID:        uuid.NewString(),
		Symbol:    oc.pair.Symbol,
		Status:    StatusOpen,
		CreatedAt: oc.now(),
	}
	if err := oc.deals.SaveDeal(ctx, d); err != nil {
		return nil, errors.Wrap(err, "deal: persist")
	}

	sell := oc.factory.Limit(exchange.SideSell, sellSpec.Amount, sellSpec.Price, d.ID)
	if err := oc.orders.SaveOrder(ctx, sell); err != nil {
		return nil, errors.Wrap(err, "deal: persist pending sell")
	}
	d.SellOrderID = sell.LocalID

	res := oc.placer.PlaceBuy(ctx, buySpec.Amount, buySpec.Price, d.ID)
	if res.Err != nil && oc.rejectedBeforePlacement(res.Err) {
		// Nothing reached the venue; unwind the deal.
		sell.Status = order.StatusCanceled
		sell.LastUpdate = oc.now()
		if err := oc.orders.UpdateOrder(ctx, sell); err != nil {
			log.Errorw("unwind pending sell", "deal", d.ID, "err", err)
		}
		if err := d.Cancel(oc.now()); err == nil {
			if uerr := oc.deals.UpdateDeal(ctx, d); uerr != nil {
				log.Errorw("unwind deal", "deal", d.ID, "err", uerr)
			}
		}
		return nil, errors.Wrapf(res.Err, "deal %s: buy rejected", d.ID)
	}

	if res.Order != nil {
		d.BuyOrderID = res.Order.LocalID
	}
	if err := oc.deals.UpdateDeal(ctx, d); err != nil {
		return d, errors.Wrap(err, "deal: persist order refs")
	}

	if res.Err != nil {
		// BUY is FAILED on our side; keep the deal open for recovery.
		log.Errorw("deal opened with failed buy", "deal", d.ID, "err", res.Err)
		return d, errors.Wrapf(res.Err, "deal %s: buy placement", d.ID)
	}

	log.Infow("deal created", "deal", d.ID, "symbol", d.Symbol,
		"buy", d.BuyOrderID, "sell", d.SellOrderID)
	oc.stats.IncrementCounter("deal.created", map[string]string{"symbol": d.Symbol})
	oc.bus.Publish(events.TopicDealCreated, *d)
	return d, nil
}

func (oc *Orchestrator) rejectedBeforePlacement(err error) bool {
	return placement.IsValidation(err) || stderrors.Is(err, placement.ErrInsufficientBalance)
}

// CancelDeal cancels a deal's live orders and marks it CANCELED. Terminal
// deals are a no-op.
func (oc *Orchestrator) CancelDeal(ctx context.Context, dealID, reason string) error {
	d, err := oc.deals.Deal(ctx, dealID)
	if err != nil {
		return errors.Wrap(err, "deal: load")
	}
	if d.Status.Terminal() {
		return nil
	}

	if _, err := oc.canceler.CancelByDeal(ctx, dealID, reason); err != nil {
		return errors.Wrapf(err, "deal %s: cancel orders", dealID)
	}

	// Close out any local-only PENDING orders the venue never saw.
	orders, err := oc.orders.OrdersByDeal(ctx, dealID)
	if err != nil {
		return errors.Wrapf(err, "deal %s: load orders", dealID)
	}
	for _, o := range orders {
		if o.Status == order.StatusPending {
			o.Status = order.StatusCanceled
			o.SetMeta("cancel_reason", reason)
			o.LastUpdate = oc.now()
			if uerr := oc.orders.UpdateOrder(ctx, o); uerr != nil {
				logger.Get().Errorw("persist canceled pending order", "order", o.LocalID, "err", uerr)
			}
		}
	}

	if err := d.Cancel(oc.now()); err != nil {
		return err
	}
	if err := oc.deals.UpdateDeal(ctx, d); err != nil {
		return errors.Wrapf(err, "deal %s: persist cancel", dealID)
	}
	logger.Get().Infow("deal canceled", "deal", dealID, "reason", reason)
	oc.stats.IncrementCounter("deal.canceled", map[string]string{"symbol": d.Symbol})
	oc.bus.Publish(events.TopicDealCanceled, *d)
	return nil
}
