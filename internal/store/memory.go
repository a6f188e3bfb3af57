package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"dealcore/internal/deal"
	"dealcore/internal/order"
)

// Memory is a map-backed repository for tests and dry runs. Records are
// copied in and out so callers never alias stored state.
type Memory struct {
	mu     sync.RWMutex
	orders map[int64]*order.Order
	deals  map[string]*deal.Deal
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		orders: make(map[int64]*order.Order),
		deals:  make(map[string]*deal.Deal),
	}
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	if o.Metadata != nil {
		c.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func (m *Memory) SaveOrder(ctx context.Context, o *order.Order) error {
	if o.LocalID == 0 {
		return errors.New("store: order has no local id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.LocalID] = cloneOrder(o)
	return nil
}

func (m *Memory) UpdateOrder(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.LocalID]; !ok {
		return errors.Wrapf(ErrNotFound, "order %d", o.LocalID)
	}
	m.orders[o.LocalID] = cloneOrder(o)
	return nil
}

func (m *Memory) Order(ctx context.Context, localID int64) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[localID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "order %d", localID)
	}
	return cloneOrder(o), nil
}

func (m *Memory) OrdersByDeal(ctx context.Context, dealID string) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*order.Order
	for _, o := range m.orders {
		if o.DealID == dealID {
			res = append(res, cloneOrder(o))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LocalID < res[j].LocalID })
	return res, nil
}

func (m *Memory) OpenOrders(ctx context.Context) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*order.Order
	for _, o := range m.orders {
		if !o.Status.Terminal() {
			res = append(res, cloneOrder(o))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LocalID < res[j].LocalID })
	return res, nil
}

func (m *Memory) SaveDeal(ctx context.Context, d *deal.Deal) error {
	if d.ID == "" {
		return errors.New("store: deal has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *d
	m.deals[d.ID] = &c
	return nil
}

func (m *Memory) UpdateDeal(ctx context.Context, d *deal.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.deals[d.ID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "deal %s", d.ID)
	}
	c := *d
	// The claim token is only set through ClaimSellSubmission; never let a
	// stale in-flight copy clear it.
	c.SellSubmitted = c.SellSubmitted || cur.SellSubmitted
	m.deals[d.ID] = &c
	return nil
}

func (m *Memory) Deal(ctx context.Context, id string) (*deal.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deals[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "deal %s", id)
	}
	c := *d
	return &c, nil
}

func (m *Memory) OpenDeals(ctx context.Context) ([]*deal.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*deal.Deal
	for _, d := range m.deals {
		if d.Status == deal.StatusOpen {
			c := *d
			res = append(res, &c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *Memory) ClaimSellSubmission(ctx context.Context, dealID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[dealID]
	if !ok {
		return false, errors.Wrapf(ErrNotFound, "deal %s", dealID)
	}
	if d.SellSubmitted {
		return false, nil
	}
	d.SellSubmitted = true
	return true, nil
}
