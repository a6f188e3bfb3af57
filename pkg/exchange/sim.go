package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SimGateway is an in-process venue used for dry runs and tests. Fills are
// driven explicitly (Fill) or on creation (FillOnCreate); transient failures
// can be injected to exercise retry paths.
type SimGateway struct {
	mu       sync.Mutex
	balances AccountBalance
	tickers  map[string]Ticker
	orders   map[string]*OrderData
	seq      int64

	// FillOnCreate marks every created order FILLED immediately.
	FillOnCreate bool

	failCreates int
	nextErr     error
}

// NewSim creates a simulated venue with the given starting balances.
func NewSim(balances AccountBalance) *SimGateway {
	if balances == nil {
		balances = AccountBalance{}
	}
	return &SimGateway{
		balances: balances,
		tickers:  make(map[string]Ticker),
		orders:   make(map[string]*OrderData),
	}
}

// SetTicker installs the top-of-book snapshot returned for symbol.
func (s *SimGateway) SetTicker(t Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[t.Symbol] = t
}

// SetBalance overwrites the balance for one currency.
func (s *SimGateway) SetBalance(currency string, b Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[currency] = b
}

// FailCreates makes the next n CreateOrder calls fail with a network error.
func (s *SimGateway) FailCreates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreates = n
}

// FailNextWith makes the next CreateOrder call fail with err.
func (s *SimGateway) FailNextWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextErr = err
}

// Fill marks an open order (partially) filled. amount <= 0 fills the remainder.
func (s *SimGateway) Fill(orderID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return errors.Wrapf(ErrOrderNotFound, "sim: fill %s", orderID)
	}
	if amount <= 0 || amount > o.Remaining {
		amount = o.Remaining
	}
	o.Filled += amount
	o.Remaining = o.Amount - o.Filled
	o.Cost += amount * o.Price
	if o.Filled > 0 {
		o.Average = o.Cost / o.Filled
	}
	o.Trades = append(o.Trades, Trade{
		ID:        fmt.Sprintf("t-%s-%d", orderID, len(o.Trades)+1),
		Price:     o.Price,
		Amount:    amount,
		Timestamp: time.Now(),
	})
	if o.Remaining <= 0 {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartial
	}
	return nil
}

// Drop forgets an order entirely, simulating venue-side pruning.
func (s *SimGateway) Drop(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderID)
}

func (s *SimGateway) CreateOrder(ctx context.Context, req OrderRequest) (OrderData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextErr != nil {
		err := s.nextErr
		s.nextErr = nil
		return OrderData{}, err
	}
	if s.failCreates > 0 {
		s.failCreates--
		return OrderData{}, errors.Wrap(ErrNetwork, "sim: injected failure")
	}
	if req.Amount <= 0 {
		return OrderData{}, errors.Wrap(ErrInvalidOrder, "sim: non-positive amount")
	}
	if req.Type == OrderTypeLimit && req.Price <= 0 {
		return OrderData{}, errors.Wrap(ErrInvalidOrder, "sim: limit order without price")
	}

	s.seq++
	o := &OrderData{
		ID:            fmt.Sprintf("sim-%d", s.seq),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Price:         req.Price,
		Amount:        req.Amount,
		Remaining:     req.Amount,
		Status:        StatusNew,
		Timestamp:     time.Now(),
	}
	s.orders[o.ID] = o

	if s.FillOnCreate {
		price := o.Price
		if price <= 0 {
			if t, ok := s.tickers[o.Symbol]; ok {
				price = t.Last
			}
		}
		o.Price = price
		o.Filled = o.Amount
		o.Remaining = 0
		o.Cost = o.Amount * price
		o.Average = price
		o.Status = StatusFilled
	}
	return *o, nil
}

func (s *SimGateway) CancelOrder(ctx context.Context, symbol, orderID string) (OrderData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return OrderData{}, errors.Wrapf(ErrOrderNotFound, "sim: cancel %s", orderID)
	}
	if o.Status == StatusNew || o.Status == StatusPartial {
		o.Status = StatusCanceled
	}
	return *o, nil
}

func (s *SimGateway) FetchOrder(ctx context.Context, symbol, orderID string) (OrderData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return OrderData{}, errors.Wrapf(ErrOrderNotFound, "sim: fetch %s", orderID)
	}
	return *o, nil
}

func (s *SimGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]OrderData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []OrderData
	for _, o := range s.orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if o.Status == StatusNew || o.Status == StatusPartial {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (s *SimGateway) FetchBalance(ctx context.Context) (AccountBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(AccountBalance, len(s.balances))
	for c, b := range s.balances {
		out[c] = b
	}
	return out, nil
}

func (s *SimGateway) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickers[symbol]
	if !ok {
		return Ticker{}, errors.Wrapf(ErrNetwork, "sim: no ticker for %s", symbol)
	}
	return t, nil
}
