package order

import (
	"time"

	"dealcore/pkg/exchange"
)

// Status is the local lifecycle state of an order.
type Status string

const (
	StatusPending         Status = "PENDING"           // created locally, not on the venue yet
	StatusOpen            Status = "OPEN"              // accepted by the venue
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusNotFound        Status = "NOT_FOUND" // venue no longer knows the order
	StatusFailed          Status = "FAILED"    // placement exhausted or unexpected error
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusNotFound, StatusFailed:
		return true
	}
	return false
}

// Live reports whether the order is currently working on the venue.
func (s Status) Live() bool {
	return s == StatusOpen || s == StatusPartiallyFilled
}

// Order is a local order record paired to a deal. Remaining quantity is
// always derived, never stored.
type Order struct {
	LocalID       int64
	ExchangeID    string // empty until the venue accepts the order
	ClientOrderID string
	DealID        string
	Symbol        string
	Side          exchange.Side
	Type          exchange.OrderType
	Price         float64
	Amount        float64
	Filled        float64
	Cost          float64
	Average       float64
	FeeCost       float64
	FeeCurrency   string
	Status        Status
	Retries       int
	ErrorMessage  string
	Metadata      map[string]string
	CreatedAt     time.Time
	LastUpdate    time.Time
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 {
	r := o.Amount - o.Filled
	if r < 0 {
		return 0
	}
	return r
}

// IsFilled reports whether the order is completely filled.
func (o *Order) IsFilled() bool {
	return o.Amount > 0 && o.Filled >= o.Amount
}

// Age returns the time since creation.
func (o *Order) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// SetMeta records a metadata key, allocating the map on first use.
func (o *Order) SetMeta(key, value string) {
	if o.Metadata == nil {
		o.Metadata = make(map[string]string)
	}
	o.Metadata[key] = value
}

// ApplyVenueData merges the venue's view into the local order and reports
// whether the status changed. Filled quantity is clamped to [0, amount].
func (o *Order) ApplyVenueData(d exchange.OrderData, now time.Time) (statusChanged bool) {
	prev := o.Status

	if d.ID != "" {
		o.ExchangeID = d.ID
	}
	filled := d.Filled
	if filled < 0 {
		filled = 0
	}
	if filled > o.Amount {
		filled = o.Amount
	}
	o.Filled = filled
	if d.Cost > 0 {
		o.Cost = d.Cost
	}
	if d.Average > 0 {
		o.Average = d.Average
	}
	if d.Fee.Cost > 0 {
		o.FeeCost = d.Fee.Cost
		o.FeeCurrency = d.Fee.Currency
	}

	if next, ok := statusFromVenue(d.Status, o.Filled, o.Amount); ok {
		o.Status = next
	}
	o.LastUpdate = now
	return o.Status != prev
}

func statusFromVenue(s exchange.OrderStatus, filled, amount float64) (Status, bool) {
	switch s {
	case exchange.StatusFilled:
		return StatusFilled, true
	case exchange.StatusPartial:
		return StatusPartiallyFilled, true
	case exchange.StatusCanceled:
		return StatusCanceled, true
	case exchange.StatusExpired:
		return StatusCanceled, true
	case exchange.StatusRejected:
		return StatusFailed, true
	case exchange.StatusNew:
		if amount > 0 && filled >= amount {
			return StatusFilled, true
		}
		if filled > 0 {
			return StatusPartiallyFilled, true
		}
		return StatusOpen, true
	}
	return "", false
}
