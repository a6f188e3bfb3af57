package deal

import (
	"time"

	"github.com/pkg/errors"
)

// Status is the deal lifecycle state.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusClosed   Status = "CLOSED"
	StatusCanceled Status = "CANCELED"
)

// Terminal reports whether the status permits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// Deal pairs a BUY entry with a SELL exit intended to capture a fixed
// markup. Orders are referenced by local id and live in the order repository.
type Deal struct {
	ID          string
	Symbol      string
	Status      Status
	BuyOrderID  int64
	SellOrderID int64

	// SellSubmitted is the persisted idempotency token for "place SELL on
	// BUY fill". It is only set through the repository's atomic claim.
	SellSubmitted bool

	Profit    float64
	CreatedAt time.Time
	ClosedAt  time.Time // zero until closed
}

// Close transitions the deal to CLOSED. Only valid from OPEN, and only once
// both orders have been independently confirmed filled by the caller.
func (d *Deal) Close(profit float64, at time.Time) error {
	if d.Status.Terminal() {
		return errors.Errorf("deal %s: cannot close from %s", d.ID, d.Status)
	}
	d.Status = StatusClosed
	d.Profit = profit
	d.ClosedAt = at
	return nil
}

// Cancel transitions the deal to CANCELED.
func (d *Deal) Cancel(at time.Time) error {
	if d.Status.Terminal() {
		return errors.Errorf("deal %s: cannot cancel from %s", d.ID, d.Status)
	}
	d.Status = StatusCanceled
	d.ClosedAt = at
	return nil
}
