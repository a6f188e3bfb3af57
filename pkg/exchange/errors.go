package exchange

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Sentinel error kinds gateways wrap so callers can handle failures as data.
var (
	ErrInsufficientFunds = errors.New("exchange: insufficient funds")
	ErrInvalidOrder      = errors.New("exchange: invalid order")
	ErrOrderNotFound     = errors.New("exchange: order not found")
	ErrNetwork           = errors.New("exchange: network error")
	ErrRateLimited       = errors.New("exchange: rate limited")
)

// IsNotFound reports whether err means the venue does not know the order.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrOrderNotFound)
}

// IsInsufficientFunds reports whether err is a funds rejection.
func IsInsufficientFunds(err error) bool {
	return stderrors.Is(err, ErrInsufficientFunds)
}

// IsInvalidOrder reports whether the venue rejected the order parameters.
func IsInvalidOrder(err error) bool {
	return stderrors.Is(err, ErrInvalidOrder)
}

// IsTransient reports whether err is worth retrying (network or rate limit).
func IsTransient(err error) bool {
	return stderrors.Is(err, ErrNetwork) || stderrors.Is(err, ErrRateLimited)
}
