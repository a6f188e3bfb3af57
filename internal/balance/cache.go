// Package balance serves balance checks from a TTL-cached account snapshot
// so placement does not hit the venue on every order.
package balance

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"dealcore/pkg/exchange"
	"dealcore/pkg/logger"
)

// DefaultTTL is how long a snapshot stays fresh.
const DefaultTTL = 30 * time.Second

const snapshotKey = "balances"

// ExchangeClient is the gateway surface the cache needs.
type ExchangeClient interface {
	FetchBalance(ctx context.Context) (exchange.AccountBalance, error)
}

// Check is the outcome of a sufficiency check.
type Check struct {
	Sufficient bool
	Currency   string
	Required   float64
	Available  float64
}

// Cache holds a full-balance snapshot with a TTL. Reads past the TTL trigger
// a synchronous refresh; concurrent refreshes are last-writer-wins, which is
// acceptable since every writer stores a complete snapshot.
type Cache struct {
	exchange ExchangeClient
	snap     *gocache.Cache
}

// NewCache creates a balance cache. ttl <= 0 selects DefaultTTL.
func NewCache(ex ExchangeClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		exchange: ex,
		snap:     gocache.New(ttl, ttl),
	}
}

// Snapshot returns the cached account balance, refreshing from the venue
// when the TTL has lapsed.
func (c *Cache) Snapshot(ctx context.Context) (exchange.AccountBalance, error) {
	if v, ok := c.snap.Get(snapshotKey); ok {
		return v.(exchange.AccountBalance), nil
	}
	return c.refresh(ctx)
}

func (c *Cache) refresh(ctx context.Context) (exchange.AccountBalance, error) {
	bal, err := c.exchange.FetchBalance(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "balance: refresh")
	}
	c.snap.Set(snapshotKey, bal, gocache.DefaultExpiration)
	logger.Get().Debugw("balance snapshot refreshed", "currencies", len(bal))
	return bal, nil
}

// CheckSufficient reports whether the account can fund an order. BUY needs
// quote currency worth amount*price; SELL needs the base amount.
func (c *Cache) CheckSufficient(ctx context.Context, pair exchange.CurrencyPair, side exchange.Side, amount, price float64) (Check, error) {
	currency := pair.QuoteCurrency
	required := amount * price
	if side == exchange.SideSell {
		currency = pair.BaseCurrency
		required = amount
	}

	snap, err := c.Snapshot(ctx)
	if err != nil {
		return Check{Currency: currency, Required: required}, err
	}

	available := snap[currency].Free
	return Check{
		Sufficient: available >= required,
		Currency:   currency,
		Required:   required,
		Available:  available,
	}, nil
}

// Clear drops the snapshot so the next read refreshes.
func (c *Cache) Clear() {
	c.snap.Flush()
}
