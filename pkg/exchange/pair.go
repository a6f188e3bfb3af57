package exchange

import "github.com/pkg/errors"

// Precision holds venue decimal places for a pair.
type Precision struct {
	Amount int
	Price  int
}

// Limits holds venue order constraints for a pair.
type Limits struct {
	MinAmount   float64
	MaxAmount   float64
	MinPrice    float64
	MaxPrice    float64
	MinNotional float64
}

// Fees holds the venue fee schedule as decimal fractions.
type Fees struct {
	Maker float64
	Taker float64
}

// CurrencyPair describes a tradable market and the strategy parameters
// attached to it (per-deal notional and target markup).
type CurrencyPair struct {
	Symbol        string // e.g. "BTC/USDT"
	BaseCurrency  string
	QuoteCurrency string

	DealQuota    float64 // quote notional committed per deal
	ProfitMarkup float64 // target SELL premium over BUY, decimal fraction

	StepSize  float64 // amount increment; 0 means unconstrained
	TickSize  float64 // price increment; 0 means unconstrained
	Precision Precision
	Limits    Limits
	Fees      Fees
}

// Validate checks the pair definition at construction time.
func (p CurrencyPair) Validate() error {
	if p.Symbol == "" {
		return errors.New("pair: symbol is empty")
	}
	if p.BaseCurrency == "" || p.QuoteCurrency == "" {
		return errors.Errorf("pair %s: base/quote currency missing", p.Symbol)
	}
	if p.DealQuota < 0 || p.ProfitMarkup < 0 {
		return errors.Errorf("pair %s: negative deal quota or markup", p.Symbol)
	}
	if p.StepSize < 0 || p.TickSize < 0 {
		return errors.Errorf("pair %s: negative step/tick size", p.Symbol)
	}
	if p.Limits.MinAmount < 0 || p.Limits.MinNotional < 0 {
		return errors.Errorf("pair %s: negative limits", p.Symbol)
	}
	if p.Limits.MaxAmount > 0 && p.Limits.MaxAmount < p.Limits.MinAmount {
		return errors.Errorf("pair %s: max amount below min amount", p.Symbol)
	}
	return nil
}
