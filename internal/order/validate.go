package order

import (
	"fmt"

	"dealcore/pkg/exchange"
)

// ValidationResult is the outcome of pre-placement validation. Errors block
// placement; warnings do not.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// minNotionalWarnBand flags orders whose notional sits within 10% of the
// venue minimum, where partial fills can strand un-closeable remainders.
const minNotionalWarnBand = 1.1

// Validate checks order parameters against venue limits. It is pure and must
// run before any network call.
func Validate(pair exchange.CurrencyPair, side exchange.Side, typ exchange.OrderType, amount, price float64) ValidationResult {
	var res ValidationResult

	if side != exchange.SideBuy && side != exchange.SideSell {
		res.Errors = append(res.Errors, fmt.Sprintf("unknown side %q", side))
	}
	switch typ {
	case exchange.OrderTypeLimit, exchange.OrderTypeMarket, exchange.OrderTypeStop, exchange.OrderTypeTakeProfit:
	default:
		res.Errors = append(res.Errors, fmt.Sprintf("unknown order type %q", typ))
	}

	if amount <= 0 {
		res.Errors = append(res.Errors, "amount must be positive")
	}
	lim := pair.Limits
	if amount > 0 {
		if lim.MinAmount > 0 && amount < lim.MinAmount {
			res.Errors = append(res.Errors, fmt.Sprintf("amount %g below venue minimum %g", amount, lim.MinAmount))
		}
		if lim.MaxAmount > 0 && amount > lim.MaxAmount {
			res.Errors = append(res.Errors, fmt.Sprintf("amount %g above venue maximum %g", amount, lim.MaxAmount))
		}
		if !Aligned(amount, pair.StepSize) {
			res.Errors = append(res.Errors, fmt.Sprintf("amount %g not aligned to step %g", amount, pair.StepSize))
		}
	}

	if typ == exchange.OrderTypeLimit {
		if price <= 0 {
			res.Errors = append(res.Errors, "limit order requires a positive price")
		} else {
			if lim.MinPrice > 0 && price < lim.MinPrice {
				res.Errors = append(res.Errors, fmt.Sprintf("price %g below venue minimum %g", price, lim.MinPrice))
			}
			if lim.MaxPrice > 0 && price > lim.MaxPrice {
				res.Errors = append(res.Errors, fmt.Sprintf("price %g above venue maximum %g", price, lim.MaxPrice))
			}
			if !Aligned(price, pair.TickSize) {
				res.Errors = append(res.Errors, fmt.Sprintf("price %g not aligned to tick %g", price, pair.TickSize))
			}
		}
	}

	if typ == exchange.OrderTypeLimit && amount > 0 && price > 0 && lim.MinNotional > 0 {
		notional := amount * price
		if notional < lim.MinNotional {
			res.Errors = append(res.Errors, fmt.Sprintf("notional %g below venue minimum %g", notional, lim.MinNotional))
		} else if notional < lim.MinNotional*minNotionalWarnBand {
			res.Warnings = append(res.Warnings, fmt.Sprintf("notional %g close to venue minimum %g", notional, lim.MinNotional))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}
