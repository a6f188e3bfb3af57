package order

import "github.com/shopspring/decimal"

// SnapAmount snaps amount to the venue step size and clamps it into
// [min, max]. roundUp selects ceiling (BUY amounts), otherwise floor.
// A zero step passes the value through (still clamped). The result never
// violates the venue bounds.
func SnapAmount(amount, step, min, max float64, roundUp bool) float64 {
	v := snap(amount, step, roundUp)
	if min > 0 && v < min {
		v = snap(min, step, true)
	}
	if max > 0 && v > max {
		v = snap(max, step, false)
	}
	return v
}

// SnapPrice snaps price down to the venue tick size and clamps it into
// [min, max]. Zero tick passes the value through.
func SnapPrice(price, tick, min, max float64) float64 {
	v := snap(price, tick, false)
	if min > 0 && v < min {
		v = snap(min, tick, true)
	}
	if max > 0 && v > max {
		v = snap(max, tick, false)
	}
	return v
}

// snap rounds v to a multiple of step using decimal arithmetic so values
// like 0.001 do not pick up binary float noise.
func snap(v, step float64, roundUp bool) float64 {
	if step <= 0 || v <= 0 {
		return v
	}
	dv := decimal.NewFromFloat(v)
	ds := decimal.NewFromFloat(step)
	steps := dv.Div(ds)
	if roundUp {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	out, _ := steps.Mul(ds).Float64()
	return out
}

// Aligned reports whether v is a whole multiple of step within decimal
// precision. Zero step is always aligned.
func Aligned(v, step float64) bool {
	if step <= 0 {
		return true
	}
	dv := decimal.NewFromFloat(v)
	ds := decimal.NewFromFloat(step)
	return dv.Mod(ds).IsZero()
}
