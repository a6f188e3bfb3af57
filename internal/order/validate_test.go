package order

import (
	"strings"
	"testing"

	"dealcore/pkg/exchange"
)

func TestValidate(t *testing.T) {
	pair := testPair()

	tests := []struct {
		name    string
		side    exchange.Side
		typ     exchange.OrderType
		amount  float64
		price   float64
		valid   bool
		errPart string
	}{
		{"valid limit buy", exchange.SideBuy, exchange.OrderTypeLimit, 0.001, 50000, true, ""},
		{"unknown side", exchange.Side("HOLD"), exchange.OrderTypeLimit, 0.001, 50000, false, "unknown side"},
		{"unknown type", exchange.SideBuy, exchange.OrderType("ICEBERG"), 0.001, 50000, false, "unknown order type"},
		{"zero amount", exchange.SideBuy, exchange.OrderTypeLimit, 0, 50000, false, "amount must be positive"},
		{"below min amount", exchange.SideBuy, exchange.OrderTypeLimit, 0.0005, 50000, false, "below venue minimum"},
		{"misaligned amount", exchange.SideBuy, exchange.OrderTypeLimit, 0.0015, 50000, false, "not aligned to step"},
		{"limit without price", exchange.SideBuy, exchange.OrderTypeLimit, 0.001, 0, false, "requires a positive price"},
		{"misaligned price", exchange.SideBuy, exchange.OrderTypeLimit, 0.001, 50000.005, false, "not aligned to tick"},
		{"below min notional", exchange.SideBuy, exchange.OrderTypeLimit, 0.001, 5000, false, "notional"},
		{"market needs no price", exchange.SideSell, exchange.OrderTypeMarket, 0.001, 0, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(pair, tt.side, tt.typ, tt.amount, tt.price)
			if res.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v (errors: %v)", res.Valid, tt.valid, res.Errors)
			}
			if tt.errPart != "" && !containsPart(res.Errors, tt.errPart) {
				t.Errorf("errors %v missing %q", res.Errors, tt.errPart)
			}
		})
	}
}

func TestValidateMinNotionalWarning(t *testing.T) {
	pair := testPair()
	// 0.001 * 10500 = 10.5, above the 10 minimum but inside the warn band.
	res := Validate(pair, exchange.SideBuy, exchange.OrderTypeLimit, 0.001, 10500)
	if !res.Valid {
		t.Fatalf("expected valid, errors: %v", res.Errors)
	}
	if !containsPart(res.Warnings, "close to venue minimum") {
		t.Errorf("warnings %v missing notional warning", res.Warnings)
	}
}

func containsPart(list []string, part string) bool {
	for _, s := range list {
		if strings.Contains(s, part) {
			return true
		}
	}
	return false
}
