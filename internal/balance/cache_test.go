package balance

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"dealcore/pkg/exchange"
)

type fakeClient struct {
	calls    int
	balances exchange.AccountBalance
	err      error
}

func (f *fakeClient) FetchBalance(ctx context.Context) (exchange.AccountBalance, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.balances, nil
}

func pair() exchange.CurrencyPair {
	return exchange.CurrencyPair{
		Symbol:        "BTC/USDT",
		BaseCurrency:  "BTC",
		QuoteCurrency: "USDT",
	}
}

func TestSnapshotCachesWithinTTL(t *testing.T) {
	client := &fakeClient{balances: exchange.AccountBalance{"USDT": {Free: 100}}}
	c := NewCache(client, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := c.Snapshot(ctx); err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
	}
	if client.calls != 1 {
		t.Errorf("venue calls = %d, want 1", client.calls)
	}

	c.Clear()
	if _, err := c.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	if client.calls != 2 {
		t.Errorf("venue calls after Clear = %d, want 2", client.calls)
	}
}

func TestSnapshotRefreshError(t *testing.T) {
	client := &fakeClient{err: errors.New("venue down")}
	c := NewCache(client, time.Minute)
	if _, err := c.Snapshot(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
}

func TestCheckSufficient(t *testing.T) {
	client := &fakeClient{balances: exchange.AccountBalance{
		"USDT": {Free: 100},
		"BTC":  {Free: 0.005},
	}}
	c := NewCache(client, time.Minute)
	ctx := context.Background()

	tests := []struct {
		name       string
		side       exchange.Side
		amount     float64
		price      float64
		sufficient bool
		currency   string
		required   float64
	}{
		{"buy within funds", exchange.SideBuy, 0.001, 20000, true, "USDT", 20},
		{"buy exceeds funds", exchange.SideBuy, 0.01, 20000, false, "USDT", 200},
		{"sell within holdings", exchange.SideSell, 0.004, 20000, true, "BTC", 0.004},
		{"sell exceeds holdings", exchange.SideSell, 0.01, 20000, false, "BTC", 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, err := c.CheckSufficient(ctx, pair(), tt.side, tt.amount, tt.price)
			if err != nil {
				t.Fatalf("CheckSufficient: %v", err)
			}
			if check.Sufficient != tt.sufficient {
				t.Errorf("Sufficient = %v, want %v (check %+v)", check.Sufficient, tt.sufficient, check)
			}
			if check.Currency != tt.currency {
				t.Errorf("Currency = %s, want %s", check.Currency, tt.currency)
			}
			if check.Required != tt.required {
				t.Errorf("Required = %g, want %g", check.Required, tt.required)
			}
		})
	}
}

func TestCheckSufficientUnknownCurrency(t *testing.T) {
	client := &fakeClient{balances: exchange.AccountBalance{}}
	c := NewCache(client, time.Minute)

	check, err := c.CheckSufficient(context.Background(), pair(), exchange.SideBuy, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if check.Sufficient {
		t.Error("missing currency must be insufficient")
	}
	if check.Available != 0 {
		t.Errorf("Available = %g, want 0", check.Available)
	}
}
