package exchange

import (
	"context"
	"testing"
	"time"
)

func TestThrottlePassthrough(t *testing.T) {
	sim := NewSim(AccountBalance{"USDT": {Free: 100}})
	sim.SetTicker(Ticker{Symbol: "BTC/USDT", Last: 100})
	gw := Throttle(sim, 1000, 10)
	ctx := context.Background()

	data, err := gw.CreateOrder(ctx, limitReq(1, 100))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := gw.FetchOrder(ctx, "BTC/USDT", data.ID); err != nil {
		t.Errorf("FetchOrder: %v", err)
	}
	if _, err := gw.FetchOpenOrders(ctx, "BTC/USDT"); err != nil {
		t.Errorf("FetchOpenOrders: %v", err)
	}
	if _, err := gw.FetchBalance(ctx); err != nil {
		t.Errorf("FetchBalance: %v", err)
	}
	if _, err := gw.FetchTicker(ctx, "BTC/USDT"); err != nil {
		t.Errorf("FetchTicker: %v", err)
	}
	if _, err := gw.CancelOrder(ctx, "BTC/USDT", data.ID); err != nil {
		t.Errorf("CancelOrder: %v", err)
	}

	// errors pass through untouched
	sim.Drop(data.ID)
	if _, err := gw.FetchOrder(ctx, "BTC/USDT", data.ID); !IsNotFound(err) {
		t.Errorf("err = %v, want not-found", err)
	}
}

func TestThrottleHonorsContext(t *testing.T) {
	sim := NewSim(nil)
	gw := Throttle(sim, 0.001, 1) // effectively one call per ~17 minutes

	ctx := context.Background()
	if _, err := gw.FetchBalance(ctx); err != nil {
		t.Fatalf("first call uses the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := gw.FetchBalance(ctx); err == nil {
		t.Error("second call must fail once the context deadline passes")
	}
}
