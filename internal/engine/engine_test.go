package engine

import (
	"context"
	"path/filepath"
	"testing"

	"dealcore/internal/deal"
	"dealcore/internal/order"
	"dealcore/pkg/config"
	"dealcore/pkg/exchange"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.DryRun = true
	return cfg
}

func testSim() *exchange.SimGateway {
	sim := exchange.NewSim(exchange.AccountBalance{
		"USDT": {Free: 10000, Total: 10000},
		"BTC":  {Free: 1, Total: 1},
	})
	sim.SetTicker(exchange.Ticker{Symbol: "BTC/USDT", Bid: 50000, Ask: 50010, Last: 50005})
	return sim
}

func TestNewRequiresGatewayOutsideDryRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = false
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error without a gateway")
	}
}

func TestOpenDealAtMarket(t *testing.T) {
	cfg := testConfig(t)
	sim := testSim()
	eng, err := New(cfg, sim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	d, err := eng.OpenDealAtMarket(ctx)
	if err != nil {
		t.Fatalf("OpenDealAtMarket: %v", err)
	}
	if d.Status != deal.StatusOpen {
		t.Errorf("deal = %s, want OPEN", d.Status)
	}

	buy, err := eng.repo.Order(ctx, d.BuyOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if buy.Price != 50000 {
		t.Errorf("buy price = %g, want the bid", buy.Price)
	}
	if buy.Status != order.StatusOpen {
		t.Errorf("buy = %s, want OPEN on venue", buy.Status)
	}

	sell, err := eng.repo.Order(ctx, d.SellOrderID)
	if err != nil {
		t.Fatal(err)
	}
	if sell.Status != order.StatusPending {
		t.Errorf("sell = %s, want local PENDING", sell.Status)
	}
	if sell.Price <= buy.Price {
		t.Errorf("sell price %g must carry the markup over %g", sell.Price, buy.Price)
	}
}

func TestOpenDealAtMarketNoTicker(t *testing.T) {
	cfg := testConfig(t)
	sim := exchange.NewSim(exchange.AccountBalance{"USDT": {Free: 10000}})
	eng, err := New(cfg, sim)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.OpenDealAtMarket(context.Background()); err == nil {
		t.Error("expected error without a ticker")
	}
}

func TestStartStop(t *testing.T) {
	cfg := testConfig(t)
	eng, err := New(cfg, testSim())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	eng.Start(ctx)
	eng.Start(ctx) // second start is a no-op
	eng.Stop()
	eng.Stop() // second stop is a no-op
}

func TestStartAfterStopIsNoOp(t *testing.T) {
	cfg := testConfig(t)
	eng, err := New(cfg, testSim())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	eng.Start(ctx)
	eng.Stop()

	// the bus is gone with Stop; a restarted loop would publish into the void
	eng.Start(ctx)
	if eng.running {
		t.Error("stopped engine restarted its loops")
	}
	if !eng.stopped {
		t.Error("engine lost its stopped state")
	}
}

func TestStopBeforeStartReleasesResources(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = false
	cfg.DBPath = filepath.Join(t.TempDir(), "never-started.db")

	eng, err := New(cfg, testSim())
	if err != nil {
		t.Fatal(err)
	}
	eng.Stop()
	if !eng.stopped {
		t.Error("Stop on a never-started engine must still finalize it")
	}
	eng.Stop() // repeat stays a no-op
}

func TestEmergencyStop(t *testing.T) {
	cfg := testConfig(t)
	eng, err := New(cfg, testSim())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	eng.Start(ctx)

	if _, err := eng.OpenDealAtMarket(ctx); err != nil {
		t.Fatal(err)
	}

	res := eng.EmergencyStop(ctx)
	if res.Canceled != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, want the live buy canceled", res)
	}
	open, err := eng.repo.OpenOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range open {
		if o.Status.Live() {
			t.Errorf("order %d still live after emergency stop", o.LocalID)
		}
	}
}

func TestNewWithSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = false
	cfg.DBPath = filepath.Join(t.TempDir(), "engine.db")

	eng, err := New(cfg, testSim())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Stop()

	d, err := eng.OpenDealAtMarket(context.Background())
	if err != nil {
		t.Fatalf("OpenDealAtMarket: %v", err)
	}
	got, err := eng.repo.Deal(context.Background(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != deal.StatusOpen {
		t.Errorf("persisted deal = %s", got.Status)
	}
}
