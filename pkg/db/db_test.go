package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dealcore/internal/deal"
	"dealcore/internal/order"
	"dealcore/internal/store"
	"dealcore/pkg/exchange"
)

func newDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func sampleOrder(localID int64, dealID string, status order.Status) *order.Order {
	now := time.Now().UTC().Truncate(time.Second)
	return &order.Order{
		LocalID:       localID,
		ClientOrderID: "dc-test",
		DealID:        dealID,
		Symbol:        "BTC/USDT",
		Side:          exchange.SideBuy,
		Type:          exchange.OrderTypeLimit,
		Price:         50000,
		Amount:        0.002,
		Status:        status,
		CreatedAt:     now,
		LastUpdate:    now,
	}
}

func TestOrderRoundTrip(t *testing.T) {
	d := newDB(t)
	ctx := context.Background()

	o := sampleOrder(1, "d1", order.StatusPending)
	o.SetMeta("cancel_reason", "test")
	if err := d.SaveOrder(ctx, o); err != nil {
		t.Fatal(err)
	}

	got, err := d.Order(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Side != exchange.SideBuy || got.Type != exchange.OrderTypeLimit {
		t.Errorf("side/type = %s/%s", got.Side, got.Type)
	}
	if got.Status != order.StatusPending || got.Price != 50000 || got.Amount != 0.002 {
		t.Errorf("got %+v", got)
	}
	if got.Metadata["cancel_reason"] != "test" {
		t.Errorf("metadata = %v", got.Metadata)
	}

	got.ExchangeID = "x-1"
	got.Status = order.StatusOpen
	got.Filled = 0.001
	if err := d.UpdateOrder(ctx, got); err != nil {
		t.Fatal(err)
	}
	back, err := d.Order(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if back.ExchangeID != "x-1" || back.Status != order.StatusOpen || back.Filled != 0.001 {
		t.Errorf("updated = %+v", back)
	}
}

func TestOrderNotFound(t *testing.T) {
	d := newDB(t)
	ctx := context.Background()

	if _, err := d.Order(ctx, 42); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get err = %v, want ErrNotFound", err)
	}
	if err := d.UpdateOrder(ctx, sampleOrder(42, "", order.StatusOpen)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("update err = %v, want ErrNotFound", err)
	}
}

func TestOpenOrdersAndByDeal(t *testing.T) {
	d := newDB(t)
	ctx := context.Background()

	rows := []*order.Order{
		sampleOrder(1, "a", order.StatusPending),
		sampleOrder(2, "a", order.StatusOpen),
		sampleOrder(3, "b", order.StatusPartiallyFilled),
		sampleOrder(4, "b", order.StatusFilled),
		sampleOrder(5, "a", order.StatusCanceled),
	}
	for _, o := range rows {
		if err := d.SaveOrder(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	open, err := d.OpenOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 3 {
		t.Errorf("open = %d, want 3", len(open))
	}
	for _, o := range open {
		if o.Status.Terminal() {
			t.Errorf("terminal order %d in open set", o.LocalID)
		}
	}

	byDeal, err := d.OrdersByDeal(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(byDeal) != 3 || byDeal[0].LocalID != 1 || byDeal[2].LocalID != 5 {
		t.Errorf("byDeal = %d rows", len(byDeal))
	}
}

func TestDealRoundTrip(t *testing.T) {
	d := newDB(t)
	ctx := context.Background()

	dl := &deal.Deal{
		ID:        "d1",
		Symbol:    "BTC/USDT",
		Status:    deal.StatusOpen,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := d.SaveDeal(ctx, dl); err != nil {
		t.Fatal(err)
	}

	got, err := d.Deal(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != deal.StatusOpen || got.SellSubmitted {
		t.Errorf("got %+v", got)
	}
	if !got.ClosedAt.IsZero() {
		t.Errorf("ClosedAt = %v, want zero for open deal", got.ClosedAt)
	}

	got.BuyOrderID = 10
	got.SellOrderID = 11
	if err := got.Close(1.5, time.Now().UTC().Truncate(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := d.UpdateDeal(ctx, got); err != nil {
		t.Fatal(err)
	}

	closed, err := d.Deal(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if closed.Status != deal.StatusClosed || closed.Profit != 1.5 {
		t.Errorf("closed = %+v", closed)
	}
	if closed.ClosedAt.IsZero() {
		t.Error("ClosedAt lost in round trip")
	}

	open, err := d.OpenDeals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Errorf("open deals = %d, want 0 after close", len(open))
	}

	if _, err := d.Deal(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := d.UpdateDeal(ctx, &deal.Deal{ID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("update err = %v, want ErrNotFound", err)
	}
}

func TestOpenDealsOldestFirst(t *testing.T) {
	d := newDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"newer", "oldest", "middle"} {
		offsets := []time.Duration{2 * time.Hour, 0, time.Hour}
		dl := &deal.Deal{ID: id, Symbol: "BTC/USDT", Status: deal.StatusOpen, CreatedAt: base.Add(offsets[i])}
		if err := d.SaveDeal(ctx, dl); err != nil {
			t.Fatal(err)
		}
	}

	open, err := d.OpenDeals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"oldest", "middle", "newer"}
	for i, dl := range open {
		if dl.ID != want[i] {
			t.Errorf("open[%d] = %s, want %s", i, dl.ID, want[i])
		}
	}
}

func TestClaimSellSubmission(t *testing.T) {
	d := newDB(t)
	ctx := context.Background()

	dl := &deal.Deal{ID: "d1", Symbol: "BTC/USDT", Status: deal.StatusOpen, CreatedAt: time.Now().UTC()}
	if err := d.SaveDeal(ctx, dl); err != nil {
		t.Fatal(err)
	}

	won, err := d.ClaimSellSubmission(ctx, "d1")
	if err != nil || !won {
		t.Fatalf("first claim = (%v, %v), want (true, nil)", won, err)
	}
	won, err = d.ClaimSellSubmission(ctx, "d1")
	if err != nil || won {
		t.Fatalf("second claim = (%v, %v), want (false, nil)", won, err)
	}
	if _, err := d.ClaimSellSubmission(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateDealNeverClearsClaim(t *testing.T) {
	d := newDB(t)
	ctx := context.Background()

	dl := &deal.Deal{ID: "d1", Symbol: "BTC/USDT", Status: deal.StatusOpen, CreatedAt: time.Now().UTC()}
	if err := d.SaveDeal(ctx, dl); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ClaimSellSubmission(ctx, "d1"); err != nil {
		t.Fatal(err)
	}

	// a stale copy written back must not drop the token
	dl.SellSubmitted = false
	if err := d.UpdateDeal(ctx, dl); err != nil {
		t.Fatal(err)
	}

	got, err := d.Deal(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.SellSubmitted {
		t.Error("sell-submitted token cleared by stale update")
	}
}
