package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/domain"
)

func sampleSession(owner string) domain.CartSession {
	return domain.CartSession{
		Owner: owner,
		Lines: []domain.CartLine{
			{ProductID: "p1", Name: "Rice", SellingPrice: decimal.RequireFromString("7.5"), Quantity: 2},
		},
		DiscountPercent: decimal.NewFromInt(10),
	}
}

func TestMemoryCartStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCartStore(0)

	if _, ok, _ := store.Load(ctx, "a@shop.test"); ok {
		t.Fatalf("expected no session before save")
	}
	if err := store.Save(ctx, sampleSession("a@shop.test")); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok, err := store.Load(ctx, "a@shop.test")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	loaded.Lines[0].Quantity = 99
	again, _, _ := store.Load(ctx, "a@shop.test")
	if again.Lines[0].Quantity != 2 {
		t.Fatalf("expected stored session to be isolated from callers")
	}

	if _, ok, _ := store.Load(ctx, "b@shop.test"); ok {
		t.Fatalf("sessions must be scoped per account")
	}
	if err := store.Delete(ctx, "a@shop.test"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "a@shop.test"); ok {
		t.Fatalf("expected session to be gone after delete")
	}
}

func TestMemoryCartStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCartStore(time.Minute)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Save(ctx, sampleSession("a@shop.test")); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(59 * time.Second)
	if _, ok, _ := store.Load(ctx, "a@shop.test"); !ok {
		t.Fatalf("expected session before ttl")
	}
	now = now.Add(2 * time.Second)
	if _, ok, _ := store.Load(ctx, "a@shop.test"); ok {
		t.Fatalf("expected session to expire after ttl")
	}
}

func TestNoopSalesCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c SalesCache = NoopSalesCache{}
	if err := c.Set(ctx, "a@shop.test", []domain.SaleRecord{{ID: "s1"}}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "a@shop.test"); ok {
		t.Fatalf("noop cache must never hit")
	}
}

func TestRedisCachesRoundTrip(t *testing.T) {
	addr := os.Getenv("SHOPMATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set SHOPMATE_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	client := NewRedisClient(addr, os.Getenv("SHOPMATE_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	owner := "it-" + time.Now().Format("150405.000000") + "@shop.test"
	carts := NewRedisCartStore(client, time.Minute)
	sales := NewRedisSalesCache(client)
	t.Cleanup(func() {
		_ = carts.Delete(ctx, owner)
		_ = sales.Invalidate(ctx, owner)
	})

	if err := carts.Save(ctx, sampleSession(owner)); err != nil {
		t.Fatalf("save cart: %v", err)
	}
	loaded, ok, err := carts.Load(ctx, owner)
	if err != nil || !ok {
		t.Fatalf("load cart: ok=%v err=%v", ok, err)
	}
	if len(loaded.Lines) != 1 || !loaded.DiscountPercent.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected cart %+v", loaded)
	}

	if err := sales.Set(ctx, owner, []domain.SaleRecord{{ID: "s1"}}, time.Minute); err != nil {
		t.Fatalf("set sales: %v", err)
	}
	records, ok, err := sales.Get(ctx, owner)
	if err != nil || !ok || len(records) != 1 {
		t.Fatalf("get sales: ok=%v err=%v records=%v", ok, err, records)
	}
	if err := sales.Invalidate(ctx, owner); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := sales.Get(ctx, owner); ok {
		t.Fatalf("expected miss after invalidate")
	}
}
