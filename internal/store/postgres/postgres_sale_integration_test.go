package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
)

func TestSubmitSaleDecrementsStockAtomically(t *testing.T) {
	databaseURL := os.Getenv("SHOPMATE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SHOPMATE_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	stamp := time.Now().UnixNano()
	owner := fmt.Sprintf("it-%d@shop.test", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE sold_by = $1`, owner)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE owner_email = $1`, owner)
	})

	rice, err := s.CreateProduct(ctx, domain.Product{
		Name: "Rice IT", Category: "grocery", BuyingPrice: decimal.NewFromInt(6),
		SellingPrice: decimal.NewFromInt(8), Stock: 5, UserEmail: owner,
	})
	if err != nil {
		t.Fatalf("create rice: %v", err)
	}
	tea, err := s.CreateProduct(ctx, domain.Product{
		Name: "Tea IT", Category: "beverage", BuyingPrice: decimal.NewFromInt(2),
		SellingPrice: decimal.NewFromInt(3), Stock: 1, UserEmail: owner,
	})
	if err != nil {
		t.Fatalf("create tea: %v", err)
	}

	draft := func(lines ...domain.SaleLine) domain.SaleDraft {
		return domain.SaleDraft{
			CustomerName: "Integration",
			Products:     lines,
			Subtotal:     decimal.NewFromInt(8),
			Total:        decimal.NewFromInt(8),
			TotalProfit:  decimal.NewFromInt(2),
			SaleDate:     time.Now().UTC().Format(timestampLayout),
			SoldBy:       owner,
		}
	}

	_, err = s.SubmitSale(ctx, draft(
		domain.SaleLine{ProductID: rice.ID, Quantity: 2},
		domain.SaleLine{ProductID: tea.ID, Quantity: 2},
	))
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	unchanged, err := s.GetProduct(ctx, owner, rice.ID)
	if err != nil {
		t.Fatalf("get rice: %v", err)
	}
	if unchanged.Stock != 5 {
		t.Fatalf("expected rollback to keep rice stock at 5, got %d", unchanged.Stock)
	}

	record, err := s.SubmitSale(ctx, draft(domain.SaleLine{ProductID: rice.ID, Quantity: 2}))
	if err != nil {
		t.Fatalf("submit sale: %v", err)
	}
	after, err := s.GetProduct(ctx, owner, rice.ID)
	if err != nil {
		t.Fatalf("get rice: %v", err)
	}
	if after.Stock != 3 {
		t.Fatalf("expected rice stock 3, got %d", after.Stock)
	}

	sales, err := s.ListSales(ctx, owner)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != record.ID || len(sales[0].Products) != 1 {
		t.Fatalf("unexpected sales history %+v", sales)
	}
}
