package cart

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopmate/backend/internal/domain"
)

func product(id string, selling, buying int64, stock int) domain.Product {
	return domain.Product{
		ID:           id,
		Name:         "Product " + id,
		BuyingPrice:  decimal.NewFromInt(buying),
		SellingPrice: decimal.NewFromInt(selling),
		Stock:        stock,
	}
}

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	require.Equal(t, code, verr.Code)
}

func TestAddReducesAvailableStock(t *testing.T) {
	p := product("a", 100, 60, 10)
	for qty := 1; qty <= p.Stock; qty++ {
		c := New()
		require.NoError(t, c.Add(p, qty))
		assert.Equal(t, p.Stock-qty, c.Available(p))
	}
}

func TestAddBeyondStockLeavesCartUnchanged(t *testing.T) {
	p := product("a", 100, 60, 4)
	c := New()
	require.NoError(t, c.Add(p, 2))

	err := c.Add(p, p.Stock+1)
	requireCode(t, err, CodeInsufficientStock)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "Only 4 items available in stock", err.Error())
	assert.Equal(t, 2, c.Quantity("a"))

	fresh := New()
	requireCode(t, fresh.Add(p, p.Stock+1), CodeInsufficientStock)
	assert.True(t, fresh.IsEmpty())
}

func TestAddMergesRepeatedAdds(t *testing.T) {
	p := product("a", 100, 60, 10)
	c := New()
	require.NoError(t, c.Add(p, 3))
	require.NoError(t, c.Add(p, 4))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Quantity)

	requireCode(t, c.Add(p, 4), CodeInsufficientStock)
	assert.Equal(t, 7, c.Quantity("a"))
}

func TestAddOutOfStock(t *testing.T) {
	c := New()
	err := c.Add(product("a", 100, 60, 0), 1)
	requireCode(t, err, CodeOutOfStock)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "Product is out of stock", err.Error())
	assert.True(t, c.IsEmpty())
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	c := New()
	requireCode(t, c.Add(product("a", 1, 1, 5), 0), CodeInvalidQuantity)
	requireCode(t, c.Add(product("a", 1, 1, 5), -2), CodeInvalidQuantity)
	assert.True(t, c.IsEmpty())
}

func TestRemoveMissingIsNoop(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(product("a", 10, 5, 5), 1))
	c.Remove("missing")
	assert.Len(t, c.Lines(), 1)
	c.Remove("a")
	assert.True(t, c.IsEmpty())
}

func TestUpdateQuantityZeroMatchesRemove(t *testing.T) {
	a := product("a", 10, 5, 5)
	b := product("b", 20, 5, 5)

	build := func() *Cart {
		c := New()
		require.NoError(t, c.Add(a, 2))
		require.NoError(t, c.Add(b, 1))
		return c
	}

	updated := build()
	require.NoError(t, updated.UpdateQuantity(a, 0))
	removed := build()
	removed.Remove(a.ID)
	assert.Equal(t, removed.Lines(), updated.Lines())

	empty := New()
	require.NoError(t, empty.UpdateQuantity(a, 0))
	assert.True(t, empty.IsEmpty())
}

func TestUpdateQuantityReplacesExactly(t *testing.T) {
	p := product("a", 10, 5, 8)
	c := New()
	require.NoError(t, c.Add(p, 2))
	require.NoError(t, c.UpdateQuantity(p, 5))
	assert.Equal(t, 5, c.Quantity("a"))

	requireCode(t, c.UpdateQuantity(p, 9), CodeInsufficientStock)
	assert.Equal(t, 5, c.Quantity("a"))

	requireCode(t, c.UpdateQuantity(product("zz", 1, 1, 10), 1), CodeProductNotFound)
}

func TestComputeTotalsScenario(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(product("a", 100, 60, 10), 2))
	require.NoError(t, c.Add(product("b", 50, 30, 5), 1))
	c.SetDiscount(decimal.NewFromInt(10))

	totals := c.Totals()
	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(250)), totals.Subtotal.String())
	assert.True(t, totals.DiscountAmount.Equal(decimal.NewFromInt(25)), totals.DiscountAmount.String())
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(225)), totals.Total.String())
	assert.True(t, totals.TotalProfit.Equal(decimal.NewFromInt(100)), totals.TotalProfit.String())
	assert.Equal(t, 3, totals.ItemCount)
}

func TestComputeTotalsIsOrderIndependentAndLinear(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "a", SellingPrice: decimal.RequireFromString("19.99"), BuyingPrice: decimal.RequireFromString("11.5"), Quantity: 3},
		{ProductID: "b", SellingPrice: decimal.RequireFromString("4.25"), BuyingPrice: decimal.RequireFromString("1"), Quantity: 7},
	}
	reversed := []domain.CartLine{lines[1], lines[0]}
	pct := decimal.RequireFromString("12.5")

	assert.True(t, ComputeTotals(lines, pct).Subtotal.Equal(ComputeTotals(reversed, pct).Subtotal))

	extra := domain.CartLine{ProductID: "c", SellingPrice: decimal.RequireFromString("3.3"), Quantity: 4}
	before := ComputeTotals(lines, pct).Subtotal
	after := ComputeTotals(append(append([]domain.CartLine{}, lines...), extra), pct).Subtotal
	assert.True(t, after.Sub(before).Equal(decimal.RequireFromString("13.2")))
}

func TestDiscountPlusTotalEqualsSubtotal(t *testing.T) {
	lines := []domain.CartLine{
		{ProductID: "a", SellingPrice: decimal.RequireFromString("33.33"), Quantity: 3},
		{ProductID: "b", SellingPrice: decimal.RequireFromString("0.07"), Quantity: 11},
	}
	for _, raw := range []string{"0", "1", "7.5", "33.3333", "50", "99.99", "100"} {
		totals := ComputeTotals(lines, decimal.RequireFromString(raw))
		assert.True(t, totals.DiscountAmount.Add(totals.Total).Equal(totals.Subtotal), "percent %s", raw)
	}
}

func TestSetDiscountClampsAtInput(t *testing.T) {
	c := New()
	c.SetDiscount(decimal.NewFromInt(-5))
	assert.True(t, c.Discount().IsZero())
	c.SetDiscount(decimal.NewFromInt(150))
	assert.True(t, c.Discount().Equal(decimal.NewFromInt(100)))

	totals := ComputeTotals([]domain.CartLine{{SellingPrice: decimal.NewFromInt(10), Quantity: 1}}, decimal.NewFromInt(150))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(-5)), "computation itself does not clamp")
}

func TestBuildDraftPreconditions(t *testing.T) {
	p := product("a", 100, 60, 10)
	lookup := LookupFrom([]domain.Product{p})

	_, err := New().BuildDraft(DraftInput{CustomerName: "Rahim"}, lookup)
	requireCode(t, err, CodeEmptyCart)

	c := New()
	require.NoError(t, c.Add(p, 2))
	_, err = c.BuildDraft(DraftInput{CustomerName: "   "}, lookup)
	requireCode(t, err, CodeEmptyCustomerName)
	assert.True(t, errors.Is(err, ErrEmptyCustomerName))
}

func TestBuildDraftRevalidatesStock(t *testing.T) {
	a := product("a", 100, 60, 10)
	b := product("b", 50, 30, 5)
	c := New()
	require.NoError(t, c.Add(a, 2))
	require.NoError(t, c.Add(b, 3))

	shrunk := b
	shrunk.Stock = 2
	_, err := c.BuildDraft(DraftInput{CustomerName: "Rahim"}, LookupFrom([]domain.Product{a, shrunk}))
	requireCode(t, err, CodeInsufficientStock)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "b", verr.ProductID)
	assert.Equal(t, "Product b has insufficient stock", verr.Message)

	_, err = c.BuildDraft(DraftInput{CustomerName: "Rahim"}, LookupFrom([]domain.Product{a}))
	requireCode(t, err, CodeProductNotFound)
	assert.Len(t, c.Lines(), 2)
}

func TestBuildDraftAssemblesSale(t *testing.T) {
	a := product("a", 100, 60, 10)
	b := product("b", 50, 30, 5)
	c := New()
	require.NoError(t, c.Add(a, 2))
	require.NoError(t, c.Add(b, 1))
	c.SetDiscount(decimal.NewFromInt(10))

	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	draft, err := c.BuildDraft(DraftInput{
		CustomerName:  "  Rahim  ",
		CustomerPhone: " 017 ",
		SoldBy:        "owner@shop.test",
		At:            at,
	}, LookupFrom([]domain.Product{a, b}))
	require.NoError(t, err)

	assert.Equal(t, "Rahim", draft.CustomerName)
	assert.Equal(t, "017", draft.CustomerPhone)
	assert.Equal(t, "owner@shop.test", draft.SoldBy)
	assert.Equal(t, "2026-10-19T08:30:00.000Z", draft.SaleDate)
	require.Len(t, draft.Products, 2)
	assert.True(t, draft.Products[0].Total.Equal(decimal.NewFromInt(200)))
	assert.True(t, draft.Products[0].Profit.Equal(decimal.NewFromInt(80)))
	assert.True(t, draft.Total.Equal(decimal.NewFromInt(225)))
	assert.True(t, draft.TotalProfit.Equal(decimal.NewFromInt(100)))
	assert.True(t, draft.Discount.Equal(decimal.NewFromInt(10)))
}

func TestSessionRoundTripMergesDuplicates(t *testing.T) {
	session := domain.CartSession{
		Lines: []domain.CartLine{
			{ProductID: "a", Quantity: 2},
			{ProductID: "a", Quantity: 1},
			{ProductID: "b", Quantity: 0},
		},
		DiscountPercent: decimal.NewFromInt(250),
	}
	c := FromSession(session)
	assert.Equal(t, 3, c.Quantity("a"))
	assert.Equal(t, 0, c.Quantity("b"))
	assert.True(t, c.Discount().Equal(decimal.NewFromInt(100)))

	saved := c.Session("owner@shop.test", time.Now())
	assert.Equal(t, "owner@shop.test", saved.Owner)
	assert.Len(t, saved.Lines, 1)
}
