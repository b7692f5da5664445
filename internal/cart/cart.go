// Package cart keeps an in-progress sale consistent with a product stock snapshot
// and computes checkout totals. Everything here is synchronous and does no I/O.
package cart

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/domain"
)

// SaleDateLayout matches the millisecond ISO-8601 timestamps the data service stores.
const SaleDateLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	hundred    = decimal.NewFromInt(100)
	maxPercent = hundred
)

type Cart struct {
	lines    []domain.CartLine
	discount decimal.Decimal
}

func New() *Cart {
	return &Cart{}
}

// FromSession restores a cart from its persisted form. Lines with a non-positive
// quantity are dropped and duplicate product lines are merged.
func FromSession(session domain.CartSession) *Cart {
	c := &Cart{discount: ClampDiscount(session.DiscountPercent)}
	for _, line := range session.Lines {
		if line.ProductID == "" || line.Quantity < 1 {
			continue
		}
		if idx := c.index(line.ProductID); idx >= 0 {
			c.lines[idx].Quantity += line.Quantity
			continue
		}
		c.lines = append(c.lines, line)
	}
	return c
}

func (c *Cart) Session(owner string, at time.Time) domain.CartSession {
	return domain.CartSession{
		Owner:           owner,
		Lines:           c.Lines(),
		DiscountPercent: c.discount,
		UpdatedAt:       at.UTC(),
	}
}

func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Quantity returns how many units of a product are already in the cart.
func (c *Cart) Quantity(productID string) int {
	if idx := c.index(productID); idx >= 0 {
		return c.lines[idx].Quantity
	}
	return 0
}

// Add puts qty units of product into the cart, merging with an existing line.
// The merged quantity may never exceed product.Stock.
func (c *Cart) Add(product domain.Product, qty int) error {
	if qty < 1 {
		return invalidQuantity(product.ID, qty)
	}
	if product.Stock <= 0 {
		return outOfStock(product.ID)
	}

	idx := c.index(product.ID)
	requested := qty
	if idx >= 0 {
		requested += c.lines[idx].Quantity
	}
	if requested > product.Stock {
		return stockLimit(product.ID, product.Stock)
	}

	if idx >= 0 {
		c.lines[idx].Quantity = requested
		return nil
	}
	c.lines = append(c.lines, domain.CartLine{
		ProductID:    product.ID,
		Name:         product.Name,
		BuyingPrice:  product.BuyingPrice,
		SellingPrice: product.SellingPrice,
		Quantity:     qty,
	})
	return nil
}

func (c *Cart) Remove(productID string) {
	idx := c.index(productID)
	if idx < 0 {
		return
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
}

// UpdateQuantity sets the line for product to exactly qty units. Zero removes the line.
func (c *Cart) UpdateQuantity(product domain.Product, qty int) error {
	if qty == 0 {
		c.Remove(product.ID)
		return nil
	}
	if qty < 0 {
		return invalidQuantity(product.ID, qty)
	}
	if qty > product.Stock {
		return stockLimit(product.ID, product.Stock)
	}

	idx := c.index(product.ID)
	if idx < 0 {
		return &ValidationError{
			Code:      CodeProductNotFound,
			ProductID: product.ID,
			Message:   fmt.Sprintf("%s is not in the cart", product.Name),
		}
	}
	c.lines[idx].Quantity = qty
	return nil
}

// Available is the product stock not yet claimed by this cart.
func (c *Cart) Available(product domain.Product) int {
	return product.Stock - c.Quantity(product.ID)
}

func (c *Cart) Clear() {
	c.lines = nil
	c.discount = decimal.Zero
}

func (c *Cart) Discount() decimal.Decimal {
	return c.discount
}

// SetDiscount stores the discount percent clamped to [0, 100].
func (c *Cart) SetDiscount(percent decimal.Decimal) {
	c.discount = ClampDiscount(percent)
}

func (c *Cart) Totals() domain.CartTotals {
	return ComputeTotals(c.lines, c.discount)
}

// ClampDiscount bounds a discount percent to [0, 100]. It is applied where the
// percent enters the cart, not inside ComputeTotals.
func ClampDiscount(percent decimal.Decimal) decimal.Decimal {
	if percent.IsNegative() {
		return decimal.Zero
	}
	if percent.GreaterThan(maxPercent) {
		return maxPercent
	}
	return percent
}

func ComputeTotals(lines []domain.CartLine, discountPercent decimal.Decimal) domain.CartTotals {
	subtotal := decimal.Zero
	profit := decimal.Zero
	items := 0
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal = subtotal.Add(line.SellingPrice.Mul(qty))
		profit = profit.Add(line.SellingPrice.Sub(line.BuyingPrice).Mul(qty))
		items += line.Quantity
	}

	discountAmount := subtotal.Mul(discountPercent).Div(hundred)
	return domain.CartTotals{
		Subtotal:        subtotal,
		DiscountPercent: discountPercent,
		DiscountAmount:  discountAmount,
		Total:           subtotal.Sub(discountAmount),
		TotalProfit:     profit,
		ItemCount:       items,
	}
}

// StockLookup resolves a product from the latest catalog snapshot.
type StockLookup func(productID string) (domain.Product, bool)

func LookupFrom(products []domain.Product) StockLookup {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return func(productID string) (domain.Product, bool) {
		p, ok := byID[productID]
		return p, ok
	}
}

type DraftInput struct {
	CustomerName  string
	CustomerPhone string
	SoldBy        string
	At            time.Time
}

// BuildDraft assembles the sale to submit. Every line is re-checked against the
// current stock; the first violation aborts the whole draft.
func (c *Cart) BuildDraft(in DraftInput, stockOf StockLookup) (domain.SaleDraft, error) {
	if c.IsEmpty() {
		return domain.SaleDraft{}, &ValidationError{Code: CodeEmptyCart, Message: "Please add products to cart"}
	}
	customer := strings.TrimSpace(in.CustomerName)
	if customer == "" {
		return domain.SaleDraft{}, &ValidationError{Code: CodeEmptyCustomerName, Message: "Please enter customer name"}
	}

	saleLines := make([]domain.SaleLine, 0, len(c.lines))
	for _, line := range c.lines {
		product, ok := stockOf(line.ProductID)
		if !ok {
			return domain.SaleDraft{}, &ValidationError{
				Code:      CodeProductNotFound,
				ProductID: line.ProductID,
				Message:   fmt.Sprintf("%s is no longer available", line.Name),
			}
		}
		if line.Quantity > product.Stock {
			return domain.SaleDraft{}, &ValidationError{
				Code:      CodeInsufficientStock,
				ProductID: line.ProductID,
				Message:   fmt.Sprintf("%s has insufficient stock", product.Name),
			}
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		saleLines = append(saleLines, domain.SaleLine{
			ProductID:    line.ProductID,
			Name:         line.Name,
			BuyingPrice:  line.BuyingPrice,
			SellingPrice: line.SellingPrice,
			Quantity:     line.Quantity,
			Total:        line.SellingPrice.Mul(qty),
			Profit:       line.SellingPrice.Sub(line.BuyingPrice).Mul(qty),
		})
	}

	totals := c.Totals()
	return domain.SaleDraft{
		CustomerName:   customer,
		CustomerPhone:  strings.TrimSpace(in.CustomerPhone),
		Products:       saleLines,
		Subtotal:       totals.Subtotal,
		Discount:       totals.DiscountPercent,
		DiscountAmount: totals.DiscountAmount,
		Total:          totals.Total,
		TotalProfit:    totals.TotalProfit,
		SaleDate:       in.At.UTC().Format(SaleDateLayout),
		SoldBy:         in.SoldBy,
	}, nil
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}
