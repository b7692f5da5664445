package cart

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInsufficientStock Code = "insufficient_stock"
	CodeOutOfStock        Code = "out_of_stock"
	CodeEmptyCart         Code = "empty_cart"
	CodeEmptyCustomerName Code = "empty_customer_name"
	CodeProductNotFound   Code = "product_not_found"
	CodeInvalidQuantity   Code = "invalid_quantity"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("empty cart")
	ErrEmptyCustomerName = errors.New("empty customer name")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
)

// ValidationError is a user-facing precondition failure. The cart is never modified
// when one is returned.
type ValidationError struct {
	Code      Code
	ProductID string
	Message   string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets callers match on the sentinel for the failure class; out-of-stock counts
// as insufficient stock.
func (e *ValidationError) Is(target error) bool {
	switch e.Code {
	case CodeInsufficientStock, CodeOutOfStock:
		return target == ErrInsufficientStock
	case CodeEmptyCart:
		return target == ErrEmptyCart
	case CodeEmptyCustomerName:
		return target == ErrEmptyCustomerName
	case CodeProductNotFound:
		return target == ErrProductNotFound
	case CodeInvalidQuantity:
		return target == ErrInvalidQuantity
	}
	return false
}

func outOfStock(productID string) *ValidationError {
	return &ValidationError{Code: CodeOutOfStock, ProductID: productID, Message: "Product is out of stock"}
}

func stockLimit(productID string, stock int) *ValidationError {
	return &ValidationError{
		Code:      CodeInsufficientStock,
		ProductID: productID,
		Message:   fmt.Sprintf("Only %d items available in stock", stock),
	}
}

func invalidQuantity(productID string, qty int) *ValidationError {
	return &ValidationError{
		Code:      CodeInvalidQuantity,
		ProductID: productID,
		Message:   fmt.Sprintf("invalid quantity %d", qty),
	}
}
