package store

import (
	"context"
	"errors"

	"shopmate/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalid           = errors.New("invalid record")
	ErrConflict          = errors.New("conflicting record")
	ErrUnavailable       = errors.New("shop data service unavailable")
)

// Repository is the boundary to the shop data service. Every call names the owning
// account explicitly; implementations never infer it.
type Repository interface {
	ListProducts(ctx context.Context, owner string) ([]domain.Product, error)
	GetProduct(ctx context.Context, owner string, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, owner string, id string) error

	ListSales(ctx context.Context, owner string) ([]domain.SaleRecord, error)
	// SubmitSale persists the sale and decrements stock for every line, or does
	// neither. Implementations that can check stock return ErrInsufficientStock.
	SubmitSale(ctx context.Context, draft domain.SaleDraft) (*domain.SaleRecord, error)

	ListEmployees(ctx context.Context, owner string) ([]domain.Employee, error)
	CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	UpdateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	DeleteEmployee(ctx context.Context, owner string, id string) error

	ListSuppliers(ctx context.Context, owner string) ([]domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, owner string, id string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, email string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, email string, passwordHash string) error
	UpdateUserProfile(ctx context.Context, email string, name string, photo string) (*domain.UserAccount, error)
}
