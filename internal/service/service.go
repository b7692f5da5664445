package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/cache"
	"shopmate/backend/internal/cart"
	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/report"
	"shopmate/backend/internal/store"
)

var ErrSubmissionInProgress = errors.New("a sale is already being submitted for this account")

const saleRecordedMessage = "Sale completed successfully!"

// ownerState serializes cart edits for one account and tracks the submitting state.
type ownerState struct {
	mu         sync.Mutex
	submitting atomic.Bool
}

type Service struct {
	repo     store.Repository
	carts    cache.CartStore
	sales    cache.SalesCache
	salesTTL time.Duration
	pageSize int
	now      func() time.Time

	mu     sync.Mutex
	owners map[string]*ownerState
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithSalesTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.salesTTL = ttl
	}
}

func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

func New(repo store.Repository, carts cache.CartStore, sales cache.SalesCache, opts ...Option) *Service {
	if carts == nil {
		carts = cache.NewMemoryCartStore(0)
	}
	if sales == nil {
		sales = cache.NoopSalesCache{}
	}

	s := &Service{
		repo:     repo,
		carts:    carts,
		sales:    sales,
		salesTTL: 30 * time.Second,
		pageSize: report.DefaultPageSize,
		now:      func() time.Time { return time.Now().UTC() },
		owners:   make(map[string]*ownerState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) state(owner string) *ownerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.owners[owner]
	if !ok {
		st = &ownerState{}
		s.owners[owner] = st
	}
	return st
}

func (s *Service) ListProducts(ctx context.Context, owner string, search string) ([]domain.Product, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, owner)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return products, nil
	}
	matched := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), search) ||
			strings.Contains(strings.ToLower(p.Category), search) ||
			strings.Contains(strings.ToLower(p.Description), search) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func (s *Service) GetProduct(ctx context.Context, owner string, id string) (domain.Product, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, owner, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, owner string, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		Name:         strings.TrimSpace(req.Name),
		Category:     strings.TrimSpace(req.Category),
		Description:  strings.TrimSpace(req.Description),
		BuyingPrice:  req.BuyingPrice,
		SellingPrice: req.SellingPrice,
		Stock:        req.Stock,
		Image:        strings.TrimSpace(req.Image),
		UserEmail:    owner,
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	log.Printf("[service] product created id=%s owner=%s stock=%d", created.ID, owner, created.Stock)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, owner string, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.GetProduct(ctx, owner, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.BuyingPrice != nil {
		updated.BuyingPrice = *req.BuyingPrice
	}
	if req.SellingPrice != nil {
		updated.SellingPrice = *req.SellingPrice
	}
	if req.Stock != nil {
		updated.Stock = *req.Stock
	}
	if req.Image != nil {
		updated.Image = strings.TrimSpace(*req.Image)
	}
	if err := validateProduct(updated); err != nil {
		return domain.Product{}, err
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, owner string, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, owner, strings.TrimSpace(id))
}

func validateProduct(p domain.Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: product name is required", store.ErrInvalid)
	case !p.SellingPrice.IsPositive():
		return fmt.Errorf("%w: selling price must be greater than zero", store.ErrInvalid)
	case p.BuyingPrice.IsNegative():
		return fmt.Errorf("%w: buying price cannot be negative", store.ErrInvalid)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", store.ErrInvalid)
	}
	return nil
}

// GetCart returns the account's cart with totals and the stock still available
// for every product in the catalog.
func (s *Service) GetCart(ctx context.Context, owner string) (domain.CartView, error) {
	if err := requireOwner(owner); err != nil {
		return domain.CartView{}, err
	}
	st := s.state(owner)
	st.mu.Lock()
	defer st.mu.Unlock()

	c, err := s.loadCart(ctx, owner)
	if err != nil {
		return domain.CartView{}, err
	}
	products, err := s.repo.ListProducts(ctx, owner)
	if err != nil {
		return domain.CartView{}, err
	}
	return buildView(c, products, st.submitting.Load()), nil
}

func (s *Service) AddToCart(ctx context.Context, owner string, req domain.CartAddRequest) (domain.CartView, error) {
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	productID := strings.TrimSpace(req.ProductID)
	return s.mutateCart(ctx, owner, func(c *cart.Cart, lookup cart.StockLookup) error {
		product, ok := lookup(productID)
		if !ok {
			return productNotFound(productID)
		}
		return c.Add(product, qty)
	})
}

func (s *Service) UpdateCartQuantity(ctx context.Context, owner string, productID string, qty int) (domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	return s.mutateCart(ctx, owner, func(c *cart.Cart, lookup cart.StockLookup) error {
		if qty == 0 {
			c.Remove(productID)
			return nil
		}
		product, ok := lookup(productID)
		if !ok {
			return productNotFound(productID)
		}
		return c.UpdateQuantity(product, qty)
	})
}

func (s *Service) RemoveFromCart(ctx context.Context, owner string, productID string) (domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	return s.mutateCart(ctx, owner, func(c *cart.Cart, _ cart.StockLookup) error {
		c.Remove(productID)
		return nil
	})
}

func (s *Service) SetDiscount(ctx context.Context, owner string, percent decimal.Decimal) (domain.CartView, error) {
	return s.mutateCart(ctx, owner, func(c *cart.Cart, _ cart.StockLookup) error {
		c.SetDiscount(percent)
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context, owner string) (domain.CartView, error) {
	return s.mutateCart(ctx, owner, func(c *cart.Cart, _ cart.StockLookup) error {
		c.Clear()
		return nil
	})
}

// mutateCart applies fn to the stored cart against a fresh catalog snapshot. The
// session is saved only when fn succeeds.
func (s *Service) mutateCart(ctx context.Context, owner string, fn func(*cart.Cart, cart.StockLookup) error) (domain.CartView, error) {
	if err := requireOwner(owner); err != nil {
		return domain.CartView{}, err
	}
	st := s.state(owner)
	if st.submitting.Load() {
		return domain.CartView{}, ErrSubmissionInProgress
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.submitting.Load() {
		return domain.CartView{}, ErrSubmissionInProgress
	}

	c, err := s.loadCart(ctx, owner)
	if err != nil {
		return domain.CartView{}, err
	}
	products, err := s.repo.ListProducts(ctx, owner)
	if err != nil {
		return domain.CartView{}, err
	}
	if err := fn(c, cart.LookupFrom(products)); err != nil {
		return domain.CartView{}, err
	}
	if err := s.saveCart(ctx, owner, c); err != nil {
		return domain.CartView{}, err
	}
	return buildView(c, products, false), nil
}

// Checkout validates the cart against the current stock and submits it. On any
// failure the cart is left exactly as it was.
func (s *Service) Checkout(ctx context.Context, owner string, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if err := requireOwner(owner); err != nil {
		return domain.CheckoutResponse{}, err
	}
	st := s.state(owner)
	if !st.submitting.CompareAndSwap(false, true) {
		return domain.CheckoutResponse{}, ErrSubmissionInProgress
	}
	defer st.submitting.Store(false)
	st.mu.Lock()
	defer st.mu.Unlock()

	c, err := s.loadCart(ctx, owner)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	products, err := s.repo.ListProducts(ctx, owner)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	draft, err := c.BuildDraft(cart.DraftInput{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		SoldBy:        owner,
		At:            s.now(),
	}, cart.LookupFrom(products))
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	record, err := s.repo.SubmitSale(ctx, draft)
	if err != nil {
		log.Printf("[service] WARN: sale submission failed owner=%s: %v", owner, err)
		return domain.CheckoutResponse{}, err
	}

	if err := s.carts.Delete(ctx, owner); err != nil {
		log.Printf("[service] WARN: failed to clear cart after sale owner=%s: %v", owner, err)
	}
	if err := s.sales.Invalidate(ctx, owner); err != nil {
		log.Printf("[service] WARN: failed to invalidate sales cache owner=%s: %v", owner, err)
	}
	log.Printf("[service] sale recorded id=%s owner=%s total=%s", record.ID, owner, record.Total.StringFixed(2))

	return domain.CheckoutResponse{Sale: *record, Message: saleRecordedMessage}, nil
}

func (s *Service) SalesReport(ctx context.Context, owner string, q domain.ReportQuery) (domain.SalesReport, error) {
	if err := requireOwner(owner); err != nil {
		return domain.SalesReport{}, err
	}
	records, err := s.salesHistory(ctx, owner)
	if err != nil {
		return domain.SalesReport{}, err
	}
	if q.PageSize < 1 {
		q.PageSize = s.pageSize
	}
	return report.Build(owner, records, q, s.now()), nil
}

// ReportRows returns every sale in the window, sorted, for export.
func (s *Service) ReportRows(ctx context.Context, owner string, q domain.ReportQuery) ([]domain.SaleRecord, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	records, err := s.salesHistory(ctx, owner)
	if err != nil {
		return nil, err
	}
	return report.Rows(records, q, s.now()), nil
}

func (s *Service) salesHistory(ctx context.Context, owner string) ([]domain.SaleRecord, error) {
	if cached, ok, err := s.sales.Get(ctx, owner); err != nil {
		log.Printf("[service] WARN: sales cache read failed owner=%s: %v", owner, err)
	} else if ok {
		return cached, nil
	}

	records, err := s.repo.ListSales(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.sales.Set(ctx, owner, records, s.salesTTL); err != nil {
		log.Printf("[service] WARN: sales cache write failed owner=%s: %v", owner, err)
	}
	return records, nil
}

func (s *Service) Dashboard(ctx context.Context, owner string) (domain.DashboardStats, error) {
	if err := requireOwner(owner); err != nil {
		return domain.DashboardStats{}, err
	}

	products, err := s.repo.ListProducts(ctx, owner)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	employees, err := s.repo.ListEmployees(ctx, owner)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	suppliers, err := s.repo.ListSuppliers(ctx, owner)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	sales, err := s.salesHistory(ctx, owner)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	amount := decimal.Zero
	for _, sale := range sales {
		amount = amount.Add(sale.Total)
	}
	return domain.DashboardStats{
		Products:    len(products),
		Employees:   len(employees),
		Suppliers:   len(suppliers),
		Sales:       len(sales),
		SalesAmount: amount,
	}, nil
}

func (s *Service) ListEmployees(ctx context.Context, owner string) ([]domain.Employee, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return s.repo.ListEmployees(ctx, owner)
}

func (s *Service) CreateEmployee(ctx context.Context, owner string, req domain.EmployeeRequest) (domain.Employee, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Employee{}, err
	}
	employee, err := employeeFromRequest(req)
	if err != nil {
		return domain.Employee{}, err
	}
	employee.ManagedBy = owner
	employee.CreatedBy = owner

	created, err := s.repo.CreateEmployee(ctx, employee)
	if err != nil {
		return domain.Employee{}, err
	}
	return *created, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, owner string, id string, req domain.EmployeeRequest) (domain.Employee, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Employee{}, err
	}
	employee, err := employeeFromRequest(req)
	if err != nil {
		return domain.Employee{}, err
	}
	employee.ID = strings.TrimSpace(id)
	employee.ManagedBy = owner
	employee.UpdatedBy = owner

	updated, err := s.repo.UpdateEmployee(ctx, employee)
	if err != nil {
		return domain.Employee{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteEmployee(ctx context.Context, owner string, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	return s.repo.DeleteEmployee(ctx, owner, strings.TrimSpace(id))
}

func employeeFromRequest(req domain.EmployeeRequest) (domain.Employee, error) {
	employee := domain.Employee{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Position: strings.TrimSpace(req.Position),
		Salary:   req.Salary,
		JoinDate: strings.TrimSpace(req.JoinDate),
	}
	if employee.Name == "" {
		return domain.Employee{}, fmt.Errorf("%w: employee name is required", store.ErrInvalid)
	}
	if employee.Salary.IsNegative() {
		return domain.Employee{}, fmt.Errorf("%w: salary cannot be negative", store.ErrInvalid)
	}
	return employee, nil
}

func (s *Service) ListSuppliers(ctx context.Context, owner string) ([]domain.Supplier, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx, owner)
}

func (s *Service) CreateSupplier(ctx context.Context, owner string, req domain.SupplierRequest) (domain.Supplier, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Supplier{}, err
	}
	supplier, err := supplierFromRequest(req)
	if err != nil {
		return domain.Supplier{}, err
	}
	supplier.CreatedBy = owner

	created, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *created, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, owner string, id string, req domain.SupplierRequest) (domain.Supplier, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Supplier{}, err
	}
	supplier, err := supplierFromRequest(req)
	if err != nil {
		return domain.Supplier{}, err
	}
	supplier.ID = strings.TrimSpace(id)
	supplier.CreatedBy = owner
	supplier.UpdatedBy = owner

	updated, err := s.repo.UpdateSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, owner string, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	return s.repo.DeleteSupplier(ctx, owner, strings.TrimSpace(id))
}

func supplierFromRequest(req domain.SupplierRequest) (domain.Supplier, error) {
	supplier := domain.Supplier{
		CompanyName:      strings.TrimSpace(req.CompanyName),
		ContactName:      strings.TrimSpace(req.ContactName),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		Address:          strings.TrimSpace(req.Address),
		ProductsSupplied: strings.TrimSpace(req.ProductsSupplied),
		PaymentTerms:     strings.TrimSpace(req.PaymentTerms),
		Notes:            strings.TrimSpace(req.Notes),
	}
	if supplier.CompanyName == "" {
		return domain.Supplier{}, fmt.Errorf("%w: company name is required", store.ErrInvalid)
	}
	return supplier, nil
}

func (s *Service) GetProfile(ctx context.Context, owner string) (domain.Profile, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Profile{}, err
	}
	user, err := s.repo.GetUser(ctx, owner)
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{Email: user.Email, Name: user.Name, Photo: user.Photo}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, owner string, req domain.ProfileUpdateRequest) (domain.Profile, error) {
	if err := requireOwner(owner); err != nil {
		return domain.Profile{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Profile{}, fmt.Errorf("%w: name is required", store.ErrInvalid)
	}

	user, err := s.repo.UpdateUserProfile(ctx, owner, name, strings.TrimSpace(req.Photo))
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{Email: user.Email, Name: user.Name, Photo: user.Photo}, nil
}

func (s *Service) loadCart(ctx context.Context, owner string) (*cart.Cart, error) {
	session, ok, err := s.carts.Load(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return cart.New(), nil
	}
	return cart.FromSession(*session), nil
}

func (s *Service) saveCart(ctx context.Context, owner string, c *cart.Cart) error {
	if c.IsEmpty() && c.Discount().IsZero() {
		if err := s.carts.Delete(ctx, owner); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	}
	if err := s.carts.Save(ctx, c.Session(owner, s.now())); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func buildView(c *cart.Cart, products []domain.Product, submitting bool) domain.CartView {
	available := make(map[string]int, len(products))
	for _, p := range products {
		available[p.ID] = c.Available(p)
	}
	return domain.CartView{
		Lines:      c.Lines(),
		Totals:     c.Totals(),
		Available:  available,
		Submitting: submitting,
	}
}

func productNotFound(productID string) error {
	return &cart.ValidationError{
		Code:      cart.CodeProductNotFound,
		ProductID: productID,
		Message:   "Product not found",
	}
}

func requireOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("%w: account is required", store.ErrInvalid)
	}
	return nil
}
