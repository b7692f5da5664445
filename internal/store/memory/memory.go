package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
	"shopmate/backend/internal/xid"
)

// SeedOwnerEmail owns the demo catalog created by NewSeeded.
const SeedOwnerEmail = "owner@shopmate.local"

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	sales        []domain.SaleRecord
	employees    map[string]domain.Employee
	suppliers    map[string]domain.Supplier
	usersByEmail map[string]domain.UserAccount
	now          func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		sales:        make([]domain.SaleRecord, 0, 64),
		employees:    make(map[string]domain.Employee),
		suppliers:    make(map[string]domain.Supplier),
		usersByEmail: make(map[string]domain.UserAccount),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// seedUsers builds the demo owner account. The password comes from
// SEED_OWNER_PASSWORD; without it a dev default is used and a warning is printed.
// The rest and postgres repositories never call this.
func seedUsers(now time.Time) map[string]domain.UserAccount {
	password := envOr("SEED_OWNER_PASSWORD", "owner123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD to override.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password for %s: %v", SeedOwnerEmail, err)
	}
	return map[string]domain.UserAccount{
		SeedOwnerEmail: {
			Email:        SeedOwnerEmail,
			Name:         "Demo Owner",
			PasswordHash: string(hash),
			Role:         domain.RoleOwner,
			Active:       true,
			CreatedAt:    now,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	now := s.now()
	created := now.Format(timestampLayout)

	products := []struct {
		id, name, category string
		buying, selling    string
		stock              int
	}{
		{"prd-rice-5kg", "Rice 5kg", "grocery", "6.20", "7.50", 40},
		{"prd-lentils-1kg", "Red Lentils 1kg", "grocery", "1.10", "1.45", 60},
		{"prd-oil-1l", "Soybean Oil 1L", "grocery", "1.70", "2.10", 35},
		{"prd-tea-200g", "Black Tea 200g", "beverage", "2.40", "3.20", 25},
		{"prd-coffee-100g", "Instant Coffee 100g", "beverage", "3.80", "4.90", 18},
		{"prd-milk-1l", "UHT Milk 1L", "dairy", "0.95", "1.30", 48},
		{"prd-biscuit", "Butter Biscuits", "snack", "0.55", "0.80", 90},
		{"prd-chips", "Potato Chips", "snack", "0.70", "1.00", 0},
		{"prd-soap", "Bath Soap", "household", "0.60", "0.90", 70},
		{"prd-detergent-1kg", "Detergent 1kg", "household", "1.90", "2.60", 22},
	}
	for _, p := range products {
		s.products[p.id] = domain.Product{
			ID:           p.id,
			Name:         p.name,
			Category:     p.category,
			BuyingPrice:  decimal.RequireFromString(p.buying),
			SellingPrice: decimal.RequireFromString(p.selling),
			Stock:        p.stock,
			UserEmail:    SeedOwnerEmail,
			CreatedAt:    created,
		}
	}
	s.usersByEmail = seedUsers(now)
	return s
}

// WithClock replaces the timestamp source used for createdAt/updatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func (s *Store) ListProducts(_ context.Context, owner string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.UserEmail != owner {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, owner string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists || product.UserEmail != owner {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(product.Name) == "" || product.UserEmail == "" || product.Stock < 0 {
		return nil, store.ErrInvalid
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalid
	}
	product.CreatedAt = s.stamp()
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists || existing.UserEmail != product.UserEmail {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(product.Name) == "" || product.Stock < 0 {
		return nil, store.ErrInvalid
	}
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, owner string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[id]
	if !exists || existing.UserEmail != owner {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListSales(_ context.Context, owner string) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.SaleRecord, 0, len(s.sales))
	for _, sale := range s.sales {
		if sale.SoldBy != owner {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	return sales, nil
}

// SubmitSale re-checks stock for every line under the write lock, so two concurrent
// submissions can never take the same units.
func (s *Store) SubmitSale(_ context.Context, draft domain.SaleDraft) (*domain.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.SoldBy == "" || strings.TrimSpace(draft.CustomerName) == "" || len(draft.Products) == 0 {
		return nil, store.ErrInvalid
	}

	requested := make(map[string]int, len(draft.Products))
	for _, line := range draft.Products {
		if line.Quantity < 1 {
			return nil, store.ErrInvalid
		}
		product, exists := s.products[line.ProductID]
		if !exists || product.UserEmail != draft.SoldBy {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, store.ErrNotFound)
		}
		requested[line.ProductID] += line.Quantity
	}
	for id, qty := range requested {
		if s.products[id].Stock < qty {
			return nil, fmt.Errorf("product %s: %w", id, store.ErrInsufficientStock)
		}
	}

	for id, qty := range requested {
		product := s.products[id]
		product.Stock -= qty
		s.products[id] = product
	}

	record := domain.SaleRecord{ID: xid.New("sale"), SaleDraft: draft}
	record.Products = slices.Clone(draft.Products)
	s.sales = append(s.sales, record)

	created := cloneSale(record)
	return &created, nil
}

// AppendSale stores a historical sale as-is, without touching stock. Used to seed
// report fixtures.
func (s *Store) AppendSale(record domain.SaleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = xid.New("sale")
	}
	s.sales = append(s.sales, cloneSale(record))
}

func (s *Store) ListEmployees(_ context.Context, owner string) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]domain.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if e.ManagedBy != owner {
			continue
		}
		employees = append(employees, e)
	}
	slices.SortFunc(employees, func(a, b domain.Employee) int {
		return strings.Compare(a.Name, b.Name)
	})
	return employees, nil
}

func (s *Store) CreateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(employee.Name) == "" || employee.ManagedBy == "" {
		return nil, store.ErrInvalid
	}
	if employee.ID == "" {
		employee.ID = xid.New("emp")
	}
	employee.CreatedAt = s.stamp()
	s.employees[employee.ID] = employee
	return &employee, nil
}

func (s *Store) UpdateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.employees[employee.ID]
	if !exists || existing.ManagedBy != employee.ManagedBy {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(employee.Name) == "" {
		return nil, store.ErrInvalid
	}
	employee.CreatedBy = existing.CreatedBy
	employee.CreatedAt = existing.CreatedAt
	employee.UpdatedAt = s.stamp()
	s.employees[employee.ID] = employee
	return &employee, nil
}

func (s *Store) DeleteEmployee(_ context.Context, owner string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.employees[id]
	if !exists || existing.ManagedBy != owner {
		return store.ErrNotFound
	}
	delete(s.employees, id)
	return nil
}

func (s *Store) ListSuppliers(_ context.Context, owner string) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		if sup.CreatedBy != owner {
			continue
		}
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.CompanyName, b.CompanyName)
	})
	return suppliers, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(supplier.CompanyName) == "" || supplier.CreatedBy == "" {
		return nil, store.ErrInvalid
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	supplier.CreatedAt = s.stamp()
	s.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.suppliers[supplier.ID]
	if !exists || existing.CreatedBy != supplier.CreatedBy {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(supplier.CompanyName) == "" {
		return nil, store.ErrInvalid
	}
	supplier.CreatedAt = existing.CreatedAt
	supplier.UpdatedAt = s.stamp()
	s.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) DeleteSupplier(_ context.Context, owner string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.suppliers[id]
	if !exists || existing.CreatedBy != owner {
		return store.ErrNotFound
	}
	delete(s.suppliers, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(user.Email)
	if email == "" || strings.TrimSpace(user.PasswordHash) == "" {
		return store.ErrInvalid
	}
	if _, exists := s.usersByEmail[email]; exists {
		return store.ErrConflict
	}
	user.Email = email
	if user.Role == "" {
		user.Role = domain.RoleOwner
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	user.Active = true
	s.usersByEmail[email] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByEmail[normalizeEmail(email)]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByEmail))
	for _, user := range s.usersByEmail {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Email, b.Email)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, email string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(passwordHash) == "" {
		return store.ErrInvalid
	}
	user, exists := s.usersByEmail[email]
	if !exists {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	s.usersByEmail[email] = user
	return nil
}

func (s *Store) UpdateUserProfile(_ context.Context, email string, name string, photo string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	user, exists := s.usersByEmail[email]
	if !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(name) == "" {
		return nil, store.ErrInvalid
	}
	user.Name = strings.TrimSpace(name)
	user.Photo = strings.TrimSpace(photo)
	s.usersByEmail[email] = user
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneSale(src domain.SaleRecord) domain.SaleRecord {
	dst := src
	dst.Products = slices.Clone(src.Products)
	return dst
}
