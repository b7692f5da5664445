package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
	"shopmate/backend/internal/xid"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, storeErr(err)
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, storeErr(err)
	}

	return &Store{db: db}, nil
}

// EnsureSchema creates the tables this store reads and writes when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", storeErr(err))
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, owner_email, name, category, description, buying_price, selling_price, stock, image, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p         domain.Product
		createdAt time.Time
	)
	err := row.Scan(&p.ID, &p.UserEmail, &p.Name, &p.Category, &p.Description,
		&p.BuyingPrice, &p.SellingPrice, &p.Stock, &p.Image, &createdAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = formatTime(createdAt)
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, owner string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE owner_email = $1
		ORDER BY category, name
	`, owner)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, owner string, id string) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND owner_email = $2
	`, id, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return &product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.UserEmail == "" || product.Stock < 0 {
		return nil, store.ErrInvalid
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}

	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, owner_email, name, category, description, buying_price, selling_price, stock, image, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
		RETURNING created_at
	`, product.ID, product.UserEmail, product.Name, product.Category, product.Description,
		product.BuyingPrice, product.SellingPrice, product.Stock, product.Image).Scan(&createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, storeErr(err)
	}
	product.CreatedAt = formatTime(createdAt)
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.Stock < 0 {
		return nil, store.ErrInvalid
	}

	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $3, category = $4, description = $5, buying_price = $6, selling_price = $7,
		    stock = $8, image = $9, updated_at = now()
		WHERE id = $1 AND owner_email = $2
		RETURNING `+productColumns,
		product.ID, product.UserEmail, product.Name, product.Category, product.Description,
		product.BuyingPrice, product.SellingPrice, product.Stock, product.Image))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, owner string, id string) error {
	return s.deleteOwned(ctx, `DELETE FROM products WHERE id = $1 AND owner_email = $2`, id, owner)
}

func (s *Store) ListSales(ctx context.Context, owner string) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sold_by, customer_name, customer_phone, lines, subtotal, discount, discount_amount,
		       total, total_profit, sale_date
		FROM sales
		WHERE sold_by = $1
		ORDER BY created_at ASC, id ASC
	`, owner)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, 128)
	for rows.Next() {
		var (
			record domain.SaleRecord
			lines  []byte
		)
		if err := rows.Scan(&record.ID, &record.SoldBy, &record.CustomerName, &record.CustomerPhone, &lines,
			&record.Subtotal, &record.Discount, &record.DiscountAmount, &record.Total, &record.TotalProfit,
			&record.SaleDate); err != nil {
			return nil, storeErr(err)
		}
		if err := json.Unmarshal(lines, &record.Products); err != nil {
			return nil, fmt.Errorf("decode sale %s lines: %w", record.ID, err)
		}
		sales = append(sales, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return sales, nil
}

// SubmitSale decrements stock with a conditional update per product inside one
// transaction. A product whose remaining stock is below the requested quantity
// rolls the whole sale back.
func (s *Store) SubmitSale(ctx context.Context, draft domain.SaleDraft) (*domain.SaleRecord, error) {
	if draft.SoldBy == "" || strings.TrimSpace(draft.CustomerName) == "" || len(draft.Products) == 0 {
		return nil, store.ErrInvalid
	}
	requested, err := requestedQuantities(draft.Products)
	if err != nil {
		return nil, storeErr(err)
	}
	lines, err := json.Marshal(draft.Products)
	if err != nil {
		return nil, storeErr(err)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, storeErr(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, id := range sortedKeys(requested) {
		qty := requested[id]
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $3, updated_at = now()
			WHERE id = $1 AND owner_email = $2 AND stock >= $3
		`, id, draft.SoldBy, qty)
		if err != nil {
			return nil, storeErr(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, storeErr(err)
		}
		if affected == 1 {
			continue
		}

		var exists bool
		if err := pgTx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND owner_email = $2)
		`, id, draft.SoldBy).Scan(&exists); err != nil {
			return nil, storeErr(err)
		}
		if !exists {
			return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("product %s: %w", id, store.ErrInsufficientStock)
	}

	record := domain.SaleRecord{ID: xid.New("sale"), SaleDraft: draft}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, sold_by, customer_name, customer_phone, lines, subtotal, discount, discount_amount,
		                   total, total_profit, sale_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
	`, record.ID, draft.SoldBy, draft.CustomerName, draft.CustomerPhone, lines, draft.Subtotal, draft.Discount,
		draft.DiscountAmount, draft.Total, draft.TotalProfit, draft.SaleDate)
	if err != nil {
		return nil, storeErr(err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, storeErr(err)
	}
	return &record, nil
}

const employeeColumns = `id, managed_by, name, email, phone, position, salary, join_date, created_by, updated_by, created_at, updated_at`

func scanEmployee(row rowScanner) (domain.Employee, error) {
	var (
		e         domain.Employee
		createdAt time.Time
		updatedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.ManagedBy, &e.Name, &e.Email, &e.Phone, &e.Position, &e.Salary, &e.JoinDate,
		&e.CreatedBy, &e.UpdatedBy, &createdAt, &updatedAt)
	if err != nil {
		return domain.Employee{}, err
	}
	e.CreatedAt = formatTime(createdAt)
	if updatedAt.Valid {
		e.UpdatedAt = formatTime(updatedAt.Time)
	}
	return e, nil
}

func (s *Store) ListEmployees(ctx context.Context, owner string) ([]domain.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE managed_by = $1
		ORDER BY name ASC
	`, owner)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0, 16)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return employees, nil
}

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	if strings.TrimSpace(employee.Name) == "" || employee.ManagedBy == "" {
		return nil, store.ErrInvalid
	}
	if employee.ID == "" {
		employee.ID = xid.New("emp")
	}

	created, err := scanEmployee(s.db.QueryRowContext(ctx, `
		INSERT INTO employees (id, managed_by, name, email, phone, position, salary, join_date, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
		RETURNING `+employeeColumns,
		employee.ID, employee.ManagedBy, employee.Name, employee.Email, employee.Phone, employee.Position,
		employee.Salary, employee.JoinDate, employee.CreatedBy))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, storeErr(err)
	}
	return &created, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	if strings.TrimSpace(employee.Name) == "" {
		return nil, store.ErrInvalid
	}

	updated, err := scanEmployee(s.db.QueryRowContext(ctx, `
		UPDATE employees
		SET name = $3, email = $4, phone = $5, position = $6, salary = $7, join_date = $8,
		    updated_by = $9, updated_at = now()
		WHERE id = $1 AND managed_by = $2
		RETURNING `+employeeColumns,
		employee.ID, employee.ManagedBy, employee.Name, employee.Email, employee.Phone, employee.Position,
		employee.Salary, employee.JoinDate, employee.UpdatedBy))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return &updated, nil
}

func (s *Store) DeleteEmployee(ctx context.Context, owner string, id string) error {
	return s.deleteOwned(ctx, `DELETE FROM employees WHERE id = $1 AND managed_by = $2`, id, owner)
}

const supplierColumns = `id, created_by, company_name, contact_name, email, phone, address, products_supplied, payment_terms, notes, updated_by, created_at, updated_at`

func scanSupplier(row rowScanner) (domain.Supplier, error) {
	var (
		sup       domain.Supplier
		createdAt time.Time
		updatedAt sql.NullTime
	)
	err := row.Scan(&sup.ID, &sup.CreatedBy, &sup.CompanyName, &sup.ContactName, &sup.Email, &sup.Phone,
		&sup.Address, &sup.ProductsSupplied, &sup.PaymentTerms, &sup.Notes, &sup.UpdatedBy, &createdAt, &updatedAt)
	if err != nil {
		return domain.Supplier{}, err
	}
	sup.CreatedAt = formatTime(createdAt)
	if updatedAt.Valid {
		sup.UpdatedAt = formatTime(updatedAt.Time)
	}
	return sup, nil
}

func (s *Store) ListSuppliers(ctx context.Context, owner string) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE created_by = $1
		ORDER BY company_name ASC
	`, owner)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return suppliers, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.CompanyName) == "" || supplier.CreatedBy == "" {
		return nil, store.ErrInvalid
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}

	created, err := scanSupplier(s.db.QueryRowContext(ctx, `
		INSERT INTO suppliers (id, created_by, company_name, contact_name, email, phone, address,
		                       products_supplied, payment_terms, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		RETURNING `+supplierColumns,
		supplier.ID, supplier.CreatedBy, supplier.CompanyName, supplier.ContactName, supplier.Email, supplier.Phone,
		supplier.Address, supplier.ProductsSupplied, supplier.PaymentTerms, supplier.Notes))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, storeErr(err)
	}
	return &created, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.CompanyName) == "" {
		return nil, store.ErrInvalid
	}

	updated, err := scanSupplier(s.db.QueryRowContext(ctx, `
		UPDATE suppliers
		SET company_name = $3, contact_name = $4, email = $5, phone = $6, address = $7,
		    products_supplied = $8, payment_terms = $9, notes = $10, updated_by = $11, updated_at = now()
		WHERE id = $1 AND created_by = $2
		RETURNING `+supplierColumns,
		supplier.ID, supplier.CreatedBy, supplier.CompanyName, supplier.ContactName, supplier.Email, supplier.Phone,
		supplier.Address, supplier.ProductsSupplied, supplier.PaymentTerms, supplier.Notes, supplier.UpdatedBy))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return &updated, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, owner string, id string) error {
	return s.deleteOwned(ctx, `DELETE FROM suppliers WHERE id = $1 AND created_by = $2`, id, owner)
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Email = normalizeEmail(user.Email)
	if user.Email == "" || strings.TrimSpace(user.PasswordHash) == "" {
		return store.ErrInvalid
	}
	if user.Role == "" {
		user.Role = domain.RoleOwner
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (email, name, photo, password_hash, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,true,$6,now())
	`, user.Email, user.Name, user.Photo, user.PasswordHash, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return storeErr(err)
	}
	return nil
}

const userColumns = `email, name, photo, password_hash, role, active, created_at`

func scanUser(row rowScanner) (domain.UserAccount, error) {
	var user domain.UserAccount
	if err := row.Scan(&user.Email, &user.Name, &user.Photo, &user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt); err != nil {
		return domain.UserAccount{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, email string) (*domain.UserAccount, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM app_users
		WHERE email = $1
	`, normalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM app_users
		ORDER BY email ASC
	`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, email string, passwordHash string) error {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(passwordHash) == "" {
		return store.ErrInvalid
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password_hash = $2, updated_at = now()
		WHERE email = $1
	`, email, passwordHash)
	if err != nil {
		return storeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, email string, name string, photo string) (*domain.UserAccount, error) {
	if strings.TrimSpace(name) == "" {
		return nil, store.ErrInvalid
	}

	user, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE app_users
		SET name = $2, photo = $3, updated_at = now()
		WHERE email = $1
		RETURNING `+userColumns,
		normalizeEmail(email), strings.TrimSpace(name), strings.TrimSpace(photo)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return &user, nil
}

func (s *Store) deleteOwned(ctx context.Context, query string, id string, owner string) error {
	res, err := s.db.ExecContext(ctx, query, id, owner)
	if err != nil {
		return storeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func requestedQuantities(lines []domain.SaleLine) (map[string]int, error) {
	requested := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity < 1 {
			return nil, store.ErrInvalid
		}
		requested[line.ProductID] += line.Quantity
	}
	return requested, nil
}

// sortedKeys fixes the lock order so concurrent sales over the same products
// cannot deadlock.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// storeErr reports connection failures as store.ErrUnavailable. Errors the
// server answered with, and everything else, pass through unchanged.
func storeErr(err error) error {
	if err == nil || errors.Is(err, store.ErrUnavailable) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	var (
		connErr *pgconn.ConnectError
		netErr  net.Error
	)
	switch {
	case errors.As(err, &connErr),
		errors.As(err, &netErr),
		pgconn.Timeout(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}
