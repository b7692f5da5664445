// Package rest implements store.Repository against the shop data service over HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
)

const maxResponseBytes = 8 << 20

var _ store.Repository = (*Client)(nil)

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient swaps the underlying client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid shop api url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// writeResult covers the acknowledgement shapes the data service returns for writes.
type writeResult struct {
	Success    *bool  `json:"success,omitempty"`
	Message    string `json:"message,omitempty"`
	InsertedID string `json:"insertedId,omitempty"`
}

func (c *Client) ListProducts(ctx context.Context, owner string) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+seg(owner), nil, &products); err != nil {
		return nil, err
	}
	return nonNil(products), nil
}

func (c *Client) GetProduct(ctx context.Context, owner string, id string) (*domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+seg(owner)+"/"+seg(id), nil, &product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (c *Client) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var result writeResult
	if err := c.do(ctx, http.MethodPost, "/products", product, &result); err != nil {
		return nil, err
	}
	if err := result.failure(); err != nil {
		return nil, err
	}
	if result.InsertedID != "" {
		product.ID = result.InsertedID
	}
	return &product, nil
}

func (c *Client) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var result writeResult
	path := "/products/" + seg(product.UserEmail) + "/" + seg(product.ID)
	if err := c.do(ctx, http.MethodPut, path, product, &result); err != nil {
		return nil, err
	}
	if err := result.failure(); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, owner string, id string) error {
	var result writeResult
	if err := c.do(ctx, http.MethodDelete, "/products/"+seg(owner)+"/"+seg(id), nil, &result); err != nil {
		return err
	}
	return result.failure()
}

func (c *Client) ListSales(ctx context.Context, owner string) ([]domain.SaleRecord, error) {
	var sales []domain.SaleRecord
	if err := c.do(ctx, http.MethodGet, "/sales/"+seg(owner), nil, &sales); err != nil {
		return nil, err
	}
	return nonNil(sales), nil
}

// SubmitSale relies on the data service to decrement stock. A 409 or a
// success=false answer that mentions stock is reported as ErrInsufficientStock.
func (c *Client) SubmitSale(ctx context.Context, draft domain.SaleDraft) (*domain.SaleRecord, error) {
	var result writeResult
	if err := c.do(ctx, http.MethodPost, "/sales", draft, &result); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", store.ErrInsufficientStock, err)
		}
		return nil, err
	}
	if err := result.failure(); err != nil {
		if strings.Contains(strings.ToLower(result.Message), "stock") {
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, result.Message)
		}
		return nil, err
	}
	return &domain.SaleRecord{ID: result.InsertedID, SaleDraft: draft}, nil
}

func (c *Client) ListEmployees(ctx context.Context, owner string) ([]domain.Employee, error) {
	var employees []domain.Employee
	if err := c.do(ctx, http.MethodGet, "/employees/"+seg(owner), nil, &employees); err != nil {
		return nil, err
	}
	return nonNil(employees), nil
}

func (c *Client) CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	var result writeResult
	if err := c.do(ctx, http.MethodPost, "/employees", employee, &result); err != nil {
		return nil, err
	}
	if err := result.failure(); err != nil {
		return nil, err
	}
	if result.InsertedID != "" {
		employee.ID = result.InsertedID
	}
	return &employee, nil
}

func (c *Client) UpdateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	var result writeResult
	path := "/employees/" + seg(employee.ID) + ownerQuery(employee.ManagedBy)
	if err := c.do(ctx, http.MethodPut, path, employee, &result); err != nil {
		return nil, err
	}
	if err := result.failure(); err != nil {
		return nil, err
	}
	return &employee, nil
}

func (c *Client) DeleteEmployee(ctx context.Context, owner string, id string) error {
	var result writeResult
	if err := c.do(ctx, http.MethodDelete, "/employees/"+seg(id)+ownerQuery(owner), nil, &result); err != nil {
		return err
	}
	return result.failure()
}

func (c *Client) ListSuppliers(ctx context.Context, owner string) ([]domain.Supplier, error) {
	var suppliers []domain.Supplier
	if err := c.do(ctx, http.MethodGet, "/suppliers/"+seg(owner), nil, &suppliers); err != nil {
		return nil, err
	}
	return nonNil(suppliers), nil
}

func (c *Client) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	var result writeResult
	if err := c.do(ctx, http.MethodPost, "/suppliers", supplier, &result); err != nil {
		return nil, err
	}
	if err := result.failure(); err != nil {
		return nil, err
	}
	if result.InsertedID != "" {
		supplier.ID = result.InsertedID
	}
	return &supplier, nil
}

func (c *Client) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	var result writeResult
	path := "/suppliers/" + seg(supplier.ID) + ownerQuery(supplier.CreatedBy)
	if err := c.do(ctx, http.MethodPut, path, supplier, &result); err != nil {
		return nil, err
	}
	if err := result.failure(); err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (c *Client) DeleteSupplier(ctx context.Context, owner string, id string) error {
	var result writeResult
	if err := c.do(ctx, http.MethodDelete, "/suppliers/"+seg(id)+ownerQuery(owner), nil, &result); err != nil {
		return err
	}
	return result.failure()
}

func (c *Client) CreateUser(ctx context.Context, user domain.UserAccount) error {
	var result writeResult
	if err := c.do(ctx, http.MethodPost, "/users", user, &result); err != nil {
		return err
	}
	return result.failure()
}

func (c *Client) GetUser(ctx context.Context, email string) (*domain.UserAccount, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var users []domain.UserAccount
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return nonNil(users), nil
}

func (c *Client) UpdateUserPassword(ctx context.Context, email string, passwordHash string) error {
	var result writeResult
	body := map[string]string{"passwordHash": passwordHash}
	if err := c.do(ctx, http.MethodPut, "/users/"+seg(email), body, &result); err != nil {
		return err
	}
	return result.failure()
}

func (c *Client) UpdateUserProfile(ctx context.Context, email string, name string, photo string) (*domain.UserAccount, error) {
	var result writeResult
	body := map[string]string{"name": name, "photo": photo}
	if err := c.do(ctx, http.MethodPut, "/users/"+seg(email), body, &result); err != nil {
		return nil, err
	}
	if err := result.failure(); err != nil {
		return nil, err
	}
	return c.GetUser(ctx, email)
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[rest-store] WARN: %s %s failed: %v", method, path, err)
		return fmt.Errorf("%w: %s %s", store.ErrUnavailable, method, path)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		log.Printf("[rest-store] WARN: %s %s returned %d", method, path, resp.StatusCode)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("%w: %s %s returned %d", err, method, path, resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: decode %s %s: %v", store.ErrUnavailable, method, path, err)
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return store.ErrNotFound
	case code == http.StatusConflict:
		return store.ErrConflict
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return store.ErrInvalid
	default:
		return store.ErrUnavailable
	}
}

func (r writeResult) failure() error {
	if r.Success == nil || *r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", store.ErrInvalid, r.Message)
}

func seg(value string) string {
	return url.PathEscape(value)
}

func ownerQuery(owner string) string {
	if owner == "" {
		return ""
	}
	return "?owner=" + url.QueryEscape(owner)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
