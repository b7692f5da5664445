package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product, SaleDraft, SaleRecord, Employee and Supplier mirror the records of the
// shop data service, so their JSON names follow that service rather than this API.

type Product struct {
	ID           string          `json:"_id,omitempty"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	BuyingPrice  decimal.Decimal `json:"buyingPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Stock        int             `json:"stock"`
	Image        string          `json:"image"`
	UserEmail    string          `json:"userEmail"`
	CreatedAt    string          `json:"createdAt,omitempty"`
}

type ProductCreateRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Stock        int             `json:"stock"`
	Image        string          `json:"image"`
}

type ProductUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Category     *string          `json:"category,omitempty"`
	BuyingPrice  *decimal.Decimal `json:"buying_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	Stock        *int             `json:"stock,omitempty"`
	Image        *string          `json:"image,omitempty"`
}

// CartLine snapshots the product name and prices at the time the product was added.
type CartLine struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Quantity     int             `json:"quantity"`
}

type CartTotals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Total           decimal.Decimal `json:"total"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	ItemCount       int             `json:"item_count"`
}

// CartSession is the persisted form of an account's in-progress sale.
type CartSession struct {
	Owner           string          `json:"owner"`
	Lines           []CartLine      `json:"lines"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type CartView struct {
	Lines      []CartLine     `json:"lines"`
	Totals     CartTotals     `json:"totals"`
	Available  map[string]int `json:"available"`
	Submitting bool           `json:"submitting"`
}

// CartAddRequest adds one unit when Quantity is omitted.
type CartAddRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity,omitempty"`
}

type CartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartDiscountRequest struct {
	Percent decimal.Decimal `json:"percent"`
}

type CheckoutRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

type CheckoutResponse struct {
	Sale    SaleRecord `json:"sale"`
	Message string     `json:"message"`
}

type SaleLine struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	BuyingPrice  decimal.Decimal `json:"buyingPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Quantity     int             `json:"quantity"`
	Total        decimal.Decimal `json:"total"`
	Profit       decimal.Decimal `json:"profit"`
}

type SaleDraft struct {
	CustomerName   string          `json:"customerName"`
	CustomerPhone  string          `json:"customerPhone"`
	Products       []SaleLine      `json:"products"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"total"`
	TotalProfit    decimal.Decimal `json:"totalProfit"`
	SaleDate       string          `json:"saleDate"`
	SoldBy         string          `json:"soldBy"`
}

// SaleRecord keeps SaleDate as the raw string returned by the data service; use SoldAt
// to interpret it.
type SaleRecord struct {
	ID string `json:"_id"`
	SaleDraft
}

var saleDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseSaleDate accepts the timestamp shapes the data service has been seen to store.
func ParseSaleDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range saleDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func (r SaleRecord) SoldAt() (time.Time, bool) {
	return ParseSaleDate(r.SaleDate)
}

type ReportWindow string

const (
	WindowWeek  ReportWindow = "week"
	WindowMonth ReportWindow = "month"
	WindowYear  ReportWindow = "year"
)

type SortField string

const (
	SortBySaleDate    SortField = "saleDate"
	SortByTotal       SortField = "total"
	SortByTotalProfit SortField = "totalProfit"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type ReportQuery struct {
	Window    ReportWindow
	SortField SortField
	Direction SortDirection
	Page      int
	PageSize  int
}

type SummaryMetrics struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	TotalOrders       int             `json:"total_orders"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type SeriesPoint struct {
	Bucket string          `json:"bucket"`
	Start  time.Time       `json:"start"`
	Total  decimal.Decimal `json:"total"`
	Profit decimal.Decimal `json:"profit"`
}

type SalesReport struct {
	Owner        string         `json:"owner"`
	Window       ReportWindow   `json:"window"`
	SortField    SortField      `json:"sort_field"`
	Direction    SortDirection  `json:"direction"`
	Summary      SummaryMetrics `json:"summary"`
	Series       []SeriesPoint  `json:"series"`
	Sales        []SaleRecord   `json:"sales"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalPages   int            `json:"total_pages"`
	TotalRecords int            `json:"total_records"`
	GeneratedAt  string         `json:"generated_at"`
}

type DashboardStats struct {
	Products    int             `json:"products"`
	Employees   int             `json:"employees"`
	Suppliers   int             `json:"suppliers"`
	Sales       int             `json:"sales"`
	SalesAmount decimal.Decimal `json:"sales_amount"`
}

type Employee struct {
	ID        string          `json:"_id,omitempty"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Position  string          `json:"position"`
	Salary    decimal.Decimal `json:"salary"`
	JoinDate  string          `json:"joinDate"`
	ManagedBy string          `json:"managedBy"`
	CreatedBy string          `json:"createdBy,omitempty"`
	CreatedAt string          `json:"createdAt,omitempty"`
	UpdatedBy string          `json:"updatedBy,omitempty"`
	UpdatedAt string          `json:"updatedAt,omitempty"`
}

type EmployeeRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	Position string          `json:"position"`
	Salary   decimal.Decimal `json:"salary"`
	JoinDate string          `json:"join_date"`
}

type Supplier struct {
	ID               string `json:"_id,omitempty"`
	CompanyName      string `json:"companyName"`
	ContactName      string `json:"contactName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	ProductsSupplied string `json:"productsSupplied"`
	PaymentTerms     string `json:"paymentTerms"`
	Notes            string `json:"notes"`
	CreatedBy        string `json:"createdBy"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedBy        string `json:"updatedBy,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

type SupplierRequest struct {
	CompanyName      string `json:"company_name"`
	ContactName      string `json:"contact_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	ProductsSupplied string `json:"products_supplied"`
	PaymentTerms     string `json:"payment_terms"`
	Notes            string `json:"notes"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Photo    string `json:"photo"`
}

type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

type ProfileUpdateRequest struct {
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

// Actor is the authenticated caller. Email doubles as the owning-account identifier.
type Actor struct {
	Email string
	Role  string
}

// UserAccount is the persistence model for dashboard logins.
type UserAccount struct {
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Photo        string    `json:"photo"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

const (
	RoleOwner = "owner"
)
