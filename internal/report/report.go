// Package report turns an account's sale history into the filtered, sorted and
// paginated view shown on the sales report, plus summary metrics and a gapless
// time series. The caller supplies "now"; nothing here reads the wall clock.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/domain"
)

const DefaultPageSize = 10

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

var epoch = time.Unix(0, 0).UTC()

func ParseWindow(raw string) domain.ReportWindow {
	switch domain.ReportWindow(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.WindowMonth:
		return domain.WindowMonth
	case domain.WindowYear:
		return domain.WindowYear
	default:
		return domain.WindowWeek
	}
}

func ParseSortField(raw string) domain.SortField {
	switch domain.SortField(strings.TrimSpace(raw)) {
	case domain.SortByTotal:
		return domain.SortByTotal
	case domain.SortByTotalProfit:
		return domain.SortByTotalProfit
	default:
		return domain.SortBySaleDate
	}
}

func ParseDirection(raw string) domain.SortDirection {
	if domain.SortDirection(strings.ToLower(strings.TrimSpace(raw))) == domain.SortAsc {
		return domain.SortAsc
	}
	return domain.SortDesc
}

// Cutoff is the earliest instant inside window. Month and year steps clamp to the
// last day of the target month (31 March minus one month is 28/29 February).
func Cutoff(window domain.ReportWindow, now time.Time) time.Time {
	now = now.UTC()
	switch ParseWindow(string(window)) {
	case domain.WindowMonth:
		return subMonths(now, 1)
	case domain.WindowYear:
		return subMonths(now, 12)
	default:
		return now.AddDate(0, 0, -7)
	}
}

func subMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month-time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	hour, minute, sec := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// FilterByWindow keeps records sold at or after the window cutoff. Records whose
// sale date cannot be parsed are dropped.
func FilterByWindow(records []domain.SaleRecord, window domain.ReportWindow, now time.Time) []domain.SaleRecord {
	cutoff := Cutoff(window, now)
	kept := make([]domain.SaleRecord, 0, len(records))
	for _, record := range records {
		soldAt, ok := record.SoldAt()
		if !ok || soldAt.Before(cutoff) {
			continue
		}
		kept = append(kept, record)
	}
	return kept
}

func Summarize(records []domain.SaleRecord) domain.SummaryMetrics {
	metrics := domain.SummaryMetrics{
		TotalSales:        decimal.Zero,
		TotalProfit:       decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	for _, record := range records {
		metrics.TotalSales = metrics.TotalSales.Add(record.Total)
		metrics.TotalProfit = metrics.TotalProfit.Add(record.TotalProfit)
	}
	metrics.TotalOrders = len(records)
	if metrics.TotalOrders > 0 {
		metrics.AverageOrderValue = metrics.TotalSales.Div(decimal.NewFromInt(int64(metrics.TotalOrders)))
	}
	return metrics
}

// SortBy returns a stably sorted copy. Missing values sort as the lowest value.
func SortBy(records []domain.SaleRecord, field domain.SortField, direction domain.SortDirection) []domain.SaleRecord {
	sorted := make([]domain.SaleRecord, len(records))
	copy(sorted, records)

	compare := comparator(ParseSortField(string(field)))
	desc := ParseDirection(string(direction)) == domain.SortDesc
	sort.SliceStable(sorted, func(i, j int) bool {
		if desc {
			return compare(sorted[j], sorted[i]) < 0
		}
		return compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

func comparator(field domain.SortField) func(a, b domain.SaleRecord) int {
	switch field {
	case domain.SortByTotal:
		return func(a, b domain.SaleRecord) int { return a.Total.Cmp(b.Total) }
	case domain.SortByTotalProfit:
		return func(a, b domain.SaleRecord) int { return a.TotalProfit.Cmp(b.TotalProfit) }
	default:
		return func(a, b domain.SaleRecord) int { return saleTime(a).Compare(saleTime(b)) }
	}
}

func saleTime(record domain.SaleRecord) time.Time {
	if soldAt, ok := record.SoldAt(); ok {
		return soldAt
	}
	return epoch
}

type Page struct {
	Items        []domain.SaleRecord
	Page         int
	PageSize     int
	TotalPages   int
	TotalRecords int
}

// Paginate returns the 1-based page of records. The page number is clamped to the
// available range; an empty input yields an empty page.
func Paginate(records []domain.SaleRecord, page int, pageSize int) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	count := len(records)
	totalPages := (count + pageSize - 1) / pageSize
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	if count == 0 {
		return Page{Items: []domain.SaleRecord{}, Page: 1, PageSize: pageSize}
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, count)
	items := make([]domain.SaleRecord, end-start)
	copy(items, records[start:end])
	return Page{
		Items:        items,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		TotalRecords: count,
	}
}

// BuildSeries buckets records per UTC day (week, month) or per month (year) across
// the whole window, emitting zero points for buckets without sales.
func BuildSeries(records []domain.SaleRecord, window domain.ReportWindow, now time.Time) []domain.SeriesPoint {
	window = ParseWindow(string(window))
	monthly := window == domain.WindowYear

	start := bucketStart(Cutoff(window, now), monthly)
	end := bucketStart(now.UTC(), monthly)

	points := make([]domain.SeriesPoint, 0, 32)
	index := make(map[string]int)
	for at := start; !at.After(end); at = nextBucket(at, monthly) {
		key := bucketKey(at, monthly)
		index[key] = len(points)
		points = append(points, domain.SeriesPoint{
			Bucket: key,
			Start:  at,
			Total:  decimal.Zero,
			Profit: decimal.Zero,
		})
	}

	for _, record := range records {
		soldAt, ok := record.SoldAt()
		if !ok {
			continue
		}
		idx, ok := index[bucketKey(soldAt, monthly)]
		if !ok {
			continue
		}
		points[idx].Total = points[idx].Total.Add(record.Total)
		points[idx].Profit = points[idx].Profit.Add(record.TotalProfit)
	}
	return points
}

func bucketStart(t time.Time, monthly bool) time.Time {
	t = t.UTC()
	if monthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nextBucket(t time.Time, monthly bool) time.Time {
	if monthly {
		return t.AddDate(0, 1, 0)
	}
	return t.AddDate(0, 0, 1)
}

func bucketKey(t time.Time, monthly bool) string {
	if monthly {
		return t.UTC().Format(monthLayout)
	}
	return t.UTC().Format(dayLayout)
}

// Rows is the filtered and sorted history without pagination, used for exports.
func Rows(records []domain.SaleRecord, q domain.ReportQuery, now time.Time) []domain.SaleRecord {
	return SortBy(FilterByWindow(records, q.Window, now), q.SortField, q.Direction)
}

func Build(owner string, records []domain.SaleRecord, q domain.ReportQuery, now time.Time) domain.SalesReport {
	q.Window = ParseWindow(string(q.Window))
	q.SortField = ParseSortField(string(q.SortField))
	q.Direction = ParseDirection(string(q.Direction))

	filtered := FilterByWindow(records, q.Window, now)
	page := Paginate(SortBy(filtered, q.SortField, q.Direction), q.Page, q.PageSize)

	return domain.SalesReport{
		Owner:        owner,
		Window:       q.Window,
		SortField:    q.SortField,
		Direction:    q.Direction,
		Summary:      Summarize(filtered),
		Series:       BuildSeries(filtered, q.Window, now),
		Sales:        page.Items,
		Page:         page.Page,
		PageSize:     page.PageSize,
		TotalPages:   page.TotalPages,
		TotalRecords: page.TotalRecords,
		GeneratedAt:  now.UTC().Format(time.RFC3339),
	}
}
