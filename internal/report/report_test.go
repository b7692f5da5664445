package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopmate/backend/internal/domain"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func sale(id string, soldAt time.Time, total, profit int64) domain.SaleRecord {
	return domain.SaleRecord{
		ID: id,
		SaleDraft: domain.SaleDraft{
			Total:       decimal.NewFromInt(total),
			TotalProfit: decimal.NewFromInt(profit),
			SaleDate:    soldAt.Format("2006-01-02T15:04:05.000Z07:00"),
		},
	}
}

func ids(records []domain.SaleRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilterByWeekScenario(t *testing.T) {
	records := []domain.SaleRecord{
		sale("2d", now.AddDate(0, 0, -2), 100, 20),
		sale("10d", now.AddDate(0, 0, -10), 50, 5),
		sale("40d", now.AddDate(0, 0, -40), 70, 7),
	}

	filtered := FilterByWindow(records, domain.WindowWeek, now)
	assert.Equal(t, []string{"2d"}, ids(filtered))

	summary := Summarize(filtered)
	assert.Equal(t, 1, summary.TotalOrders)
	assert.True(t, summary.TotalSales.Equal(decimal.NewFromInt(100)))
	assert.True(t, summary.TotalProfit.Equal(decimal.NewFromInt(20)))

	assert.Equal(t, []string{"2d", "10d"}, ids(FilterByWindow(records, domain.WindowMonth, now)))
	assert.Len(t, FilterByWindow(records, domain.WindowYear, now), 3)
}

func TestFilterIncludesCutoffAndDropsUnparseable(t *testing.T) {
	cutoff := Cutoff(domain.WindowWeek, now)
	bad := sale("bad", now, 10, 1)
	bad.SaleDate = "yesterday-ish"
	empty := sale("empty", now, 10, 1)
	empty.SaleDate = ""

	filtered := FilterByWindow([]domain.SaleRecord{
		sale("edge", cutoff, 10, 1),
		sale("before", cutoff.Add(-time.Millisecond), 10, 1),
		bad,
		empty,
	}, domain.WindowWeek, now)
	assert.Equal(t, []string{"edge"}, ids(filtered))
}

func TestCutoffIsCalendarAware(t *testing.T) {
	march31 := time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), Cutoff(domain.WindowMonth, march31))

	leap := time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 2, 28, 9, 0, 0, 0, time.UTC), Cutoff(domain.WindowYear, leap))

	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC), Cutoff(domain.WindowMonth, jan))
	assert.Equal(t, time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC), Cutoff(domain.WindowWeek, jan))
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Equal(t, 0, summary.TotalOrders)
	assert.True(t, summary.TotalSales.IsZero())
	assert.True(t, summary.TotalProfit.IsZero())
	assert.True(t, summary.AverageOrderValue.IsZero())
}

func TestSummarizeAverage(t *testing.T) {
	summary := Summarize([]domain.SaleRecord{
		sale("a", now, 30, 3),
		sale("b", now, 10, 1),
		sale("c", now, 50, 5),
	})
	assert.Equal(t, 3, summary.TotalOrders)
	assert.True(t, summary.AverageOrderValue.Equal(decimal.NewFromInt(30)))
}

func TestSortByTotal(t *testing.T) {
	records := []domain.SaleRecord{
		sale("30", now, 30, 0),
		sale("10", now, 10, 0),
		sale("50", now, 50, 0),
	}

	desc := SortBy(records, domain.SortByTotal, domain.SortDesc)
	assert.Equal(t, []string{"50", "30", "10"}, ids(desc))

	asc := SortBy(records, domain.SortByTotal, domain.SortAsc)
	assert.Equal(t, []string{"10", "30", "50"}, ids(asc))

	assert.Equal(t, []string{"30", "10", "50"}, ids(records), "input must not be reordered")
}

func TestSortByIsStableAndMissingSortsLowest(t *testing.T) {
	missing := sale("missing", now, 0, 0)
	missing.SaleDate = ""
	missing.Total = decimal.Decimal{}

	records := []domain.SaleRecord{
		sale("tie-1", now.Add(-time.Hour), 20, 2),
		missing,
		sale("tie-2", now, 20, 2),
		sale("big", now.Add(-2*time.Hour), 40, 1),
	}

	byTotal := SortBy(records, domain.SortByTotal, domain.SortAsc)
	assert.Equal(t, []string{"missing", "tie-1", "tie-2", "big"}, ids(byTotal))

	byProfit := SortBy(records, domain.SortByTotalProfit, domain.SortDesc)
	assert.Equal(t, []string{"tie-1", "tie-2", "big", "missing"}, ids(byProfit))

	byDate := SortBy(records, domain.SortBySaleDate, domain.SortAsc)
	assert.Equal(t, []string{"missing", "big", "tie-1", "tie-2"}, ids(byDate))
}

func TestPaginateRoundTrip(t *testing.T) {
	records := make([]domain.SaleRecord, 0, 23)
	for i := 0; i < 23; i++ {
		records = append(records, sale(time.Duration(i).String(), now.Add(-time.Duration(i)*time.Hour), int64(i), 0))
	}
	sorted := SortBy(records, domain.SortBySaleDate, domain.SortDesc)

	for _, size := range []int{1, 2, 5, 10, 23, 50} {
		page := Paginate(sorted, 1, size)
		var rebuilt []domain.SaleRecord
		for p := 1; p <= page.TotalPages; p++ {
			rebuilt = append(rebuilt, Paginate(sorted, p, size).Items...)
		}
		require.Equal(t, ids(sorted), ids(rebuilt), "page size %d", size)
	}
}

func TestPaginateClampsPage(t *testing.T) {
	records := []domain.SaleRecord{sale("a", now, 1, 0), sale("b", now, 2, 0), sale("c", now, 3, 0)}

	last := Paginate(records, 99, 2)
	assert.Equal(t, 2, last.Page)
	assert.Equal(t, []string{"c"}, ids(last.Items))

	first := Paginate(records, -4, 2)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, []string{"a", "b"}, ids(first.Items))

	defaulted := Paginate(records, 1, 0)
	assert.Equal(t, DefaultPageSize, defaulted.PageSize)

	empty := Paginate(nil, 3, 10)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}

func TestBuildSeriesWeekIsGapless(t *testing.T) {
	records := []domain.SaleRecord{
		sale("a", now.AddDate(0, 0, -2), 100, 20),
		sale("b", now.AddDate(0, 0, -2).Add(time.Hour), 50, 10),
		sale("c", now, 5, 1),
	}
	series := BuildSeries(records, domain.WindowWeek, now)

	require.Len(t, series, 8)
	assert.Equal(t, "2026-10-12", series[0].Bucket)
	assert.Equal(t, "2026-10-19", series[7].Bucket)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i].Start.After(series[i-1].Start))
	}
	assert.True(t, series[5].Total.Equal(decimal.NewFromInt(150)))
	assert.True(t, series[5].Profit.Equal(decimal.NewFromInt(30)))
	assert.True(t, series[6].Total.IsZero())
	assert.True(t, series[7].Total.Equal(decimal.NewFromInt(5)))
}

func TestBuildSeriesYearUsesMonths(t *testing.T) {
	records := []domain.SaleRecord{
		sale("a", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 10, 1),
		sale("b", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), 15, 2),
	}
	series := BuildSeries(records, domain.WindowYear, now)

	require.Len(t, series, 13)
	assert.Equal(t, "2025-10", series[0].Bucket)
	assert.Equal(t, "2026-10", series[12].Bucket)
	assert.True(t, series[5].Total.Equal(decimal.NewFromInt(25)))
}

func TestBuildReport(t *testing.T) {
	var records []domain.SaleRecord
	for i := 0; i < 12; i++ {
		records = append(records, sale(time.Duration(i).String(), now.Add(-time.Duration(i)*time.Hour), int64(10+i), 1))
	}
	records = append(records, sale("old", now.AddDate(0, 0, -9), 999, 9))

	got := Build("owner@shop.test", records, domain.ReportQuery{
		Window:    "bogus",
		SortField: domain.SortByTotal,
		Direction: domain.SortDesc,
		Page:      2,
	}, now)

	assert.Equal(t, domain.WindowWeek, got.Window)
	assert.Equal(t, 12, got.TotalRecords)
	assert.Equal(t, 2, got.TotalPages)
	assert.Equal(t, 2, got.Page)
	assert.Len(t, got.Sales, 2)
	assert.Equal(t, 12, got.Summary.TotalOrders)
	assert.Len(t, got.Series, 8)
	assert.Equal(t, "2026-10-19T12:00:00Z", got.GeneratedAt)
}
