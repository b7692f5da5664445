package httpapi

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/tealeg/xlsx"

	"shopmate/backend/internal/domain"
)

func formulaSales() []domain.SaleRecord {
	return []domain.SaleRecord{{
		ID: "sale-1",
		SaleDraft: domain.SaleDraft{
			CustomerName:  `=HYPERLINK("http://evil.test","click")`,
			CustomerPhone: "+8801700000000",
			Products:      []domain.SaleLine{{ProductID: "prd-rice-5kg", Quantity: 1}},
			SaleDate:      "2026-10-19T10:00:00.000Z",
		},
	}}
}

func TestSpreadsheetText(t *testing.T) {
	cases := map[string]string{
		"=SUM(A1:A2)": "'=SUM(A1:A2)",
		"+1 555":      "'+1 555",
		"-2":          "'-2",
		"@cmd":        "'@cmd",
		"\tx":         "'\tx",
		"Rahim":       "Rahim",
		"":            "",
		"a=b":         "a=b",
	}
	for in, want := range cases {
		if got := spreadsheetText(in); got != want {
			t.Fatalf("spreadsheetText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSalesCSVEscapesFormulaCells(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSalesCSV(&buf, formulaSales()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if rows[1][2] != `'=HYPERLINK("http://evil.test","click")` {
		t.Fatalf("expected escaped customer name, got %q", rows[1][2])
	}
	if rows[1][3] != "'+8801700000000" {
		t.Fatalf("expected escaped phone, got %q", rows[1][3])
	}
	if rows[1][0] != "sale-1" {
		t.Fatalf("expected plain id untouched, got %q", rows[1][0])
	}
}

func TestSalesXLSXEscapesFormulaCells(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSalesXLSX(&buf, formulaSales()); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	file, err := xlsx.OpenBinary(buf.Bytes())
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	cells := file.Sheets[0].Rows[1].Cells
	if got := cells[2].Value; got != `'=HYPERLINK("http://evil.test","click")` {
		t.Fatalf("expected escaped customer name, got %q", got)
	}
	if got := cells[3].Value; got != "'+8801700000000" {
		t.Fatalf("expected escaped phone, got %q", got)
	}
}
