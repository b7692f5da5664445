package httpapi

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"

	"shopmate/backend/internal/domain"
)

var salesExportHeader = []string{
	"Sale ID", "Sale Date", "Customer", "Phone", "Items",
	"Subtotal", "Discount %", "Discount", "Total", "Profit",
}

// spreadsheetText keeps free-text values from being evaluated as formulas
// when the export is opened in a spreadsheet.
func spreadsheetText(value string) string {
	if value != "" && strings.ContainsRune("=+-@\t\r", rune(value[0])) {
		return "'" + value
	}
	return value
}

func itemCount(sale domain.SaleRecord) int {
	count := 0
	for _, line := range sale.Products {
		count += line.Quantity
	}
	return count
}

func writeSalesCSV(w io.Writer, sales []domain.SaleRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(salesExportHeader); err != nil {
		return err
	}
	for _, sale := range sales {
		record := []string{
			spreadsheetText(sale.ID),
			spreadsheetText(sale.SaleDate),
			spreadsheetText(sale.CustomerName),
			spreadsheetText(sale.CustomerPhone),
			strconv.Itoa(itemCount(sale)),
			sale.Subtotal.StringFixed(2),
			sale.Discount.String(),
			sale.DiscountAmount.StringFixed(2),
			sale.Total.StringFixed(2),
			sale.TotalProfit.StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeSalesXLSX(w io.Writer, sales []domain.SaleRecord) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Sales")
	if err != nil {
		return err
	}

	headerRow := sheet.AddRow()
	for _, h := range salesExportHeader {
		headerRow.AddCell().SetValue(h)
	}

	for _, sale := range sales {
		row := sheet.AddRow()
		row.AddCell().SetString(spreadsheetText(sale.ID))
		row.AddCell().SetString(spreadsheetText(sale.SaleDate))
		row.AddCell().SetString(spreadsheetText(sale.CustomerName))
		row.AddCell().SetString(spreadsheetText(sale.CustomerPhone))
		row.AddCell().SetInt(itemCount(sale))
		row.AddCell().SetFloat(sale.Subtotal.Round(2).InexactFloat64())
		row.AddCell().SetFloat(sale.Discount.InexactFloat64())
		row.AddCell().SetFloat(sale.DiscountAmount.Round(2).InexactFloat64())
		row.AddCell().SetFloat(sale.Total.Round(2).InexactFloat64())
		row.AddCell().SetFloat(sale.TotalProfit.Round(2).InexactFloat64())
	}

	return file.Write(w)
}
