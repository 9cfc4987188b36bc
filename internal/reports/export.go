package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/odyssey-erp/stockroom/internal/quantity"
)

// PurchasesCSV renders a purchase breakdown.
func PurchasesCSV(lines []MaterialTotal) ([]byte, error) {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []string{l.MaterialName, l.Unit, l.TotalQty.StringFixed(quantity.QuantityPlaces), l.TotalValue.StringFixed(quantity.MoneyPlaces)})
	}
	return encode([]string{"Material", "Unit", "Total Quantity", "Total Value"}, rows)
}

// UsageCSV renders a usage breakdown.
func UsageCSV(lines []MaterialTotal) ([]byte, error) {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []string{l.MaterialName, l.Unit, l.TotalQty.StringFixed(quantity.QuantityPlaces)})
	}
	return encode([]string{"Material", "Unit", "Total Quantity"}, rows)
}

func encode(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func reportFilename(kind string, now time.Time) string {
	return fmt.Sprintf("stock-%s-%s.csv", kind, now.Format("20060102-150405"))
}
