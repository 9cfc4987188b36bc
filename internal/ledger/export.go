package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/stockroom/internal/quantity"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// ExportHeader lists the tabular export columns.
var ExportHeader = []string{"Material", "Type", "Quantity", "Unit", "Price", "Supplier", "Reason", "Transaction Date", "Created By"}

// Export is a rendered file ready for download.
type Export struct {
	Filename    string
	ContentType string
	Payload     []byte
}

const exportDateLayout = "2006-01-02 15:04:05"

// Tabulate turns transactions into export rows, one per transaction.
func Tabulate(items []Transaction) [][]string {
	rows := make([][]string, 0, len(items))
	for _, t := range items {
		price := ""
		if t.Price.Valid {
			price = t.Price.Decimal.StringFixed(quantity.MoneyPlaces)
		}
		rows = append(rows, []string{
			t.MaterialName,
			string(t.Type),
			t.Quantity.StringFixed(quantity.QuantityPlaces),
			t.Unit,
			price,
			t.Supplier,
			StripMarkup(t.Reason),
			t.TransactionDate.Format(exportDateLayout),
			t.CreatedByName,
		})
	}
	return rows
}

// EncodeCSV writes header and rows as CSV.
func EncodeCSV(header []string, rows [][]string) ([]byte, error) {
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

// EncodeXLSX writes header and rows into a single-sheet workbook.
func EncodeXLSX(sheet string, header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	all := append([][]string{header}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportFilename(now time.Time, ext string) string {
	return fmt.Sprintf("stock-transactions-%s.%s", now.Format("20060102-150405"), ext)
}

func (s *Service) exportRows(ctx context.Context, actor shared.Principal, filter ListFilter) ([][]string, error) {
	filter.PerPage = 0
	page, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return Tabulate(page.Items), nil
}

// ExportCSV renders every transaction matching filter as CSV.
func (s *Service) ExportCSV(ctx context.Context, actor shared.Principal, filter ListFilter) (Export, error) {
	rows, err := s.exportRows(ctx, actor, filter)
	if err != nil {
		return Export{}, err
	}
	payload, err := EncodeCSV(ExportHeader, rows)
	if err != nil {
		return Export{}, shared.Persistence(shared.ErrPersistence, err)
	}
	return Export{Filename: exportFilename(s.now(), "csv"), ContentType: "text/csv; charset=utf-8", Payload: payload}, nil
}

// ExportXLSX renders every transaction matching filter as a workbook.
func (s *Service) ExportXLSX(ctx context.Context, actor shared.Principal, filter ListFilter) (Export, error) {
	rows, err := s.exportRows(ctx, actor, filter)
	if err != nil {
		return Export{}, err
	}
	payload, err := EncodeXLSX("Transactions", ExportHeader, rows)
	if err != nil {
		return Export{}, shared.Persistence(shared.ErrPersistence, err)
	}
	return Export{
		Filename:    exportFilename(s.now(), "xlsx"),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Payload:     payload,
	}, nil
}
