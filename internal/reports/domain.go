// Package reports aggregates the ledger over a transaction_date window.
package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Summary totals purchases and usage in a window.
type Summary struct {
	Range             shared.DateRange `json:"range"`
	PurchasesQuantity decimal.Decimal  `json:"purchases_quantity"`
	PurchasesValue    decimal.Decimal  `json:"purchases_value"`
	UsageQuantity     decimal.Decimal  `json:"usage_quantity"`
}

// MaterialTotal is one row of a per-material breakdown. TotalValue is only
// meaningful for purchases.
type MaterialTotal struct {
	MaterialName string          `json:"material_name"`
	Unit         string          `json:"unit"`
	TotalQty     decimal.Decimal `json:"total_qty"`
	TotalValue   decimal.Decimal `json:"total_value"`
}

// Overview bundles every aggregate for one window.
type Overview struct {
	Summary   Summary         `json:"summary"`
	Purchases []MaterialTotal `json:"purchases"`
	Usage     []MaterialTotal `json:"usage"`
}
