package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/materials"
	"github.com/odyssey-erp/stockroom/internal/quantity"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Type is the kind of stock movement.
type Type string

const (
	TypeAdd Type = "add"
	TypeUse Type = "use"
)

// ParseType resolves raw into a Type.
func ParseType(raw string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeAdd:
		return TypeAdd, nil
	case TypeUse:
		return TypeUse, nil
	}
	return "", ErrInvalidType
}

// Apply returns the stock level after moving qty in direction t.
func (t Type) Apply(current, qty decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case TypeAdd:
		return current.Add(qty), nil
	case TypeUse:
		return current.Sub(qty), nil
	}
	return decimal.Zero, ErrInvalidType
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID              int64               `json:"id"`
	MaterialID      int64               `json:"material_id"`
	MaterialName    string              `json:"material_name,omitempty"`
	Unit            string              `json:"unit,omitempty"`
	Type            Type                `json:"type"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Price           decimal.NullDecimal `json:"price"`
	Supplier        string              `json:"supplier,omitempty"`
	Reason          string              `json:"reason,omitempty"`
	TransactionDate time.Time           `json:"transaction_date"`
	CreatedBy       int64               `json:"created_by,omitempty"`
	CreatedByName   string              `json:"created_by_name,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// RecordInput is a request to append a stock movement.
type RecordInput struct {
	MaterialID      int64        `json:"material_id"`
	Type            string       `json:"type"`
	Quantity        quantity.Raw `json:"quantity"`
	Price           quantity.Raw `json:"price"`
	Supplier        string       `json:"supplier" validate:"max=190"`
	Reason          string       `json:"reason" validate:"max=2000"`
	TransactionDate string       `json:"transaction_date"`
	IdempotencyKey  string       `json:"idempotency_key"`
}

// Result is the outcome of a successful write.
type Result struct {
	Material    materials.Material `json:"material"`
	Transaction Transaction        `json:"transaction"`
}

// ListFilter is the caller-facing listing filter. PerPage 0 disables pagination.
type ListFilter struct {
	Page       int
	PerPage    int
	MaterialID int64
	Type       string
	DateStart  string
	DateEnd    string
}

// ListQuery is a resolved ListFilter.
type ListQuery struct {
	Page       int
	PerPage    int
	MaterialID int64
	Type       Type
	Range      shared.DateRange
}

var (
	ErrInvalidType         = shared.NewError(shared.ErrValidation, "Invalid transaction type.")
	ErrNonPositiveQuantity = shared.NewError(shared.ErrValidation, "Quantity must be greater than zero.")
	ErrMissingMaterial     = shared.NewError(shared.ErrValidation, "Please select a material.")
	ErrNegativePrice       = shared.NewError(shared.ErrValidation, "Price cannot be negative.")
	ErrMaterialNotFound    = shared.NewError(shared.ErrNotFound, "Material not found.")
	ErrInsufficientStock   = shared.NewError(shared.ErrInsufficientStock, "Not enough stock available for this operation.")
	ErrDuplicateSubmission = shared.NewError(shared.ErrConflict, "This transaction was already submitted.")
	ErrWriteFailure        = shared.NewError(shared.ErrPersistence, "Failed to record transaction. Please try again.")
)
