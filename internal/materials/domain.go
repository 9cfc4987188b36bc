package materials

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/quantity"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Material is a tracked raw-material stock item.
type Material struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	UnitType         string              `json:"unit_type"`
	Quantity         decimal.Decimal     `json:"quantity"`
	WarningQuantity  decimal.Decimal     `json:"warning_quantity"`
	Supplier         string              `json:"supplier,omitempty"`
	Price            decimal.NullDecimal `json:"price"`
	LastUpdated      time.Time           `json:"last_updated"`
	LastEditedBy     int64               `json:"last_edited_by,omitempty"`
	LastEditedByName string              `json:"last_edited_by_name,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

// IsLow reports whether the material sits below an enabled warning threshold.
func (m Material) IsLow() bool {
	return m.WarningQuantity.IsPositive() && m.Quantity.LessThan(m.WarningQuantity)
}

// CreateInput carries the fields accepted on creation. Numeric fields are
// raw and normalised by the service.
type CreateInput struct {
	Name            string       `json:"name" validate:"max=190"`
	UnitType        string       `json:"unit_type" validate:"max=30"`
	Quantity        quantity.Raw `json:"quantity"`
	WarningQuantity quantity.Raw `json:"warning_quantity"`
	Supplier        string       `json:"supplier" validate:"max=190"`
	Price           quantity.Raw `json:"price"`
}

// UpdateInput is a partial update. Unset fields are left untouched; a set but
// empty Price clears the stored price.
type UpdateInput struct {
	Name            shared.Optional[string]       `json:"name"`
	UnitType        shared.Optional[string]       `json:"unit_type"`
	Quantity        shared.Optional[quantity.Raw] `json:"quantity"`
	WarningQuantity shared.Optional[quantity.Raw] `json:"warning_quantity"`
	Supplier        shared.Optional[string]       `json:"supplier"`
	Price           shared.Optional[quantity.Raw] `json:"price"`
}

// Empty reports whether no field was supplied.
func (in UpdateInput) Empty() bool {
	return !in.Name.Set && !in.UnitType.Set && !in.Quantity.Set &&
		!in.WarningQuantity.Set && !in.Supplier.Set && !in.Price.Set
}

// ListFilter drives the paginated listing. PerPage <= 0 returns every row.
type ListFilter struct {
	Page    int
	PerPage int
	Search  string
	OrderBy string
	Order   string
}

// sortColumns is the allow-list of sortable columns.
var sortColumns = map[string]string{
	"name":             "m.name",
	"unit_type":        "m.unit_type",
	"quantity":         "m.quantity",
	"warning_quantity": "m.warning_quantity",
	"last_updated":     "m.last_updated",
	"supplier":         "m.supplier",
	"price":            "m.price",
}

// SortColumn resolves field against the allow-list, falling back to name.
func SortColumn(field string) string {
	if col, ok := sortColumns[field]; ok {
		return col
	}
	return sortColumns["name"]
}

// SortDirection accepts ASC or DESC case-insensitively, defaulting to ASC.
func SortDirection(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "DESC") {
		return "DESC"
	}
	return "ASC"
}

var (
	ErrMissingName      = shared.NewError(shared.ErrValidation, "Material name is required.")
	ErrMissingUnit      = shared.NewError(shared.ErrValidation, "Unit type is required.")
	ErrNegativeWarning  = shared.NewError(shared.ErrValidation, "Warning quantity cannot be negative.")
	ErrNegativeQuantity = shared.NewError(shared.ErrValidation, "Quantity cannot be negative.")
	ErrNegativePrice    = shared.NewError(shared.ErrValidation, "Price cannot be negative.")
	ErrNoFields         = shared.NewError(shared.ErrValidation, "No fields to update.")
	ErrControlCharacter = shared.NewError(shared.ErrValidation, "Name, unit and supplier cannot contain line breaks or control characters.")
	ErrDuplicateName    = shared.NewError(shared.ErrConflict, "A material with this name already exists.")
	ErrNotFound         = shared.NewError(shared.ErrNotFound, "Material not found.")
	ErrHasTransactions  = shared.NewError(shared.ErrReferential, "Cannot delete material with existing transactions.")
	ErrWriteFailure     = shared.NewError(shared.ErrPersistence, "Unable to save material, please try again.")
)

// StockUpdate is the row change applied by a ledger write. Price and
// Supplier overwrite the stored values only when present.
type StockUpdate struct {
	ID       int64
	Quantity decimal.Decimal
	Price    decimal.NullDecimal
	Supplier string
	EditedAt time.Time
	EditedBy int64
}

// Apply returns m with u applied.
func (u StockUpdate) Apply(m Material) Material {
	m.Quantity = u.Quantity
	if u.Price.Valid {
		m.Price = u.Price
	}
	if u.Supplier != "" {
		m.Supplier = u.Supplier
	}
	m.LastUpdated = u.EditedAt
	m.LastEditedBy = u.EditedBy
	return m
}
