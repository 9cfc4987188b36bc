package shared

// DefaultPerPage is used by list endpoints when the caller omits per_page.
const DefaultPerPage = 20

// Page is a paginated listing result.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	MaxPages int `json:"max_pages"`
}

// NewPage computes pagination metadata. perPage <= 0 means the listing was
// not paginated and every item is present.
func NewPage[T any](items []T, total, page, perPage int) Page[T] {
	if items == nil {
		items = []T{}
	}
	if perPage <= 0 {
		return Page[T]{Items: items, Total: total, Page: 1, PerPage: len(items), MaxPages: 1}
	}
	if page <= 0 {
		page = 1
	}
	maxPages := (total + perPage - 1) / perPage
	return Page[T]{Items: items, Total: total, Page: page, PerPage: perPage, MaxPages: maxPages}
}

// Offset returns the row offset for page/perPage.
func Offset(page, perPage int) int {
	if page <= 1 || perPage <= 0 {
		return 0
	}
	return (page - 1) * perPage
}
