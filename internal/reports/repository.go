package reports

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Querier is satisfied by *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository runs the aggregate queries.
type Repository struct {
	db Querier
}

// NewRepository constructs Repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// Summary sums add quantity and price and use quantity inside r.
func (r *Repository) Summary(ctx context.Context, rng shared.DateRange) (Summary, error) {
	out := Summary{Range: rng}
	err := r.db.QueryRow(ctx, `
SELECT COALESCE(SUM(quantity) FILTER (WHERE type = 'add'), 0),
       COALESCE(SUM(price) FILTER (WHERE type = 'add'), 0),
       COALESCE(SUM(quantity) FILTER (WHERE type = 'use'), 0)
FROM stock_transactions
WHERE transaction_date BETWEEN $1 AND $2`, rng.Start, rng.End,
	).Scan(&out.PurchasesQuantity, &out.PurchasesValue, &out.UsageQuantity)
	if err != nil {
		return Summary{}, fmt.Errorf("reports: summary: %w", err)
	}
	return out, nil
}

// ByMaterial groups transactions of txType by material, ordered by name.
func (r *Repository) ByMaterial(ctx context.Context, rng shared.DateRange, txType string) ([]MaterialTotal, error) {
	rows, err := r.db.Query(ctx, `
SELECT m.name, m.unit_type, SUM(t.quantity), COALESCE(SUM(t.price), 0)
FROM stock_transactions t
JOIN materials m ON m.id = t.material_id
WHERE t.type = $1 AND t.transaction_date BETWEEN $2 AND $3
GROUP BY m.name, m.unit_type
ORDER BY m.name ASC`, txType, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("reports: by material: %w", err)
	}
	defer rows.Close()

	out := make([]MaterialTotal, 0)
	for rows.Next() {
		var line MaterialTotal
		if err := rows.Scan(&line.MaterialName, &line.Unit, &line.TotalQty, &line.TotalValue); err != nil {
			return nil, fmt.Errorf("reports: scan: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}
