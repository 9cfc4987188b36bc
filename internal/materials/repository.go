package materials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// TxRepository exposes the row-locked operations used by the service.
type TxRepository interface {
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	Insert(ctx context.Context, m Material) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Material, error)
	Update(ctx context.Context, m Material) error
	CountTransactions(ctx context.Context, id int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Repository persists materials in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// InTx returns a repository bound to tx, for callers that own the transaction.
func (r *Repository) InTx(tx pgx.Tx) *Repository {
	return &Repository{pool: r.pool, db: tx}
}

// WithTx runs fn inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{pool: r.pool, db: tx})
	})
}

const selectMaterial = `
SELECT m.id, m.name, m.unit_type, m.quantity, m.warning_quantity, m.supplier, m.price,
       m.last_updated, COALESCE(m.last_edited_by, 0), COALESCE(u.display_name, ''), m.created_at
FROM materials m
LEFT JOIN users u ON u.id = m.last_edited_by`

func scanMaterial(row pgx.Row) (Material, error) {
	var (
		m        Material
		supplier pgtype.Text
	)
	err := row.Scan(&m.ID, &m.Name, &m.UnitType, &m.Quantity, &m.WarningQuantity, &supplier, &m.Price,
		&m.LastUpdated, &m.LastEditedBy, &m.LastEditedByName, &m.CreatedAt)
	if err != nil {
		return Material{}, err
	}
	m.Supplier = supplier.String
	return m, nil
}

// Get loads a material by id.
func (r *Repository) Get(ctx context.Context, id int64) (Material, error) {
	m, err := scanMaterial(r.db.QueryRow(ctx, selectMaterial+` WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, ErrNotFound
		}
		return Material{}, fmt.Errorf("materials: get: %w", err)
	}
	return m, nil
}

// GetForUpdate loads a material and locks its row until the transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (Material, error) {
	m, err := scanMaterial(r.db.QueryRow(ctx, selectMaterial+` WHERE m.id = $1 FOR UPDATE OF m`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, ErrNotFound
		}
		return Material{}, fmt.Errorf("materials: lock: %w", err)
	}
	return m, nil
}

// List returns one page of materials plus the unpaginated total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Material, int, error) {
	var (
		where string
		args  []any
	)
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+term+"%")
		where = ` WHERE (m.name ILIKE $1 OR m.unit_type ILIKE $1 OR COALESCE(m.supplier, '') ILIKE $1)`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM materials m`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("materials: count: %w", err)
	}

	query := selectMaterial + where +
		fmt.Sprintf(` ORDER BY %s %s NULLS LAST, m.id ASC`, SortColumn(filter.OrderBy), SortDirection(filter.Order))
	if filter.PerPage > 0 {
		args = append(args, filter.PerPage, shared.Offset(filter.Page, filter.PerPage))
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("materials: list: %w", err)
	}
	defer rows.Close()

	items := make([]Material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("materials: scan: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("materials: rows: %w", err)
	}
	return items, total, nil
}

// NameTaken checks case-insensitive name uniqueness, ignoring excludeID.
func (r *Repository) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM materials WHERE LOWER(name) = LOWER($1) AND id <> $2)`,
		name, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("materials: name check: %w", err)
	}
	return exists, nil
}

// Insert stores a new material and returns its id.
func (r *Repository) Insert(ctx context.Context, m Material) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO materials (name, unit_type, quantity, warning_quantity, supplier, price, last_updated, last_edited_by, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, 0), $7)
RETURNING id`,
		m.Name, m.UnitType, m.Quantity, m.WarningQuantity, m.Supplier, m.Price, m.LastUpdated, m.LastEditedBy,
	).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, ErrDuplicateName
		}
		return 0, fmt.Errorf("materials: insert: %w", err)
	}
	return id, nil
}

// Update overwrites every mutable column of m.
func (r *Repository) Update(ctx context.Context, m Material) error {
	tag, err := r.db.Exec(ctx, `
UPDATE materials
SET name = $2, unit_type = $3, quantity = $4, warning_quantity = $5, supplier = NULLIF($6, ''),
    price = $7, last_updated = $8, last_edited_by = NULLIF($9, 0)
WHERE id = $1`,
		m.ID, m.Name, m.UnitType, m.Quantity, m.WarningQuantity, m.Supplier, m.Price, m.LastUpdated, m.LastEditedBy)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("materials: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyStock writes a ledger-driven stock change. Call it while holding the
// row lock taken by GetForUpdate.
func (r *Repository) ApplyStock(ctx context.Context, u StockUpdate) error {
	tag, err := r.db.Exec(ctx, `
UPDATE materials
SET quantity = $2, last_updated = $3, last_edited_by = NULLIF($4, 0),
    price = COALESCE($5, price), supplier = COALESCE(NULLIF($6, ''), supplier)
WHERE id = $1`,
		u.ID, u.Quantity, u.EditedAt, u.EditedBy, u.Price, u.Supplier)
	if err != nil {
		return fmt.Errorf("materials: apply stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTransactions counts ledger rows referencing id.
func (r *Repository) CountTransactions(ctx context.Context, id int64) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM stock_transactions WHERE material_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("materials: count transactions: %w", err)
	}
	return n, nil
}

// Delete removes the material row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("materials: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
