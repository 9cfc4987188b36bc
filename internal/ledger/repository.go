package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockroom/internal/materials"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

const idempotencyModule = "ledger"

// TxRepository exposes the operations of the stock mutation critical section.
type TxRepository interface {
	LockMaterial(ctx context.Context, id int64) (materials.Material, error)
	ClaimIdempotencyKey(ctx context.Context, key string) error
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	UpdateMaterialStock(ctx context.Context, u materials.StockUpdate) error
}

// Repository persists ledger entries in PostgreSQL.
type Repository struct {
	pool      *pgxpool.Pool
	materials *materials.Repository
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, mats *materials.Repository) *Repository {
	return &Repository{pool: pool, materials: mats}
}

type txRepo struct {
	tx        pgx.Tx
	materials *materials.Repository
}

// WithTx executes fn inside a read-committed transaction. Per-material
// serialisation comes from the row lock taken by LockMaterial.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, materials: r.materials.InTx(tx)})
	})
}

func (r *txRepo) LockMaterial(ctx context.Context, id int64) (materials.Material, error) {
	m, err := r.materials.GetForUpdate(ctx, id)
	if errors.Is(err, materials.ErrNotFound) {
		return materials.Material{}, ErrMaterialNotFound
	}
	return m, err
}

func (r *txRepo) ClaimIdempotencyKey(ctx context.Context, key string) error {
	err := shared.ClaimIdempotencyKey(ctx, r.tx, key, idempotencyModule)
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		return ErrDuplicateSubmission
	}
	return err
}

func (r *txRepo) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
INSERT INTO stock_transactions (material_id, type, quantity, price, supplier, reason, transaction_date, created_by, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, 0), $9)
RETURNING id`,
		t.MaterialID, string(t.Type), t.Quantity, t.Price, t.Supplier, t.Reason, t.TransactionDate, t.CreatedBy, t.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger: insert transaction: %w", err)
	}
	return id, nil
}

func (r *txRepo) UpdateMaterialStock(ctx context.Context, u materials.StockUpdate) error {
	return r.materials.ApplyStock(ctx, u)
}

const selectTransaction = `
SELECT t.id, t.material_id, COALESCE(m.name, ''), COALESCE(m.unit_type, ''), t.type, t.quantity, t.price,
       t.supplier, t.reason, t.transaction_date, COALESCE(t.created_by, 0), COALESCE(u.display_name, ''), t.created_at
FROM stock_transactions t
LEFT JOIN materials m ON m.id = t.material_id
LEFT JOIN users u ON u.id = t.created_by`

// List returns transactions inside q.Range, newest transaction_date first.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]Transaction, int, error) {
	conditions := []string{"t.transaction_date BETWEEN $1 AND $2"}
	args := []any{q.Range.Start, q.Range.End}
	if q.MaterialID > 0 {
		args = append(args, q.MaterialID)
		conditions = append(conditions, fmt.Sprintf("t.material_id = $%d", len(args)))
	}
	if q.Type != "" {
		args = append(args, string(q.Type))
		conditions = append(conditions, fmt.Sprintf("t.type = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_transactions t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ledger: count: %w", err)
	}

	query := selectTransaction + where + ` ORDER BY t.transaction_date DESC, t.id DESC`
	if q.PerPage > 0 {
		args = append(args, q.PerPage, shared.Offset(q.Page, q.PerPage))
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	items := make([]Transaction, 0)
	for rows.Next() {
		var (
			t                Transaction
			typ              string
			supplier, reason pgtype.Text
		)
		if err := rows.Scan(&t.ID, &t.MaterialID, &t.MaterialName, &t.Unit, &typ, &t.Quantity, &t.Price,
			&supplier, &reason, &t.TransactionDate, &t.CreatedBy, &t.CreatedByName, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("ledger: scan: %w", err)
		}
		t.Type = Type(typ)
		t.Supplier = supplier.String
		t.Reason = reason.String
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ledger: rows: %w", err)
	}
	return items, total, nil
}
