package ledger

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/materials"
	"github.com/odyssey-erp/stockroom/internal/quantity"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, q ListQuery) ([]Transaction, int, error)
}

// AlertTrigger is invoked after commit for materials left below threshold.
type AlertTrigger interface {
	MaybeAlert(ctx context.Context, m materials.Material, actor shared.Principal)
}

// Invalidator drops cached report aggregates.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Recorder counts ledger outcomes.
type Recorder interface {
	TransactionRecorded(txType string)
	TransactionRejected(reason string)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Alerts      AlertTrigger
	Invalidator Invalidator
	Metrics     Recorder
	Logger      *slog.Logger
	// TxTimeout bounds the critical section. Zero disables the bound.
	TxTimeout time.Duration
}

// Service records stock movements and serves the ledger.
type Service struct {
	repo     RepositoryPort
	authz    shared.Authorizer
	cfg      ServiceConfig
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, authz shared.Authorizer, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		authz:    authz,
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var markup = regexp.MustCompile(`<[^>]*>`)

// StripMarkup removes tags from free text.
func StripMarkup(s string) string {
	return strings.TrimSpace(markup.ReplaceAllString(s, ""))
}

type preparedRecord struct {
	materialID int64
	typ        Type
	qty        decimal.Decimal
	price      decimal.NullDecimal
	supplier   string
	reason     string
	date       time.Time
	key        string
}

func (s *Service) prepare(in RecordInput) (preparedRecord, error) {
	typ, err := ParseType(in.Type)
	if err != nil {
		return preparedRecord{}, err
	}
	qty := quantity.Normalize(in.Quantity)
	if !qty.IsPositive() {
		return preparedRecord{}, ErrNonPositiveQuantity
	}
	if in.MaterialID <= 0 {
		return preparedRecord{}, ErrMissingMaterial
	}
	if err := shared.ValidateIdempotencyKey(strings.TrimSpace(in.IdempotencyKey)); err != nil {
		return preparedRecord{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return preparedRecord{}, shared.NewError(shared.ErrValidation, "Supplier or reason is too long.")
	}

	p := preparedRecord{
		materialID: in.MaterialID,
		typ:        typ,
		qty:        qty,
		date:       shared.ParseDateTime(in.TransactionDate, s.now(), false),
		key:        strings.TrimSpace(in.IdempotencyKey),
	}
	switch typ {
	case TypeAdd:
		p.price = quantity.OptionalMoney(in.Price)
		if p.price.Valid && p.price.Decimal.IsNegative() {
			return preparedRecord{}, ErrNegativePrice
		}
		p.supplier = strings.TrimSpace(in.Supplier)
	case TypeUse:
		p.reason = StripMarkup(in.Reason)
	}
	return p, nil
}

// Record appends a transaction and applies it to the material stock as one
// atomic unit. Concurrent writes to the same material serialise on its row
// lock; an over-withdrawal leaves both ledger and stock untouched.
func (s *Service) Record(ctx context.Context, actor shared.Principal, in RecordInput) (Result, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return Result{}, err
	}
	p, err := s.prepare(in)
	if err != nil {
		s.reject(err)
		return Result{}, err
	}

	txCtx := ctx
	if s.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.cfg.TxTimeout)
		defer cancel()
	}

	var result Result
	err = s.repo.WithTx(txCtx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.LockMaterial(ctx, p.materialID)
		if err != nil {
			return err
		}
		if p.key != "" {
			if err := tx.ClaimIdempotencyKey(ctx, p.key); err != nil {
				return err
			}
		}
		newQty, err := p.typ.Apply(m.Quantity, p.qty)
		if err != nil {
			return err
		}
		if newQty.IsNegative() {
			return ErrInsufficientStock
		}

		now := s.now()
		entry := Transaction{
			MaterialID:      m.ID,
			MaterialName:    m.Name,
			Unit:            m.UnitType,
			Type:            p.typ,
			Quantity:        p.qty,
			Price:           p.price,
			Supplier:        p.supplier,
			Reason:          p.reason,
			TransactionDate: p.date,
			CreatedBy:       actor.ID,
			CreatedByName:   actor.Name,
			CreatedAt:       now,
		}
		id, err := tx.InsertTransaction(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id

		update := materials.StockUpdate{
			ID:       m.ID,
			Quantity: newQty,
			Price:    p.price,
			Supplier: p.supplier,
			EditedAt: now,
			EditedBy: actor.ID,
		}
		if err := tx.UpdateMaterialStock(ctx, update); err != nil {
			return err
		}
		m = update.Apply(m)
		m.LastEditedByName = actor.Name
		result = Result{Material: m, Transaction: entry}
		return nil
	})
	if err != nil {
		s.reject(err)
		return Result{}, shared.Persistence(ErrWriteFailure, err)
	}

	s.afterCommit(ctx, actor, result)
	return result, nil
}

func (s *Service) afterCommit(ctx context.Context, actor shared.Principal, r Result) {
	ctx = context.WithoutCancel(ctx)
	s.logger.InfoContext(ctx, "stock transaction recorded",
		slog.Int64("transaction_id", r.Transaction.ID),
		slog.Int64("material_id", r.Material.ID),
		slog.String("type", string(r.Transaction.Type)),
		slog.String("quantity", r.Transaction.Quantity.String()),
		slog.String("stock", r.Material.Quantity.String()),
		slog.Int64("actor_id", actor.ID),
	)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.TransactionRecorded(string(r.Transaction.Type))
	}
	if s.cfg.Invalidator != nil {
		if err := s.cfg.Invalidator.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "report cache not invalidated", slog.Any("error", err))
		}
	}
	if s.cfg.Alerts != nil && r.Material.IsLow() {
		s.cfg.Alerts.MaybeAlert(ctx, r.Material, actor)
	}
}

func (s *Service) reject(err error) {
	if s.cfg.Metrics == nil {
		return
	}
	reason := "write_failure"
	switch {
	case errors.Is(err, shared.ErrValidation):
		reason = "validation"
	case errors.Is(err, shared.ErrInsufficientStock):
		reason = "insufficient_stock"
	case errors.Is(err, shared.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, shared.ErrConflict):
		reason = "duplicate"
	}
	s.cfg.Metrics.TransactionRejected(reason)
}

// List returns a page of transactions. The sort order is fixed to
// transaction_date descending.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter) (shared.Page[Transaction], error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return shared.Page[Transaction]{}, err
	}
	q := s.resolve(filter)
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return shared.Page[Transaction]{}, shared.Persistence(shared.ErrPersistence, err)
	}
	return shared.NewPage(items, total, q.Page, q.PerPage), nil
}

func (s *Service) resolve(filter ListFilter) ListQuery {
	q := ListQuery{
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		MaterialID: filter.MaterialID,
		Range:      shared.NormalizeDateRange(filter.DateStart, filter.DateEnd, s.now()),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 0 {
		q.PerPage = 0
	}
	if typ, err := ParseType(filter.Type); err == nil {
		q.Type = typ
	}
	return q
}
