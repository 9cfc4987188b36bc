package materials

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockroom/internal/quantity"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Material, error)
	List(ctx context.Context, filter ListFilter) ([]Material, int, error)
}

// Invalidator drops derived read models that join material names.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates material operations.
type Service struct {
	repo        RepositoryPort
	authz       shared.Authorizer
	logger      *slog.Logger
	validate    *validator.Validate
	invalidator Invalidator
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, authz shared.Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		authz:    authz,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithInvalidator bumps inv after every committed update or delete.
func (s *Service) WithInvalidator(inv Invalidator) *Service {
	s.invalidator = inv
	return s
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "report cache not invalidated", slog.Any("error", err))
	}
}

// Create validates and stores a new material.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateInput) (Material, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return Material{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.UnitType = strings.TrimSpace(in.UnitType)
	in.Supplier = strings.TrimSpace(in.Supplier)
	if in.Name == "" {
		return Material{}, ErrMissingName
	}
	if in.UnitType == "" {
		return Material{}, ErrMissingUnit
	}
	if err := s.validateText(in); err != nil {
		return Material{}, err
	}

	warning := quantity.Normalize(in.WarningQuantity)
	if warning.IsNegative() {
		return Material{}, ErrNegativeWarning
	}
	qty := quantity.Normalize(in.Quantity)
	if qty.IsNegative() {
		return Material{}, ErrNegativeQuantity
	}
	price := quantity.OptionalMoney(in.Price)
	if price.Valid && price.Decimal.IsNegative() {
		return Material{}, ErrNegativePrice
	}

	now := s.now()
	m := Material{
		Name:             in.Name,
		UnitType:         in.UnitType,
		Quantity:         qty,
		WarningQuantity:  warning,
		Supplier:         in.Supplier,
		Price:            price,
		LastUpdated:      now,
		LastEditedBy:     actor.ID,
		LastEditedByName: actor.Name,
		CreatedAt:        now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.NameTaken(ctx, m.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateName
		}
		id, err := tx.Insert(ctx, m)
		if err != nil {
			return err
		}
		m.ID = id
		return nil
	})
	if err != nil {
		return Material{}, shared.Persistence(ErrWriteFailure, err)
	}
	s.logger.InfoContext(ctx, "material created", slog.Int64("material_id", m.ID), slog.String("name", m.Name), slog.Int64("actor_id", actor.ID))
	return m, nil
}

// Update applies the supplied fields under the material row lock and always
// stamps last_updated and last_edited_by.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, in UpdateInput) (Material, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return Material{}, err
	}
	if in.Empty() {
		return Material{}, ErrNoFields
	}

	var updated Material
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := s.applyPatch(current, in)
		if err != nil {
			return err
		}
		if in.Name.Set && !strings.EqualFold(next.Name, current.Name) {
			taken, err := tx.NameTaken(ctx, next.Name, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateName
			}
		}
		next.LastUpdated = s.now()
		next.LastEditedBy = actor.ID
		next.LastEditedByName = actor.Name
		if err := tx.Update(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return Material{}, shared.Persistence(ErrWriteFailure, err)
	}
	s.logger.InfoContext(ctx, "material updated", slog.Int64("material_id", id), slog.Int64("actor_id", actor.ID))
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) applyPatch(m Material, in UpdateInput) (Material, error) {
	if in.Name.Set {
		name := strings.TrimSpace(in.Name.Value)
		if name == "" {
			return Material{}, ErrMissingName
		}
		m.Name = name
	}
	if in.UnitType.Set {
		unit := strings.TrimSpace(in.UnitType.Value)
		if unit == "" {
			return Material{}, ErrMissingUnit
		}
		m.UnitType = unit
	}
	if in.Supplier.Set {
		m.Supplier = strings.TrimSpace(in.Supplier.Value)
	}
	if err := s.validateText(CreateInput{Name: m.Name, UnitType: m.UnitType, Supplier: m.Supplier}); err != nil {
		return Material{}, err
	}
	if in.WarningQuantity.Set {
		warning := quantity.Normalize(in.WarningQuantity.Value)
		if warning.IsNegative() {
			return Material{}, ErrNegativeWarning
		}
		m.WarningQuantity = warning
	}
	if in.Quantity.Set {
		// Corrective override: no ledger entry is written for it.
		qty := quantity.Normalize(in.Quantity.Value)
		if qty.IsNegative() {
			return Material{}, ErrNegativeQuantity
		}
		m.Quantity = qty
	}
	if in.Price.Set {
		price := quantity.OptionalMoney(in.Price.Value)
		if price.Valid && price.Decimal.IsNegative() {
			return Material{}, ErrNegativePrice
		}
		m.Price = price
	}
	return m, nil
}

// Delete removes a material that no transaction references.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		count, err := tx.CountTransactions(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrHasTransactions
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return shared.Persistence(ErrWriteFailure, err)
	}
	s.logger.InfoContext(ctx, "material deleted", slog.Int64("material_id", id), slog.Int64("actor_id", actor.ID))
	s.invalidate(ctx)
	return nil
}

// Get returns a single material.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (Material, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return Material{}, err
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Material{}, shared.Persistence(shared.ErrPersistence, err)
	}
	return m, nil
}

// List returns a page of materials.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter) (shared.Page[Material], error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return shared.Page[Material]{}, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[Material]{}, shared.Persistence(shared.ErrPersistence, err)
	}
	return shared.NewPage(items, total, filter.Page, filter.PerPage), nil
}

// validateText enforces column lengths and rejects control characters, which
// would otherwise reach mail headers.
func (s *Service) validateText(in CreateInput) error {
	for _, v := range []string{in.Name, in.UnitType, in.Supplier} {
		if strings.ContainsFunc(v, unicode.IsControl) {
			return ErrControlCharacter
		}
	}
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return shared.NewError(shared.ErrValidation, fieldMessage(verrs[0]))
	}
	return shared.NewError(shared.ErrValidation, err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Name":
		return "Material name must be at most 190 characters."
	case "UnitType":
		return "Unit type must be at most 30 characters."
	case "Supplier":
		return "Supplier must be at most 190 characters."
	}
	return fe.Error()
}
