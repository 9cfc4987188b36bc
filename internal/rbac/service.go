package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Permission names granted through user_permissions.
const (
	PermInventoryManage = "inventory.manage"
	PermOptionsManage   = "options.manage"
)

// ManagePermissions grants the inventory capability. Either one suffices.
var ManagePermissions = []string{PermInventoryManage, PermOptionsManage}

// Querier is satisfied by *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Service resolves effective permissions.
type Service struct {
	db     Querier
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(db Querier, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// EffectivePermissions lists permissions granted to userID, lowercased.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT permission FROM user_permissions WHERE user_id = $1 ORDER BY permission`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: query permissions: %w", err)
	}
	perms, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("rbac: scan permissions: %w", err)
	}
	for i := range perms {
		perms[i] = strings.ToLower(strings.TrimSpace(perms[i]))
	}
	return perms, nil
}

// CanManage implements shared.Authorizer. Lookup failures deny.
func (s *Service) CanManage(ctx context.Context, p shared.Principal) bool {
	if p.IsZero() {
		return false
	}
	granted, err := s.EffectivePermissions(ctx, p.ID)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "rbac lookup failed", slog.Int64("user_id", p.ID), slog.Any("error", err))
		}
		return false
	}
	return hasAnyPermission(granted, ManagePermissions)
}
