package settings

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Store is the persistence port.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Service reads and writes settings. Every read goes to the store so that
// replicas see each other's saves.
type Service struct {
	store         Store
	authz         shared.Authorizer
	logger        *slog.Logger
	fallbackEmail string
	validate      *validator.Validate
}

// NewService builds Service. fallbackEmail fills alert_email when unset or invalid.
func NewService(store Store, authz shared.Authorizer, logger *slog.Logger, fallbackEmail string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, authz: authz, logger: logger, fallbackEmail: fallbackEmail, validate: validator.New()}
}

// Current implements Provider. Missing rows yield defaults.
func (s *Service) Current(ctx context.Context) (Settings, error) {
	stored, err := s.store.Load(ctx)
	if err != nil && !errors.Is(err, ErrNotStored) {
		return Settings{}, shared.Persistence(shared.ErrPersistence, err)
	}
	if errors.Is(err, ErrNotStored) {
		return Defaults(s.fallbackEmail), nil
	}
	return s.sanitize(stored), nil
}

// Get returns the settings for an authorized caller.
func (s *Service) Get(ctx context.Context, actor shared.Principal) (Settings, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return Settings{}, err
	}
	return s.Current(ctx)
}

// Save persists in after normalising email and units.
func (s *Service) Save(ctx context.Context, actor shared.Principal, in SaveInput) (Settings, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return Settings{}, err
	}
	next := s.sanitize(Settings{
		AlertsEnabled: in.AlertsEnabled,
		AlertEmail:    in.AlertEmail,
		Units:         in.Units,
	})
	if err := s.store.Save(ctx, next); err != nil {
		return Settings{}, shared.Persistence(shared.ErrPersistence, err)
	}
	s.logger.InfoContext(ctx, "settings saved", slog.Int64("actor_id", actor.ID), slog.Bool("alerts_enabled", next.AlertsEnabled))
	return next, nil
}

func (s *Service) sanitize(in Settings) Settings {
	in.AlertEmail = strings.TrimSpace(in.AlertEmail)
	if in.AlertEmail == "" || s.validate.Var(in.AlertEmail, "email") != nil {
		in.AlertEmail = s.fallbackEmail
	}
	in.Units = NormalizeUnits(in.Units)
	return in
}
