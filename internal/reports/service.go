package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/stockroom/internal/platform/cache"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts the aggregate queries.
type RepositoryPort interface {
	Summary(ctx context.Context, rng shared.DateRange) (Summary, error)
	ByMaterial(ctx context.Context, rng shared.DateRange, txType string) ([]MaterialTotal, error)
}

// Service serves the report aggregates through a versioned cache.
type Service struct {
	repo   RepositoryPort
	authz  shared.Authorizer
	cache  *cache.Versioned
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. A nil cache reads straight from the repository.
func NewService(repo RepositoryPort, authz shared.Authorizer, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, cache: c, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Range resolves caller-supplied bounds, defaulting to the trailing week.
func (s *Service) Range(start, end string) shared.DateRange {
	return shared.NormalizeDateRange(start, end, s.now())
}

func cacheKey(kind string, rng shared.DateRange) string {
	return fmt.Sprintf("%s:%d:%d", kind, rng.Start.Unix(), rng.End.Unix())
}

// Summary returns the purchase and usage totals for rng.
func (s *Service) Summary(ctx context.Context, actor shared.Principal, rng shared.DateRange) (Summary, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return Summary{}, err
	}
	return s.summary(ctx, rng)
}

func (s *Service) summary(ctx context.Context, rng shared.DateRange) (Summary, error) {
	var out Summary
	err := s.cache.FetchJSON(ctx, cacheKey("summary", rng), &out, func(ctx context.Context) (any, error) {
		return s.repo.Summary(ctx, rng)
	})
	if err != nil {
		return Summary{}, shared.Persistence(shared.ErrPersistence, err)
	}
	return out, nil
}

// PurchasesByMaterial groups add transactions by material.
func (s *Service) PurchasesByMaterial(ctx context.Context, actor shared.Principal, rng shared.DateRange) ([]MaterialTotal, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return nil, err
	}
	return s.byMaterial(ctx, rng, "add")
}

// UsageByMaterial groups use transactions by material.
func (s *Service) UsageByMaterial(ctx context.Context, actor shared.Principal, rng shared.DateRange) ([]MaterialTotal, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return nil, err
	}
	return s.byMaterial(ctx, rng, "use")
}

func (s *Service) byMaterial(ctx context.Context, rng shared.DateRange, txType string) ([]MaterialTotal, error) {
	var out []MaterialTotal
	err := s.cache.FetchJSON(ctx, cacheKey(txType, rng), &out, func(ctx context.Context) (any, error) {
		return s.repo.ByMaterial(ctx, rng, txType)
	})
	if err != nil {
		return nil, shared.Persistence(shared.ErrPersistence, err)
	}
	if out == nil {
		out = []MaterialTotal{}
	}
	return out, nil
}

// Overview loads the three aggregates concurrently.
func (s *Service) Overview(ctx context.Context, actor shared.Principal, rng shared.DateRange) (Overview, error) {
	if err := shared.Authorize(ctx, s.authz, actor); err != nil {
		return Overview{}, err
	}
	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Summary, err = s.summary(gctx, rng)
		return err
	})
	g.Go(func() error {
		var err error
		out.Purchases, err = s.byMaterial(gctx, rng, "add")
		return err
	})
	g.Go(func() error {
		var err error
		out.Usage, err = s.byMaterial(gctx, rng, "use")
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

// Invalidate drops every cached aggregate. The ledger calls it after commit.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
