// Package alerts raises low-stock notices and notifications after a ledger
// write has committed. Failures never propagate to the caller.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/stockroom/internal/materials"
	"github.com/odyssey-erp/stockroom/internal/quantity"
	"github.com/odyssey-erp/stockroom/internal/settings"
	"github.com/odyssey-erp/stockroom/internal/shared"
	"github.com/odyssey-erp/stockroom/jobs"
)

// Notices stores the transient notice.
type Notices interface {
	Save(ctx context.Context, n Notice, ttl time.Duration) error
}

// Notifier delivers the outbound notification.
type Notifier interface {
	Notify(ctx context.Context, payload jobs.LowStockPayload) error
}

// Recorder counts alert outcomes.
type Recorder interface {
	LowStockAlert(outcome string)
}

// Trigger implements the low-stock alert side effects.
type Trigger struct {
	notices   Notices
	notifier  Notifier
	settings  settings.Provider
	metrics   Recorder
	logger    *slog.Logger
	noticeTTL time.Duration
	now       func() time.Time
}

// NewTrigger builds a Trigger. metrics may be nil.
func NewTrigger(notices Notices, notifier Notifier, provider settings.Provider, metrics Recorder, logger *slog.Logger, noticeTTL time.Duration) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	if noticeTTL <= 0 {
		noticeTTL = DefaultNoticeTTL
	}
	return &Trigger{
		notices:   notices,
		notifier:  notifier,
		settings:  provider,
		metrics:   metrics,
		logger:    logger,
		noticeTTL: noticeTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MaybeAlert records a notice and, when alerting is enabled, queues a
// notification for m. It is a no-op when m is not below its threshold.
func (t *Trigger) MaybeAlert(ctx context.Context, m materials.Material, actor shared.Principal) {
	if t == nil || !m.IsLow() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.ErrorContext(ctx, "low stock alert panicked", slog.Int64("material_id", m.ID), slog.Any("panic", r))
			t.record("failed")
		}
	}()

	now := t.now()
	notice := Notice{
		MaterialID:      m.ID,
		Name:            m.Name,
		Unit:            m.UnitType,
		Quantity:        quantity.FormatQuantity(m.Quantity),
		WarningQuantity: quantity.FormatQuantity(m.WarningQuantity),
		CreatedAt:       now,
	}
	if t.notices != nil {
		if err := t.notices.Save(ctx, notice, t.noticeTTL); err != nil {
			t.logger.WarnContext(ctx, "low stock notice not stored", slog.Int64("material_id", m.ID), slog.Any("error", err))
		}
	}

	outcome, err := t.notify(ctx, notice, actor, now)
	if err != nil {
		t.logger.WarnContext(ctx, "low stock notification failed", slog.Int64("material_id", m.ID), slog.Any("error", err))
	}
	t.record(outcome)
}

func (t *Trigger) notify(ctx context.Context, n Notice, actor shared.Principal, now time.Time) (string, error) {
	if t.notifier == nil || t.settings == nil {
		return "disabled", nil
	}
	cfg, err := t.settings.Current(ctx)
	if err != nil {
		return "failed", fmt.Errorf("alerts: load settings: %w", err)
	}
	if !cfg.AlertsEnabled || cfg.AlertEmail == "" {
		return "disabled", nil
	}
	err = t.notifier.Notify(ctx, jobs.LowStockPayload{
		To:              cfg.AlertEmail,
		MaterialID:      n.MaterialID,
		MaterialName:    n.Name,
		Unit:            n.Unit,
		Quantity:        n.Quantity,
		WarningQuantity: n.WarningQuantity,
		TriggeredBy:     actor.DisplayName(),
		TriggeredAt:     now,
	})
	switch {
	case errors.Is(err, ErrThrottled):
		return "throttled", nil
	case err != nil:
		return "failed", err
	}
	return "queued", nil
}

func (t *Trigger) record(outcome string) {
	if t.metrics != nil {
		t.metrics.LowStockAlert(outcome)
	}
}
