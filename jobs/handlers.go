package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// LowStockHandler delivers TaskLowStockAlert tasks through mailer.
func LowStockHandler(mailer Mailer, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskLowStockAlert)
		var payload LowStockPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(fmt.Errorf("jobs: decode low stock payload: %v: %w", err, asynq.SkipRetry))
		}
		err := mailer.Send(ctx, LowStockMessage(payload))
		metrics.AddDelivery("email", err == nil)
		if err != nil {
			logger.WarnContext(ctx, "low stock mail failed", slog.Int64("material_id", payload.MaterialID), slog.Any("error", err))
			return tracker.End(err)
		}
		logger.InfoContext(ctx, "low stock mail sent", slog.Int64("material_id", payload.MaterialID), slog.String("to", payload.To))
		return tracker.End(nil)
	}
}

// IdempotencyCleanupHandler prunes keys older than retention.
func IdempotencyCleanupHandler(db shared.Execer, retention time.Duration, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track(TaskIdempotencyCleanup)
		return tracker.End(shared.CleanupIdempotencyKeys(ctx, db, retention))
	}
}
