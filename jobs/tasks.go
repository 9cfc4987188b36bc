package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockAlert delivers a low-stock notification mail.
	TaskLowStockAlert = "alert:low_stock"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// LowStockPayload is the snapshot of a material that fell below its threshold.
type LowStockPayload struct {
	To              string    `json:"to"`
	MaterialID      int64     `json:"material_id"`
	MaterialName    string    `json:"material_name"`
	Unit            string    `json:"unit"`
	Quantity        string    `json:"quantity"`
	WarningQuantity string    `json:"warning_quantity"`
	TriggeredBy     string    `json:"triggered_by"`
	TriggeredAt     time.Time `json:"triggered_at"`
}

// NewLowStockTask constructs an Asynq task.
func NewLowStockTask(payload LowStockPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockAlert, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}
