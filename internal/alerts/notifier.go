package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"

	"github.com/odyssey-erp/stockroom/internal/shared"
	"github.com/odyssey-erp/stockroom/jobs"
)

// ErrThrottled reports that a mail for the material was sent recently.
var ErrThrottled = errors.New("alerts: notification throttled")

// Enqueuer submits low-stock mail tasks. *jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueLowStock(ctx context.Context, payload jobs.LowStockPayload) error
}

// QueueNotifier hands notifications to the job queue. With a positive
// throttle it sends at most one per material per window.
type QueueNotifier struct {
	queue    Enqueuer
	locker   *redislock.Client
	throttle time.Duration
}

// NewQueueNotifier constructs a QueueNotifier. A nil locker or a zero
// throttle disables throttling.
func NewQueueNotifier(queue Enqueuer, locker *redislock.Client, throttle time.Duration) *QueueNotifier {
	return &QueueNotifier{queue: queue, locker: locker, throttle: throttle}
}

// Notify implements Notifier.
func (n *QueueNotifier) Notify(ctx context.Context, payload jobs.LowStockPayload) error {
	if n.locker != nil && n.throttle > 0 {
		// The lock is left to expire so it spans the whole window.
		_, err := n.locker.Obtain(ctx, shared.AlertThrottleKey(payload.MaterialID), n.throttle, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return ErrThrottled
		}
		if err != nil {
			return err
		}
	}
	return n.queue.EnqueueLowStock(ctx, payload)
}
