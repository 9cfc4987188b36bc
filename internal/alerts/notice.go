package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// DefaultNoticeTTL is how long a low-stock notice remains displayable.
const DefaultNoticeTTL = 10 * time.Minute

// Notice is the transient low-stock banner shown to the next viewer.
type Notice struct {
	MaterialID      int64     `json:"material_id"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit"`
	Quantity        string    `json:"quantity"`
	WarningQuantity string    `json:"warning_quantity"`
	CreatedAt       time.Time `json:"created_at"`
}

// NoticeStore keeps the most recent low-stock notice in Redis.
type NoticeStore struct {
	client redis.Cmdable
	key    string
}

// NewNoticeStore constructs a NoticeStore.
func NewNoticeStore(client redis.Cmdable) *NoticeStore {
	return &NoticeStore{client: client, key: shared.LowStockNoticeKey}
}

// Save overwrites the current notice.
func (s *NoticeStore) Save(ctx context.Context, n Notice, ttl time.Duration) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("alerts: encode notice: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("alerts: save notice: %w", err)
	}
	return nil
}

// Pop returns and clears the current notice. ok is false when none is pending.
func (s *NoticeStore) Pop(ctx context.Context) (n Notice, ok bool, err error) {
	payload, err := s.client.GetDel(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Notice{}, false, nil
		}
		return Notice{}, false, fmt.Errorf("alerts: pop notice: %w", err)
	}
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notice{}, false, fmt.Errorf("alerts: decode notice: %w", err)
	}
	return n, true, nil
}
