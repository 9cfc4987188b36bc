package app

import (
	"strings"

	"github.com/hibiken/asynq"
)

// QueueRedisOpt returns the asynq connection for addr, which may be a bare
// host:port or a redis:// URL.
func QueueRedisOpt(addr string) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		return asynq.ParseRedisURI(addr)
	}
	return asynq.RedisClientOpt{Addr: addr}, nil
}
