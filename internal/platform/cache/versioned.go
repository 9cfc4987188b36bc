package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Versioned stores JSON payloads under keys that embed a namespace version.
// Bumping the version invalidates every entry of the namespace at once.
type Versioned struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	group     singleflight.Group
}

// NewVersioned constructs a versioned cache.
func NewVersioned(client redis.UniversalClient, namespace string, ttl time.Duration) *Versioned {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Versioned{client: client, namespace: namespace, ttl: ttl}
}

func (c *Versioned) versionKey() string {
	return c.namespace + ":version"
}

func (c *Versioned) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Key builds the storage key for parts under the current version.
func (c *Versioned) Key(ctx context.Context, parts string) (string, error) {
	v, err := c.version(ctx)
	if err != nil {
		return "", fmt.Errorf("platform/cache: version: %w", err)
	}
	return fmt.Sprintf("%s:v%d:%s", c.namespace, v, parts), nil
}

// FetchJSON loads dest from the cache or fills it via loader. Concurrent
// misses on the same key share one loader call.
func (c *Versioned) FetchJSON(ctx context.Context, parts string, dest any, loader func(context.Context) (any, error)) error {
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return remarshal(value, dest)
	}

	key, err := c.Key(ctx, parts)
	if err != nil {
		// Redis unavailable: serve uncached.
		value, lerr := loader(ctx)
		if lerr != nil {
			return lerr
		}
		return remarshal(value, dest)
	}

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		if err := json.Unmarshal(raw, dest); err == nil {
			return nil
		}
	}

	raw, err, _ := c.group.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, key, payload, c.ttl).Err()
		return payload, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// Bump advances the namespace version.
func (c *Versioned) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey()).Err()
}

func remarshal(value, dest any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}
