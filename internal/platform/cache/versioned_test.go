package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Count int `json:"count"`
}

func TestVersionedFetchAndBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewVersioned(client, "test:reports", time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		n := calls.Add(1)
		return payload{Count: int(n)}, nil
	}

	var got payload
	require.NoError(t, c.FetchJSON(ctx, "summary", &got, loader))
	require.Equal(t, 1, got.Count)

	require.NoError(t, c.FetchJSON(ctx, "summary", &got, loader))
	require.Equal(t, 1, got.Count, "second read served from cache")

	require.NoError(t, c.Bump(ctx))
	require.NoError(t, c.FetchJSON(ctx, "summary", &got, loader))
	require.Equal(t, 2, got.Count)
}

func TestVersionedNilClientFallsThrough(t *testing.T) {
	var c *Versioned
	var got payload
	err := c.FetchJSON(context.Background(), "x", &got, func(context.Context) (any, error) {
		return payload{Count: 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, got.Count)
	require.NoError(t, c.Bump(context.Background()))
}

func TestOptions(t *testing.T) {
	opts, err := Options("localhost:6379")
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)

	opts, err = Options("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)
}
