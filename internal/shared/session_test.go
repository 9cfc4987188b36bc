package shared

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, Principal{ID: 9, Name: "Budi"})
	require.NoError(t, err)

	p, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(9), p.ID)

	mr.FastForward(2 * time.Minute)
	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrUnauthorized)

	token, err = store.Issue(ctx, Principal{ID: 9})
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))
	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	require.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "bearer  abc ")
	require.Equal(t, "abc", BearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	require.Empty(t, BearerToken(req))
}
