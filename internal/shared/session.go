package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound indicates an unknown or expired token.
var ErrSessionNotFound = NewError(ErrUnauthorized, "Session expired, please sign in again.")

// SessionStore maps opaque bearer tokens to principals in Redis. Token
// issuance belongs to the login flow; the inventory only resolves them.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Issue stores p under a fresh token.
func (s *SessionStore) Issue(ctx context.Context, p Principal) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("session store not initialised")
	}
	token := uuid.NewString()
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.redisKey(token), data, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve loads the principal bound to token.
func (s *SessionStore) Resolve(ctx context.Context, token string) (Principal, error) {
	if s == nil || s.client == nil {
		return Principal{}, errors.New("session store not initialised")
	}
	if token == "" {
		return Principal{}, ErrSessionNotFound
	}
	payload, err := s.client.Get(ctx, s.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Principal{}, ErrSessionNotFound
		}
		return Principal{}, err
	}
	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// Revoke drops token.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.redisKey(token)).Err()
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}

func (s *SessionStore) redisKey(token string) string {
	return "session:" + token
}
