package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotStored indicates no settings row exists yet.
var ErrNotStored = errors.New("settings: not stored")

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Repository stores settings as a single jsonb row.
type Repository struct {
	db dbtx
}

// NewRepository constructs Repository. *pgxpool.Pool satisfies db.
func NewRepository(db dbtx) *Repository {
	return &Repository{db: db}
}

// Load returns the stored settings.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	var payload []byte
	if err := r.db.QueryRow(ctx, `SELECT payload FROM settings WHERE id = 1`).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, ErrNotStored
		}
		return Settings{}, fmt.Errorf("settings: load: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(payload, &s); err != nil {
		return Settings{}, fmt.Errorf("settings: decode: %w", err)
	}
	return s, nil
}

// Save upserts the settings row.
func (r *Repository) Save(ctx context.Context, s Settings) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	_, err = r.db.Exec(ctx, `
INSERT INTO settings (id, payload, updated_at) VALUES (1, $1, NOW())
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`, payload)
	if err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}
