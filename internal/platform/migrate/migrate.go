// Package migrate applies the embedded schema migrations.
package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed sql/*.sql
var embedded embed.FS

// Source returns the embedded migration files.
func Source() (fs.FS, error) {
	return fs.Sub(embedded, "sql")
}

// Up applies every pending migration using a database/sql handle
// borrowed from pool. The handle is closed afterwards; the pool is not.
func Up(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return Run(db)
}

// Run applies pending migrations on db.
func Run(db *sql.DB) error {
	if db == nil {
		return errors.New("platform/migrate: database handle is required")
	}

	sub, err := Source()
	if err != nil {
		return fmt.Errorf("platform/migrate: open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("platform/migrate: create source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("platform/migrate: create driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("platform/migrate: create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/migrate: apply: %w", err)
	}
	return nil
}
