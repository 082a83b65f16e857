package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Connect opens a PostgreSQL connection pool and verifies it with a ping
func Connect(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	const op = "database.Connect"

	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// Migrate runs a goose command ("up", "down", "status", "redo", ...) against
// the embedded migrations
func Migrate(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
	const op = "database.Migrate"

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: failed to set goose dialect: %w", op, err)
	}

	if err := goose.RunContext(ctx, command, db.DB, "migrations", args...); err != nil {
		return fmt.Errorf("%s: failed to run %q: %w", op, command, err)
	}

	return nil
}
