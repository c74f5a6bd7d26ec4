// Package schema applies the SQL migrations into a dedicated Postgres schema.
package schema

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// Migrator wraps a migrate instance bound to one schema. Close releases
// both the migrate instance and its connection.
type Migrator struct {
	*migrate.Migrate
	db *sql.DB
}

// New creates schemaName if needed and returns a migrator that reads
// migrations from sourceURL (for example file://migrations).
func New(dsn, schemaName, sourceURL string) (*Migrator, error) {
	withPath, err := telemetry.WithSearchPath(dsn, schemaName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", withPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(schemaName)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema %s: %w", schemaName, err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{SchemaName: schemaName})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return &Migrator{Migrate: m, db: db}, nil
}

// Up applies every pending migration. Having nothing to apply is not an error.
func (m *Migrator) Up() error {
	if err := m.Migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.Migrate.Close()
	return errors.Join(srcErr, dbErr, m.db.Close())
}
