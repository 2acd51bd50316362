package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "explorer_schema_migrations"

// Migrate applies the embedded explorer schema migrations. It borrows a single
// connection from the pool so closing the migrator leaves the pool open.
func Migrate(ctx context.Context, client *postgres.Client) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	conn, err := client.DB().Conn(ctx)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to acquire migration connection: %w", err)
	}

	driver, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		conn.Close()
		src.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		driver.Close()
		src.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	observability.GetLogger().Info().
		Uint("schema_version", version).
		Bool("dirty", dirty).
		Msg("explorer schema migrated")
	return nil
}
