package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fastygo/todo-backend/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateOptions selects the database and the migration source.
type MigrateOptions struct {
	DSN          string
	DatabaseName string
	// Path switches from the embedded migrations to a file:// source.
	Path        string
	PingTimeout time.Duration
}

// RunMigrations brings the schema up to date when enabled in configuration.
// It must complete before the HTTP listener starts.
func RunMigrations(cfg *config.Config, logger *zap.Logger) error {
	if cfg == nil || !cfg.Migrations.Enabled {
		return nil
	}
	return Migrate(context.Background(), MigrateOptions{
		DSN:          cfg.Database.URL,
		DatabaseName: cfg.Database.Name,
		Path:         cfg.Migrations.Path,
	}, logger)
}

// Migrate applies every pending up migration. Running it against an
// up-to-date schema is a no-op.
func Migrate(ctx context.Context, opts MigrateOptions, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}

	sqlDB, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := newMigrator(opts, driver)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("database schema up to date")
		return nil
	}

	version, dirty, _ := m.Version()
	logger.Info("database migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func newMigrator(opts MigrateOptions, driver database.Driver) (*migrate.Migrate, error) {
	if opts.Path != "" {
		sourceURL := fmt.Sprintf("file://%s", filepath.ToSlash(opts.Path))
		m, err := migrate.NewWithDatabaseInstance(sourceURL, opts.DatabaseName, driver)
		if err != nil {
			return nil, fmt.Errorf("load migrations from %s: %w", opts.Path, err)
		}
		return m, nil
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, opts.DatabaseName, driver)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}
