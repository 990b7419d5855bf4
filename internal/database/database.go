// Package database opens the ledger PostgreSQL connection and applies migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	// Import PostgreSQL driver for database/sql
	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // required for golang-migrate postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // required for golang-migrate file source

	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// Manager handles database operations with proper logging
type Manager struct {
	logger *observability.Logger
}

var (
	otelDriverNameCache string
	otelDriverOnce      sync.Once
	otelDriverErr       error
)

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// InitDB opens the ledger database and applies pending migrations
func (dm *Manager) InitDB(ctx context.Context, cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "init_db",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
		attribute.String("db.system", "postgresql"),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
		attribute.String("db.conn_max_lifetime", cfg.ConnMaxLifetime.String()),
	)
	defer observability.FinishSpan(span, &err)

	db, err := dm.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := dm.RunMigrations(ctx, cfg); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database after migration failure", closeErr)
		}
		return nil, err
	}
	return db, nil
}

// Open connects through the otelsql-instrumented postgres driver without migrating
func (dm *Manager) Open(ctx context.Context, cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "open")
	defer observability.FinishSpan(span, &err)

	if cfg.URL == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidConfiguration, "database url is required")
	}

	// Register OpenTelemetry SQL driver once per process and reuse the name
	otelDriverOnce.Do(func() {
		otelDriverNameCache, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(extractDatabaseName(cfg.URL)),
			otelsql.TraceQueryWithArgs(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverNameCache, cfg.URL)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to open database connection: %w", err)
	}

	configurePool(db, cfg)
	if err := dm.ping(ctx, db); err != nil {
		return nil, err
	}

	dm.logger.Info(ctx, "Ledger database connection established", map[string]interface{}{
		"db_name":           extractDatabaseName(cfg.URL),
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})
	return db, nil
}

func configurePool(db *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// ping closes db when the server cannot be reached
func (dm *Manager) ping(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to ping database: %w", err)
	}
	return nil
}

// RunMigrations applies pending golang-migrate migrations from cfg.MigrationsPath
func (dm *Manager) RunMigrations(ctx context.Context, cfg config.DatabaseConfig) (err error) {
	migrationsPath, err := ResolveMigrationsPath(cfg.MigrationsPath)
	if err != nil {
		dm.logger.Error(ctx, "Could not find migrations path", err)
		return err
	}

	ctx, span := observability.TraceDatabaseFunction(ctx, "run_migrations",
		attribute.String("db.system", "postgresql"),
		attribute.String("migration.path", migrationsPath),
	)
	defer observability.FinishSpan(span, &err)

	count, err := countUpMigrations(migrationsPath)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("migration.files.count", count))
	if count == 0 {
		dm.logger.Info(ctx, "No migration files found, skipping", map[string]interface{}{
			"migrations_path": migrationsPath,
		})
		return nil
	}

	m, err := migrate.New("file://"+filepath.ToSlash(migrationsPath), cfg.URL)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to initialize golang-migrate: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			dm.logger.Error(ctx, "Error closing migration", errors.Join(srcErr, dbErr))
		}
	}()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		dm.logger.Info(ctx, "No new migrations to apply")
		return nil
	case err != nil:
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "migrate up failed: %w", err)
	}

	dm.logger.Info(ctx, "Migrations applied", map[string]interface{}{
		"migrations_path": migrationsPath,
		"files":           count,
	})
	return nil
}

// ResolveMigrationsPath returns path when it exists; a relative path is also
// searched for in every parent of the working directory
func ResolveMigrationsPath(path string) (string, error) {
	if path == "" {
		path = "migrations"
	}
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", contextutils.WrapErrorf(contextutils.ErrInvalidConfiguration, "migrations directory %s: %w", path, err)
		}
		return path, nil
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return "", contextutils.WrapError(err, "failed to get working directory")
	}
	for {
		candidate := filepath.Join(currentDir, path)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return candidate, nil
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", contextutils.WrapErrorf(contextutils.ErrInvalidConfiguration, "migrations directory %s not found in any parent directory", path)
		}
		currentDir = parentDir
	}
}

func countUpMigrations(dir string) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, contextutils.WrapErrorf(err, "could not read migrations directory %s", dir)
	}
	n := 0
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			n++
		}
	}
	return n, nil
}

// extractDatabaseName extracts the database name from a PostgreSQL connection string
func extractDatabaseName(databaseURL string) string {
	if u, err := url.Parse(databaseURL); err == nil && u.Scheme != "" {
		if dbName := strings.TrimPrefix(u.Path, "/"); dbName != "" {
			return dbName
		}
	}

	// key=value DSN form
	for _, field := range strings.Fields(databaseURL) {
		if name, ok := strings.CutPrefix(field, "dbname="); ok {
			if name = strings.Trim(name, "'"); name != "" {
				return name
			}
		}
	}

	return "quiz_audit"
}
