package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Config holds connection parameters for the relational store.
type Config struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// Database owns the pgx connection pool shared by every repository.
type Database struct {
	pool *pgxpool.Pool
	dsn  string
}

// NewDatabase opens a pooled connection and verifies connectivity.
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres: connection string is required")
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Database{pool: pool, dsn: cfg.DSN}, nil
}

// Pool exposes the underlying pgx pool for repository construction.
func (db *Database) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping verifies database connectivity.
func (db *Database) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close releases the connection pool.
func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// MigrateToLatest applies the embedded migrations for the tables this
// service owns (coupon lookup mirror, build state). Host-platform tables are
// never touched.
func (db *Database) MigrateToLatest() error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: open migration source: %w", err)
	}

	migrationDB, err := sql.Open("postgres", db.dsn)
	if err != nil {
		return fmt.Errorf("postgres: open migration connection: %w", err)
	}
	defer migrationDB.Close()

	driver, err := migratepg.WithInstance(migrationDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("postgres: create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: apply migrations: %w", err)
	}
	return nil
}

// likePattern escapes LIKE wildcards in user input and appends the supplied
// suffix/prefix wildcards.
func likePattern(value string, contains bool) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
	if contains {
		return "%" + escaped + "%"
	}
	return escaped + "%"
}

// tableExists probes for a relation using to_regclass, caching is left to
// callers since availability can change when host extensions are installed.
func tableExists(ctx context.Context, db *Database, table string) (bool, error) {
	var name *string
	err := db.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", table).Scan(&name)
	if err != nil {
		return false, err
	}
	return name != nil && *name != "", nil
}
