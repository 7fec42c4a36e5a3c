package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlassist/sqlassist/internal/config"
)

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// FromConfig maps the service database settings onto pool settings. The
// embedded engines are held to one connection so every turn observes the
// previous turn's committed writes on the same handle.
func FromConfig(cfg config.DatabaseConfig) DBConfig {
	out := DBConfig{Driver: cfg.Driver, DSN: cfg.Path}
	switch cfg.Driver {
	case config.DriverSQLite, config.DriverDuckDB:
		out.MaxOpenConns = 1
		out.MaxIdleConns = 1
	case config.DriverPostgres:
		out.MaxOpenConns = 4
		out.MaxIdleConns = 2
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	return out
}

func driverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case config.DriverSQLite:
		return "sqlite3", nil
	case config.DriverDuckDB:
		return "duckdb", nil
	case config.DriverPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	name, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" && cfg.Driver != config.DriverDuckDB {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open(name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Driver, err)
	}

	return db, nil
}

// Placeholder returns the n-th (1-based) bind marker for driver.
func Placeholder(driver string, n int) string {
	if driver == config.DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
