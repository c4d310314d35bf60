package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options configures Open
type Options struct {
	Driver string
	DSN    string
	// MaxOpenConns caps the pool; sqlite always uses a single connection
	MaxOpenConns int
	Logger       *zap.Logger
	// SlowQuery logs queries slower than this at warn level
	SlowQuery time.Duration
}

// Open connects to the configured database and returns a bun handle.
// SQLite connections get foreign keys enabled and a single writer.
func Open(ctx context.Context, opts Options) (*bun.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("database DSN must not be empty")
	}

	var db *bun.DB

	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case DriverPostgres, "pgx", "postgresql":
		sqldb, err := sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if opts.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(opts.MaxOpenConns)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	if opts.Logger != nil {
		db.AddQueryHook(NewQueryLogger(opts.Logger, opts.SlowQuery))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}
