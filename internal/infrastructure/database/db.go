package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tuncanbit/qrpay/pkg/config"
	"github.com/tuncanbit/qrpay/pkg/db"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type DBManager struct {
	Db     *sql.DB
	Driver string
}

var schema = map[string]string{
	DriverSQLite: `CREATE TABLE IF NOT EXISTS payment_journal (
	id TEXT PRIMARY KEY,
	event TEXT NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	amount_rub REAL NOT NULL DEFAULT 0,
	amount_sol REAL NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
)`,
	DriverPostgres: `CREATE TABLE IF NOT EXISTS payment_journal (
	id UUID PRIMARY KEY,
	event TEXT NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	amount_rub DOUBLE PRECISION NOT NULL DEFAULT 0,
	amount_sol DOUBLE PRECISION NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`,
}

func New(cfg *config.DatabaseConfig) (*DBManager, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create journal directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.Path)
	case DriverPostgres:
		dsn = db.GetDBDSN(cfg)
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}

	Db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		Db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		Db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			Db.SetConnMaxLifetime(d)
		}
	}
	if err := Db.Ping(); err != nil {
		Db.Close()
		return nil, err
	}

	dm := &DBManager{Db: Db, Driver: driver}
	if err := dm.Migrate(context.Background()); err != nil {
		Db.Close()
		return nil, err
	}
	return dm, nil
}

// Migrate creates the journal table when it does not exist.
func (dm *DBManager) Migrate(ctx context.Context) error {
	if _, err := dm.Db.ExecContext(ctx, schema[dm.Driver]); err != nil {
		return fmt.Errorf("failed to migrate journal schema: %w", err)
	}
	return nil
}

// Rebind adapts a query written with ? placeholders to the driver.
func (dm *DBManager) Rebind(query string) string {
	return db.Rebind(dm.Driver, query)
}

func (dm *DBManager) ShutDown() {
	if dm.Db != nil {
		dm.Db.Close()
	}
}
