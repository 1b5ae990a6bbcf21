// internal/common/database/dataset.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"marketing-analyst/internal/common/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dataset wraps the pooled connection to the read-only marketing dataset.
type Dataset struct {
	DB      *sql.DB
	Dialect Dialect
}

// OpenDataset opens the dataset named by cfg.URL. The scheme selects the
// driver: postgres:// and postgresql:// use lib/pq, sqlite:// uses go-sqlite3.
func OpenDataset(cfg config.DatabaseConfig) (*Dataset, error) {
	driver, dsn, dialect, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Dataset{DB: db, Dialect: dialect}, nil
}

// NewDataset wraps an existing handle, used with sqlmock in tests.
func NewDataset(db *sql.DB, dialect Dialect) *Dataset {
	return &Dataset{DB: db, Dialect: dialect}
}

// ParseURL maps a database URL to the driver name, driver DSN and dialect.
func ParseURL(url string) (driver, dsn string, dialect Dialect, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url, DialectPostgres, nil
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "sqlite3://"):
		path := url[strings.Index(url, "://")+3:]
		// sqlite:///rel.db is relative, sqlite:////abs.db is absolute
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return "", "", "", fmt.Errorf("sqlite url %q has no path", url)
		}
		return "sqlite3", path, DialectSQLite, nil
	default:
		return "", "", "", fmt.Errorf("unsupported database url scheme: %q", url)
	}
}

// Ping tests the database connection
func (d *Dataset) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Dataset) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
