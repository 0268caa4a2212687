package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/troyyang/ocr-compare/internal/config"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// DB is the subset of *sql.DB and *sql.Tx the repositories use.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id                 TEXT PRIMARY KEY,
		filename           TEXT NOT NULL,
		file_type          TEXT NOT NULL,
		file_path          TEXT NOT NULL,
		file_size          BIGINT NOT NULL DEFAULT 0,
		status             TEXT NOT NULL DEFAULT 'pending',
		searchable_content TEXT,
		recommendation     TEXT,
		upload_timestamp   TIMESTAMP NOT NULL,
		created_by         TEXT NOT NULL,
		updated_by         TEXT NOT NULL,
		created_at         TIMESTAMP NOT NULL,
		updated_at         TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_created_by ON documents (created_by)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status)`,
	`CREATE TABLE IF NOT EXISTS ocr_results (
		id                 TEXT PRIMARY KEY,
		document_id        TEXT NOT NULL REFERENCES documents (id),
		engine             TEXT NOT NULL,
		extracted_text     TEXT NOT NULL,
		confidence_score   DOUBLE PRECISION,
		processing_time_ms BIGINT NOT NULL,
		page_metrics       TEXT,
		estimated_cost     DOUBLE PRECISION,
		processed_at       TIMESTAMP NOT NULL,
		error_message      TEXT,
		created_by         TEXT NOT NULL,
		updated_by         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ocr_document_engine ON ocr_results (document_id, engine)`,
	`CREATE INDEX IF NOT EXISTS idx_ocr_processed_at ON ocr_results (processed_at)`,
}

// Open connects to the configured database, applies pool settings and
// creates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		driver string
		dsn    string
	)
	switch cfg.Driver {
	case "sqlite", "sqlite3", "":
		driver = "sqlite3"
		dsn = cfg.SQLite.Path
		if dsn == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	case "postgres":
		driver = "postgres"
		dsn = cfg.Postgres.DSN
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "sqlite3" {
		if cfg.SQLite.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
		}
	} else {
		if cfg.Postgres.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		}
		if cfg.Postgres.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables and indexes when missing.
func Migrate(ctx context.Context, db DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
