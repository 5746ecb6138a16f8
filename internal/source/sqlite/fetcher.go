// Package sqlite implements a SQLite page fetcher using database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver; replace with your preferred driver if desired.
	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3

	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/source"
)

// Config holds SQLite fetcher configuration.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:app.db?cache=shared&_fk=1"
	//   "app.db" (interpreted by the driver)
	DSN string

	// Table is the source table name, e.g. "email_signups".
	Table string

	// Entity is the model alias the table is queried under.
	Entity string

	// Columns is the column subset used when the options carry no field list.
	Columns []string
}

// Fetcher is a SQLite-backed implementation of source.Fetcher.
type Fetcher struct {
	db  *sql.DB
	cfg Config
}

// NewFetcher opens a SQLite connection using the provided DSN and returns a
// Fetcher plus a Close function for cleanup.
func NewFetcher(ctx context.Context, cfg Config) (*Fetcher, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Apply a basic ping with context to fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Fetcher{db: db, cfg: cfg}, closeFn, nil
}

// FetchPage runs one page's SELECT and converts the result to records keyed
// by bare column name.
func (f *Fetcher) FetchPage(ctx context.Context, o query.Options) (source.Chunk, error) {
	stmt, args, err := source.BuildSelect(source.SQLite, f.cfg.Table, f.cfg.Entity, f.cfg.Columns, o)
	if err != nil {
		return nil, err
	}
	rows, err := f.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	chunk, err := source.ScanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return chunk, nil
}
