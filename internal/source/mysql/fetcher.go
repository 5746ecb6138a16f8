// Package mysql implements a MySQL page fetcher using database/sql and the
// go-sql-driver driver.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver

	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/source"
)

// Config holds MySQL fetcher configuration.
type Config struct {
	DSN     string   // go-sql-driver DSN, e.g. "user:pass@tcp(localhost:3306)/app?parseTime=true"
	Table   string   // source table name, e.g. "email_signups"
	Entity  string   // model alias the table is queried under
	Columns []string // column subset used when the options carry no field list
}

// Fetcher is a MySQL-backed implementation of source.Fetcher.
type Fetcher struct {
	db  *sql.DB
	cfg Config
}

// NewFetcher opens a MySQL connection using the provided DSN and returns a
// Fetcher plus a Close function for cleanup.
func NewFetcher(ctx context.Context, cfg Config) (*Fetcher, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}

	// Apply a basic ping with context to fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Fetcher{db: db, cfg: cfg}, closeFn, nil
}

// FetchPage runs one page's SELECT and converts the result to records keyed
// by bare column name.
func (f *Fetcher) FetchPage(ctx context.Context, o query.Options) (source.Chunk, error) {
	stmt, args, err := source.BuildSelect(source.MySQL, f.cfg.Table, f.cfg.Entity, f.cfg.Columns, o)
	if err != nil {
		return nil, err
	}
	rows, err := f.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: query: %w", err)
	}
	defer rows.Close()

	chunk, err := source.ScanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	return chunk, nil
}
