// Package mssql implements a Microsoft SQL Server page fetcher using the
// go-mssqldb driver. Paging uses OFFSET/FETCH, which SQL Server only allows
// under an ORDER BY; the shared builder adds a stub when none is configured.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/source"
)

// Config holds MSSQL fetcher configuration.
type Config struct {
	DSN     string   // sqlserver:// URL or ADO connection string
	Table   string   // fully qualified source table name, e.g. "dbo.email_signups"
	Entity  string   // model alias the table is queried under
	Columns []string // column subset used when the options carry no field list
}

// Fetcher is an MSSQL-backed implementation of source.Fetcher.
type Fetcher struct {
	db  *sql.DB
	cfg Config
}

// NewFetcher constructs a Fetcher and returns a Close function for cleanup.
func NewFetcher(ctx context.Context, cfg Config) (*Fetcher, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Fetcher{db: db, cfg: cfg}, close, nil
}

// FetchPage runs one page's SELECT and converts the result to records keyed
// by bare column name.
func (f *Fetcher) FetchPage(ctx context.Context, o query.Options) (source.Chunk, error) {
	stmt, args, err := source.BuildSelect(source.MSSQL, f.cfg.Table, f.cfg.Entity, f.cfg.Columns, o)
	if err != nil {
		return nil, err
	}
	rows, err := f.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("mssql: query: %w", err)
	}
	defer rows.Close()

	chunk, err := source.ScanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("mssql: %w", err)
	}
	return chunk, nil
}
