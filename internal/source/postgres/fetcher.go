// Package postgres implements a Postgres page fetcher using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/source"
)

// Config holds Postgres fetcher configuration.
type Config struct {
	DSN     string   // connection string for pgxpool
	Table   string   // fully qualified source table name, e.g. "public.email_signups"
	Entity  string   // model alias the table is queried under
	Columns []string // column subset used when the options carry no field list
}

// Fetcher is a Postgres-backed implementation of source.Fetcher.
type Fetcher struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewFetcher constructs a Fetcher and returns a Close function for cleanup.
func NewFetcher(ctx context.Context, cfg Config) (*Fetcher, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	close := func() { pool.Close() }
	return &Fetcher{pool: pool, cfg: cfg}, close, nil
}

// FetchPage runs one page's SELECT and converts the result to records keyed
// by bare column name.
func (f *Fetcher) FetchPage(ctx context.Context, o query.Options) (source.Chunk, error) {
	stmt, args, err := source.BuildSelect(source.Postgres, f.cfg.Table, f.cfg.Entity, f.cfg.Columns, o)
	if err != nil {
		return nil, err
	}
	rows, err := f.pool.Query(ctx, stmt, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return nil, fmt.Errorf("postgres: query: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	names := make([]string, len(fds))
	for i, fd := range fds {
		names[i] = fd.Name
	}

	var chunk source.Chunk
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: read row: %w", err)
		}
		rec := make(source.Record, len(names))
		for i, name := range names {
			rec[name] = vals[i]
		}
		chunk = append(chunk, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return chunk, nil
}
