// Package postgres wires the Postgres backend into the source factory.
// Registration happens in init so callers only import this package for its
// side effect.
package postgres

import (
	"context"

	"github.com/neilcrookes/export/internal/source"
)

// newFetcher is a test hook that points to NewFetcher by default.
// Tests may replace this variable to avoid real DB connections.
var newFetcher = NewFetcher

// wrappedFetcher adapts *postgres.Fetcher to the source.Fetcher interface,
// adding a Close method that calls the cleanup function returned by
// NewFetcher.
type wrappedFetcher struct {
	*Fetcher
	closeFn func()
}

// Close implements source.Fetcher.Close.
func (w *wrappedFetcher) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// Ensure wrappedFetcher satisfies the interface at compile time.
var _ source.Fetcher = (*wrappedFetcher)(nil)

func init() {
	source.Register("postgres", func(ctx context.Context, cfg source.Config) (source.Fetcher, error) {
		f, closeFn, err := newFetcher(ctx, Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Entity:  cfg.Entity,
			Columns: cfg.Columns,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedFetcher{Fetcher: f, closeFn: closeFn}, nil
	})
}
