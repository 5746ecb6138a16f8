// Package memory serves explicitly provided rows: the manual-export path
// where the caller already holds the data to stream. Rows are served
// verbatim in the order given; conditions and order terms are not applied.
package memory

import (
	"context"

	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/source"
)

// Config holds the rows the fetcher pages over.
type Config struct {
	Rows []source.Record
}

// Fetcher is an in-memory implementation of source.Fetcher.
type Fetcher struct {
	rows []source.Record
}

// NewFetcher constructs a Fetcher and returns a Close function for parity
// with the database-backed constructors.
func NewFetcher(ctx context.Context, cfg Config) (*Fetcher, func(), error) {
	return &Fetcher{rows: cfg.Rows}, func() {}, nil
}

// FetchPage returns the page window over the configured rows. A window
// past the end yields an empty chunk, which ends the export loop.
func (f *Fetcher) FetchPage(ctx context.Context, o query.Options) (source.Chunk, error) {
	skip, take, err := source.Window(o)
	if err != nil {
		return nil, err
	}
	if skip >= len(f.rows) {
		return nil, nil
	}
	end := skip + take
	if end > len(f.rows) {
		end = len(f.rows)
	}
	out := make(source.Chunk, end-skip)
	copy(out, f.rows[skip:end])
	return out, nil
}
