// Package source abstracts "get the next page of rows" behind a small
// interface so the export engine can page through Postgres, MySQL, SQLite,
// SQL Server, or explicit in-memory data the same way.
//
// Backends register themselves by kind at init time (see the subpackages and
// source/all); callers construct one with New and page through it with
// FetchPage. Fetchers never mutate the options they are given — the engine
// owns the page cursor.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/neilcrookes/export/internal/query"
)

// Record is one row, keyed by column name.
type Record = map[string]any

// Chunk is the ordered batch of rows one fetch returns. Its length is at
// most the options' limit; it is empty only on an exhausted (or empty)
// result set.
type Chunk []Record

// Fetcher pages through one entity's rows.
//
// FetchPage must be side-effect-free with respect to the options and
// deterministic across calls for static data: no phantom rows, no skips,
// stable ordering per options.order. For any finite result set and a
// strictly increasing page it must eventually return an empty chunk.
type Fetcher interface {
	FetchPage(ctx context.Context, opts query.Options) (Chunk, error)
	Close()
}

// Config selects and configures a backend.
type Config struct {
	// Kind names the registered backend: postgres, mysql, sqlite, mssql,
	// memory.
	Kind string

	// Entity is the primary model name; SQL backends alias the base table
	// to it so qualified fields like "EmailSignups.email" resolve.
	Entity string

	// DSN and Table configure the SQL kinds.
	DSN   string
	Table string

	// Columns optionally restricts the selectable columns when the options
	// carry no field list.
	Columns []string

	// Rows backs the memory kind: explicit data for manual exports and
	// tests.
	Rows []Record
}

// Factory constructs a Fetcher for a Config.
type Factory func(ctx context.Context, cfg Config) (Fetcher, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) a Factory for the given kind. It is
// typically called from backend packages' init() functions.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New constructs the Fetcher registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Fetcher, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported source.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The result is a copy;
// mutating it does not affect the registry.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
