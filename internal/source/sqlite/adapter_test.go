package sqlite

import (
	"context"
	"testing"

	"github.com/neilcrookes/export/internal/source"
)

// TestSQLiteRegistrationUsesNewFetcherHook verifies that the "sqlite" backend
// registered in init() uses the newFetcher hook and that wrappedFetcher
// correctly delegates Close.
func TestSQLiteRegistrationUsesNewFetcherHook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	origNewFetcher := newFetcher
	defer func() { newFetcher = origNewFetcher }()

	var (
		called bool
		gotCfg Config
		closed bool

		fakeFetcher = &Fetcher{}
	)

	newFetcher = func(ctx context.Context, cfg Config) (*Fetcher, func(), error) {
		called = true
		gotCfg = cfg
		return fakeFetcher, func() { closed = true }, nil
	}

	cfg := source.Config{
		Kind:    "sqlite",
		Entity:  "Events",
		DSN:     "file:test.db?mode=memory&cache=shared",
		Table:   "events",
		Columns: []string{"id", "name"},
	}

	f, err := source.New(ctx, cfg)
	if err != nil {
		t.Fatalf("source.New() error = %v", err)
	}

	if !called {
		t.Fatalf("newFetcher hook was not called")
	}
	if gotCfg.DSN != cfg.DSN {
		t.Errorf("hook cfg.DSN = %q, want %q", gotCfg.DSN, cfg.DSN)
	}
	if gotCfg.Table != cfg.Table {
		t.Errorf("hook cfg.Table = %q, want %q", gotCfg.Table, cfg.Table)
	}
	if len(gotCfg.Columns) != len(cfg.Columns) {
		t.Errorf("hook cfg.Columns length = %d, want %d", len(gotCfg.Columns), len(cfg.Columns))
	}

	w, ok := f.(*wrappedFetcher)
	if !ok {
		t.Fatalf("source.New() type = %T, want *wrappedFetcher", f)
	}
	if w.Fetcher != fakeFetcher {
		t.Fatalf("wrappedFetcher.Fetcher = %p, want %p", w.Fetcher, fakeFetcher)
	}
	if w.closeFn == nil {
		t.Fatalf("wrappedFetcher.closeFn = nil, want non-nil")
	}

	f.Close()
	if !closed {
		t.Fatalf("wrappedFetcher.Close() did not invoke closeFn")
	}
}

// BenchmarkSQLiteSourceNew measures the overhead of constructing a SQLite
// source.Fetcher via source.New using the newFetcher hook.
func BenchmarkSQLiteSourceNew(b *testing.B) {
	ctx := context.Background()

	origNewFetcher := newFetcher
	defer func() { newFetcher = origNewFetcher }()

	newFetcher = func(ctx context.Context, cfg Config) (*Fetcher, func(), error) {
		return &Fetcher{cfg: cfg}, func() {}, nil
	}

	cfg := source.Config{
		Kind:  "sqlite",
		DSN:   "file:test.db?mode=memory&cache=shared",
		Table: "events",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f, err := source.New(ctx, cfg)
		if err != nil {
			b.Fatalf("source.New() error = %v", err)
		}
		f.Close()
	}
}
