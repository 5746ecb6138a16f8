package mysql

import (
	"context"
	"testing"

	"github.com/neilcrookes/export/internal/source"
)

// TestMySQLRegistrationUsesNewFetcherHook verifies that the "mysql" backend
// registered in init() uses the newFetcher hook and that wrappedFetcher
// correctly delegates Close.
func TestMySQLRegistrationUsesNewFetcherHook(t *testing.T) {
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
		Kind:   "mysql",
		Entity: "Orders",
		DSN:    "user:pass@tcp(localhost:3306)/app?parseTime=true",
		Table:  "orders",
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

	w, ok := f.(*wrappedFetcher)
	if !ok {
		t.Fatalf("source.New() type = %T, want *wrappedFetcher", f)
	}
	if w.Fetcher != fakeFetcher {
		t.Fatalf("wrappedFetcher.Fetcher = %p, want %p", w.Fetcher, fakeFetcher)
	}

	f.Close()
	if !closed {
		t.Fatalf("wrappedFetcher.Close() did not invoke closeFn")
	}
}
