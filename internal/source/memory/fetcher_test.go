package memory

import (
	"context"
	"testing"

	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/source"
)

func sampleRows(n int) []source.Record {
	rows := make([]source.Record, n)
	for i := range rows {
		rows[i] = source.Record{"id": i + 1}
	}
	return rows
}

// TestFetchPage_Windows verifies full, partial, and empty page windows over
// a fixed row set.
func TestFetchPage_Windows(t *testing.T) {
	t.Parallel()

	f, closeFn, err := NewFetcher(context.Background(), Config{Rows: sampleRows(5)})
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	defer closeFn()

	cases := []struct {
		page    int
		wantIDs []int
	}{
		{page: 1, wantIDs: []int{1, 2}},
		{page: 2, wantIDs: []int{3, 4}},
		{page: 3, wantIDs: []int{5}},
		{page: 4, wantIDs: nil},
	}
	for _, tc := range cases {
		chunk, err := f.FetchPage(context.Background(), query.Options{Limit: 2, Page: tc.page})
		if err != nil {
			t.Fatalf("page %d: FetchPage error: %v", tc.page, err)
		}
		if len(chunk) != len(tc.wantIDs) {
			t.Fatalf("page %d: got %d rows, want %d", tc.page, len(chunk), len(tc.wantIDs))
		}
		for i, want := range tc.wantIDs {
			if got := chunk[i]["id"]; got != want {
				t.Fatalf("page %d row %d: id = %v, want %d", tc.page, i, got, want)
			}
		}
	}
}

// TestFetchPage_OffsetShiftsWindow verifies the configured offset moves the
// start of the first page.
func TestFetchPage_OffsetShiftsWindow(t *testing.T) {
	t.Parallel()

	f, closeFn, err := NewFetcher(context.Background(), Config{Rows: sampleRows(5)})
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	defer closeFn()

	chunk, err := f.FetchPage(context.Background(), query.Options{Limit: 2, Offset: 3, Page: 1})
	if err != nil {
		t.Fatalf("FetchPage error: %v", err)
	}
	if len(chunk) != 2 || chunk[0]["id"] != 4 || chunk[1]["id"] != 5 {
		t.Fatalf("chunk = %v, want ids [4 5]", chunk)
	}
}

// TestFetchPage_RejectsZeroLimit verifies the positive-limit guard reaches
// this backend too.
func TestFetchPage_RejectsZeroLimit(t *testing.T) {
	t.Parallel()

	f, closeFn, err := NewFetcher(context.Background(), Config{Rows: sampleRows(1)})
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	defer closeFn()

	if _, err := f.FetchPage(context.Background(), query.Options{Page: 1}); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

// TestRegistration verifies the "memory" kind resolves through the source
// factory and carries the configured rows.
func TestRegistration(t *testing.T) {
	t.Parallel()

	f, err := source.New(context.Background(), source.Config{
		Kind: "memory",
		Rows: sampleRows(3),
	})
	if err != nil {
		t.Fatalf("source.New error: %v", err)
	}
	defer f.Close()

	chunk, err := f.FetchPage(context.Background(), query.Options{Limit: 10, Page: 1})
	if err != nil {
		t.Fatalf("FetchPage error: %v", err)
	}
	if len(chunk) != 3 {
		t.Fatalf("got %d rows, want 3", len(chunk))
	}
}
