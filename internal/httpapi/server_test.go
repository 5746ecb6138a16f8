package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neilcrookes/export/internal/config"
	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/source"

	_ "github.com/neilcrookes/export/internal/render/csv"
	_ "github.com/neilcrookes/export/internal/render/jsonl"
	_ "github.com/neilcrookes/export/internal/source/memory"
)

// testEntities builds a config with one in-memory entity small enough to
// assert exact output bytes: five rows exported in chunks of two.
func testEntities() map[string]config.Entity {
	return map[string]config.Entity{
		"EmailSignups": {
			Source: config.Source{
				Kind: "memory",
				Rows: []map[string]any{
					{"email": "a@example.com", "verified": true},
					{"email": "b@example.com", "verified": false},
					{"email": "c@example.com", "verified": true},
					{"email": "d@example.com", "verified": false},
					{"email": "e@example.com", "verified": true},
				},
			},
			Export: map[string]config.Options{
				"all": {
					"fields": []any{
						"email",
						map[string]any{"field": "verified", "label": "Verified?", "decorator": "yesno"},
					},
					"limit":         2,
					"char_encoding": "utf-8",
				},
			},
		},
	}
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// TestExport_HappyPath streams a whole in-memory entity and checks the
// response: download headers, exact body bytes (BOM, header row, all five
// rows), and that the body was flushed to the client.
func TestExport_HappyPath(t *testing.T) {
	t.Parallel()

	s := NewServer(Config{Entities: testEntities()})
	rec := get(t, s, "/export/EmailSignups.csv")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got, want := rec.Header().Get("Content-Type"), "text/csv; charset=UTF-8"; got != want {
		t.Fatalf("Content-Type = %q, want %q", got, want)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="email-signups-`) || !strings.HasSuffix(cd, `.csv"`) {
		t.Fatalf("Content-Disposition = %q, want attachment with hyphenated entity name", cd)
	}
	if rec.Header().Get("X-Export-Run") == "" {
		t.Fatalf("X-Export-Run header missing")
	}
	if !rec.Flushed {
		t.Fatalf("response was never flushed")
	}

	want := "\uFEFF\"email\"\t\"Verified?\"\n" +
		"\"a@example.com\"\t\"yes\"\n" +
		"\"b@example.com\"\t\"no\"\n" +
		"\"c@example.com\"\t\"yes\"\n" +
		"\"d@example.com\"\t\"no\"\n" +
		"\"e@example.com\"\t\"yes\"\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

// TestExport_OffsetShiftsWindow checks that pagination state from the URL
// reaches the query options: offset=3 skips the first three rows.
func TestExport_OffsetShiftsWindow(t *testing.T) {
	t.Parallel()

	s := NewServer(Config{Entities: testEntities()})
	rec := get(t, s, "/export/EmailSignups.csv?offset=3")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusOK, rec.Body.String())
	}
	want := "\uFEFF\"email\"\t\"Verified?\"\n" +
		"\"d@example.com\"\t\"no\"\n" +
		"\"e@example.com\"\t\"yes\"\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

// TestExport_DispatchMisses runs the fall-through table: unknown extensions,
// unknown entities, and malformed paths are plain 404s.
func TestExport_DispatchMisses(t *testing.T) {
	t.Parallel()

	s := NewServer(Config{Entities: testEntities()})
	targets := []string{
		"/export/EmailSignups.pdf",
		"/export/Nope.csv",
		"/export/EmailSignups",
		"/export/.csv",
		"/export/EmailSignups.",
		"/export/nested/EmailSignups.csv",
	}
	for _, target := range targets {
		if rec := get(t, s, target); rec.Code != http.StatusNotFound {
			t.Fatalf("GET %s: status = %d, want %d", target, rec.Code, http.StatusNotFound)
		}
	}
}

// TestExport_AutoFalse checks that a format disabled for automatic dispatch
// is indistinguishable from an unknown URL.
func TestExport_AutoFalse(t *testing.T) {
	t.Parallel()

	entities := testEntities()
	ent := entities["EmailSignups"]
	ent.Export["csv"] = config.Options{"auto": false}
	entities["EmailSignups"] = ent

	s := NewServer(Config{Entities: entities})
	if rec := get(t, s, "/export/EmailSignups.csv"); rec.Code != http.StatusNotFound {
		t.Fatalf("auto=false: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	// Other formats for the same entity stay reachable.
	if rec := get(t, s, "/export/EmailSignups.jsonl"); rec.Code != http.StatusOK {
		t.Fatalf("jsonl: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// TestExport_BadPagination checks that malformed query parameters reject
// with 400 before anything is fetched.
func TestExport_BadPagination(t *testing.T) {
	t.Parallel()

	s := NewServer(Config{Entities: testEntities()})
	targets := []string{
		"/export/EmailSignups.csv?limit=abc",
		"/export/EmailSignups.csv?conditions=notjson",
		"/export/EmailSignups.csv?order=created&direction=sideways",
	}
	for _, target := range targets {
		if rec := get(t, s, target); rec.Code != http.StatusBadRequest {
			t.Fatalf("GET %s: status = %d, want %d", target, rec.Code, http.StatusBadRequest)
		}
	}
}

// TestExport_MethodNotAllowed rejects non-GET requests to the download
// endpoint.
func TestExport_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	s := NewServer(Config{Entities: testEntities()})
	req := httptest.NewRequest(http.MethodPost, "/export/EmailSignups.csv", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

// pagedFetcher serves scripted pages and fails at a chosen page, standing in
// for a backend that dies mid-export.
type pagedFetcher struct {
	pages map[int]source.Chunk
	errOn int
}

func (f *pagedFetcher) FetchPage(_ context.Context, opts query.Options) (source.Chunk, error) {
	if opts.Page == f.errOn {
		return nil, errors.New("backend gone")
	}
	return f.pages[opts.Page], nil
}

func (f *pagedFetcher) Close() {}

// failingEntity registers a scripted source under kind and returns a config
// with one entity using it.
func failingEntity(kind string, f *pagedFetcher) map[string]config.Entity {
	source.Register(kind, func(ctx context.Context, cfg source.Config) (source.Fetcher, error) {
		return f, nil
	})
	return map[string]config.Entity{
		"Orders": {
			Source: config.Source{Kind: kind},
			Export: map[string]config.Options{
				"all": {
					"fields":        []any{"id"},
					"limit":         2,
					"char_encoding": "utf-8",
				},
			},
		},
	}
}

// TestExport_FailureBeforeCommit checks that an export failing before any
// output reaches the client still produces a clean 500 without download
// headers.
func TestExport_FailureBeforeCommit(t *testing.T) {
	t.Parallel()

	entities := failingEntity("broken-at-1", &pagedFetcher{errOn: 1})
	s := NewServer(Config{Entities: entities})
	rec := get(t, s, "/export/Orders.csv")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "" {
		t.Fatalf("Content-Disposition = %q, want removed on failure", cd)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "export failed" {
		t.Fatalf("body = %q, want %q", got, "export failed")
	}
}

// TestExport_FailureMidStream checks the documented truncation behavior: once
// output has been flushed, a failure just stops the stream — the status and
// the already-sent rows stand.
func TestExport_FailureMidStream(t *testing.T) {
	t.Parallel()

	entities := failingEntity("broken-at-2", &pagedFetcher{
		pages: map[int]source.Chunk{
			1: {{"id": 1}, {"id": 2}},
		},
		errOn: 2,
	})
	s := NewServer(Config{Entities: entities})
	rec := get(t, s, "/export/Orders.csv")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	want := "\uFEFF\"id\"\n\"1\"\n\"2\"\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("body = %q, want %q (truncated stream)", got, want)
	}
}

// TestIndex lists each configured entity with links for every
// auto-dispatchable format.
func TestIndex(t *testing.T) {
	t.Parallel()

	s := NewServer(Config{Entities: testEntities()})
	rec := get(t, s, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, want := range []string{"EmailSignups", "/export/EmailSignups.csv", "/export/EmailSignups.jsonl"} {
		if !strings.Contains(body, want) {
			t.Fatalf("index body missing %q:\n%s", want, body)
		}
	}
}

// TestIndex_UnknownPath keeps the catch-all route honest: anything that is
// not the index or an export URL is a 404.
func TestIndex_UnknownPath(t *testing.T) {
	t.Parallel()

	s := NewServer(Config{Entities: testEntities()})
	if rec := get(t, s, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
