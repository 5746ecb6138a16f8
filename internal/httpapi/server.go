// Package httpapi exposes the export engine over HTTP: an index page that
// lists the configured entities with their download links, and an
// extension-dispatched download endpoint that streams the export as it is
// produced.
//
// Routes:
//
//	GET /                      → index page
//	GET /export/{Entity}.{ext} → streamed download, e.g. /export/EmailSignups.csv
package httpapi

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neilcrookes/export/internal/config"
	"github.com/neilcrookes/export/internal/download"
	"github.com/neilcrookes/export/internal/export"
	"github.com/neilcrookes/export/internal/metrics"
	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/render"
	"github.com/neilcrookes/export/internal/source"
)

// Config controls server startup.
type Config struct {
	Addr     string
	Entities map[string]config.Entity
}

// Server wraps http.Server for convenience.
type Server struct {
	cfg  Config
	mux  *http.ServeMux
	tmpl *template.Template
}

// NewServer constructs a Server with routes and embedded template.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
		// Parse the embedded template at init time.
		tmpl: template.Must(template.New("index").Parse(indexHTML)),
	}
	s.routes()
	return s
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(s.cfg.Addr, s.mux)
}

// Handler returns the server's routing handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/export/", s.handleExport)
}

// handleIndex lists the configured entities and their download links.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := struct{ Entities []indexEntity }{Entities: s.indexData()}
	if err := s.tmpl.Execute(w, data); err != nil {
		log.Println("template error:", err)
	}
}

// handleExport streams one export. The URL names the entity and picks the
// format by extension; pagination state rides in the query string.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entity, ext, ok := splitExportPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	// Dispatch misses are fall-throughs, not errors: an unknown extension
	// or entity, or a format not enabled for automatic dispatch, all look
	// like any other unknown URL.
	format, err := render.ByExtension(ext)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	ent, ok := s.cfg.Entities[entity]
	if !ok {
		http.NotFound(w, r)
		return
	}
	cfg, err := config.Resolve(entity, ent, format.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !cfg.Auto {
		http.NotFound(w, r)
		return
	}

	pagination, err := paginationFromURL(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts, err := query.Build(cfg, pagination, entity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	charset := format.Charset
	if charset == "" {
		enc, err := render.NewEncoding(cfg.CharEncoding)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		charset = enc.Name()
	}
	renderer, err := render.New(format.Name, render.Config{
		Fields:       cfg.Fields,
		CharEncoding: cfg.CharEncoding,
		DataVarName:  cfg.DataVarName,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	fetcher, err := source.New(r.Context(), source.Config{
		Kind:    ent.Source.Kind,
		Entity:  entity,
		DSN:     ent.Source.DSN,
		Table:   ent.Source.Table,
		Columns: ent.Source.Columns,
		Rows:    ent.Source.Rows,
	})
	if err != nil {
		http.Error(w, "open source: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer fetcher.Close()

	runID := uuid.New().String()
	filename := download.Filename(cfg.FileNameFormat, entity, opts.Conditions, format.Extension, time.Now())
	hdr := w.Header()
	for k, vs := range download.Headers(format, charset, filename) {
		hdr[k] = vs
	}
	hdr.Set("X-Export-Run", runID)

	// Exports routinely outlive the server's write deadline; clear it for
	// this response. Writers without deadline support just say so.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Printf("httpapi: run=%s clear write deadline: %v", runID, err)
	}

	eng := export.Engine{Entity: entity, Format: format.Name, Fetcher: fetcher, Renderer: renderer}
	start := time.Now()
	res, err := eng.Run(r.Context(), opts, &httpSink{w: w, rc: rc})
	metrics.RecordRun(entity, format.Name, err, time.Since(start))
	if err != nil {
		log.Printf("httpapi: run=%s entity=%s format=%s failed after pages=%d rows=%d bytes=%d: %v",
			runID, entity, format.Name, res.Pages, res.Rows, res.Bytes, err)
		if !res.Committed {
			// Nothing reached the client yet, so a clean error response is
			// still possible. Drop the download headers first or the error
			// page itself would arrive as an attachment.
			for k := range download.Headers(format, charset, filename) {
				hdr.Del(k)
			}
			http.Error(w, "export failed", http.StatusInternalServerError)
		}
		// Committed: the stream is already part-written and the status is
		// sent; all we can do is stop, leaving the output truncated.
		return
	}
	log.Printf("httpapi: run=%s entity=%s format=%s pages=%d rows=%d bytes=%d file=%s",
		runID, entity, format.Name, res.Pages, res.Rows, res.Bytes, filename)
}

// splitExportPath parses "/export/{Entity}.{ext}". The extension is the part
// after the last dot, so entity names containing dots keep working.
func splitExportPath(path string) (entity, ext string, ok bool) {
	rest := strings.TrimPrefix(path, "/export/")
	if rest == path || strings.Contains(rest, "/") {
		return "", "", false
	}
	dot := strings.LastIndexByte(rest, '.')
	if dot <= 0 || dot == len(rest)-1 {
		return "", "", false
	}
	return rest[:dot], rest[dot+1:], true
}

// paginationFromURL rebuilds the caller's pagination state from the query
// string. Recognized parameters: limit, page, offset (integers), order with
// an optional direction (one sort term), and conditions (a JSON object).
// The state only takes effect when the entity's find_options inherit it.
func paginationFromURL(q url.Values) (map[string]any, error) {
	state := map[string]any{}
	for _, key := range []string{"limit", "page", "offset"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("httpapi: %s=%q is not an integer", key, raw)
		}
		state[key] = n
	}
	if ord := q.Get("order"); ord != "" {
		dir := strings.ToUpper(q.Get("direction"))
		switch dir {
		case "":
			dir = "ASC"
		case "ASC", "DESC":
		default:
			return nil, fmt.Errorf("httpapi: direction=%q must be asc or desc", q.Get("direction"))
		}
		state["order"] = ord + " " + dir
	}
	if raw := q.Get("conditions"); raw != "" {
		var conds map[string]any
		if err := json.Unmarshal([]byte(raw), &conds); err != nil {
			return nil, fmt.Errorf("httpapi: conditions: %w", err)
		}
		state["conditions"] = conds
	}
	return state, nil
}

// httpSink adapts an http.ResponseWriter to the engine's sink. Flush pushes
// each chunk to the client immediately; writers that cannot flush (plain
// buffers in tests, some middleware) deliver on close instead, which is
// still correct, just less incremental.
type httpSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (s *httpSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *httpSink) Flush() error {
	err := s.rc.Flush()
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

type indexEntity struct {
	Name  string
	Kind  string
	Links []indexLink
}

type indexLink struct {
	Format string
	Href   string
}

// indexData collects, per entity in name order, the download links for every
// format enabled for automatic dispatch.
func (s *Server) indexData() []indexEntity {
	names := make([]string, 0, len(s.cfg.Entities))
	for name := range s.cfg.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]indexEntity, 0, len(names))
	for _, name := range names {
		ent := s.cfg.Entities[name]
		ie := indexEntity{Name: name, Kind: ent.Source.Kind}
		for _, fname := range render.Formats() {
			format, err := render.Lookup(fname)
			if err != nil {
				continue
			}
			cfg, err := config.Resolve(name, ent, fname)
			if err != nil || !cfg.Auto {
				continue
			}
			ie.Links = append(ie.Links, indexLink{
				Format: fname,
				Href:   "/export/" + name + "." + format.Extension,
			})
		}
		out = append(out, ie)
	}
	return out
}

// indexHTML is an embedded, minimal page with vanilla styling.
//
//go:embed index.tmpl.html
var indexHTML string
