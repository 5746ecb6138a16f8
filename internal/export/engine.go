// Package export drives the chunked export loop: fetch one bounded page of
// records, render it, flush it to the client, then advance to the next page
// until a fetch comes back empty. Memory stays bounded by the page size no
// matter how many rows the export covers.
//
// Logging: a concise progress line is emitted per flushed page with running
// totals, mirroring how batch loads report progress elsewhere in this
// project.
package export

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/neilcrookes/export/internal/metrics"
	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/render"
	"github.com/neilcrookes/export/internal/source"
)

// Sink receives rendered output. Flush pushes buffered bytes onward to the
// client after each chunk so the download starts with the first page.
type Sink interface {
	io.Writer
	Flush() error
}

// Result summarizes a finished or aborted run.
type Result struct {
	// Pages counts chunks rendered and flushed. The empty trailing fetch
	// that ends the loop is not a page.
	Pages int

	// Rows counts records rendered and flushed.
	Rows int64

	// Bytes counts bytes written to the sink.
	Bytes int64

	// Committed is true once the first flush reached the sink. A committed
	// stream cannot be turned into a clean error response anymore; callers
	// use this to choose between an error page and aborting mid-body.
	Committed bool
}

// Engine streams one export. Entity and Format label log lines and metrics;
// they do not affect the data path.
type Engine struct {
	Entity   string
	Format   string
	Fetcher  source.Fetcher
	Renderer render.Renderer
}

// Run executes the export loop. Paging always starts at page 1 regardless
// of opts.Page and advances one page per iteration. The first chunk renders
// even when empty, so an export over zero rows still produces the format
// preamble (byte order mark, header row).
//
// Errors abort the stream at the failing page: whatever was already flushed
// stays with the client, and Result.Committed reports whether that
// happened. There are no retries.
func (e *Engine) Run(ctx context.Context, opts query.Options, sink Sink) (res Result, err error) {
	cw := &countingWriter{w: sink}
	defer func() { res.Bytes = cw.n }()

	var (
		page  = 1
		first = true
		start = time.Now()
	)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		o := opts
		o.Page = page
		chunk, err := e.Fetcher.FetchPage(ctx, o)
		if err != nil {
			log.Printf("export: fetch failed entity=%s format=%s page=%d committed=%t err=%v",
				e.Entity, e.Format, page, res.Committed, err)
			return res, fmt.Errorf("fetch page %d: %w", page, err)
		}

		if len(chunk) == 0 && !first {
			break
		}

		if err := e.Renderer.RenderChunk(cw, chunk, first); err != nil {
			log.Printf("export: render failed entity=%s format=%s page=%d committed=%t err=%v",
				e.Entity, e.Format, page, res.Committed, err)
			return res, fmt.Errorf("render page %d: %w", page, err)
		}
		if err := sink.Flush(); err != nil {
			log.Printf("export: flush failed entity=%s format=%s page=%d committed=%t err=%v",
				e.Entity, e.Format, page, res.Committed, err)
			return res, fmt.Errorf("flush page %d: %w", page, err)
		}
		res.Committed = true
		res.Pages++
		res.Rows += int64(len(chunk))
		metrics.RecordPages(e.Entity, e.Format, 1)
		metrics.RecordRows(e.Entity, e.Format, int64(len(chunk)))

		log.Printf("export: entity=%s format=%s page=%d rows=%d total_rows=%d bytes=%d elapsed=%s",
			e.Entity, e.Format, page, len(chunk), res.Rows, cw.n,
			time.Since(start).Truncate(time.Millisecond))

		if len(chunk) == 0 {
			// Empty first page: the preamble is out, nothing more to fetch.
			break
		}
		first = false
		page++
	}

	metrics.RecordBytes(e.Entity, e.Format, cw.n)
	log.Printf("export: done entity=%s format=%s pages=%d rows=%d bytes=%d elapsed=%s",
		e.Entity, e.Format, res.Pages, res.Rows, cw.n,
		time.Since(start).Truncate(time.Millisecond))
	return res, nil
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
