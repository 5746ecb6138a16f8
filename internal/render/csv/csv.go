// Package csv renders records as fully quoted, tab-separated rows in the
// configured character encoding. The opening chunk carries the byte order
// mark and the header row of field labels; every subsequent chunk appends
// data rows only, so output can stream chunk by chunk.
//
// Every cell is quoted, with embedded quotes doubled. Tab separation with
// full quoting is what desktop spreadsheet imports handle most reliably,
// which is the primary consumer of these files.
package csv

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/neilcrookes/export/internal/fields"
	"github.com/neilcrookes/export/internal/render"
)

func init() {
	render.Register(render.Format{
		Name:      "csv",
		MIME:      "text/csv",
		Extension: "csv",
		New:       New,
	})
}

// Renderer writes CSV chunks. It is constructed per export and is not
// concurrency-safe.
type Renderer struct {
	fields fields.Spec
	enc    *render.Encoding
}

// New constructs a CSV renderer, resolving the configured charset up front
// so bad names fail before any rows are fetched.
func New(cfg render.Config) (render.Renderer, error) {
	enc, err := render.NewEncoding(cfg.CharEncoding)
	if err != nil {
		return nil, err
	}
	return &Renderer{fields: cfg.Fields, enc: enc}, nil
}

// RenderChunk implements render.Renderer. Lines are built in UTF-8 and
// converted line by line, so a conversion failure aborts at a line boundary.
func (r *Renderer) RenderChunk(w io.Writer, rows []map[string]any, first bool) error {
	// An empty configured spec means all columns; derive the projection
	// from the first record's keys so filled rows still export.
	if len(r.fields) == 0 && len(rows) > 0 {
		r.fields = fields.FromRecord(rows[0])
	}

	var buf bytes.Buffer

	if first {
		buf.Write(r.enc.BOM())
		if len(r.fields) > 0 {
			line, err := r.enc.EncodeLine(rowBytes(r.fields.Labels()))
			if err != nil {
				return err
			}
			buf.Write(line)
		}
	}

	for _, rec := range rows {
		cells := make([]string, 0, len(r.fields))
		for _, v := range r.fields.Project(rec) {
			cells = append(cells, cellString(v))
		}
		line, err := r.enc.EncodeLine(rowBytes(cells))
		if err != nil {
			return err
		}
		buf.Write(line)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// rowBytes renders one line: every cell quoted, quotes doubled, cells
// joined by tabs, newline terminated.
func rowBytes(cells []string) []byte {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}
	return []byte(strings.Join(quoted, "\t") + "\n")
}

// cellString converts a projected value to its cell text. nil renders
// empty; times use a spreadsheet-friendly layout. Decorators run before
// this point, so configured formatting wins.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(t)
	}
}
