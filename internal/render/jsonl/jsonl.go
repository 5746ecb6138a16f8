// Package jsonl renders records as JSON Lines: one object per row, keyed by
// field label. Output is always UTF-8 with no preamble; the configured
// char_encoding is ignored since the JSON spec fixes the encoding.
package jsonl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/neilcrookes/export/internal/fields"
	"github.com/neilcrookes/export/internal/render"
)

func init() {
	render.Register(render.Format{
		Name:      "jsonl",
		MIME:      "application/jsonl",
		Extension: "jsonl",
		Charset:   "UTF-8",
		New:       New,
	})
}

// Renderer writes JSON Lines chunks.
type Renderer struct {
	fields fields.Spec
}

// New constructs a JSON Lines renderer.
func New(cfg render.Config) (render.Renderer, error) {
	return &Renderer{fields: cfg.Fields}, nil
}

// RenderChunk implements render.Renderer. first is accepted for interface
// parity; the format has no preamble, so an empty first chunk emits nothing.
func (r *Renderer) RenderChunk(w io.Writer, rows []map[string]any, first bool) error {
	if len(rows) == 0 {
		return nil
	}
	// An empty configured spec means all columns.
	if len(r.fields) == 0 {
		r.fields = fields.FromRecord(rows[0])
	}
	labels := r.fields.Labels()

	var buf bytes.Buffer
	for _, rec := range rows {
		obj := make(map[string]any, len(labels))
		for i, v := range r.fields.Project(rec) {
			obj[labels[i]] = normalize(v)
		}
		line, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("jsonl: marshal row: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// normalize keeps byte slices readable; encoding/json would base64 them.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
