// Package render turns fetched record chunks into export output bytes.
//
// Renderers are registered per format in init functions, mirroring the
// source backend wiring: importing a format package (or render/all) makes
// it available through New and ByExtension. A renderer receives one chunk
// at a time and is told whether it is the opening chunk, so formats that
// carry a preamble (byte order mark, header row) emit it exactly once.
package render

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/neilcrookes/export/internal/fields"
)

// ErrUnsupportedFormat reports a format name or extension with no
// registered renderer. The HTTP layer maps it to 404.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Renderer writes record chunks in one output format.
type Renderer interface {
	// RenderChunk appends one chunk of records to w. first is true for the
	// opening chunk of an export, which carries the format preamble where
	// the format has one. An empty first chunk still renders the preamble.
	RenderChunk(w io.Writer, rows []map[string]any, first bool) error
}

// Config carries the per-export settings a renderer is constructed with.
type Config struct {
	// Fields selects and orders the output columns.
	Fields fields.Spec

	// CharEncoding names the output character encoding, e.g. "UTF-16LE".
	// Formats that define their own encoding (jsonl) ignore it.
	CharEncoding string

	// DataVarName is the variable name template-style renderers expose the
	// rows under. The built-in formats do not use it.
	DataVarName string
}

// Format describes one registered output format.
type Format struct {
	// Name is the format key used in configuration, e.g. "csv".
	Name string

	// MIME is the media type sent in Content-Type, e.g. "text/csv".
	MIME string

	// Extension is the filename extension without dot, e.g. "csv". It is
	// also the request extension the HTTP layer dispatches on.
	Extension string

	// Charset, when non-empty, fixes the output encoding regardless of the
	// configured char_encoding. Formats whose encoding is part of the format
	// itself (jsonl) set it so response headers stay truthful.
	Charset string

	// New constructs a renderer for one export.
	New func(Config) (Renderer, error)
}

var (
	regMu   sync.Mutex
	formats = map[string]Format{}
)

// Register adds a format under its Name, replacing any previous
// registration. It is typically called from init in format packages.
func Register(f Format) {
	regMu.Lock()
	defer regMu.Unlock()
	formats[f.Name] = f
}

// New constructs a renderer for the named format.
func New(name string, cfg Config) (Renderer, error) {
	regMu.Lock()
	f, ok := formats[name]
	regMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return f.New(cfg)
}

// Lookup returns the named format.
func Lookup(name string) (Format, error) {
	regMu.Lock()
	defer regMu.Unlock()
	f, ok := formats[name]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return f, nil
}

// ByExtension returns the format registered for the given filename
// extension (without dot).
func ByExtension(ext string) (Format, error) {
	regMu.Lock()
	defer regMu.Unlock()
	for _, f := range formats {
		if f.Extension == ext {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
}

// Formats returns the registered format names, sorted.
func Formats() []string {
	regMu.Lock()
	defer regMu.Unlock()
	out := make([]string, 0, len(formats))
	for name := range formats {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
