package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// bom is the byte order mark code point; encoded in the target charset it
// becomes the leading bytes of the output (FF FE for UTF-16LE).
const bom = "\uFEFF"

// Encoding converts rendered UTF-8 lines to a target character encoding.
// The zero-cost path is UTF-8 output, where lines pass through unchanged.
type Encoding struct {
	name string
	enc  encoding.Encoding // nil means UTF-8 passthrough
}

// NewEncoding resolves a charset by its IANA/WHATWG name, e.g. "UTF-16LE"
// or "windows-1252". Matching is case-insensitive. An empty name and UTF-8
// resolve to the passthrough encoding.
func NewEncoding(name string) (*Encoding, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.EqualFold(trimmed, "utf-8") || strings.EqualFold(trimmed, "utf8") {
		return &Encoding{name: "UTF-8"}, nil
	}
	enc, err := htmlindex.Get(trimmed)
	if err != nil {
		return nil, fmt.Errorf("render: unknown charset %q: %w", name, err)
	}
	return &Encoding{name: trimmed, enc: enc}, nil
}

// Name returns the charset name for Content-Type headers. UTF family names
// canonicalize to upper case regardless of configured casing; other charsets
// keep their configured spelling.
func (e *Encoding) Name() string {
	if e.name == "" {
		return "UTF-8"
	}
	if u := strings.ToUpper(e.name); strings.HasPrefix(u, "UTF") {
		return u
	}
	return e.name
}

// BOM returns the byte order mark encoded in the target charset.
func (e *Encoding) BOM() []byte {
	b, err := e.EncodeLine([]byte(bom))
	if err != nil {
		// Charsets that cannot represent U+FEFF get no mark.
		return nil
	}
	return b
}

// EncodeLine converts one rendered line from UTF-8 to the target charset.
// Lines convert independently so output can flush between chunks.
func (e *Encoding) EncodeLine(line []byte) ([]byte, error) {
	if e.enc == nil {
		return line, nil
	}
	out, err := e.enc.NewEncoder().Bytes(line)
	if err != nil {
		return nil, fmt.Errorf("render: encode %s: %w", e.Name(), err)
	}
	return out, nil
}
