package render

import (
	"bytes"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

// TestNewEncoding_Passthrough verifies UTF-8 (and empty) resolve to the
// passthrough encoding with a UTF-8 byte order mark.
func TestNewEncoding_Passthrough(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "UTF-8", "utf-8", "utf8"} {
		e, err := NewEncoding(name)
		if err != nil {
			t.Fatalf("NewEncoding(%q) error: %v", name, err)
		}
		line := []byte(`"a"	"b"` + "\n")
		got, err := e.EncodeLine(line)
		if err != nil {
			t.Fatalf("EncodeLine error: %v", err)
		}
		if !bytes.Equal(got, line) {
			t.Fatalf("EncodeLine(%q) = %q, want passthrough", name, got)
		}
		if want := []byte{0xEF, 0xBB, 0xBF}; !bytes.Equal(e.BOM(), want) {
			t.Fatalf("BOM() = % X, want % X", e.BOM(), want)
		}
	}
}

// TestNewEncoding_UTF16LE verifies the default export charset: the byte
// order mark is FF FE and lines round-trip through a UTF-16LE decoder.
func TestNewEncoding_UTF16LE(t *testing.T) {
	t.Parallel()

	e, err := NewEncoding("UTF-16LE")
	if err != nil {
		t.Fatalf("NewEncoding error: %v", err)
	}
	if got, want := e.BOM(), []byte{0xFF, 0xFE}; !bytes.Equal(got, want) {
		t.Fatalf("BOM() = % X, want % X", got, want)
	}
	if got, want := e.Name(), "UTF-16LE"; got != want {
		t.Fatalf("Name() = %q, want %q", got, want)
	}

	line := []byte("\"héllo\"\n")
	enc, err := e.EncodeLine(line)
	if err != nil {
		t.Fatalf("EncodeLine error: %v", err)
	}
	if len(enc) != 2*len([]rune(string(line))) {
		t.Fatalf("encoded length = %d, want %d", len(enc), 2*len([]rune(string(line))))
	}

	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	back, err := dec.Bytes(enc)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(back, line) {
		t.Fatalf("round trip = %q, want %q", back, line)
	}
}

// TestNewEncoding_Unknown verifies unknown charset names fail at
// construction, before any rows are fetched.
func TestNewEncoding_Unknown(t *testing.T) {
	t.Parallel()

	if _, err := NewEncoding("KLINGON-8"); err == nil {
		t.Fatalf("expected error for unknown charset")
	}
}

// TestEncoding_Name verifies the header-facing name is canonical no matter
// how the charset was spelled in configuration.
func TestEncoding_Name(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", "UTF-8"},
		{"utf-8", "UTF-8"},
		{"utf8", "UTF-8"},
		{"UTF-16LE", "UTF-16LE"},
		{"utf-16le", "UTF-16LE"},
		{"windows-1252", "windows-1252"},
	}
	for _, tt := range tests {
		e, err := NewEncoding(tt.in)
		if err != nil {
			t.Fatalf("NewEncoding(%q) error: %v", tt.in, err)
		}
		if got := e.Name(); got != tt.want {
			t.Fatalf("NewEncoding(%q).Name() = %q, want %q", tt.in, got, tt.want)
		}
	}
}
