// Package all wires all built-in output formats into the render registry.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each format package to run, which in
// turn register their formats with the render package.
//
// In other words, importing this package makes the following formats
// available at runtime:
//
//   - "csv"   (github.com/neilcrookes/export/internal/render/csv)
//   - "jsonl" (github.com/neilcrookes/export/internal/render/jsonl)
//
// Binaries that should support only a subset of formats can import the
// format packages they need instead of this package.
package all

import (
	_ "github.com/neilcrookes/export/internal/render/csv"
	_ "github.com/neilcrookes/export/internal/render/jsonl"
)
