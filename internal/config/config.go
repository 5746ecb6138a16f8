// Package config defines the canonical, JSON-serializable configuration
// model for the export service. It is intentionally small, explicit, and
// dependency-free so that configs can be loaded from disk (or other sources)
// and passed through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in config
//     files.
//  3. Minimalism: No third-party config libraries; decoding is performed by
//     the standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "listen": ":8080",
//	  "entities": {
//	    "EmailSignups": {
//	      "source": { "kind": "postgres", "dsn": "...", "table": "email_signups" },
//	      "export": {
//	        "all": { "fields": ["email", "created"] },
//	        "csv": { "limit": 500, "char_encoding": "UTF-16LE" }
//	      }
//	    }
//	  }
//	}
//
// Per-run settings are resolved by a three-layer cascade: built-in Defaults,
// the entity's "all" block, then the entity's per-format block. Later layers
// win key-by-key (deep merge, see Merge).
package config

import (
	"encoding/json"
	"fmt"

	"github.com/neilcrookes/export/internal/fields"
)

// File is the top-level object decoded from a config file.
type File struct {
	// Listen is the daemon bind address, e.g. ":8080".
	Listen string `json:"listen"`

	// Entities maps an exportable entity name (e.g. "EmailSignups") to its
	// data source and export settings.
	Entities map[string]Entity `json:"entities"`
}

// Entity couples one exportable entity's data source with the per-entity
// layers of its settings cascade.
type Entity struct {
	Source Source `json:"source"`

	// Export holds the cascade layers: the "all" key applies to every
	// format, any other key applies only to the format it names.
	Export map[string]Options `json:"export"`
}

// Source identifies the entity's data source. Kind selects the fetcher
// implementation registered under that name (postgres, mysql, sqlite,
// mssql, memory).
type Source struct {
	Kind    string   `json:"kind"`
	DSN     string   `json:"dsn"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"`

	// Rows backs the "memory" kind: explicit data for manual exports and
	// tests. Ignored by the SQL kinds.
	Rows []map[string]any `json:"rows"`
}

// FindOptionsInherit is the find_options sentinel selecting the caller's
// pagination state as the starting query options.
const FindOptionsInherit = "inherit"

// ExportConfig is one run's resolved, immutable settings. It is produced by
// Resolve and never shared or mutated across runs.
type ExportConfig struct {
	// Auto marks the format eligible for automatic dispatch from a URL
	// extension. Manual (CLI) runs ignore it.
	Auto bool

	// FindOptions is either FindOptionsInherit or an explicit options
	// object (map[string]any) to start the query options from.
	FindOptions any

	// Fields is the resolved projection spec; empty means all columns.
	Fields fields.Spec

	// Limit is the chunk size: the number of rows fetched and rendered per
	// page. It overrides the query options' limit — only the limit.
	Limit int

	// DataVarName is the binding name a template-driven renderer receives
	// the current chunk under.
	DataVarName string

	// Layout and ViewFile are renderer template overrides.
	Layout   string
	ViewFile string

	// FileNameFormat is the attachment-name template; see download.Filename
	// for the recognized placeholders.
	FileNameFormat string

	// CharEncoding is the target charset of the rendered output.
	CharEncoding string
}

// Defaults returns the built-in settings layer of the cascade.
func Defaults() Options {
	return Options{
		"auto":             true,
		"find_options":     FindOptionsInherit,
		"fields":           nil,
		"limit":            500,
		"data_var_name":    "data",
		"layout":           "",
		"view_file":        "",
		"file_name_format": "%controllerName%-%dateTime%",
		"char_encoding":    "UTF-16LE",
	}
}

// Resolve runs the settings cascade for one entity and format and decodes
// the merged result into an ExportConfig. The field spec is parsed here,
// once, so malformed specs and unknown decorators surface before any output
// begins.
func Resolve(entity string, e Entity, format string) (ExportConfig, error) {
	merged := Merge(Defaults(), e.Export["all"])
	merged = Merge(merged, e.Export[format])

	// Decode the merged map by JSON round-trip into a typed shape.
	var raw struct {
		Auto           bool   `json:"auto"`
		FindOptions    any    `json:"find_options"`
		Fields         any    `json:"fields"`
		Limit          int    `json:"limit"`
		DataVarName    string `json:"data_var_name"`
		Layout         string `json:"layout"`
		ViewFile       string `json:"view_file"`
		FileNameFormat string `json:"file_name_format"`
		CharEncoding   string `json:"char_encoding"`
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return ExportConfig{}, fmt.Errorf("config: marshal merged settings for %s.%s: %w", entity, format, err)
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return ExportConfig{}, fmt.Errorf("config: decode merged settings for %s.%s: %w", entity, format, err)
	}

	switch fo := raw.FindOptions.(type) {
	case nil, map[string]any:
	case string:
		if fo != FindOptionsInherit {
			return ExportConfig{}, fmt.Errorf("config: %s.%s: find_options must be %q or an object, got %q", entity, format, FindOptionsInherit, fo)
		}
	default:
		return ExportConfig{}, fmt.Errorf("config: %s.%s: find_options must be %q or an object, got %T", entity, format, FindOptionsInherit, fo)
	}

	if raw.Limit < 0 {
		return ExportConfig{}, fmt.Errorf("config: %s.%s: limit must be >= 0, got %d", entity, format, raw.Limit)
	}

	spec, err := fields.Parse(raw.Fields, entity)
	if err != nil {
		return ExportConfig{}, fmt.Errorf("config: %s.%s: %w", entity, format, err)
	}

	return ExportConfig{
		Auto:           raw.Auto,
		FindOptions:    raw.FindOptions,
		Fields:         spec,
		Limit:          raw.Limit,
		DataVarName:    raw.DataVarName,
		Layout:         raw.Layout,
		ViewFile:       raw.ViewFile,
		FileNameFormat: raw.FileNameFormat,
		CharEncoding:   raw.CharEncoding,
	}, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
//
// Options is used for the free-form export settings layers, where the shape
// is fixed only after the cascade has run.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings (or an array of interface values containing strings). Returns nil
// when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Map returns the map value for key, or nil when the key is missing or the
// value is not an object. This is useful for retrieving nested configuration
// blocks such as a model-specific pagination override.
func (o Options) Map(key string) map[string]any {
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// Any returns the raw value for key (which may itself be a nested
// map[string]any, []any, or primitive). This is useful for retrieving nested
// configuration blocks that will be unmarshaled into a typed struct by the
// caller (e.g., a field projection spec).
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// settings object in JSON decodes to a non-nil, empty Options map. This
// simplifies call sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
