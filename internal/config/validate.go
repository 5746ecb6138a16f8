// Package config provides configuration models and helpers for the export
// service.
//
// This file adds a lightweight linter/validator for File values. It performs
// static checks over a decoded File and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/neilcrookes/export/internal/fields"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a config File.
//
// Path is a dotted path into the config (e.g. "entities.EmailSignups.source.kind",
// "entities.EmailSignups.export.csv.limit"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation / linting of a config File.
//
// It does not mutate the file. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	var f config.File
//	if err := json.NewDecoder(r).Decode(&f); err != nil { ... }
//	issues := config.Validate(f)
//	for _, iss := range issues {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func Validate(f File) []Issue {
	var issues []Issue

	if len(f.Entities) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "entities",
			Message:  "no entities configured; nothing can be exported",
		})
		return issues
	}

	// Walk entities in name order so findings are deterministic.
	names := make([]string, 0, len(f.Entities))
	for name := range f.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		issues = append(issues, validateEntity(name, f.Entities[name])...)
	}
	return issues
}

// knownSourceKinds mirrors the backends wired in by internal/source/all.
// Unknown kinds are warnings (for forward compatibility).
var knownSourceKinds = map[string]struct{}{
	"postgres": {},
	"mysql":    {},
	"sqlite":   {},
	"mssql":    {},
	"memory":   {},
}

// knownFormats mirrors the renderers wired in by internal/render/all, plus
// the cross-format "all" layer key.
var knownFormats = map[string]struct{}{
	"all":   {},
	"csv":   {},
	"jsonl": {},
}

func validateEntity(name string, e Entity) []Issue {
	var issues []Issue
	path := "entities." + name

	issues = append(issues, validateSource(path+".source", e.Source)...)

	// Export layers in key order, for deterministic output.
	layers := make([]string, 0, len(e.Export))
	for layer := range e.Export {
		layers = append(layers, layer)
	}
	sort.Strings(layers)

	for _, layer := range layers {
		lpath := path + ".export." + layer
		if _, ok := knownFormats[layer]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     lpath,
				Message:  fmt.Sprintf("unknown format %q; ensure a matching renderer exists", layer),
			})
		}
		issues = append(issues, validateSettings(lpath, name, e.Export[layer])...)
	}
	return issues
}

func validateSource(path string, s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}
	if _, ok := knownSourceKinds[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown source kind %q; ensure a matching implementation exists", s.Kind),
		})
	}

	switch s.Kind {
	case "memory":
		// Rows may legitimately be empty: an empty export still renders a
		// header-only file.
	default:
		if strings.TrimSpace(s.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".dsn",
				Message:  fmt.Sprintf("%s source requires a non-empty dsn", s.Kind),
			})
		}
		if strings.TrimSpace(s.Table) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".table",
				Message:  fmt.Sprintf("%s source requires a non-empty table", s.Kind),
			})
		}
	}
	return issues
}

// placeholderRe matches %name% placeholders in file name templates.
var placeholderRe = regexp.MustCompile(`%[a-zA-Z]+%`)

// knownPlaceholders are the substitutions download.Filename performs.
var knownPlaceholders = map[string]struct{}{
	"%controllerName%": {},
	"%conditions%":     {},
	"%dateTime%":       {},
}

func validateSettings(path, entity string, o Options) []Issue {
	var issues []Issue

	if o.Int("limit", 0) < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".limit",
			Message:  "limit must be >= 0",
		})
	}

	if v, ok := o["find_options"]; ok {
		switch fo := v.(type) {
		case map[string]any:
		case string:
			if fo != FindOptionsInherit {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".find_options",
					Message:  fmt.Sprintf("must be %q or an object, got %q", FindOptionsInherit, fo),
				})
			}
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".find_options",
				Message:  fmt.Sprintf("must be %q or an object, got %T", FindOptionsInherit, v),
			})
		}
	}

	if raw := o.Any("fields"); raw != nil {
		if _, err := fields.Parse(raw, entity); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".fields",
				Message:  err.Error(),
			})
		}
	}

	if tpl := o.String("file_name_format", ""); tpl != "" {
		for _, ph := range placeholderRe.FindAllString(tpl, -1) {
			if _, ok := knownPlaceholders[ph]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".file_name_format",
					Message:  fmt.Sprintf("unrecognized placeholder %s is substituted literally", ph),
				})
			}
		}
	}

	if cs, ok := o["char_encoding"]; ok {
		if s, isStr := cs.(string); !isStr || strings.TrimSpace(s) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".char_encoding",
				Message:  "char_encoding must be a non-empty charset name",
			})
		}
	}

	return issues
}
