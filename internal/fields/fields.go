// Package fields resolves an export's configured field/column specification
// into a concrete, ordered projection: which columns are selected, what each
// output column is labeled, and which value decorator (if any) applies before
// rendering.
//
// A spec entry in configuration takes one of three JSON shapes:
//
//	"email"                                            plain field
//	{"field": "created", "label": "Signup date"}       labeled field
//	{"field": "confirmed", "decorator": "yesno"}       decorated field
//
// Field names may qualify a foreign model as "Model.field"; bare names belong
// to the primary entity. Parsing happens once, at config load — downstream
// code only ever sees resolved Field values and never re-inspects the raw
// shapes.
package fields

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags which configuration shape a Field was resolved from.
type Kind string

const (
	PlainField     Kind = "plain"
	LabeledField   Kind = "labeled"
	DecoratedField Kind = "decorated"
)

// Field is one resolved projection entry.
type Field struct {
	Kind      Kind
	Model     string // owning entity; never empty after Parse
	Name      string // column name without qualifier
	Label     string // output header label; defaults to Name
	Decorator string // registered decorator name; empty for none
}

// Qualified returns the "Model.field" form used in query field lists.
func (f Field) Qualified() string { return f.Model + "." + f.Name }

// Spec is an ordered field projection. It is read-only during a run.
type Spec []Field

// Parse resolves raw spec entries (as decoded from JSON) into a Spec.
// primary is the entity that unqualified names belong to. Unknown decorator
// names fail here, at config load, not later in the render path.
func Parse(raw any, primary string) (Spec, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("fields: spec must be an array, got %T", raw)
	}
	spec := make(Spec, 0, len(items))
	for i, item := range items {
		f, err := parseEntry(item, primary)
		if err != nil {
			return nil, fmt.Errorf("fields[%d]: %w", i, err)
		}
		spec = append(spec, f)
	}
	return spec, nil
}

func parseEntry(item any, primary string) (Field, error) {
	switch v := item.(type) {
	case string:
		model, name := splitQualified(v, primary)
		if name == "" {
			return Field{}, fmt.Errorf("empty field name")
		}
		return Field{Kind: PlainField, Model: model, Name: name, Label: name}, nil
	case map[string]any:
		rawName, _ := v["field"].(string)
		model, name := splitQualified(rawName, primary)
		if name == "" {
			return Field{}, fmt.Errorf(`missing or empty "field" key`)
		}
		f := Field{Kind: LabeledField, Model: model, Name: name, Label: name}
		if label, ok := v["label"].(string); ok && label != "" {
			f.Label = label
		}
		if dec, ok := v["decorator"].(string); ok && dec != "" {
			if _, err := Decorator(dec); err != nil {
				return Field{}, err
			}
			f.Kind = DecoratedField
			f.Decorator = dec
		}
		return f, nil
	default:
		return Field{}, fmt.Errorf("field entry must be a string or an object, got %T", item)
	}
}

// FromRecord derives a projection from a record's keys, sorted so output
// column order is deterministic. Renderers fall back to this when the
// configuration names no fields, which means "all columns".
func FromRecord(rec map[string]any) Spec {
	names := make([]string, 0, len(rec))
	for k := range rec {
		names = append(names, k)
	}
	sort.Strings(names)
	spec := make(Spec, len(names))
	for i, n := range names {
		spec[i] = Field{Kind: PlainField, Name: n, Label: n}
	}
	return spec
}

// splitQualified splits "Model.field" into its parts; bare names take the
// primary entity as model.
func splitQualified(s, primary string) (model, name string) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return primary, s
}

// Labels returns the output header labels in spec order.
func (s Spec) Labels() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Label
	}
	return out
}

// Qualified returns the fully qualified field names in spec order.
func (s Spec) Qualified() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Qualified()
	}
	return out
}

// ForeignModels returns the models other than primary, in first-occurrence
// order, without duplicates.
func (s Spec) ForeignModels(primary string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, f := range s {
		if f.Model == primary {
			continue
		}
		if _, dup := seen[f.Model]; dup {
			continue
		}
		seen[f.Model] = struct{}{}
		out = append(out, f.Model)
	}
	return out
}

// Project extracts the spec's values from one row in order, applying
// decorators. A value is looked up under the qualified name first, then the
// bare name; missing values project as nil.
func (s Spec) Project(rec map[string]any) []any {
	out := make([]any, len(s))
	for i, f := range s {
		v, ok := rec[f.Qualified()]
		if !ok {
			v = rec[f.Name]
		}
		if f.Decorator != "" {
			if fn, err := Decorator(f.Decorator); err == nil {
				v = fn(v)
			}
		}
		out[i] = v
	}
	return out
}
