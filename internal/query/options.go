// Package query models the canonical options of one paged find and builds
// them from an export's resolved configuration plus the caller's pagination
// state.
//
// The recognized option keys are fixed:
//
//	conditions fields joins limit offset order page group callbacks contain
//
// FromMap intersects any incoming map against that set and discards the
// rest, so downstream code never sees free-form keys.
package query

// Options is one run's canonical query options. The export engine owns the
// Page cursor: it starts at 1 and increments by exactly 1 per fetched page.
type Options struct {
	// Conditions maps "column" or "column <op>" to a match value; nil values
	// mean IS NULL. See the source backends for the operator set.
	Conditions map[string]any

	// Fields is the projection in "Model.field" form; empty selects all
	// configured columns.
	Fields []string

	// Joins carries backend-interpreted join descriptions (table, alias,
	// type, conditions). Opaque to the builder.
	Joins []map[string]any

	// Limit is the page size. For an export run it is the chunk size.
	Limit int

	// Offset shifts the whole export window; page paging applies on top.
	Offset int

	// Order lists "Model.field ASC|DESC" terms.
	Order []string

	// Page is the 1-based page cursor.
	Page int

	// Group lists GROUP BY terms.
	Group []string

	// Callbacks preserves the caller's callbacks-enabled flag; the engine
	// itself never consults it.
	Callbacks bool

	// Contain lists foreign models to join in, deduplicated.
	Contain []string
}

// FromMap normalizes a free-form options map into Options: recognized keys
// are coerced to their canonical types, unrecognized keys are discarded, and
// absent keys take their defaults (callbacks true, everything else empty).
// Map and slice values are copied shallowly so the result does not alias the
// caller's map.
func FromMap(raw map[string]any) Options {
	o := Options{Callbacks: true}
	for key, v := range raw {
		switch key {
		case "conditions":
			if m, ok := v.(map[string]any); ok {
				o.Conditions = make(map[string]any, len(m))
				for ck, cv := range m {
					o.Conditions[ck] = cv
				}
			}
		case "fields":
			o.Fields = toStrings(v)
		case "joins":
			o.Joins = toMaps(v)
		case "limit":
			o.Limit = toInt(v)
		case "offset":
			o.Offset = toInt(v)
		case "order":
			o.Order = toStrings(v)
		case "page":
			o.Page = toInt(v)
		case "group":
			o.Group = toStrings(v)
		case "callbacks":
			if b, ok := v.(bool); ok {
				o.Callbacks = b
			}
		case "contain":
			for _, c := range toStrings(v) {
				o.AddContain(c)
			}
		}
	}
	return o
}

// AddContain appends model to Contain unless it is already present.
func (o *Options) AddContain(model string) {
	for _, c := range o.Contain {
		if c == model {
			return
		}
	}
	o.Contain = append(o.Contain, model)
}

// toStrings accepts a string, []string, or []any of strings. A bare string
// becomes a one-element slice, which covers the common single-term order
// setting.
func toStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// toInt accepts the numeric types encoding/json and Go literals produce.
func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func toMaps(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
