package fields

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DecoratorFunc transforms a projected value before rendering.
type DecoratorFunc func(any) any

var (
	decMu  sync.RWMutex
	decFns = map[string]DecoratorFunc{
		"yesno": yesno,
		"date":  date,
		"upper": upper,
		"lower": lower,
	}
)

// RegisterDecorator registers (or replaces) a named decorator. It is
// typically called from init() functions; re-registering a name overrides
// the previous function.
func RegisterDecorator(name string, fn DecoratorFunc) {
	decMu.Lock()
	defer decMu.Unlock()
	decFns[name] = fn
}

// Decorator looks up a registered decorator by name.
func Decorator(name string) (DecoratorFunc, error) {
	decMu.RLock()
	fn, ok := decFns[name]
	decMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown decorator %q", name)
	}
	return fn, nil
}

// yesno renders truthy values as "yes" and everything else as "no".
func yesno(v any) any {
	switch t := v.(type) {
	case nil:
		return "no"
	case bool:
		if t {
			return "yes"
		}
		return "no"
	case string:
		s := strings.TrimSpace(t)
		if b, err := strconv.ParseBool(s); err == nil {
			if b {
				return "yes"
			}
			return "no"
		}
		if s == "" {
			return "no"
		}
		return "yes"
	case int:
		if t != 0 {
			return "yes"
		}
		return "no"
	case int64:
		if t != 0 {
			return "yes"
		}
		return "no"
	case float64:
		if t != 0 {
			return "yes"
		}
		return "no"
	default:
		return "yes"
	}
}

// dateLayouts are tried in order when decorating string values.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// date renders time values (and parseable strings) as YYYY-MM-DD. Values it
// cannot interpret pass through unchanged.
func date(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02")
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.Format("2006-01-02")
			}
		}
	}
	return v
}

func upper(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToUpper(s)
	}
	return v
}

func lower(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}
