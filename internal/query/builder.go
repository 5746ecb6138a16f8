package query

import (
	"fmt"

	"github.com/neilcrookes/export/internal/config"
)

// Build produces the finalized query options for one export run.
//
// pagination is the caller's ambient pagination state, passed in explicitly.
// It is consulted only when the config carries the inherit sentinel; in that
// case the shared keys are copied and the primary entity's sub-block (an
// object stored under the entity name) deep-merges on top of them.
//
// The chunk size then overwrites the options' limit — only the limit; the
// rest of the structure is preserved as-is. If the options name no fields,
// the configured field spec derives them: unqualified names take the primary
// entity, foreign models are added to contain exactly once, and the
// qualified names append in spec order.
//
// The returned options carry Page == 1; the engine owns the cursor from
// there.
func Build(cfg config.ExportConfig, pagination map[string]any, primary string) (Options, error) {
	var start map[string]any

	switch fo := cfg.FindOptions.(type) {
	case nil:
		// No options configured; everything comes from defaults and the
		// field spec.
	case map[string]any:
		start = fo
	case string:
		if fo != config.FindOptionsInherit {
			return Options{}, fmt.Errorf("query: find_options %q not recognized", fo)
		}
		merged := config.Options(pagination)
		if sub, ok := pagination[primary].(map[string]any); ok {
			merged = config.Merge(merged, config.Options(sub))
		}
		start = map[string]any(merged)
	default:
		return Options{}, fmt.Errorf("query: find_options must be %q or an object, got %T", config.FindOptionsInherit, fo)
	}

	o := FromMap(start)

	if cfg.Limit > 0 {
		o.Limit = cfg.Limit
	}

	if len(o.Fields) == 0 && len(cfg.Fields) > 0 {
		for _, f := range cfg.Fields {
			if f.Model != primary {
				o.AddContain(f.Model)
			}
			o.Fields = append(o.Fields, f.Qualified())
		}
	}

	o.Page = 1
	return o, nil
}
