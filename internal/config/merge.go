package config

// Merge deep-merges src over dst and returns a new map. Keys present in
// both merge recursively when both values are objects; every other
// collision (including slices) is won by src. Neither argument is mutated,
// though the result may share unmerged nested values with its inputs.
//
// The settings cascade applies it twice, in order:
//
//	Merge(Merge(Defaults(), entity.Export["all"]), entity.Export[format])
func Merge(dst, src Options) Options {
	out := make(Options, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, sv := range src {
		if dm, ok := asMap(out[k]); ok {
			if sm, ok := asMap(sv); ok {
				out[k] = map[string]any(Merge(dm, sm))
				continue
			}
		}
		out[k] = sv
	}
	return out
}

func asMap(v any) (Options, bool) {
	switch m := v.(type) {
	case map[string]any:
		return Options(m), true
	case Options:
		return m, true
	}
	return nil, false
}
