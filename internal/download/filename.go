// Package download builds the client-facing download surface of an export:
// the attachment filename and the HTTP response headers.
package download

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// maxConditionsLen caps the %conditions% expansion. Longer expansions are
// truncated and suffixed with a short hash so distinct condition sets still
// produce distinct filenames.
const maxConditionsLen = 48

// dateTimeLayout is the %dateTime% expansion layout.
const dateTimeLayout = "2006-01-02-15-04-05"

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	unsafeRun     = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	hyphenRun     = regexp.MustCompile(`-{2,}`)
)

// Filename expands a filename template for one export. Supported
// placeholders:
//
//	%controllerName% — the entity name, hyphenated: EmailSignups → email-signups
//	%conditions%     — the query conditions, sorted and flattened
//	%dateTime%       — now, as 2006-01-02-15-04-05
//
// After expansion the name is sanitized: runs of anything other than
// letters, digits, and hyphens collapse to a single hyphen, the result is
// lowercased and trimmed, and the extension is appended.
func Filename(tpl, entity string, conds map[string]any, ext string, now time.Time) string {
	name := tpl
	name = strings.ReplaceAll(name, "%controllerName%", hyphenate(entity))
	name = strings.ReplaceAll(name, "%conditions%", conditionsSlug(conds))
	name = strings.ReplaceAll(name, "%dateTime%", now.Format(dateTimeLayout))

	name = unsafeRun.ReplaceAllString(name, "-")
	name = hyphenRun.ReplaceAllString(name, "-")
	name = strings.Trim(strings.ToLower(name), "-")
	if name == "" {
		name = "export"
	}
	return name + "." + ext
}

// hyphenate splits camel case on lower-to-upper boundaries:
// EmailSignups → email-signups.
func hyphenate(s string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(s, "$1-$2"))
}

// conditionsSlug flattens conditions to "k=v" pairs in sorted key order.
// Expansions longer than maxConditionsLen truncate and carry an xxh3 hash
// of the full expansion so the cap cannot collide two condition sets.
func conditionsSlug(conds map[string]any) string {
	if len(conds) == 0 {
		return ""
	}
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, conds[k]))
	}
	slug := strings.Join(pairs, " ")
	if len(slug) <= maxConditionsLen {
		return slug
	}
	digest := fmt.Sprintf("%08x", uint32(xxh3.HashString(slug)))
	return slug[:maxConditionsLen] + "-" + digest
}
