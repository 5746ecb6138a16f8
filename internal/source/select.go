package source

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/neilcrookes/export/internal/query"
)

// Dialect carries the SQL flavor differences between backends. Everything
// else about a paged SELECT is shared and built by BuildSelect.
type Dialect struct {
	// Placeholder returns the parameter marker for the 1-based index n,
	// e.g. "$3", "?", "@p3".
	Placeholder func(n int) string

	// QuoteIdent quotes one identifier segment, e.g. `"email"`, "`email`",
	// "[email]".
	QuoteIdent func(string) string

	// Pagination renders the paging clause for take rows after skip rows.
	Pagination func(take, skip int) string

	// NeedsOrder forces an ORDER BY stub when the options carry none (SQL
	// Server cannot OFFSET without one).
	NeedsOrder bool

	// OrderStub is that stub, e.g. "(SELECT NULL)".
	OrderStub string
}

// Dialects for the SQL-backed fetchers.
var (
	Postgres = Dialect{
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		QuoteIdent:  func(s string) string { return `"` + s + `"` },
		Pagination:  func(take, skip int) string { return fmt.Sprintf("LIMIT %d OFFSET %d", take, skip) },
	}
	MySQL = Dialect{
		Placeholder: func(int) string { return "?" },
		QuoteIdent:  func(s string) string { return "`" + s + "`" },
		Pagination:  func(take, skip int) string { return fmt.Sprintf("LIMIT %d OFFSET %d", take, skip) },
	}
	SQLite = Dialect{
		Placeholder: func(int) string { return "?" },
		QuoteIdent:  func(s string) string { return `"` + s + `"` },
		Pagination:  func(take, skip int) string { return fmt.Sprintf("LIMIT %d OFFSET %d", take, skip) },
	}
	MSSQL = Dialect{
		Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
		QuoteIdent:  func(s string) string { return "[" + s + "]" },
		Pagination:  func(take, skip int) string { return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", skip, take) },
		NeedsOrder:  true,
		OrderStub:   "(SELECT NULL)",
	}
)

// Window computes the rows to skip and take for one page fetch: the
// configured offset shifts the whole export window and the page cursor
// walks it in limit-sized steps. A non-positive limit is an error — the
// engine's termination guarantee depends on bounded pages.
func Window(o query.Options) (skip, take int, err error) {
	if o.Limit <= 0 {
		return 0, 0, fmt.Errorf("source: options.limit must be > 0")
	}
	page := o.Page
	if page < 1 {
		page = 1
	}
	return o.Offset + (page-1)*o.Limit, o.Limit, nil
}

// identRe restricts identifiers appearing in field, condition, order, and
// group terms. Values are always parameterized; this guards the parts that
// must be spliced into the statement.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// allowedOps is the condition operator set. Keys are written as
// "column <op>"; a bare "column" means equality (or IN for slice values).
var allowedOps = map[string]struct{}{
	"=": {}, "!=": {}, "<>": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
	"LIKE": {}, "NOT LIKE": {}, "IN": {}, "NOT IN": {},
}

// BuildSelect renders one page's SELECT for the given dialect.
//
// The base table is aliased to entity (when non-empty) so qualified fields
// like "EmailSignups.email" resolve against it; joins are expected to alias
// their tables to the model names their fields use. Condition keys compile
// in sorted order so the statement is deterministic for a given options
// value, which keeps pages consistent across fetches.
func BuildSelect(d Dialect, table, entity string, columns []string, o query.Options) (string, []any, error) {
	skip, take, err := Window(o)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")

	switch {
	case len(o.Fields) > 0:
		quoted, err := quoteAll(d, o.Fields)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(strings.Join(quoted, ", "))
	case len(columns) > 0:
		quoted, err := quoteAll(d, columns)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(strings.Join(quoted, ", "))
	default:
		b.WriteString("*")
	}

	b.WriteString(" FROM ")
	fqn, err := quoteFQN(d, table)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(fqn)
	if entity != "" {
		b.WriteString(" AS ")
		b.WriteString(d.QuoteIdent(entity))
	}

	for _, j := range o.Joins {
		clause, err := joinClause(d, j)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" ")
		b.WriteString(clause)
	}

	var args []any
	if len(o.Conditions) > 0 {
		where, whereArgs, err := whereClause(d, o.Conditions)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		args = whereArgs
	}

	if len(o.Group) > 0 {
		quoted, err := quoteAll(d, o.Group)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(quoted, ", "))
	}

	switch {
	case len(o.Order) > 0:
		terms, err := orderTerms(d, o.Order)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	case d.NeedsOrder:
		b.WriteString(" ORDER BY ")
		b.WriteString(d.OrderStub)
	}

	b.WriteString(" ")
	b.WriteString(d.Pagination(take, skip))

	return b.String(), args, nil
}

// whereClause compiles the conditions map. Keys sort so the rendered SQL is
// stable; values are parameterized. nil values compile to IS NULL
// (IS NOT NULL for negated operators); slice values expand under IN/NOT IN.
func whereClause(d Dialect, conds map[string]any) (string, []any, error) {
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	var args []any
	n := 0

	for _, key := range keys {
		col, op, err := splitCondKey(key)
		if err != nil {
			return "", nil, err
		}
		ident, err := quoteFQN(d, col)
		if err != nil {
			return "", nil, err
		}
		v := conds[key]

		switch {
		case v == nil:
			switch op {
			case "", "=":
				parts = append(parts, ident+" IS NULL")
			case "!=", "<>":
				parts = append(parts, ident+" IS NOT NULL")
			default:
				return "", nil, fmt.Errorf("source: operator %q does not accept null for %s", op, col)
			}
		case isSlice(v):
			vals := sliceValues(v)
			if len(vals) == 0 {
				// An empty IN list matches nothing.
				parts = append(parts, "1 = 0")
				continue
			}
			switch op {
			case "", "IN":
				op = "IN"
			case "NOT IN":
			default:
				return "", nil, fmt.Errorf("source: operator %q does not accept a list for %s", op, col)
			}
			ph := make([]string, len(vals))
			for i, val := range vals {
				n++
				ph[i] = d.Placeholder(n)
				args = append(args, val)
			}
			parts = append(parts, fmt.Sprintf("%s %s (%s)", ident, op, strings.Join(ph, ", ")))
		default:
			if op == "" {
				op = "="
			}
			if op == "IN" || op == "NOT IN" {
				return "", nil, fmt.Errorf("source: operator %q requires a list for %s", op, col)
			}
			n++
			parts = append(parts, fmt.Sprintf("%s %s %s", ident, op, d.Placeholder(n)))
			args = append(args, conds[key])
		}
	}
	return strings.Join(parts, " AND "), args, nil
}

// splitCondKey parses "column" or "column <op>" and validates the operator.
func splitCondKey(key string) (col, op string, err error) {
	key = strings.TrimSpace(key)
	i := strings.IndexByte(key, ' ')
	if i < 0 {
		return key, "", nil
	}
	col = key[:i]
	op = strings.ToUpper(strings.TrimSpace(key[i+1:]))
	if _, ok := allowedOps[op]; !ok {
		return "", "", fmt.Errorf("source: unsupported condition operator %q in %q", op, key)
	}
	return col, op, nil
}

// joinClause renders one configured join. The on condition is raw SQL from
// configuration (not request input) and is spliced verbatim.
func joinClause(d Dialect, j map[string]any) (string, error) {
	table, _ := j["table"].(string)
	if table == "" {
		return "", fmt.Errorf("source: join missing table: %v", j)
	}
	fqn, err := quoteFQN(d, table)
	if err != nil {
		return "", err
	}
	kind := "LEFT"
	if t, ok := j["type"].(string); ok && t != "" {
		switch k := strings.ToUpper(t); k {
		case "LEFT", "RIGHT", "INNER":
			kind = k
		default:
			return "", fmt.Errorf("source: unsupported join type %q", t)
		}
	}
	clause := kind + " JOIN " + fqn
	if alias, ok := j["alias"].(string); ok && alias != "" {
		if !identRe.MatchString(alias) {
			return "", fmt.Errorf("source: invalid join alias %q", alias)
		}
		clause += " AS " + d.QuoteIdent(alias)
	}
	if on, ok := j["conditions"].(string); ok && on != "" {
		clause += " ON " + on
	}
	return clause, nil
}

// orderTerms renders "Model.field DESC" style terms, validating direction
// and identifier.
func orderTerms(d Dialect, order []string) ([]string, error) {
	out := make([]string, 0, len(order))
	for _, term := range order {
		term = strings.TrimSpace(term)
		ident := term
		dir := ""
		if i := strings.LastIndexByte(term, ' '); i >= 0 {
			switch up := strings.ToUpper(strings.TrimSpace(term[i+1:])); up {
			case "ASC", "DESC":
				ident = strings.TrimSpace(term[:i])
				dir = " " + up
			}
		}
		quoted, err := quoteFQN(d, ident)
		if err != nil {
			return nil, err
		}
		out = append(out, quoted+dir)
	}
	return out, nil
}

// quoteFQN validates and quotes a possibly dotted identifier, segment by
// segment: "EmailSignups.email" → `"EmailSignups"."email"`.
func quoteFQN(d Dialect, name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("source: invalid identifier %q", name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, "."), nil
}

func quoteAll(d Dialect, names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		q, err := quoteFQN(d, name)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func isSlice(v any) bool {
	switch v.(type) {
	case []any, []string, []int:
		return true
	}
	return false
}

func sliceValues(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	}
	return nil
}
