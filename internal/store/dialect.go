package store

import (
	"math"
	"strconv"
	"strings"
)

// dialect holds the SQL differences between the backends. Everything else
// is shared text.
type dialect struct {
	name string
	// numbered placeholders ($1) instead of ?
	numbered bool
	// geomOut wraps a geometry column for reading as EWKB.
	geomOut func(col string) string
}

var postgresDialect = &dialect{
	name:     DriverPostgres,
	numbered: true,
	geomOut:  func(col string) string { return "ST_AsEWKB(" + col + ")" },
}

var sqliteDialect = &dialect{
	name:    DriverSQLite,
	geomOut: func(col string) string { return col },
}

// ph returns the placeholder for the n-th (1-based) argument.
func (d *dialect) ph(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// query builds a statement and its argument list in step.
type query struct {
	d    *dialect
	sb   strings.Builder
	args []any
}

func newQuery(d *dialect, base string) *query {
	q := &query{d: d}
	q.sb.WriteString(base)
	return q
}

// arg appends v and returns its placeholder.
func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return q.d.ph(len(q.args))
}

func (q *query) add(s string) *query {
	q.sb.WriteString(s)
	return q
}

// and appends " AND <cond>"; cond is built with q.arg.
func (q *query) and(cond string) *query {
	q.sb.WriteString(" AND ")
	q.sb.WriteString(cond)
	return q
}

// page appends LIMIT/OFFSET. A zero limit with an offset means no limit.
func (q *query) page(limit, offset int) *query {
	if limit <= 0 && offset <= 0 {
		return q
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}
	q.sb.WriteString(" LIMIT " + q.arg(limit))
	if offset > 0 {
		q.sb.WriteString(" OFFSET " + q.arg(offset))
	}
	return q
}

func (q *query) String() string { return q.sb.String() }

// orderBy resolves an API ordering key against an allowlist. A leading "-"
// sorts descending. Unknown keys fall back to def.
func orderBy(key string, allowed map[string]string, def string) string {
	desc := strings.HasPrefix(key, "-")
	col, ok := allowed[strings.TrimPrefix(key, "-")]
	if !ok {
		return def
	}
	if desc {
		return col + " DESC NULLS LAST"
	}
	return col + " ASC NULLS LAST"
}

// likePattern lowercases s and wraps it for a substring LIKE match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}
