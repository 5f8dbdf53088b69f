package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/ftsync/model"
)

type predicate struct {
	expr string
	args []any
}

// Query is an immutable SELECT over one table. It implements model.Query.
type Query struct {
	q     queryer
	table string
	where []predicate
	order []string
	limit int
}

var _ model.Query = Query{}

// Where adds a SQL predicate with positional arguments. Predicates are
// joined with AND.
func (q Query) Where(expr string, args ...any) model.Query {
	where := make([]predicate, len(q.where), len(q.where)+1)
	copy(where, q.where)
	q.where = append(where, predicate{expr: expr, args: args})
	return q
}

// OrderBy appends an ORDER BY term, e.g. "created DESC".
func (q Query) OrderBy(expr string) model.Query {
	order := make([]string, len(q.order), len(q.order)+1)
	copy(order, q.order)
	q.order = append(order, expr)
	return q
}

// Limit caps the number of rows. n <= 0 removes the cap.
func (q Query) Limit(n int) model.Query {
	q.limit = n
	return q
}

// SQL returns the statement and arguments All would run.
func (q Query) SQL() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(q.table))
	args := q.writeWhere(&b)
	if len(q.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.order, ", "))
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.limit))
	}
	return b.String(), args
}

func (q Query) writeWhere(b *strings.Builder) []any {
	var args []any
	for i, p := range q.where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString("(")
		b.WriteString(p.expr)
		b.WriteString(")")
		args = append(args, p.args...)
	}
	return args
}

// All runs the query and returns the matching rows.
func (q Query) All(ctx context.Context) ([]model.Row, error) {
	stmt, args := q.SQL()
	rows, err := q.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query %q: %w", q.table, err)
	}
	defer rows.Close()
	return scanRows(q.table, rows)
}

// Count returns the number of rows All would return.
func (q Query) Count(ctx context.Context) (int, error) {
	inner := q
	inner.order = nil
	stmt, args := inner.SQL()
	rows, err := q.q.QueryContext(ctx, "SELECT COUNT(*) FROM ("+stmt+")", args...)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: count %q: %w", q.table, err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func scanRows(table string, rows *sql.Rows) ([]model.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []model.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := Row{table: table, values: make(map[string]any, len(cols))}
		for i, c := range cols {
			r.values[c] = values[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
