package sqlstore

import "github.com/hupe1980/ftsync/model"

// Row is a snapshot of one table row.
type Row struct {
	table  string
	values map[string]any
}

var _ model.Row = Row{}

// NewRow returns a row of table with values.
func NewRow(table string, values map[string]any) Row {
	v := make(map[string]any, len(values))
	for k, x := range values {
		v[k] = x
	}
	return Row{table: table, values: v}
}

// Table returns the table name.
func (r Row) Table() string { return r.table }

// Get returns the value of column.
func (r Row) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Values returns a copy of all column values.
func (r Row) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
