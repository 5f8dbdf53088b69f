package model

import (
	"context"
	"strings"

	"github.com/hupe1980/ftsync/lexical"
)

// Row is a read-only snapshot of one table row.
type Row interface {
	// Table returns the name of the table the row belongs to.
	Table() string
	// Get returns the value of the named column.
	Get(column string) (any, bool)
}

// Changes describes the pending row mutations of one transaction.
type Changes interface {
	// TxID returns an opaque identifier that is unique per transaction.
	TxID() string
	// New returns rows inserted by the transaction.
	New() []Row
	// Modified returns rows updated by the transaction.
	Modified() []Row
	// Deleted returns rows removed by the transaction.
	Deleted() []Row
}

// CommitObserver receives transaction lifecycle notifications from a store.
//
// BeforeCommit runs before the store commits; returning an error aborts the commit.
// AfterCommit runs only once the commit is durable. AfterRollback runs after an abort.
type CommitObserver interface {
	BeforeCommit(ctx context.Context, changes Changes) error
	AfterCommit(ctx context.Context, txID string) error
	AfterRollback(ctx context.Context, txID string)
}

// Query is a composable, store-native row filter.
// Each method returns a new Query; the receiver is left unchanged.
type Query interface {
	// Where adds a store-native predicate, e.g. "created >= ?".
	Where(expr string, args ...any) Query
	// OrderBy appends an ordering expression, e.g. "created DESC".
	OrderBy(expr string) Query
	// Limit caps the number of returned rows. n <= 0 removes the cap.
	Limit(n int) Query
	// All materializes the matching rows.
	All(ctx context.Context) ([]Row, error)
	// Count returns the number of matching rows.
	Count(ctx context.Context) (int, error)
}

// RowStore fetches rows from the relational store.
type RowStore interface {
	// Rows returns a query over all rows of table.
	Rows(table string) Query
	// RowsByKey returns a query over the rows of table whose primary key is one of
	// keys. Each key holds one string value per primary key column, in order.
	RowsByKey(table string, pkColumns []string, keys [][]string) Query
}

// Column describes one table column.
type Column struct {
	Name string
	// Type is the declared SQL type, e.g. "TEXT" or "VARCHAR(64)".
	Type string
}

// IsText reports whether the declared type belongs to the text family.
func (c Column) IsText() bool {
	t := strings.ToUpper(c.Type)
	for _, s := range []string{"CHAR", "CLOB", "TEXT", "STRING"} {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}

// SearchableSpec declares which columns of a table are indexed.
//
// Exactly one of Names or Fields must be set.
type SearchableSpec struct {
	// Names lists columns to index with inferred defaults.
	// Columns with a non-text type are skipped.
	Names []string
	// Fields maps column names to explicit field configurations.
	Fields map[string]lexical.FieldConfig
}

// SearchableNames returns a spec listing columns by name.
func SearchableNames(names ...string) SearchableSpec {
	return SearchableSpec{Names: names}
}

// SearchableFields returns a spec with explicit field configurations.
func SearchableFields(fields map[string]lexical.FieldConfig) SearchableSpec {
	return SearchableSpec{Fields: fields}
}

// TableDescriptor identifies a relational table.
type TableDescriptor struct {
	Name       string
	PrimaryKey []string
	Columns    []Column
	Searchable SearchableSpec
}

// Column returns the named column.
func (t TableDescriptor) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
