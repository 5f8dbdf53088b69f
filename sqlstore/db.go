// Package sqlstore adapts a SQLite database (modernc.org/sqlite) to the
// store contracts of package model.
//
// Writes go through Tx. Commit reports the rows a transaction inserted,
// updated and deleted to every observer registered with DB.Observe:
//
//	db, _ := sqlstore.Open("file:app.db")
//	db.Observe(syncer.Tracker())
//
//	tx, _ := db.Begin(ctx)
//	_ = tx.Insert(ctx, "posts", map[string]any{"id": 1, "title": "love madrid"})
//	err := tx.Commit(ctx)
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/hupe1980/ftsync/model"
)

var (
	// ErrTxDone is returned by operations on a committed or rolled back Tx.
	ErrTxDone = errors.New("sqlstore: transaction already finished")

	// ErrNoTable is returned by Describe for a table that does not exist.
	ErrNoTable = errors.New("sqlstore: no such table")

	// ErrNoRow is returned by Update and Delete when no row has the key.
	ErrNoRow = errors.New("sqlstore: no such row")
)

// DB is a SQLite database with commit observers.
type DB struct {
	db *sql.DB

	// commitMu orders commits together with their observer callbacks.
	commitMu sync.Mutex

	mu        sync.RWMutex
	observers []model.CommitObserver
}

var _ model.RowStore = (*DB)(nil)

// Open opens the SQLite database at dsn, e.g. "file:app.db" or ":memory:".
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:"
	// databases shared across queries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", pragma, err)
		}
	}
	return &DB{db: db}, nil
}

// SQL returns the underlying database handle. Writes through it bypass the
// observers.
func (d *DB) SQL() *sql.DB { return d.db }

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Observe registers obs for every later commit and rollback.
func (d *DB) Observe(obs model.CommitObserver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, obs)
}

func (d *DB) snapshotObservers() []model.CommitObserver {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.CommitObserver(nil), d.observers...)
}

// Exec runs a statement outside of any observed transaction, e.g. DDL.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

// Describe returns the descriptor of table from its declared columns and
// primary key.
func (d *DB) Describe(ctx context.Context, table string, searchable model.SearchableSpec) (model.TableDescriptor, error) {
	cols, pk, err := describe(ctx, d.db, table)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	return model.TableDescriptor{Name: table, PrimaryKey: pk, Columns: cols, Searchable: searchable}, nil
}

// Tables returns the names of all user tables.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Rows returns a query over all rows of table.
func (d *DB) Rows(table string) model.Query {
	return Query{q: d.db, table: table}
}

// RowsByKey returns a query over the rows of table whose primary key is one
// of keys.
func (d *DB) RowsByKey(table string, pkColumns []string, keys [][]string) model.Query {
	expr, args := keyFilter(pkColumns, keys)
	return Query{q: d.db, table: table}.Where(expr, args...)
}

// Begin starts a transaction.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin: %w", err)
	}
	return newTx(d, tx), nil
}

// queryer is implemented by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func describe(ctx context.Context, q queryer, table string) ([]model.Column, []string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, type, pk FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: describe %q: %w", table, err)
	}
	defer rows.Close()

	var (
		cols []model.Column
		pks  = map[int]string{}
	)
	for rows.Next() {
		var (
			c  model.Column
			pk int
		)
		if err := rows.Scan(&c.Name, &c.Type, &pk); err != nil {
			return nil, nil, err
		}
		cols = append(cols, c)
		if pk > 0 {
			pks[pk] = c.Name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("%w: %q", ErrNoTable, table)
	}
	pk := make([]string, 0, len(pks))
	for i := 1; i <= len(pks); i++ {
		pk = append(pk, pks[i])
	}
	return cols, pk, nil
}

// keyFilter builds a predicate matching any of keys. The keys are bound as
// one JSON array and expanded with json_each, so the statement carries a
// single parameter however many keys there are. Composite keys compare a
// row value against the elements of each inner array.
func keyFilter(pkColumns []string, keys [][]string) (string, []any) {
	if len(keys) == 0 || len(pkColumns) == 0 {
		return "1=0", nil
	}

	if len(pkColumns) == 1 {
		vals := make([]string, 0, len(keys))
		for _, k := range keys {
			if len(k) == 1 {
				vals = append(vals, k[0])
			}
		}
		if len(vals) == 0 {
			return "1=0", nil
		}
		return quoteIdent(pkColumns[0]) + " IN (SELECT value FROM json_each(?))", []any{mustJSON(vals)}
	}

	tuples := make([][]string, 0, len(keys))
	for _, k := range keys {
		if len(k) == len(pkColumns) {
			tuples = append(tuples, k)
		}
	}
	if len(tuples) == 0 {
		return "1=0", nil
	}
	cols := make([]string, len(pkColumns))
	elems := make([]string, len(pkColumns))
	for i, col := range pkColumns {
		cols[i] = quoteIdent(col)
		elems[i] = fmt.Sprintf("json_extract(value, '$[%d]')", i)
	}
	return "(" + strings.Join(cols, ", ") + ") IN (SELECT " + strings.Join(elems, ", ") + " FROM json_each(?))",
		[]any{mustJSON(tuples)}
}

// mustJSON encodes a key slice.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("sqlstore: encode keys: %v", err))
	}
	return string(b)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
