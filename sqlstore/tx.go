package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/ftsync/model"
)

type changeKind uint8

const (
	kindNew changeKind = iota
	kindModified
	kindDeleted
)

type rowChange struct {
	kind changeKind
	row  Row
}

// Tx is an observed transaction. Every row written through it is tracked
// by primary key; Commit reports the net change per row to the observers.
//
// Observers run while the transaction holds the database connection and
// must not query the DB from BeforeCommit. AfterCommit must not commit
// another Tx.
type Tx struct {
	db *DB
	tx *sql.Tx
	id string

	mu      sync.Mutex
	done    bool
	order   []string
	changes map[string]*rowChange
	pks     map[string][]string
}

func newTx(db *DB, tx *sql.Tx) *Tx {
	return &Tx{
		db:      db,
		tx:      tx,
		id:      uuid.Must(uuid.NewV7()).String(),
		changes: make(map[string]*rowChange),
		pks:     make(map[string][]string),
	}
}

// ID returns the transaction identifier reported to observers.
func (t *Tx) ID() string { return t.id }

// Rows returns a query over table that sees the writes of t.
func (t *Tx) Rows(table string) model.Query {
	return Query{q: t.tx, table: table}
}

// Insert inserts a row and tracks it as new.
func (t *Tx) Insert(ctx context.Context, table string, values map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	if len(values) == 0 {
		return fmt.Errorf("sqlstore: insert into %q: no values", table)
	}

	cols := sortedColumns(values)
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		marks[i] = "?"
		args[i] = values[c]
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), joinIdents(cols), strings.Join(marks, ", "))
	res, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: insert into %q: %w", table, err)
	}

	pk, err := t.primaryKey(ctx, table)
	if err != nil {
		return err
	}
	var row Row
	if key, ok := keyOf(values, pk); ok && len(pk) > 0 {
		row, err = t.get(ctx, table, key)
	} else {
		var rowid int64
		if rowid, err = res.LastInsertId(); err == nil {
			row, err = t.get(ctx, table, map[string]any{"rowid": rowid})
		}
	}
	if err != nil {
		return fmt.Errorf("sqlstore: insert into %q: read back: %w", table, err)
	}
	return t.record(table, pk, row, kindNew)
}

// Update sets values on the row with key and tracks it as modified. A
// changed primary key is tracked as a delete of the old key and an insert
// of the new one.
func (t *Tx) Update(ctx context.Context, table string, key, values map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	if len(values) == 0 {
		return nil
	}
	pk, err := t.primaryKey(ctx, table)
	if err != nil {
		return err
	}
	old, err := t.get(ctx, table, key)
	if err != nil {
		return err
	}

	cols := sortedColumns(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(key))
	for i, c := range cols {
		sets[i] = quoteIdent(c) + " = ?"
		args = append(args, values[c])
	}
	where, whereArgs := equals(key)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s", quoteIdent(table), strings.Join(sets, ", "), where)
	if _, err := t.tx.ExecContext(ctx, stmt, append(args, whereArgs...)...); err != nil {
		return fmt.Errorf("sqlstore: update %q: %w", table, err)
	}

	newKey := make(map[string]any, len(pk))
	moved := false
	idCols := pk
	if len(pk) == 0 {
		idCols = sortedColumns(key)
	}
	for _, c := range idCols {
		v, _ := old.Get(c)
		if nv, ok := values[c]; ok {
			moved = moved || fmt.Sprint(nv) != fmt.Sprint(v)
			v = nv
		}
		newKey[c] = v
	}
	row, err := t.get(ctx, table, newKey)
	if err != nil {
		return fmt.Errorf("sqlstore: update %q: read back: %w", table, err)
	}
	if moved {
		if err := t.record(table, pk, old, kindDeleted); err != nil {
			return err
		}
		return t.record(table, pk, row, kindNew)
	}
	return t.record(table, pk, row, kindModified)
}

// Delete removes the row with key and tracks it as deleted.
func (t *Tx) Delete(ctx context.Context, table string, key map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	pk, err := t.primaryKey(ctx, table)
	if err != nil {
		return err
	}
	old, err := t.get(ctx, table, key)
	if err != nil {
		return err
	}
	where, args := equals(key)
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(table), where)
	if _, err := t.tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("sqlstore: delete from %q: %w", table, err)
	}
	return t.record(table, pk, old, kindDeleted)
}

// Commit notifies the observers and commits. An error from BeforeCommit
// rolls the transaction back. Errors from AfterCommit are returned as an
// *ObserverError; the transaction is committed in that case.
//
// Commits are serialized from BeforeCommit through the last AfterCommit, so
// observers see transactions in the order the database applied them.
func (t *Tx) Commit(ctx context.Context) error {
	changes, err := t.finish()
	if err != nil {
		return err
	}

	t.db.commitMu.Lock()
	defer t.db.commitMu.Unlock()

	observers := t.db.snapshotObservers()

	for _, obs := range observers {
		if err := obs.BeforeCommit(ctx, changes); err != nil {
			rbErr := t.tx.Rollback()
			notifyRollback(ctx, observers, t.id)
			return errors.Join(fmt.Errorf("sqlstore: before commit: %w", err), rbErr)
		}
	}
	if err := t.tx.Commit(); err != nil {
		notifyRollback(ctx, observers, t.id)
		return fmt.Errorf("sqlstore: commit: %w", err)
	}

	var errs []error
	for _, obs := range observers {
		if err := obs.AfterCommit(ctx, t.id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &ObserverError{TxID: t.id, cause: errors.Join(errs...)}
	}
	return nil
}

// Rollback aborts the transaction and notifies the observers.
func (t *Tx) Rollback(ctx context.Context) error {
	if _, err := t.finish(); err != nil {
		return err
	}
	err := t.tx.Rollback()
	notifyRollback(ctx, t.db.snapshotObservers(), t.id)
	return err
}

func notifyRollback(ctx context.Context, observers []model.CommitObserver, txID string) {
	for _, obs := range observers {
		obs.AfterRollback(ctx, txID)
	}
}

func (t *Tx) finish() (changeSet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return changeSet{}, ErrTxDone
	}
	t.done = true

	cs := changeSet{id: t.id}
	for _, k := range t.order {
		c := t.changes[k]
		switch c.kind {
		case kindNew:
			cs.inserted = append(cs.inserted, c.row)
		case kindModified:
			cs.modified = append(cs.modified, c.row)
		case kindDeleted:
			cs.deleted = append(cs.deleted, c.row)
		}
	}
	return cs, nil
}

// record merges a change of row into the tracked state of its key. An
// insert after a delete is a modification, a modification of a row
// inserted by t stays an insert, and a delete always wins.
func (t *Tx) record(table string, pk []string, row Row, kind changeKind) error {
	idCols := pk
	if len(pk) == 0 {
		idCols = sortedColumns(row.values)
	}
	values := make([]string, len(idCols))
	for i, c := range idCols {
		v, ok := row.Get(c)
		if !ok {
			return fmt.Errorf("sqlstore: %q row has no primary key column %q", table, c)
		}
		values[i] = fmt.Sprint(v)
	}
	k := table + "\x00" + strings.Join(values, "\x1f")

	prev, ok := t.changes[k]
	if !ok {
		t.order = append(t.order, k)
		t.changes[k] = &rowChange{kind: kind, row: row}
		return nil
	}
	switch {
	case kind == kindNew && prev.kind == kindDeleted:
		kind = kindModified
	case kind == kindModified && prev.kind == kindNew:
		kind = kindNew
	}
	prev.kind = kind
	prev.row = row
	return nil
}

func (t *Tx) primaryKey(ctx context.Context, table string) ([]string, error) {
	if pk, ok := t.pks[table]; ok {
		return pk, nil
	}
	_, pk, err := describe(ctx, t.tx, table)
	if err != nil {
		return nil, err
	}
	t.pks[table] = pk
	return pk, nil
}

func (t *Tx) get(ctx context.Context, table string, key map[string]any) (Row, error) {
	if len(key) == 0 {
		return Row{}, fmt.Errorf("sqlstore: %q: empty key", table)
	}
	where, args := equals(key)
	rows, err := Query{q: t.tx, table: table}.Where(where, args...).Limit(1).All(ctx)
	if err != nil {
		return Row{}, err
	}
	if len(rows) == 0 {
		return Row{}, fmt.Errorf("%w: %q %v", ErrNoRow, table, key)
	}
	return rows[0].(Row), nil
}

// ObserverError reports that a committed transaction could not be applied
// by one or more observers.
type ObserverError struct {
	TxID  string
	cause error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("sqlstore: transaction %s committed, observer failed: %v", e.TxID, e.cause)
}

func (e *ObserverError) Unwrap() error { return e.cause }

// changeSet implements model.Changes.
type changeSet struct {
	id       string
	inserted []model.Row
	modified []model.Row
	deleted  []model.Row
}

func (c changeSet) TxID() string          { return c.id }
func (c changeSet) New() []model.Row      { return c.inserted }
func (c changeSet) Modified() []model.Row { return c.modified }
func (c changeSet) Deleted() []model.Row  { return c.deleted }

func keyOf(values map[string]any, pk []string) (map[string]any, bool) {
	key := make(map[string]any, len(pk))
	for _, c := range pk {
		v, ok := values[c]
		if !ok || v == nil {
			return nil, false
		}
		key[c] = v
	}
	return key, true
}

func equals(key map[string]any) (string, []any) {
	cols := sortedColumns(key)
	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		parts[i] = quoteIdent(c) + " = ?"
		args[i] = key[c]
	}
	return strings.Join(parts, " AND "), args
}

func sortedColumns(values map[string]any) []string {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
