package ftsync

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/ftsync/lexical"
	"github.com/hupe1980/ftsync/model"
)

type changeKind uint8

const (
	changeNew changeKind = iota
	changeModified
	changeDeleted
)

func (k changeKind) String() string {
	switch k {
	case changeNew:
		return "new"
	case changeModified:
		return "modified"
	default:
		return "deleted"
	}
}

// change is the collapsed state of one key within a transaction.
type change struct {
	kind changeKind
	doc  lexical.Document // nil for deletes
}

// batch holds the changes of one transaction to one table, in first-seen
// key order.
type batch struct {
	keys    []string
	changes map[string]change
}

func newBatch() *batch {
	return &batch{changes: make(map[string]change)}
}

// add records a change of key. A key seen before keeps the change with the
// higher precedence (deleted > modified > new); for equal kinds the later
// document wins.
func (b *batch) add(key string, c change) {
	prev, ok := b.changes[key]
	if !ok {
		b.keys = append(b.keys, key)
		b.changes[key] = c
		return
	}
	if c.kind >= prev.kind {
		b.changes[key] = c
	}
}

// counts returns the number of upserts and deletes in b.
func (b *batch) counts() (upserts, deletes int) {
	for _, c := range b.changes {
		if c.kind == changeDeleted {
			deletes++
		} else {
			upserts++
		}
	}
	return upserts, deletes
}

// Subscription binds a table to its index and holds the batches of
// committed transactions that are not yet in the index.
type Subscription struct {
	table   model.TableDescriptor
	index   *lexical.Index
	indexes *IndexStore
	fields  []string
	logger  *Logger
	metrics MetricsCollector

	flushMu sync.Mutex // serializes flushes and rebuilds

	mu      sync.Mutex
	pending []*batch
}

func newSubscription(table model.TableDescriptor, idx *lexical.Index, indexes *IndexStore, searchable []string, opts options) *Subscription {
	return &Subscription{
		table:   table,
		index:   idx,
		indexes: indexes,
		fields:  defaultFields(idx.Schema(), searchable),
		logger:  opts.logger,
		metrics: opts.metrics,
	}
}

// Table returns the table name.
func (s *Subscription) Table() string { return s.table.Name }

// PrimaryKey returns the primary key columns in order.
func (s *Subscription) PrimaryKey() []string { return s.table.PrimaryKey }

// Schema returns the effective index schema.
func (s *Subscription) Schema() lexical.Schema { return s.index.Schema() }

// Fields returns the default search fields.
func (s *Subscription) Fields() []string { return append([]string(nil), s.fields...) }

// Index returns the index handle.
func (s *Subscription) Index() *lexical.Index { return s.index }

// Pending returns the number of committed batches not yet in the index.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// classify computes the key and, unless the row is deleted, the document of
// row from its current snapshot.
func (s *Subscription) classify(row model.Row, kind changeKind) (string, change, error) {
	key, err := rowKey(row, s.table.PrimaryKey)
	if err != nil {
		return "", change{}, err
	}
	c := change{kind: kind}
	if kind != changeDeleted {
		c.doc = rowDocument(row, s.index.Schema())
	}
	return key, c, nil
}

func (s *Subscription) enqueue(b *batch) {
	s.mu.Lock()
	s.pending = append(s.pending, b)
	n := len(s.pending)
	s.mu.Unlock()
	s.metrics.RecordPending(s.Table(), n)
}

// flush applies all pending batches in one writer session. On failure the
// batches stay pending and a *WriterSessionError is returned.
func (s *Subscription) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batches := append([]*batch(nil), s.pending...)
	s.mu.Unlock()
	if len(batches) == 0 {
		return nil
	}

	start := time.Now()
	upserts, deletes, err := s.apply(ctx, batches)
	s.metrics.RecordFlush(s.Table(), upserts+deletes, time.Since(start), err)
	s.logger.LogFlush(ctx, s.Table(), len(batches), upserts, deletes, err)
	if err != nil {
		return &WriterSessionError{Table: s.Table(), Batches: s.Pending(), cause: err}
	}

	s.mu.Lock()
	s.pending = s.pending[len(batches):]
	n := len(s.pending)
	s.mu.Unlock()
	s.metrics.RecordPending(s.Table(), n)
	return nil
}

// apply writes batches in order. Each batch deletes first, then upserts.
func (s *Subscription) apply(ctx context.Context, batches []*batch) (upserts, deletes int, err error) {
	w, err := s.index.Writer(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer w.Abort()

	for _, b := range batches {
		for _, key := range b.keys {
			if c := b.changes[key]; c.kind == changeDeleted {
				if err := w.Delete(key); err != nil {
					return 0, 0, err
				}
				deletes++
			}
		}
		for _, key := range b.keys {
			if c := b.changes[key]; c.kind != changeDeleted {
				if err := w.Upsert(c.doc); err != nil {
					return 0, 0, err
				}
				upserts++
			}
		}
	}
	if err := w.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return upserts, deletes, nil
}

// rebuild replaces the index content with the current rows of the table.
// Pending batches stay queued; they are reapplied by the next flush.
func (s *Subscription) rebuild(ctx context.Context, store model.RowStore) (int, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	start := time.Now()
	n, err := s.rebuildLocked(ctx, store)
	s.metrics.RecordBackfill(s.Table(), n, time.Since(start), err)
	s.logger.LogBackfill(ctx, s.Table(), n, time.Since(start), err)
	return n, err
}

func (s *Subscription) rebuildLocked(ctx context.Context, store model.RowStore) (int, error) {
	rows, err := store.Rows(s.Table()).All(ctx)
	if err != nil {
		return 0, err
	}
	schema := s.index.Schema()
	docs := make([]lexical.Document, 0, len(rows))
	for _, row := range rows {
		if _, err := rowKey(row, s.table.PrimaryKey); err != nil {
			return 0, err
		}
		docs = append(docs, rowDocument(row, schema))
	}
	if err := s.indexes.Rebuild(ctx, s.index, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
