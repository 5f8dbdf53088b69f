package ftsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ftsync/internal/resource"
	"github.com/hupe1980/ftsync/model"
)

// txState collects the batches of one transaction, per table.
type txState struct {
	started time.Time
	tables  []string
	batches map[string]*batch
}

// Tracker keeps indexes in sync with committed store transactions. It
// implements model.CommitObserver; hand it to the store, e.g.
// sqlstore.DB.Observe(syncer.Tracker()).
type Tracker struct {
	registry *Registry
	resource *resource.Controller
	logger   *Logger
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	txs    map[string]*txState
	closed bool
}

var _ model.CommitObserver = (*Tracker)(nil)

func newTracker(registry *Registry, rc *resource.Controller, opts options) *Tracker {
	return &Tracker{
		registry: registry,
		resource: rc,
		logger:   opts.logger,
		ttl:      opts.pendingTTL,
		now:      time.Now,
		txs:      make(map[string]*txState),
	}
}

// BeforeCommit classifies the rows of changes into the batch of the
// transaction. Documents are built from the row snapshots now. Rows of
// unregistered tables are ignored. The index is not touched.
func (t *Tracker) BeforeCommit(ctx context.Context, changes model.Changes) error {
	type entry struct {
		table string
		key   string
		c     change
	}
	var entries []entry
	collect := func(rows []model.Row, kind changeKind) error {
		for _, row := range rows {
			sub, ok := t.registry.Lookup(row.Table())
			if !ok {
				continue
			}
			key, c, err := sub.classify(row, kind)
			if err != nil {
				return err
			}
			entries = append(entries, entry{table: sub.Table(), key: key, c: c})
		}
		return nil
	}
	if err := collect(changes.New(), changeNew); err != nil {
		return err
	}
	if err := collect(changes.Modified(), changeModified); err != nil {
		return err
	}
	if err := collect(changes.Deleted(), changeDeleted); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked(ctx)
	if t.closed || len(entries) == 0 {
		return nil
	}

	tx, ok := t.txs[changes.TxID()]
	if !ok {
		tx = &txState{started: t.now(), batches: make(map[string]*batch)}
		t.txs[changes.TxID()] = tx
	}
	for _, e := range entries {
		b, ok := tx.batches[e.table]
		if !ok {
			b = newBatch()
			tx.batches[e.table] = b
			tx.tables = append(tx.tables, e.table)
		}
		b.add(e.key, e.c)
	}
	return nil
}

// AfterCommit hands the batches of txID to their subscriptions and flushes
// every touched subscription, in parallel across tables. Failed flushes keep
// their batches and are reported as joined *WriterSessionError values.
func (t *Tracker) AfterCommit(ctx context.Context, txID string) error {
	t.mu.Lock()
	tx, ok := t.txs[txID]
	delete(t.txs, txID)
	t.sweepLocked(ctx)
	closed := t.closed
	t.mu.Unlock()
	if !ok || closed {
		return nil
	}

	subs := make([]*Subscription, 0, len(tx.tables))
	for _, table := range tx.tables {
		sub, ok := t.registry.Lookup(table)
		if !ok {
			continue
		}
		sub.enqueue(tx.batches[table])
		subs = append(subs, sub)
	}
	return t.flush(ctx, subs)
}

// AfterRollback discards the batches of txID.
func (t *Tracker) AfterRollback(ctx context.Context, txID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.txs, txID)
	t.sweepLocked(ctx)
}

// InFlight returns the number of transactions with buffered batches.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.txs)
}

// flush flushes subs in parallel, bounded by the background worker slots.
func (t *Tracker) flush(ctx context.Context, subs []*Subscription) error {
	if len(subs) == 1 {
		return subs[0].flush(ctx)
	}

	errs := make([]error, len(subs))
	var g errgroup.Group
	for i, sub := range subs {
		g.Go(func() error {
			if err := t.resource.AcquireBackground(ctx); err != nil {
				errs[i] = &WriterSessionError{Table: sub.Table(), Batches: sub.Pending(), cause: err}
				return nil
			}
			defer t.resource.ReleaseBackground()
			errs[i] = sub.flush(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// sweepLocked drops transactions older than the TTL.
func (t *Tracker) sweepLocked(ctx context.Context) {
	if t.ttl <= 0 {
		return
	}
	now := t.now()
	for id, tx := range t.txs {
		if age := now.Sub(tx.started); age > t.ttl {
			t.logger.LogStale(ctx, id, age, len(tx.tables))
			delete(t.txs, id)
		}
	}
}

func (t *Tracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.txs = make(map[string]*txState)
}
