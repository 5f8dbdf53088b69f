package ftsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ftsync/internal/resource"
	"github.com/hupe1980/ftsync/model"
)

// Syncer keeps one full-text index per registered table in sync with a
// relational store.
type Syncer struct {
	store    model.RowStore
	opts     options
	registry *Registry
	tracker  *Tracker
	indexes  *IndexStore
	resource *resource.Controller

	mu        sync.Mutex // serializes Register and Close
	searchers map[string]*Searcher
	closed    atomic.Bool
}

// New creates a Syncer reading rows from store. Without a storage option,
// indexes are kept in memory.
func New(store model.RowStore, optFns ...Option) (*Syncer, error) {
	if store == nil {
		return nil, errors.New("ftsync: nil row store")
	}
	opts := applyOptions(optFns)
	if opts.maxSegments <= 0 {
		return nil, errors.New("ftsync: max segments must be positive")
	}

	rc := resource.NewController(opts.resource)
	registry := newRegistry()
	return &Syncer{
		store:     store,
		opts:      opts,
		registry:  registry,
		tracker:   newTracker(registry, rc, opts),
		indexes:   newIndexStore(opts, rc),
		resource:  rc,
		searchers: make(map[string]*Searcher),
	}, nil
}

// Register derives the index schema of table, opens or creates its index
// and starts tracking its rows. With WithBackfill the index is rebuilt from
// all existing rows. On error nothing is registered.
func (s *Syncer) Register(ctx context.Context, table model.TableDescriptor, optFns ...RegisterOption) (*Searcher, error) {
	var ro registerOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&ro)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, ErrClosed
	}

	searcher, err := s.register(ctx, table, ro)
	if err != nil {
		s.opts.logger.LogRegister(ctx, table.Name, nil, err)
		return nil, err
	}
	s.opts.logger.LogRegister(ctx, table.Name, searcher.Fields(), nil)
	return searcher, nil
}

func (s *Syncer) register(ctx context.Context, table model.TableDescriptor, ro registerOptions) (*Searcher, error) {
	if _, ok := s.registry.Lookup(table.Name); ok {
		return nil, &ConfigurationError{Table: table.Name, Reason: "already registered"}
	}
	schema, searchable, err := mapSchema(table)
	if err != nil {
		return nil, err
	}
	idx, err := s.indexes.Open(ctx, table.Name, schema)
	if err != nil {
		return nil, err
	}

	sub := newSubscription(table, idx, s.indexes, searchable, s.opts)
	searcher, err := newSearcher(sub, s.store, s.opts)
	if err != nil {
		_ = s.indexes.Close(table.Name)
		return nil, err
	}
	if !s.registry.add(sub) {
		_ = s.indexes.Close(table.Name)
		return nil, &ConfigurationError{Table: table.Name, Reason: "already registered"}
	}
	if ro.backfill {
		if _, err := sub.rebuild(ctx, s.store); err != nil {
			s.registry.remove(table.Name)
			_ = s.indexes.Close(table.Name)
			return nil, err
		}
	}

	s.searchers[table.Name] = searcher
	return searcher, nil
}

// Backfill rebuilds the index of a registered table from all its rows and
// returns the number of indexed rows.
func (s *Syncer) Backfill(ctx context.Context, table string) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	sub, ok := s.registry.Lookup(table)
	if !ok {
		return 0, &LookupError{Table: table}
	}
	return sub.rebuild(ctx, s.store)
}

// Tracker returns the commit observer to register with the store.
func (s *Syncer) Tracker() *Tracker { return s.tracker }

// Searcher returns the Searcher of a registered table.
func (s *Syncer) Searcher(table string) (*Searcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, ErrClosed
	}
	searcher, ok := s.searchers[table]
	if !ok {
		return nil, &LookupError{Table: table}
	}
	return searcher, nil
}

// Tables returns the registered table names, sorted.
func (s *Syncer) Tables() []string { return s.registry.Tables() }

// Pending returns the number of committed transactions whose changes to
// table are not yet in its index.
func (s *Syncer) Pending(table string) int {
	sub, ok := s.registry.Lookup(table)
	if !ok {
		return 0
	}
	return sub.Pending()
}

// Retry flushes every table with pending batches.
func (s *Syncer) Retry(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	var subs []*Subscription
	for _, sub := range s.registry.all() {
		if sub.Pending() > 0 {
			subs = append(subs, sub)
		}
	}
	if len(subs) == 0 {
		return nil
	}
	return s.tracker.flush(ctx, subs)
}

// Close stops tracking and closes all indexes. Pending batches are
// discarded; a later Register with WithBackfill restores consistency.
func (s *Syncer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.tracker.close()
	for _, sub := range s.registry.all() {
		if n := sub.Pending(); n > 0 {
			s.opts.logger.Warn("closing with unflushed batches", "table", sub.Table(), "batches", n)
		}
		s.registry.remove(sub.Table())
	}
	s.searchers = make(map[string]*Searcher)
	s.opts.logger.Debug("closed syncer", "segment_bytes", s.resource.IOBytes())
	return s.indexes.CloseAll()
}
