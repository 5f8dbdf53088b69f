package ftsync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/hupe1980/ftsync/blobstore"
	"github.com/hupe1980/ftsync/internal/flock"
	"github.com/hupe1980/ftsync/internal/resource"
	"github.com/hupe1980/ftsync/lexical"
)

// LockFileName is the advisory lock file inside a local index directory.
const LockFileName = "LOCK"

// IndexStore owns the persistent indexes, one location per table.
type IndexStore struct {
	basePath string
	factory  blobstore.Factory
	indexFn  func(o *lexical.Options)
	logger   *Logger

	mu      sync.Mutex
	locks   map[string]*flock.Lock
	indexes map[string]*lexical.Index
}

func newIndexStore(opts options, rc *resource.Controller) *IndexStore {
	s := &IndexStore{
		basePath: opts.basePath,
		factory:  opts.blobFactory,
		logger:   opts.logger,
		locks:    make(map[string]*flock.Lock),
		indexes:  make(map[string]*lexical.Index),
		indexFn: func(o *lexical.Options) {
			o.Codec = opts.codec
			o.Compression = opts.compression
			o.MaxSegments = opts.maxSegments
			o.Logger = opts.logger.Logger
			o.Resource = rc
		},
	}
	if s.basePath == "" && s.factory == nil {
		s.factory = blobstore.NewMemoryFactory()
	}
	return s
}

// Open opens the index of table, or creates it with schema. The persisted
// schema of an existing index wins over schema.
func (s *IndexStore) Open(ctx context.Context, table string, schema lexical.Schema) (*lexical.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[table]; ok {
		return nil, fmt.Errorf("ftsync: index %q is already open", table)
	}

	store, lock, err := s.location(table)
	if err != nil {
		return nil, err
	}
	idx, err := lexical.Open(ctx, store, schema, s.indexFn)
	if err != nil {
		if lock != nil {
			_ = lock.Release()
		}
		return nil, fmt.Errorf("ftsync: open index %q: %w", table, err)
	}
	if idx.SchemaMismatch() {
		s.logger.WithTable(table).WarnContext(ctx, "index schema differs from table mapping, using persisted schema",
			"fields", idx.Schema().FieldNames(),
		)
	}
	if lock != nil {
		s.locks[table] = lock
	}
	s.indexes[table] = idx
	return idx, nil
}

func (s *IndexStore) location(table string) (blobstore.BlobStore, *flock.Lock, error) {
	if s.factory != nil {
		store, err := s.factory(table)
		return store, nil, err
	}
	dir := filepath.Join(s.basePath, table)
	lock, err := flock.Acquire(filepath.Join(dir, LockFileName))
	if err != nil {
		if errors.Is(err, flock.ErrLocked) {
			return nil, nil, fmt.Errorf("ftsync: index %q is used by another process: %w", table, err)
		}
		return nil, nil, err
	}
	return blobstore.NewLocalStore(dir), lock, nil
}

// Rebuild replaces the content of idx with docs in one writer session.
func (s *IndexStore) Rebuild(ctx context.Context, idx *lexical.Index, docs []lexical.Document) error {
	w, err := idx.Writer(ctx)
	if err != nil {
		return err
	}
	defer w.Abort()

	if err := w.Clear(); err != nil {
		return err
	}
	for _, doc := range docs {
		if err := w.Upsert(doc); err != nil {
			return err
		}
	}
	return w.Commit(ctx)
}

// Close closes the index of table and releases its lock.
func (s *IndexStore) Close(table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if idx, ok := s.indexes[table]; ok {
		err = idx.Close()
		delete(s.indexes, table)
	}
	if lock, ok := s.locks[table]; ok {
		err = errors.Join(err, lock.Release())
		delete(s.locks, table)
	}
	return err
}

// CloseAll closes every open index.
func (s *IndexStore) CloseAll() error {
	s.mu.Lock()
	tables := make([]string, 0, len(s.indexes))
	for t := range s.indexes {
		tables = append(tables, t)
	}
	s.mu.Unlock()

	var err error
	for _, t := range tables {
		err = errors.Join(err, s.Close(t))
	}
	return err
}
