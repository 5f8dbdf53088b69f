package lexical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/ftsync/blobstore"
	"github.com/hupe1980/ftsync/codec"
	"github.com/hupe1980/ftsync/internal/manifest"
	"github.com/hupe1980/ftsync/internal/resource"
	"github.com/hupe1980/ftsync/internal/segment"
	"github.com/hupe1980/ftsync/lexical/bm25"
)

// DefaultMaxSegments is the segment count above which a commit compacts.
const DefaultMaxSegments = 8

// Options configures an Index.
type Options struct {
	// Codec encodes new segments. Defaults to codec.Default.
	Codec codec.Codec
	// Compression applies to new segments.
	Compression segment.Compression
	// MaxSegments triggers compaction when exceeded. Defaults to DefaultMaxSegments.
	MaxSegments int
	// Logger receives persistence events. Defaults to a discarding logger.
	Logger *slog.Logger
	// Resource rate-limits segment writes. Nil means unlimited.
	Resource *resource.Controller
	// BM25 are the ranking parameters. Defaults to bm25.DefaultParams.
	BM25 bm25.Params
}

// Index is a persistent full-text index over one blobstore location.
type Index struct {
	store     blobstore.BlobStore
	manifests *manifest.Store
	opts      Options

	writer  *semaphore.Weighted
	current atomic.Pointer[snapshot]
	closed  atomic.Bool

	mu       sync.Mutex // guards manifest; held only by the active writer
	manifest *manifest.Manifest

	schemaMismatch bool
}

// Open opens the index stored in store, or creates it with schema if the
// store holds no index yet. The persisted schema wins over the passed one;
// SchemaMismatch reports whether they differed.
func Open(ctx context.Context, store blobstore.BlobStore, schema Schema, optFns ...func(o *Options)) (*Index, error) {
	opts := Options{
		Codec:       codec.Default,
		MaxSegments: DefaultMaxSegments,
		BM25:        bm25.DefaultParams,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.MaxSegments <= 0 {
		opts.MaxSegments = DefaultMaxSegments
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.BM25 == (bm25.Params{}) {
		opts.BM25 = bm25.DefaultParams
	}

	idx := &Index{
		store:     store,
		manifests: manifest.NewStore(store),
		opts:      opts,
		writer:    semaphore.NewWeighted(1),
	}

	m, err := idx.manifests.Load(ctx)
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		if err := idx.create(ctx, schema); err != nil {
			return nil, err
		}
	case err != nil:
		if errors.Is(err, manifest.ErrCorrupt) || errors.Is(err, manifest.ErrIncompatibleVersion) {
			return nil, &CorruptError{Blob: manifest.CurrentFileName, Err: err}
		}
		return nil, err
	default:
		if err := idx.load(ctx, m, schema); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) create(ctx context.Context, schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	snap, err := newSnapshot(schema)
	if err != nil {
		return err
	}
	m := manifest.New(raw)
	if err := idx.manifests.Save(ctx, m); err != nil {
		return fmt.Errorf("lexical: create index: %w", err)
	}
	snap.version = m.ID
	idx.manifest = m
	idx.current.Store(snap)
	idx.opts.Logger.Debug("created index", "manifest", m.ID)
	return nil
}

func (idx *Index) load(ctx context.Context, m *manifest.Manifest, requested Schema) error {
	var schema Schema
	if err := json.Unmarshal(m.Schema, &schema); err != nil {
		return &CorruptError{Blob: manifest.FileName(m.ID), Err: err}
	}
	if err := schema.Validate(); err != nil {
		return &CorruptError{Blob: manifest.FileName(m.ID), Err: err}
	}
	if len(requested.Fields) > 0 && !schema.Equal(requested) {
		idx.schemaMismatch = true
		idx.opts.Logger.Warn("persisted schema differs from requested schema, using persisted schema",
			"manifest", m.ID, "persisted", schema.FieldNames(), "requested", requested.FieldNames())
	}

	empty, err := newSnapshot(schema)
	if err != nil {
		return &CorruptError{Blob: manifest.FileName(m.ID), Err: err}
	}
	b := newBuilder(empty)
	for _, seg := range m.Segments {
		if err := idx.replay(ctx, b, seg); err != nil {
			return err
		}
	}
	snap := b.snapshot()
	snap.version = m.ID

	idx.manifest = m
	idx.current.Store(snap)
	idx.opts.Logger.Debug("opened index", "manifest", m.ID, "segments", len(m.Segments), "docs", snap.docCount())
	return nil
}

func (idx *Index) replay(ctx context.Context, b *builder, seg manifest.SegmentInfo) error {
	data, err := blobstore.ReadAll(ctx, idx.store, seg.Path)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return &CorruptError{Blob: seg.Path, Err: err}
		}
		return err
	}
	var payload segmentPayload
	if _, err := segment.Decode(data, &payload); err != nil {
		return &CorruptError{Blob: seg.Path, Err: err}
	}
	for _, op := range payload.Ops {
		if err := b.apply(op); err != nil {
			return &CorruptError{Blob: seg.Path, Err: err}
		}
	}
	return nil
}

// Schema returns the effective schema.
func (idx *Index) Schema() Schema {
	return idx.current.Load().schema
}

// SchemaMismatch reports whether Open found a persisted schema different
// from the requested one.
func (idx *Index) SchemaMismatch() bool { return idx.schemaMismatch }

// DocCount returns the number of committed documents.
func (idx *Index) DocCount() int {
	return int(idx.current.Load().docCount())
}

// Version returns the manifest version of the visible snapshot.
func (idx *Index) Version() uint64 {
	return idx.current.Load().version
}

// Document returns the committed document with key.
func (idx *Index) Document(key string) (Document, bool) {
	s := idx.current.Load()
	doc, ok := s.keys[key]
	if !ok {
		return nil, false
	}
	return s.docs[doc].Clone(), true
}

// Keys returns the keys of all committed documents in insertion order.
func (idx *Index) Keys() []string {
	s := idx.current.Load()
	keys := make([]string, 0, s.live.GetCardinality())
	it := s.live.Iterator()
	for it.HasNext() {
		keys = append(keys, s.docKeys[it.Next()])
	}
	return keys
}

// Parser returns a parser for the index schema.
func (idx *Index) Parser(defaultFields []string, op Operator) (*Parser, error) {
	return NewParser(idx.Schema(), defaultFields, op)
}

// Search runs q against the latest committed snapshot and returns up to
// limit hits (all hits if limit <= 0), best first. Equal scores keep
// insertion order.
func (idx *Index) Search(ctx context.Context, q Query, limit int) ([]Hit, error) {
	if idx.closed.Load() {
		return nil, ErrClosed
	}
	return idx.current.Load().search(ctx, q, limit, idx.opts.BM25)
}

// Segments returns the number of segments in the current manifest.
func (idx *Index) Segments() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.manifest.Segments)
}

// Writer starts a writer session. It blocks while another session is active.
func (idx *Index) Writer(ctx context.Context) (*Writer, error) {
	if idx.closed.Load() {
		return nil, ErrClosed
	}
	if err := idx.writer.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if idx.closed.Load() {
		idx.writer.Release(1)
		return nil, ErrClosed
	}
	return &Writer{idx: idx}, nil
}

// Close waits for an active writer session to finish and closes the index.
func (idx *Index) Close() error {
	if !idx.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Wait for the active writer; the slot is never released again.
	_ = idx.writer.Acquire(context.Background(), 1)
	return nil
}

// commit persists ops and publishes the resulting snapshot. It runs while
// the caller holds the writer slot.
func (idx *Index) commit(ctx context.Context, ops []segmentOp) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.current.Load()
	b := newBuilder(cur)
	for _, op := range ops {
		if err := b.apply(op); err != nil {
			return err
		}
	}
	next := b.snapshot()

	m := idx.manifest.Clone()
	var written []string
	cleanup := func() {
		for _, name := range written {
			if err := idx.store.Delete(context.WithoutCancel(ctx), name); err != nil {
				idx.opts.Logger.Debug("failed to remove unreferenced segment", "segment", name, "error", err)
			}
		}
	}

	base := false
	for _, op := range ops {
		if op.Op == opClear {
			base = true
		}
	}
	info, err := idx.writeSegment(ctx, m, ops, base)
	if err != nil {
		return err
	}
	written = append(written, info.Path)
	if base {
		m.Segments = nil
	}
	m.Segments = append(m.Segments, info)

	if len(m.Segments) > idx.opts.MaxSegments {
		info, err := idx.writeSegment(ctx, m, next.dump(), true)
		if err != nil {
			cleanup()
			return err
		}
		written = append(written, info.Path)
		m.Segments = []manifest.SegmentInfo{info}
		idx.opts.Logger.Debug("compacted segments", "segment", info.Path, "docs", next.docCount())
	}
	m.DocCount = next.docCount()

	if err := idx.manifests.Save(ctx, m); err != nil {
		cleanup()
		return fmt.Errorf("lexical: save manifest: %w", err)
	}

	next.version = m.ID
	old := idx.manifest
	idx.manifest = m
	idx.current.Store(next)

	idx.removeObsolete(ctx, old, m, written)
	return nil
}

func (idx *Index) writeSegment(ctx context.Context, m *manifest.Manifest, ops []segmentOp, base bool) (manifest.SegmentInfo, error) {
	data, err := segment.Encode(idx.opts.Codec, idx.opts.Compression, segmentPayload{Ops: ops})
	if err != nil {
		return manifest.SegmentInfo{}, err
	}
	if err := idx.opts.Resource.AcquireIO(ctx, len(data)); err != nil {
		return manifest.SegmentInfo{}, err
	}
	id, name := m.AllocateSegment()
	if err := idx.store.Put(ctx, name, data); err != nil {
		return manifest.SegmentInfo{}, fmt.Errorf("lexical: write segment %s: %w", name, err)
	}
	return manifest.SegmentInfo{ID: id, Path: name, Size: int64(len(data)), Ops: len(ops), Base: base}, nil
}

// removeObsolete deletes the segments of old and the ones written by this
// commit that current no longer references, then the old manifest.
// Failures only leave garbage behind.
func (idx *Index) removeObsolete(ctx context.Context, old, current *manifest.Manifest, written []string) {
	ctx = context.WithoutCancel(ctx)
	live := make(map[string]bool, len(current.Segments))
	for _, s := range current.Segments {
		live[s.Path] = true
	}
	candidates := make([]string, 0, len(old.Segments)+len(written))
	for _, s := range old.Segments {
		candidates = append(candidates, s.Path)
	}
	candidates = append(candidates, written...)
	for _, path := range candidates {
		if live[path] {
			continue
		}
		if err := idx.store.Delete(ctx, path); err != nil {
			idx.opts.Logger.Debug("failed to remove obsolete segment", "segment", path, "error", err)
		}
	}
	if old.ID != current.ID {
		if err := idx.manifests.DeleteVersion(ctx, old.ID); err != nil {
			idx.opts.Logger.Debug("failed to remove obsolete manifest", "manifest", old.ID, "error", err)
		}
	}
}
