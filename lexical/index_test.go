package lexical

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/ftsync/blobstore"
	"github.com/hupe1980/ftsync/codec"
	"github.com/hupe1980/ftsync/internal/fs"
	"github.com/hupe1980/ftsync/internal/manifest"
	"github.com/hupe1980/ftsync/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T, store blobstore.BlobStore, optFns ...func(o *Options)) *Index {
	t.Helper()
	idx, err := Open(context.Background(), store, testSchema(), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func commitDocs(t *testing.T, idx *Index, docs ...Document) {
	t.Helper()
	ctx := context.Background()
	w, err := idx.Writer(ctx)
	require.NoError(t, err)
	defer w.Abort()
	for _, d := range docs {
		require.NoError(t, w.Upsert(d))
	}
	require.NoError(t, w.Commit(ctx))
}

func search(t *testing.T, idx *Index, text string, op Operator) []Hit {
	t.Helper()
	p, err := idx.Parser([]string{"title", "body"}, op)
	require.NoError(t, err)
	q, err := p.Parse(text)
	require.NoError(t, err)
	hits, err := idx.Search(context.Background(), q, 0)
	require.NoError(t, err)
	return hits
}

func hitKeys(hits []Hit) []string {
	keys := make([]string, len(hits))
	for i, h := range hits {
		keys[i] = h.Key
	}
	return keys
}

func TestIndex_UpsertSearchDelete(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, blobstore.NewMemoryStore())
	assert.Equal(t, 0, idx.DocCount())

	// 1. Add documents
	commitDocs(t, idx,
		Document{"id": "1", "title": "Love in Madrid", "body": "a city story", "tag": "travel"},
		Document{"id": "2", "title": "Barcelona nights", "body": "we love the sea"},
		Document{"id": "3", "title": "Cooking", "body": "nothing to see"},
	)
	assert.Equal(t, 3, idx.DocCount())
	assert.Equal(t, []string{"1", "2", "3"}, idx.Keys())

	// 2. Search across default fields
	assert.ElementsMatch(t, []string{"1", "2"}, hitKeys(search(t, idx, "love", OpAnd)))
	assert.Equal(t, []string{"1"}, hitKeys(search(t, idx, "love madrid", OpAnd)))
	assert.ElementsMatch(t, []string{"1", "2"}, hitKeys(search(t, idx, "madrid barcelona", OpOr)))
	assert.Equal(t, []string{"1"}, hitKeys(search(t, idx, "tag:travel", OpAnd)))
	assert.Equal(t, []string{"3"}, hitKeys(search(t, idx, "-love", OpAnd)))
	assert.Equal(t, []string{"2"}, hitKeys(search(t, idx, "barc*", OpAnd)))
	assert.Equal(t, []string{"1"}, hitKeys(search(t, idx, `"love in madrid"`, OpAnd)))
	assert.Empty(t, search(t, idx, `"madrid love"`, OpAnd))

	// 3. Stored fields come back with hits
	hits := search(t, idx, "cooking", OpAnd)
	require.Len(t, hits, 1)
	assert.Equal(t, "Cooking", hits[0].Fields["title"])
	assert.Greater(t, hits[0].Score, 0.0)

	// 4. Delete (twice, and an unknown key)
	w, err := idx.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Delete("1"))
	require.NoError(t, w.Delete("1"))
	require.NoError(t, w.Delete("missing"))
	require.NoError(t, w.Commit(ctx))

	assert.Equal(t, []string{"2"}, hitKeys(search(t, idx, "love", OpAnd)))
	_, ok := idx.Document("1")
	assert.False(t, ok)

	// 5. Update replaces terms
	commitDocs(t, idx, Document{"id": "2", "title": "Valencia nights", "body": "sun"})
	assert.Empty(t, search(t, idx, "barcelona", OpAnd))
	assert.Equal(t, []string{"2"}, hitKeys(search(t, idx, "valencia", OpAnd)))
	assert.Equal(t, 2, idx.DocCount())
}

func TestIndex_BoostAndTieOrdering(t *testing.T) {
	idx := openTestIndex(t, blobstore.NewMemoryStore())

	commitDocs(t, idx,
		Document{"id": "a", "title": "nothing", "body": "love"},
		Document{"id": "b", "title": "love", "body": "nothing"},
		Document{"id": "c", "title": "nothing", "body": "love"},
	)

	// Title carries boost 2, so b ranks first; a and c tie and keep insertion order.
	assert.Equal(t, []string{"b", "a", "c"}, hitKeys(search(t, idx, "love", OpAnd)))

	// Limit keeps the best hits.
	p, _ := idx.Parser([]string{"title", "body"}, OpAnd)
	q, _ := p.Parse("love")
	hits, err := idx.Search(context.Background(), q, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, hitKeys(hits))
}

func TestIndex_WriterIsolationAndAbort(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, blobstore.NewMemoryStore())
	commitDocs(t, idx, Document{"id": "1", "title": "first"})
	version := idx.Version()

	// 1. Buffered mutations are invisible until commit
	w, err := idx.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Upsert(Document{"id": "2", "title": "second"}))
	require.NoError(t, w.Clear())
	assert.Equal(t, 1, idx.DocCount())
	assert.Equal(t, 2, w.Len())

	// 2. Only one writer at a time
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = idx.Writer(tctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// 3. Abort discards everything and frees the slot
	w.Abort()
	w.Abort()
	assert.Equal(t, 1, idx.DocCount())
	assert.Equal(t, version, idx.Version())
	require.ErrorIs(t, w.Upsert(Document{"id": "3"}), ErrSessionDone)
	require.ErrorIs(t, w.Commit(ctx), ErrSessionDone)

	// 4. Empty commit is a no-op
	w2, err := idx.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w2.Commit(ctx))
	assert.Equal(t, version, idx.Version())
}

func TestIndex_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, blobstore.NewMemoryStore())

	w, err := idx.Writer(ctx)
	require.NoError(t, err)
	defer w.Abort()

	assert.ErrorIs(t, w.Upsert(Document{"title": "no key"}), ErrMissingKey)
	assert.ErrorIs(t, w.Upsert(Document{"id": "1", "color": "red"}), ErrInvalidSchema)
}

func TestIndex_ClearThenAdd(t *testing.T) {
	ctx := context.Background()
	idx := openTestIndex(t, blobstore.NewMemoryStore())
	commitDocs(t, idx, Document{"id": "1", "title": "old"}, Document{"id": "2", "title": "old"})

	w, err := idx.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Clear())
	require.NoError(t, w.Upsert(Document{"id": "3", "title": "new"}))
	require.NoError(t, w.Commit(ctx))

	assert.Equal(t, []string{"3"}, idx.Keys())
	assert.Empty(t, search(t, idx, "old", OpAnd))
	assert.Equal(t, 1, idx.Segments(), "a clearing commit starts a new base segment")
}

func TestIndex_PersistAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "articles")

	for _, c := range []codec.Codec{codec.JSON, codec.GoJSON, codec.BSON} {
		for _, comp := range []segment.Compression{segment.CompressionNone, segment.CompressionLZ4, segment.CompressionZSTD} {
			t.Run(c.Name()+"/"+comp.String(), func(t *testing.T) {
				store := blobstore.NewLocalStore(filepath.Join(dir, c.Name(), comp.String()))
				opts := func(o *Options) {
					o.Codec = c
					o.Compression = comp
				}

				// 1. Write two sessions
				idx, err := Open(ctx, store, testSchema(), opts)
				require.NoError(t, err)
				commitDocs(t, idx, Document{"id": "1", "title": "Love in Madrid"}, Document{"id": "2", "title": "Barcelona"})
				w, err := idx.Writer(ctx)
				require.NoError(t, err)
				require.NoError(t, w.Delete("2"))
				require.NoError(t, w.Upsert(Document{"id": "3", "title": "Sevilla love"}))
				require.NoError(t, w.Commit(ctx))
				version := idx.Version()
				require.NoError(t, idx.Close())

				// 2. Reopen replays both segments
				re, err := Open(ctx, store, testSchema(), opts)
				require.NoError(t, err)
				defer re.Close()
				assert.Equal(t, version, re.Version())
				assert.Equal(t, []string{"1", "3"}, re.Keys())
				assert.ElementsMatch(t, []string{"1", "3"}, hitKeys(search(t, re, "love", OpAnd)))
				assert.False(t, re.SchemaMismatch())

				// 3. Only live blobs remain
				names, err := store.List(ctx, "")
				require.NoError(t, err)
				assert.Equal(t, []string{"CURRENT", manifest.FileName(version), "SEG-000001.seg", "SEG-000002.seg"}, names)
			})
		}
	}
}

func TestIndex_PersistedSchemaWins(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	idx, err := Open(ctx, store, testSchema())
	require.NoError(t, err)
	commitDocs(t, idx, Document{"id": "1", "title": "kept"})
	require.NoError(t, idx.Close())

	other := NewSchema(map[string]FieldConfig{"id": IDField(), "name": TextField(1)}, "id")
	re, err := Open(ctx, store, other)
	require.NoError(t, err)
	defer re.Close()

	assert.True(t, re.SchemaMismatch())
	assert.True(t, re.Schema().Equal(testSchema()))
	_, ok := re.Schema().Field("name")
	assert.False(t, ok)
	assert.Equal(t, 1, re.DocCount())
}

func TestIndex_Compaction(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	idx := openTestIndex(t, store, func(o *Options) { o.MaxSegments = 2 })

	commitDocs(t, idx, Document{"id": "1", "title": "one"})
	commitDocs(t, idx, Document{"id": "2", "title": "two"})
	assert.Equal(t, 2, idx.Segments())

	// Third segment exceeds the limit and is folded into one base segment.
	commitDocs(t, idx, Document{"id": "1", "title": "uno"})
	assert.Equal(t, 1, idx.Segments())
	assert.Equal(t, []string{"2", "1"}, idx.Keys())

	segs, err := store.List(ctx, manifest.SegmentPrefix)
	require.NoError(t, err)
	assert.Len(t, segs, 1)

	re, err := Open(ctx, store, testSchema())
	require.NoError(t, err)
	defer re.Close()
	assert.Equal(t, []string{"2", "1"}, re.Keys())
	assert.Equal(t, []string{"1"}, hitKeys(search(t, re, "uno", OpAnd)))
}

func TestIndex_FailedCommitLeavesIndexUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	store := blobstore.NewLocalStoreFS(dir, ffs)
	idx := openTestIndex(t, store)
	commitDocs(t, idx, Document{"id": "1", "title": "stable"})
	version := idx.Version()

	injected := errors.New("disk full")
	ffs.Inject(manifest.CurrentFileName, fs.Fault{Ops: fs.OpRename, Err: injected})

	w, err := idx.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Delete("1"))
	require.NoError(t, w.Upsert(Document{"id": "2", "title": "lost"}))
	err = w.Commit(ctx)
	require.ErrorIs(t, err, injected)

	assert.Equal(t, version, idx.Version())
	assert.Equal(t, []string{"1"}, idx.Keys())

	// The unreferenced segment was removed again.
	segs, err := store.List(ctx, manifest.SegmentPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"SEG-000001.seg"}, segs)

	// The writer slot was released and the next commit succeeds.
	ffs.Reset()
	commitDocs(t, idx, Document{"id": "2", "title": "saved"})
	assert.Equal(t, []string{"1", "2"}, idx.Keys())
}

func TestIndex_CorruptSegment(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	idx, err := Open(ctx, store, testSchema())
	require.NoError(t, err)
	commitDocs(t, idx, Document{"id": "1", "title": "x1"})
	require.NoError(t, idx.Close())

	data, err := blobstore.ReadAll(ctx, store, "SEG-000001.seg")
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, store.Put(ctx, "SEG-000001.seg", data))

	_, err = Open(ctx, store, testSchema())
	require.ErrorIs(t, err, ErrCorrupt)

	var cerr *CorruptError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "SEG-000001.seg", cerr.Blob)
}

func TestIndex_Closed(t *testing.T) {
	ctx := context.Background()
	idx, err := Open(ctx, blobstore.NewMemoryStore(), testSchema())
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err = idx.Writer(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Search(ctx, MatchNone{}, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIndex_InvalidSchema(t *testing.T) {
	_, err := Open(context.Background(), blobstore.NewMemoryStore(), Schema{})
	assert.ErrorIs(t, err, ErrInvalidSchema)
}
