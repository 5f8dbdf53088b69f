package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/ftsync/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(filepath.Join(tmpDir, "books"))

	ctx := context.Background()

	// 1. Put a blob (creates the directory)
	blobName := "SEG-000001.seg"
	data := []byte("hello world, this is a test blob for ftsync")

	require.NoError(t, store.Put(ctx, blobName, data))

	_, err := os.Stat(filepath.Join(tmpDir, "books", blobName))
	require.NoError(t, err)

	// 2. Open and ReadAt
	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6) // "world"
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	// 3. ReadRange
	rangeReader, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	defer rangeReader.Close()

	rangeContent, err := io.ReadAll(rangeReader)
	require.NoError(t, err)
	require.Equal(t, "this", string(rangeContent))

	// 4. Overwrite and List
	require.NoError(t, store.Put(ctx, "SEG-000002.seg", []byte("x")))
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("MANIFEST-000001.json")))
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("MANIFEST-000002.json")))

	blobs, err := store.List(ctx, "SEG-")
	require.NoError(t, err)
	require.Equal(t, []string{"SEG-000001.seg", "SEG-000002.seg"}, blobs)

	current, err := ReadAll(ctx, store, "CURRENT")
	require.NoError(t, err)
	require.Equal(t, "MANIFEST-000002.json", string(current))

	// 5. Delete (twice is fine)
	require.NoError(t, store.Delete(ctx, blobName))
	require.NoError(t, store.Delete(ctx, blobName))

	_, err = store.Open(ctx, blobName)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBlobStore_ReadRange_Boundaries(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	blobName := "boundary.bin"
	data := []byte("0123456789")
	require.NoError(t, store.Put(ctx, blobName, data))

	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	defer blob.Close()

	// Case 1: Read full range
	r, err := blob.ReadRange(ctx, 0, 10)
	require.NoError(t, err)
	content, _ := io.ReadAll(r)
	r.Close()
	require.True(t, bytes.Equal(data, content))

	// Case 2: Read past end
	r, err = blob.ReadRange(ctx, 8, 5)
	require.NoError(t, err)
	content, err = io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "89", string(content))
	r.Close()

	// Case 3: Offset past EOF
	_, err = blob.ReadRange(ctx, 20, 5)
	require.ErrorIs(t, err, io.EOF)
}

func TestLocalBlobStore_ListMissingDir(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalBlobStore_FailedPutKeepsOldContent(t *testing.T) {
	dir := t.TempDir()
	faulty := fs.NewFaultyFS(nil)
	store := NewLocalStoreFS(dir, faulty)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "CURRENT", []byte("MANIFEST-000001.json")))

	injected := errors.New("disk full")
	faulty.Inject("CURRENT", fs.Fault{Ops: fs.OpWrite, Err: injected})

	err := store.Put(ctx, "CURRENT", []byte("MANIFEST-000002.json"))
	require.ErrorIs(t, err, injected)

	got, err := ReadAll(ctx, store, "CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000001.json", string(got))

	// No temporary files are left behind.
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CURRENT"}, names)
}
