package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// TempSuffix marks files written by WriteFileAtomic that have not been
// renamed into place yet.
const TempSuffix = ".tmp"

var tempCounter atomic.Uint64

// File is the subset of *os.File the blob store needs.
type File interface {
	io.WriteCloser
	io.ReaderAt
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem abstracts file system operations for testability.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// OS implements FileSystem with the os package.
type OS struct{}

func (OS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		// Avoid returning a typed nil inside the interface.
		return nil, err
	}
	return f, nil
}

func (OS) Remove(name string) error                     { return os.Remove(name) }
func (OS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (OS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OS) ReadDir(name string) ([]os.DirEntry, error)   { return os.ReadDir(name) }

// Default is the os-backed file system.
var Default FileSystem = OS{}

// WriteFileAtomic replaces name with data. The data is written to a
// temporary file in the same directory, synced and renamed into place, then
// the directory is synced. On error name keeps its previous content and the
// temporary file is removed.
func WriteFileAtomic(fsys FileSystem, name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.%d%s", name, tempCounter.Add(1), TempSuffix)
	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		_ = fsys.Remove(tmp)
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}
	if err := fsys.Rename(tmp, name); err != nil {
		return fail(err)
	}
	return SyncDir(fsys, dir)
}

// SyncDir fsyncs a directory so that renames in it are durable. Platforms
// that cannot sync directories are tolerated.
func SyncDir(fsys FileSystem, dir string) error {
	d, err := fsys.OpenFile(dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	_ = d.Sync()
	return d.Close()
}
