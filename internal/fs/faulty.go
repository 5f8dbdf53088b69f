package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrInjected is returned by faults without an explicit Err.
var ErrInjected = errors.New("injected fault")

// Op is a set of file system operations a Fault applies to.
type Op uint8

const (
	OpWrite Op = 1 << iota
	OpSync
	OpClose
	OpRename
	OpRemove
)

// Fault makes the selected operations fail.
type Fault struct {
	Ops Op
	// AfterBytes lets writes to one file succeed until it has received this
	// many bytes.
	AfterBytes int64
	Err        error
}

func (f Fault) has(op Op) bool { return f.Ops&op != 0 }

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

type rule struct {
	pattern string
	fault   Fault
}

// FaultyFS wraps a FileSystem and fails operations on paths that contain a
// registered pattern. Rename faults match the target path.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules []rule
	hits  atomic.Int64
}

// NewFaultyFS wraps fsys, or Default if nil.
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{FS: fsys}
}

// Inject registers fault for every path containing pattern. Later rules for
// the same path take precedence.
func (f *FaultyFS) Inject(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{pattern: pattern, fault: fault})
}

// Reset removes all rules.
func (f *FaultyFS) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
}

// Hits returns how many operations failed because of an injected fault.
func (f *FaultyFS) Hits() int { return int(f.hits.Load()) }

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.Contains(name, f.rules[i].pattern) {
			return f.rules[i].fault, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) fail(name string, op Op) error {
	if fault, ok := f.match(name); ok && fault.has(op) {
		f.hits.Add(1)
		return fault.err()
	}
	return nil
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	fault, ok := f.match(name)
	if !ok {
		return file, nil
	}
	return &faultyFile{File: file, fs: f, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error {
	if err := f.fail(name, OpRemove); err != nil {
		return err
	}
	return f.FS.Remove(name)
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if err := f.fail(newpath, OpRename); err != nil {
		return err
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) {
	return f.FS.ReadDir(name)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.has(OpWrite) && ff.written+int64(len(p)) > ff.fault.AfterBytes {
		ff.fs.hits.Add(1)
		return 0, ff.fault.err()
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.has(OpSync) {
		ff.fs.hits.Add(1)
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.has(OpClose) {
		ff.fs.hits.Add(1)
		_ = ff.File.Close()
		return ff.fault.err()
	}
	return ff.File.Close()
}
