// Package fs abstracts the file system operations of the local blob store
// so tests can inject failures.
//
// [WriteFileAtomic] is the only way index files are written: temporary
// file, fsync, rename, directory fsync. [FaultyFS] fails selected operations
// on matching paths:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.Inject("CURRENT", fs.Fault{Ops: fs.OpRename})
//	store := blobstore.NewLocalStoreFS(dir, ffs)
//
// Operations take no context.Context: local syscalls are not interruptible.
package fs
