// Package blobstore provides the storage abstraction for persisted indexes.
//
// An index location holds a small number of immutable blobs (segments,
// manifests) plus the mutable CURRENT pointer. Put must replace a blob
// atomically: readers observe either the old or the new content.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local file system
//   - MemoryStore: in-process, for tests and ephemeral indexes
//   - s3.Store / s3.DDBCommitStore: Amazon S3, optionally with DynamoDB commits
//   - minio.Store: S3-compatible servers via minio-go
//
// Prefixed scopes any store to a key prefix, which is how one bucket holds the
// indexes of many tables.
package blobstore
