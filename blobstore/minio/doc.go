// Package minio stores indexes in a MinIO bucket or any other
// S3-compatible object store reachable through the MinIO client.
//
// Each table's index lives under its own key prefix:
//
//	store := minio.NewStore(client, "search", "ftsync/")
//	syncer, err := ftsync.New(db, ftsync.WithBlobStore(blobstore.PrefixedFactory(store, "")))
//
// The ftsync command builds the same wiring from the [minio] section of its
// configuration file.
package minio
