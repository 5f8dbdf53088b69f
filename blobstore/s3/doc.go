// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("ftsync/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	syncer, err := ftsync.New(db, ftsync.WithBlobStore(blobstore.PrefixedFactory(store, "")))
//
// Small blobs are written with a single PutObject carrying a CRC32C checksum,
// large ones with multipart uploads. DDBCommitStore adds DynamoDB conditional
// writes for the CURRENT pointer so that concurrent writers cannot lose a
// commit.
package s3
