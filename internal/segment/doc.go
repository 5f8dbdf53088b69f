// Package segment frames persisted index blobs.
//
// A framed blob is self-describing: it records the codec that encoded the
// payload and the compression applied to it, so readers select both by the
// header rather than by configuration.
//
// # Layout
//
//	offset  size  field
//	0       4     magic "FTSG"
//	4       2     format version (little endian)
//	6       1     compression
//	7       1     codec name length n
//	8       n     codec name
//	8+n     4     uncompressed payload length
//	12+n    4     stored payload length
//	16+n    4     CRC32C of the stored payload
//	20+n    ...   stored payload
//
// Compression is skipped when it does not save at least ten percent, in
// which case the header records CompressionNone.
package segment
