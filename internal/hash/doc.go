// Package hash provides the CRC32-Castagnoli checksums that guard persisted
// segments and manifests.
//
//	if err := hash.Check(payload, header.Checksum); err != nil {
//		// corrupt
//	}
package hash
