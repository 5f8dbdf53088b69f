package manifest

import "errors"

var (
	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")

	// ErrNotFound is returned when no CURRENT pointer exists.
	ErrNotFound = errors.New("manifest not found")

	// ErrCorrupt is returned when a manifest cannot be decoded or fails its checksum.
	ErrCorrupt = errors.New("corrupt manifest")
)
