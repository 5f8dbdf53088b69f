// Package manifest tracks the committed state of a persisted index.
//
// A manifest lists the index schema and the ordered segments that, replayed
// in order, rebuild the index. Manifests are immutable JSON blobs named
// MANIFEST-NNNNNN.json; the CURRENT blob names the active one. Saving a
// manifest writes the new blob first and then replaces CURRENT, so a crash in
// between leaves the previous state active.
package manifest
