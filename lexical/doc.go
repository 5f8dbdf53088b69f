// Package lexical implements an embedded full-text index with BM25 ranking.
//
// An Index holds documents (field name to string value) keyed by the values of
// the schema's unique ID fields. Mutations are grouped into writer sessions:
//
//	w, err := idx.Writer(ctx)
//	if err != nil {
//	    return err
//	}
//	_ = w.Delete("42")
//	_ = w.Upsert(lexical.Document{"id": "7", "title": "hello"})
//	if err := w.Commit(ctx); err != nil {
//	    return err
//	}
//
// Nothing a session buffers becomes visible before Commit succeeds, and a
// failed or aborted session leaves the index at its prior state. Only one
// session exists at a time; readers work on immutable snapshots and never
// block the writer.
//
// # Queries
//
// Parser turns free text into a Query. Bare words match any of the parser's
// default fields, field:term targets one field, and the usual operators are
// understood:
//
//	madrid AND (love OR hate) -boring title:"exact phrase" prefix*
//
// # Persistence
//
// Each committed session is stored as one segment blob plus a new manifest in
// the index's blobstore. Opening an index replays its segments in order; once
// the segment count exceeds MaxSegments a commit writes a single compacted
// base segment instead.
package lexical
