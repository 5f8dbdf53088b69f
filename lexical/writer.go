package lexical

import (
	"context"
	"fmt"
)

// Writer is an atomic writer session. Mutations are buffered in order and
// applied by Commit; nothing is visible to readers before that.
// A Writer is not safe for concurrent use.
type Writer struct {
	idx  *Index
	ops  []segmentOp
	done bool
}

// Upsert adds doc, replacing any document with the same key.
func (w *Writer) Upsert(doc Document) error {
	if w.done {
		return ErrSessionDone
	}
	schema := w.idx.Schema()
	for name := range doc {
		if _, ok := schema.Fields[name]; !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidSchema, name)
		}
	}
	key, err := schema.KeyOf(doc)
	if err != nil {
		return err
	}
	w.ops = append(w.ops, segmentOp{Op: opUpsert, Key: key, Doc: doc.Clone()})
	return nil
}

// Delete removes the document with key. Unknown keys are ignored.
func (w *Writer) Delete(key string) error {
	if w.done {
		return ErrSessionDone
	}
	w.ops = append(w.ops, segmentOp{Op: opDelete, Key: key})
	return nil
}

// Clear removes every document, including ones upserted earlier in this
// session.
func (w *Writer) Clear() error {
	if w.done {
		return ErrSessionDone
	}
	w.ops = append(w.ops, segmentOp{Op: opClear})
	return nil
}

// Len returns the number of buffered operations.
func (w *Writer) Len() int { return len(w.ops) }

// Commit applies the session and ends it. On error the index is unchanged.
func (w *Writer) Commit(ctx context.Context) error {
	if w.done {
		return ErrSessionDone
	}
	w.done = true
	defer w.idx.writer.Release(1)

	if len(w.ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.idx.commit(ctx, w.ops)
}

// Abort discards the session. Calling Abort after Commit is a no-op, so it
// can be deferred.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.ops = nil
	w.idx.writer.Release(1)
}
