package lexical

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrClosed is returned when operating on a closed index.
	ErrClosed = errors.New("lexical: index closed")

	// ErrCorrupt is returned when persisted index data fails validation.
	ErrCorrupt = errors.New("lexical: corrupt index data")

	// ErrInvalidSchema is returned for schemas that cannot be indexed.
	ErrInvalidSchema = errors.New("lexical: invalid schema")

	// ErrMissingKey is returned when a document lacks a key field.
	ErrMissingKey = errors.New("lexical: document key missing")

	// ErrSessionDone is returned when using a writer after Commit or Abort.
	ErrSessionDone = errors.New("lexical: writer session already finished")

	// ErrQueryParse is matched by every *QueryParseError.
	ErrQueryParse = errors.New("lexical: query parse error")
)

// QueryParseError describes malformed query text.
type QueryParseError struct {
	Query string
	Pos   int // byte offset of the offending token
	Msg   string
}

// Error quotes about errorContext bytes of the query on either side of
// Pos.
func (e *QueryParseError) Error() string {
	return fmt.Sprintf("lexical: cannot parse query %q at offset %d: %s", excerpt(e.Query, e.Pos), e.Pos, e.Msg)
}

const errorContext = 32

func excerpt(s string, pos int) string {
	if len(s) <= 2*errorContext {
		return s
	}
	pos = min(max(pos, 0), len(s))
	start, end := max(pos-errorContext, 0), min(pos+errorContext, len(s))
	for start > 0 && !utf8.RuneStart(s[start]) {
		start--
	}
	for end < len(s) && !utf8.RuneStart(s[end]) {
		end++
	}

	out := s[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(s) {
		out += "..."
	}
	return out
}

// Unwrap allows errors.Is(err, ErrQueryParse).
func (e *QueryParseError) Unwrap() error {
	return ErrQueryParse
}

// CorruptError names the blob that failed validation.
type CorruptError struct {
	Blob string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("lexical: corrupt blob %s: %v", e.Blob, e.Err)
}

// Unwrap returns both ErrCorrupt and the underlying cause.
func (e *CorruptError) Unwrap() []error {
	return []error{ErrCorrupt, e.Err}
}
