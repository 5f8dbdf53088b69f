package ftsync

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ftsync/lexical"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("ftsync: invalid configuration")

	// ErrLookup is matched by every *LookupError.
	ErrLookup = errors.New("ftsync: table not registered")

	// ErrWriterSession is matched by every *WriterSessionError.
	ErrWriterSession = errors.New("ftsync: writer session failed")

	// ErrClosed is returned by operations on a closed Syncer.
	ErrClosed = errors.New("ftsync: closed")

	// ErrQueryParse is matched by malformed query errors (*lexical.QueryParseError).
	ErrQueryParse = lexical.ErrQueryParse
)

// ConfigurationError reports an invalid table registration.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigurationError struct {
	Table  string
	Reason string
	cause  error
}

func (e *ConfigurationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("ftsync: table %q: %s: %v", e.Table, e.Reason, e.cause)
	}
	return fmt.Sprintf("ftsync: table %q: %s", e.Table, e.Reason)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.cause}
}

// LookupError reports a query against a table that was never registered.
type LookupError struct {
	Table string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("ftsync: table %q is not registered", e.Table)
}

func (e *LookupError) Unwrap() error { return ErrLookup }

// WriterSessionError reports a failed flush of buffered changes into the
// index of Table. The Batches pending transactions are kept and applied by
// the next flush of the table or by Syncer.Retry.
type WriterSessionError struct {
	Table   string
	Batches int
	cause   error
}

func (e *WriterSessionError) Error() string {
	return fmt.Sprintf("ftsync: flush %q (%d pending batches): %v", e.Table, e.Batches, e.cause)
}

func (e *WriterSessionError) Unwrap() []error {
	return []error{ErrWriterSession, e.cause}
}
