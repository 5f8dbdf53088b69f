package ftsync

import (
	"log/slog"
	"time"

	"github.com/hupe1980/ftsync/blobstore"
	"github.com/hupe1980/ftsync/codec"
	"github.com/hupe1980/ftsync/internal/resource"
	"github.com/hupe1980/ftsync/internal/segment"
	"github.com/hupe1980/ftsync/lexical"
)

// Compression selects the segment compression of new index segments.
type Compression = segment.Compression

const (
	CompressionNone = segment.CompressionNone
	CompressionLZ4  = segment.CompressionLZ4
	CompressionZSTD = segment.CompressionZSTD
)

// ParseCompression maps "none", "lz4" or "zstd" to a Compression.
func ParseCompression(name string) (Compression, error) {
	return segment.ParseCompression(name)
}

// ResourceConfig bounds parallel flushes and segment write throughput.
type ResourceConfig = resource.Config

// Operator combines adjacent query terms.
type Operator = lexical.Operator

const (
	OperatorAnd = lexical.OpAnd
	OperatorOr  = lexical.OpOr
)

// DefaultPendingTTL is the age after which a transaction batch that saw
// neither commit nor rollback is discarded.
const DefaultPendingTTL = 10 * time.Minute

// DefaultQueryCacheSize is the number of parsed queries cached per table.
const DefaultQueryCacheSize = 256

type options struct {
	basePath       string
	blobFactory    blobstore.Factory
	codec          codec.Codec
	compression    Compression
	maxSegments    int
	metrics        MetricsCollector
	logger         *Logger
	resource       ResourceConfig
	pendingTTL     time.Duration
	queryCacheSize int
}

// Option configures a Syncer.
type Option func(*options)

// WithLocalStorage keeps one index directory per table under base.
func WithLocalStorage(base string) Option {
	return func(o *options) {
		o.basePath = base
		o.blobFactory = nil
	}
}

// WithBlobStore keeps each table index in the store returned by factory for
// the table name, e.g. blobstore.PrefixedFactory over an S3 store.
func WithBlobStore(factory blobstore.Factory) Option {
	return func(o *options) {
		o.blobFactory = factory
		o.basePath = ""
	}
}

// WithCodec configures the codec used for new segments.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the compression of new segments.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMaxSegments sets the segment count above which a commit compacts an
// index into a single segment.
func WithMaxSegments(n int) Option {
	return func(o *options) {
		o.maxSegments = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ftsync.BasicMetricsCollector{}
//	s, _ := ftsync.New(db, ftsync.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Flushes: %d, pending: %d\n", stats.FlushCount, stats.Pending)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceConfig bounds flush parallelism and segment write rate.
func WithResourceConfig(cfg ResourceConfig) Option {
	return func(o *options) {
		o.resource = cfg
	}
}

// WithPendingTTL sets the age after which transaction batches without commit
// or rollback are discarded. d <= 0 disables the sweep.
func WithPendingTTL(d time.Duration) Option {
	return func(o *options) {
		o.pendingTTL = d
	}
}

// WithQueryCacheSize sets the number of parsed queries cached per table.
// n <= 0 disables the cache.
func WithQueryCacheSize(n int) Option {
	return func(o *options) {
		o.queryCacheSize = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:          codec.Default,
		maxSegments:    lexical.DefaultMaxSegments,
		metrics:        NoopMetricsCollector{},
		logger:         NoopLogger(),
		pendingTTL:     DefaultPendingTTL,
		queryCacheSize: DefaultQueryCacheSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

type registerOptions struct {
	backfill bool
}

// RegisterOption configures Syncer.Register.
type RegisterOption func(*registerOptions)

// WithBackfill rebuilds the table index from all existing rows after
// registration. Rebuilding clears the index first, so the index holds
// exactly the rows of the table.
func WithBackfill() RegisterOption {
	return func(o *registerOptions) {
		o.backfill = true
	}
}

type searchOptions struct {
	limit    int
	operator Operator
}

// SearchOption configures a search.
type SearchOption func(*searchOptions)

// WithLimit caps the number of hits. n <= 0 returns all hits.
func WithLimit(n int) SearchOption {
	return func(o *searchOptions) {
		o.limit = n
	}
}

// WithOperator sets how adjacent terms combine. The default is OperatorAnd.
func WithOperator(op Operator) SearchOption {
	return func(o *searchOptions) {
		o.operator = op
	}
}

func applySearchOptions(optFns []SearchOption) searchOptions {
	o := searchOptions{operator: OperatorAnd}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
