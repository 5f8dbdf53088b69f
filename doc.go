// Package ftsync keeps full-text indexes in sync with relational tables.
//
// A Syncer owns one persistent index per registered table. It watches the
// commits of a store through a CommitObserver and applies the committed
// inserts, updates and deletes to the index of each touched table. Queries
// run against the index and return rows fetched from the store, in rank
// order.
//
// # Quick Start
//
//	db, _ := sqlstore.Open("file:app.db")
//	s, _ := ftsync.New(db, ftsync.WithLocalStorage("./indexes"))
//	db.Observe(s.Tracker())
//
//	table, _ := db.Describe(ctx, "posts", model.SearchableNames("title", "body"))
//	posts, _ := s.Register(ctx, table, ftsync.WithBackfill())
//
//	rows, _ := posts.SearchAllOrdered(ctx, "love madrid")
//
// Cloud mode keeps each index under its own prefix of an object store:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("indexes/"))
//	s, _ := ftsync.New(db, ftsync.WithBlobStore(blobstore.PrefixedFactory(store, "")))
//
// # Searchable Columns
//
// A table declares its searchable columns either by name or with explicit
// field configurations:
//
//	model.SearchableNames("title", "body")  // text columns, stemmed, boost 1
//	model.SearchableFields(map[string]lexical.FieldConfig{
//	    "title": lexical.TextField(2),
//	    "body":  lexical.TextField(1),
//	})
//
// Primary key columns are always stored as exact-match fields. A persisted
// index keeps its schema; a differing mapping is logged and ignored.
//
// # Commit Lifecycle
//
//	BeforeCommit   rows are classified into a batch of the transaction
//	AfterCommit    batches are applied, one writer session per table
//	AfterRollback  batches are discarded
//
// Within one transaction, changes to the same row collapse; a delete wins
// over an update, and an update over an insert. A failed flush returns a
// *WriterSessionError and keeps the batches for Syncer.Retry.
//
// # Query Syntax
//
//	love madrid          both terms (OperatorAnd, the default)
//	love OR madrid       either term
//	"love in madrid"     phrase
//	title:love           field-scoped term
//	barc*                prefix
//	-madrid              exclusion
//	(a OR b) c           grouping
//
// Ranking is BM25 (k1=1.2, b=0.75) multiplied by the field boost. Equal
// scores keep the order in which documents were last written.
//
// # Observability
//
//	s, _ := ftsync.New(db,
//	    ftsync.WithLogger(ftsync.NewJSONLogger(slog.LevelInfo)),
//	    ftsync.WithMetricsCollector(prom.NewCollector(prometheus.DefaultRegisterer)),
//	)
package ftsync
