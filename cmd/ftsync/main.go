// Command ftsync maintains and queries the full-text indexes of SQLite
// tables.
//
//	ftsync -config ftsync.toml reindex [table...]
//	ftsync -config ftsync.toml search [-limit n] [-or] <table> <query>
//	ftsync -config ftsync.toml tables
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/ftsync"
	"github.com/hupe1980/ftsync/blobstore"
	"github.com/hupe1980/ftsync/blobstore/minio"
	"github.com/hupe1980/ftsync/blobstore/s3"
	"github.com/hupe1980/ftsync/internal/config"
	"github.com/hupe1980/ftsync/model"
	"github.com/hupe1980/ftsync/prom"
	"github.com/hupe1980/ftsync/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ftsync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the TOML configuration")
	dbPath := fs.String("db", "", "SQLite database, overrides the configuration")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ftsync [-config file] [-db file] <reindex [table...] | search [-limit n] [-or] <table> <query> | tables>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}

	db, err := sqlstore.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	opts, err := syncerOptions(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	syncer, err := ftsync.New(db, opts...)
	if err != nil {
		return err
	}
	defer syncer.Close()
	db.Observe(syncer.Tracker())

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "reindex":
		return reindex(ctx, cfg, db, syncer, cmdArgs, stdout)
	case "search":
		return search(ctx, cfg, db, syncer, cmdArgs, stdout, stderr)
	case "tables":
		return tables(ctx, cfg, db, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func syncerOptions(ctx context.Context, cfg *config.Config, stderr io.Writer) ([]ftsync.Option, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	compression, err := cfg.Compression()
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	}

	opts := []ftsync.Option{
		ftsync.WithLogger(ftsync.NewLogger(handler)),
		ftsync.WithCodec(cfg.Codec()),
		ftsync.WithCompression(compression),
		ftsync.WithMaxSegments(cfg.Index.MaxSegments),
	}

	storage, err := storageOption(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if storage != nil {
		opts = append(opts, storage)
	}

	if cfg.Metrics.Listen != "" {
		opts = append(opts, ftsync.WithMetricsCollector(prom.NewCollector(prometheus.DefaultRegisterer)))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}
	return opts, nil
}

func storageOption(ctx context.Context, cfg *config.Config) (ftsync.Option, error) {
	switch cfg.Index.Storage {
	case config.StorageLocal:
		return ftsync.WithLocalStorage(cfg.Index.BasePath), nil
	case config.StorageMemory:
		return nil, nil
	case config.StorageS3:
		store, err := s3.New(ctx, cfg.S3.Bucket, s3.WithPrefix(cfg.S3.Prefix), s3.WithRegion(cfg.S3.Region))
		if err != nil {
			return nil, err
		}
		if cfg.S3.DDBTable == "" {
			return ftsync.WithBlobStore(blobstore.PrefixedFactory(store, "")), nil
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, func(o *awsconfig.LoadOptions) error {
			if cfg.S3.Region != "" {
				o.Region = cfg.S3.Region
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		ddb := dynamodb.NewFromConfig(awsCfg)
		return ftsync.WithBlobStore(func(table string) (blobstore.BlobStore, error) {
			uri := "s3://" + cfg.S3.Bucket + "/" + strings.Trim(cfg.S3.Prefix+"/"+table, "/")
			return s3.NewDDBCommitStore(blobstore.Prefixed(store, table), ddb, cfg.S3.DDBTable, uri), nil
		}), nil
	case config.StorageMinIO:
		client, err := miniogo.New(cfg.MinIO.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		store := minio.NewStore(client, cfg.MinIO.Bucket, cfg.MinIO.Prefix)
		return ftsync.WithBlobStore(blobstore.PrefixedFactory(store, "")), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Index.Storage)
	}
}

// register describes and registers the configured tables named in names,
// or all configured tables if names is empty.
func register(ctx context.Context, cfg *config.Config, db *sqlstore.DB, syncer *ftsync.Syncer, names []string, optFns ...ftsync.RegisterOption) (map[string]*ftsync.Searcher, error) {
	if len(names) == 0 {
		for _, t := range cfg.Tables {
			names = append(names, t.Name)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("no tables configured")
	}

	searchers := make(map[string]*ftsync.Searcher, len(names))
	for _, name := range names {
		tc, ok := cfg.Table(name)
		if !ok {
			return nil, fmt.Errorf("table %q is not configured", name)
		}
		desc, err := db.Describe(ctx, name, tc.Searchable())
		if err != nil {
			return nil, err
		}
		s, err := syncer.Register(ctx, desc, optFns...)
		if err != nil {
			return nil, err
		}
		searchers[name] = s
	}
	return searchers, nil
}

func reindex(ctx context.Context, cfg *config.Config, db *sqlstore.DB, syncer *ftsync.Syncer, names []string, stdout io.Writer) error {
	if _, err := register(ctx, cfg, db, syncer, names); err != nil {
		return err
	}
	for _, name := range syncer.Tables() {
		n, err := syncer.Backfill(ctx, name)
		if err != nil {
			return fmt.Errorf("reindex %q: %w", name, err)
		}
		fmt.Fprintf(stdout, "%s\t%d\n", name, n)
	}
	return nil
}

func search(ctx context.Context, cfg *config.Config, db *sqlstore.DB, syncer *ftsync.Syncer, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 10, "maximum number of rows, 0 for all")
	or := fs.Bool("or", false, "match any term instead of all terms")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("search: want <table> <query>")
	}
	table, text := fs.Arg(0), strings.Join(fs.Args()[1:], " ")

	var registerOpts []ftsync.RegisterOption
	if cfg.Index.Storage == config.StorageMemory {
		registerOpts = append(registerOpts, ftsync.WithBackfill())
	}
	searchers, err := register(ctx, cfg, db, syncer, []string{table}, registerOpts...)
	if err != nil {
		return err
	}
	searchOpts := []ftsync.SearchOption{ftsync.WithLimit(*limit)}
	if *or {
		searchOpts = append(searchOpts, ftsync.WithOperator(ftsync.OperatorOr))
	}
	rows, err := searchers[table].SearchAllOrdered(ctx, text, searchOpts...)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Fprintln(stdout, formatRow(row))
	}
	return nil
}

func tables(ctx context.Context, cfg *config.Config, db *sqlstore.DB, stdout io.Writer) error {
	for _, t := range cfg.Tables {
		n, err := db.Rows(t.Name).Count(ctx)
		if err != nil {
			return err
		}
		desc, err := db.Describe(ctx, t.Name, t.Searchable())
		if err != nil {
			return err
		}
		schema, err := ftsync.MapSchema(desc)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\t%d rows\t%s\n", t.Name, n, strings.Join(schema.FieldNames(), ","))
	}
	return nil
}

func formatRow(row model.Row) string {
	r, ok := row.(sqlstore.Row)
	if !ok {
		return fmt.Sprint(row)
	}
	values := r.Values()
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = formatValue(c, values[c])
	}
	return strings.Join(parts, "\t")
}

func formatValue(column string, v any) string {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	return fmt.Sprintf("%s=%v", column, v)
}
