// Package config loads the ftsync command configuration from TOML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/hupe1980/ftsync/codec"
	"github.com/hupe1980/ftsync/internal/segment"
	"github.com/hupe1980/ftsync/lexical"
	"github.com/hupe1980/ftsync/model"
)

// Environment variables that override file settings.
const (
	EnvBasePath = "FTSYNC_BASE_PATH"
	EnvDatabase = "FTSYNC_DB"
	EnvLogLevel = "FTSYNC_LOG_LEVEL"
)

// Storage backends.
const (
	StorageLocal  = "local"
	StorageMemory = "memory"
	StorageS3     = "s3"
	StorageMinIO  = "minio"
)

// Config is the command configuration.
type Config struct {
	Database string        `toml:"database"`
	Index    IndexConfig   `toml:"index"`
	S3       S3Config      `toml:"s3"`
	MinIO    MinIOConfig   `toml:"minio"`
	Log      LogConfig     `toml:"log"`
	Metrics  MetricsConfig `toml:"metrics"`
	Tables   []TableConfig `toml:"tables"`
}

// IndexConfig selects where and how indexes are stored.
type IndexConfig struct {
	Storage     string `toml:"storage"`
	BasePath    string `toml:"base_path"`
	Codec       string `toml:"codec"`
	Compression string `toml:"compression"`
	MaxSegments int    `toml:"max_segments"`
}

// S3Config configures the S3 backend. With DDBTable set, index commits are
// made atomic through a DynamoDB table.
type S3Config struct {
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`
	Region   string `toml:"region"`
	DDBTable string `toml:"ddb_table"`
}

// MinIOConfig configures an S3-compatible backend.
type MinIOConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Secure    bool   `toml:"secure"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen
// disables it.
type MetricsConfig struct {
	Listen string `toml:"listen"`
}

// TableConfig declares a searchable table. Exactly one of Columns or
// Fields must be set.
type TableConfig struct {
	Name    string                 `toml:"name"`
	Columns []string               `toml:"columns"`
	Fields  map[string]FieldConfig `toml:"fields"`
}

// FieldConfig is the file form of lexical.FieldConfig.
type FieldConfig struct {
	Kind     string  `toml:"kind"`
	Boost    float64 `toml:"boost"`
	Analyzer string  `toml:"analyzer"`
	Stored   *bool   `toml:"stored"`
}

// Default returns the configuration used for unset values.
func Default() *Config {
	return &Config{
		Database: "ftsync.db",
		Index: IndexConfig{
			Storage:     StorageLocal,
			BasePath:    "indexes",
			Codec:       codec.Default.Name(),
			Compression: "none",
			MaxSegments: lexical.DefaultMaxSegments,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides replaces settings with their environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvBasePath); v != "" {
		c.Index.BasePath = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// ValidationError reports an invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration. All problems are returned joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Database == "" {
		invalid("database", "must be set")
	}
	switch c.Index.Storage {
	case StorageLocal:
		if c.Index.BasePath == "" {
			invalid("index.base_path", "must be set for local storage")
		}
	case StorageMemory:
	case StorageS3:
		if c.S3.Bucket == "" {
			invalid("s3.bucket", "must be set for s3 storage")
		}
	case StorageMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			invalid("minio", "endpoint and bucket must be set for minio storage")
		}
	default:
		invalid("index.storage", "unknown storage %q", c.Index.Storage)
	}
	if _, ok := codec.ByName(c.Index.Codec); !ok {
		invalid("index.codec", "unknown codec %q, must be one of: %s", c.Index.Codec, strings.Join(codec.Names(), ", "))
	}
	if _, err := c.Compression(); err != nil {
		invalid("index.compression", "%v", err)
	}
	if c.Index.MaxSegments <= 0 {
		invalid("index.max_segments", "must be positive")
	}
	if _, err := c.LogLevel(); err != nil {
		invalid("log.level", "%v", err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		invalid("log.format", "must be text or json, got %q", f)
	}

	seen := make(map[string]bool, len(c.Tables))
	for i, t := range c.Tables {
		field := "tables[" + strconv.Itoa(i) + "]"
		switch {
		case t.Name == "":
			invalid(field+".name", "must be set")
		case seen[t.Name]:
			invalid(field+".name", "duplicate table %q", t.Name)
		}
		seen[t.Name] = true
		if (len(t.Columns) == 0) == (len(t.Fields) == 0) {
			invalid(field, "set exactly one of columns or fields")
		}
	}
	return errors.Join(errs...)
}

// Codec returns the configured segment codec.
func (c *Config) Codec() codec.Codec {
	cd, ok := codec.ByName(c.Index.Codec)
	if !ok {
		return codec.Default
	}
	return cd
}

// Compression returns the configured segment compression.
func (c *Config) Compression() (segment.Compression, error) {
	return segment.ParseCompression(c.Index.Compression)
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return level, nil
}

// Table returns the configuration of the named table.
func (c *Config) Table(name string) (TableConfig, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableConfig{}, false
}

// Searchable converts the table settings to a searchable spec.
func (t TableConfig) Searchable() model.SearchableSpec {
	if len(t.Columns) > 0 {
		return model.SearchableNames(t.Columns...)
	}
	fields := make(map[string]lexical.FieldConfig, len(t.Fields))
	for name, f := range t.Fields {
		fc := lexical.FieldConfig{
			Kind:     lexical.FieldKind(f.Kind),
			Boost:    f.Boost,
			Analyzer: f.Analyzer,
			Stored:   true,
		}
		if f.Stored != nil {
			fc.Stored = *f.Stored
		}
		fields[name] = fc
	}
	return model.SearchableFields(fields)
}
