package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ftsync/internal/segment"
	"github.com/hupe1980/ftsync/lexical"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ftsync.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database = "app.db"

[index]
base_path = "/var/lib/ftsync"
compression = "zstd"
codec = "bson"

[log]
level = "debug"
format = "json"

[[tables]]
name = "posts"
columns = ["title", "body"]

[[tables]]
name = "articles"

[tables.fields.title]
boost = 2.0
analyzer = "stemming"

[tables.fields.body]
stored = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "app.db", cfg.Database)
	assert.Equal(t, StorageLocal, cfg.Index.Storage)
	assert.Equal(t, "/var/lib/ftsync", cfg.Index.BasePath)
	assert.Equal(t, lexical.DefaultMaxSegments, cfg.Index.MaxSegments)
	assert.Equal(t, "bson", cfg.Codec().Name())

	c, err := cfg.Compression()
	require.NoError(t, err)
	assert.Equal(t, segment.CompressionZSTD, c)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	posts, ok := cfg.Table("posts")
	require.True(t, ok)
	assert.Equal(t, []string{"title", "body"}, posts.Searchable().Names)

	articles, ok := cfg.Table("articles")
	require.True(t, ok)
	spec := articles.Searchable()
	assert.Nil(t, spec.Names)
	assert.Equal(t, 2.0, spec.Fields["title"].Boost)
	assert.Equal(t, lexical.AnalyzerStemming, spec.Fields["title"].Analyzer)
	assert.True(t, spec.Fields["title"].Stored)
	assert.False(t, spec.Fields["body"].Stored)

	_, ok = cfg.Table("missing")
	assert.False(t, ok)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Index, cfg.Index)
	assert.Equal(t, "ftsync.db", cfg.Database)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvBasePath, "/tmp/idx")
	t.Setenv(EnvDatabase, "env.db")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(writeConfig(t, `database = "file.db"`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/idx", cfg.Index.BasePath)
	assert.Equal(t, "env.db", cfg.Database)
	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"unknown key", `databse = "x"`, ""},
		{"syntax", `database = `, ""},
		{"storage", "[index]\nstorage = \"ftp\"", "index.storage"},
		{"s3 bucket", "[index]\nstorage = \"s3\"", "s3.bucket"},
		{"minio", "[index]\nstorage = \"minio\"", "minio"},
		{"codec", "[index]\ncodec = \"xml\"", "index.codec"},
		{"compression", "[index]\ncompression = \"gzip\"", "index.compression"},
		{"segments", "[index]\nmax_segments = -1", "index.max_segments"},
		{"level", "[log]\nlevel = \"loud\"", "log.level"},
		{"format", "[log]\nformat = \"xml\"", "log.format"},
		{"table without spec", "[[tables]]\nname = \"posts\"", "tables[0]"},
		{"table without name", "[[tables]]\ncolumns = [\"a\"]", "tables[0].name"},
		{"duplicate table", "[[tables]]\nname = \"a\"\ncolumns = [\"x\"]\n[[tables]]\nname = \"a\"\ncolumns = [\"y\"]", "tables[1].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			if tt.field != "" {
				var ve ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.field, ve.Field)
			}
		})
	}
}
