package ftsync

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ftsync/lexical"
)

type testRow struct {
	table  string
	values map[string]any
}

func (r testRow) Table() string { return r.table }

func (r testRow) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

func TestRenderValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{nil, "", false},
		{[]byte(nil), "", false},
		{"text", "text", true},
		{[]byte("raw"), "raw", true},
		{42, "42", true},
		{int64(-7), "-7", true},
		{int32(3), "3", true},
		{uint64(9), "9", true},
		{uint32(8), "8", true},
		{1.5, "1.5", true},
		{float32(0.25), "0.25", true},
		{true, "true", true},
		{ts, "2024-05-01T12:30:00Z", true},
		{big.NewInt(12), "12", true},
		{struct{ A int }{1}, "{1}", true},
	}
	for _, tt := range tests {
		got, ok := renderValue(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestRowKey(t *testing.T) {
	row := testRow{table: "tags", values: map[string]any{"post": int64(1), "name": "go", "gone": nil}}

	key, err := rowKey(row, []string{"post", "name"})
	require.NoError(t, err)
	assert.Equal(t, lexical.JoinKey("1", "go"), key)
	assert.Equal(t, []string{"1", "go"}, lexical.SplitKey(key))

	_, err = rowKey(row, []string{"missing"})
	assert.ErrorIs(t, err, lexical.ErrMissingKey)

	_, err = rowKey(row, []string{"gone"})
	assert.ErrorIs(t, err, lexical.ErrMissingKey)
}

func TestRowDocument(t *testing.T) {
	schema := lexical.NewSchema(map[string]lexical.FieldConfig{
		"id":    lexical.IDField(),
		"title": lexical.TextField(1),
		"body":  lexical.TextField(1),
		"note":  lexical.TextField(1),
	}, "id")
	row := testRow{table: "posts", values: map[string]any{
		"id":    int64(5),
		"title": "hello",
		"body":  nil,
		"extra": "ignored",
	}}

	assert.Equal(t, lexical.Document{"id": "5", "title": "hello"}, rowDocument(row, schema))
}
