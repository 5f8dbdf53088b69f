package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return NewSchema(map[string]FieldConfig{
		"id":    IDField(),
		"title": TextField(2),
		"body":  TextField(1),
		"tag":   KeywordField(),
	}, "id")
}

func TestSchema_Validate(t *testing.T) {
	require.NoError(t, testSchema().Validate())

	tests := []struct {
		name   string
		schema Schema
	}{
		{"no fields", Schema{}},
		{"no key", NewSchema(map[string]FieldConfig{"title": TextField(1)})},
		{"key not defined", NewSchema(map[string]FieldConfig{"title": TextField(1)}, "id")},
		{"key not unique id", NewSchema(map[string]FieldConfig{"title": TextField(1)}, "title")},
		{"bad analyzer", NewSchema(map[string]FieldConfig{"id": IDField(), "t": {Analyzer: "ngram"}}, "id")},
		{"bad kind", NewSchema(map[string]FieldConfig{"id": IDField(), "t": {Kind: "vector"}}, "id")},
		{"negative boost", NewSchema(map[string]FieldConfig{"id": IDField(), "t": {Boost: -1}}, "id")},
		{"unique text", NewSchema(map[string]FieldConfig{"id": IDField(), "t": {Unique: true}}, "id")},
		{"bad name", NewSchema(map[string]FieldConfig{"id": IDField(), "a:b": TextField(1)}, "id")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.schema.Validate(), ErrInvalidSchema)
		})
	}
}

func TestFieldConfig_Normalize(t *testing.T) {
	f := FieldConfig{}.Normalize()
	assert.Equal(t, KindText, f.Kind)
	assert.Equal(t, 1.0, f.Boost)
	assert.Equal(t, AnalyzerStandard, f.Analyzer)

	id := FieldConfig{Kind: KindID}.Normalize()
	assert.Equal(t, AnalyzerKeyword, id.Analyzer)
}

func TestSchema_Equal(t *testing.T) {
	a := testSchema()
	b := testSchema()
	assert.True(t, a.Equal(b))

	b.Fields["title"] = TextField(3)
	assert.False(t, a.Equal(b))

	c := NewSchema(a.Fields, "tag")
	assert.False(t, a.Equal(c))
}

func TestSchema_KeyOf(t *testing.T) {
	s := NewSchema(map[string]FieldConfig{"a": IDField(), "b": IDField()}, "a", "b")

	key, err := s.KeyOf(Document{"a": "1", "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, JoinKey("1", "x"), key)
	assert.Equal(t, []string{"1", "x"}, SplitKey(key))

	_, err = s.KeyOf(Document{"a": "1"})
	assert.ErrorIs(t, err, ErrMissingKey)
}
