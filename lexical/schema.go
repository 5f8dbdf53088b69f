package lexical

import (
	"fmt"
	"sort"
	"strings"
)

// FieldKind describes how a field is indexed.
type FieldKind string

const (
	// KindText is tokenized free text. The zero value means text.
	KindText FieldKind = "text"
	// KindID is an exact, unanalyzed identifier.
	KindID FieldKind = "id"
	// KindKeyword is an exact-match value that is searchable as one token.
	KindKeyword FieldKind = "keyword"
)

// FieldConfig configures a single schema field.
type FieldConfig struct {
	Kind     FieldKind `json:"kind"`
	Stored   bool      `json:"stored,omitempty"`
	Unique   bool      `json:"unique,omitempty"`
	Boost    float64   `json:"boost,omitempty"`
	Analyzer string    `json:"analyzer,omitempty"`
}

// TextField returns a stored text field using the stemming analyzer.
func TextField(boost float64) FieldConfig {
	return FieldConfig{Kind: KindText, Stored: true, Boost: boost, Analyzer: AnalyzerStemming}
}

// IDField returns a stored, unique identifier field.
func IDField() FieldConfig {
	return FieldConfig{Kind: KindID, Stored: true, Unique: true, Analyzer: AnalyzerKeyword}
}

// KeywordField returns a stored exact-match field.
func KeywordField() FieldConfig {
	return FieldConfig{Kind: KindKeyword, Stored: true, Analyzer: AnalyzerKeyword}
}

// Normalize fills defaults: kind text, boost 1, and the kind's analyzer.
func (f FieldConfig) Normalize() FieldConfig {
	if f.Kind == "" {
		f.Kind = KindText
	}
	if f.Boost == 0 {
		f.Boost = 1
	}
	if f.Analyzer == "" {
		if f.Kind == KindText {
			f.Analyzer = AnalyzerStandard
		} else {
			f.Analyzer = AnalyzerKeyword
		}
	}
	return f
}

// Validate checks a normalized field configuration.
func (f FieldConfig) Validate() error {
	switch f.Kind {
	case KindText, KindID, KindKeyword:
	default:
		return fmt.Errorf("unknown field kind %q", f.Kind)
	}
	if f.Boost < 0 {
		return fmt.Errorf("negative boost %v", f.Boost)
	}
	if _, ok := AnalyzerByName(f.Analyzer); !ok {
		return fmt.Errorf("unknown analyzer %q", f.Analyzer)
	}
	if f.Unique && f.Kind != KindID {
		return fmt.Errorf("only id fields can be unique")
	}
	return nil
}

// Schema is the set of fields of an index. Key lists the unique ID fields
// whose values, in order, identify a document.
type Schema struct {
	Fields map[string]FieldConfig `json:"fields"`
	Key    []string               `json:"key"`
}

// NewSchema returns a schema with normalized copies of fields.
func NewSchema(fields map[string]FieldConfig, key ...string) Schema {
	s := Schema{Fields: make(map[string]FieldConfig, len(fields)), Key: append([]string(nil), key...)}
	for name, f := range fields {
		s.Fields[name] = f.Normalize()
	}
	return s
}

// Validate checks every field and the key.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: schema has no fields", ErrInvalidSchema)
	}
	for _, name := range s.FieldNames() {
		if name == "" || strings.ContainsAny(name, " \t\n:()\"") {
			return fmt.Errorf("%w: invalid field name %q", ErrInvalidSchema, name)
		}
		if err := s.Fields[name].Validate(); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidSchema, name, err)
		}
	}
	if len(s.Key) == 0 {
		return fmt.Errorf("%w: schema has no key fields", ErrInvalidSchema)
	}
	for _, k := range s.Key {
		f, ok := s.Fields[k]
		if !ok {
			return fmt.Errorf("%w: key field %q is not defined", ErrInvalidSchema, k)
		}
		if f.Kind != KindID || !f.Unique {
			return fmt.Errorf("%w: key field %q must be a unique id field", ErrInvalidSchema, k)
		}
	}
	return nil
}

// FieldNames returns the sorted field names.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Field returns the configuration of a field.
func (s Schema) Field(name string) (FieldConfig, bool) {
	f, ok := s.Fields[name]
	return f, ok
}

// Equal reports whether two schemas describe the same fields and key.
func (s Schema) Equal(o Schema) bool {
	if len(s.Fields) != len(o.Fields) || len(s.Key) != len(o.Key) {
		return false
	}
	for i := range s.Key {
		if s.Key[i] != o.Key[i] {
			return false
		}
	}
	for name, f := range s.Fields {
		g, ok := o.Fields[name]
		if !ok || f.Normalize() != g.Normalize() {
			return false
		}
	}
	return true
}

// KeySeparator joins the values of composite keys.
const KeySeparator = "\x1f"

// JoinKey builds a document key from key values in key order.
func JoinKey(values ...string) string {
	return strings.Join(values, KeySeparator)
}

// SplitKey is the inverse of JoinKey.
func SplitKey(key string) []string {
	return strings.Split(key, KeySeparator)
}

// KeyOf returns the document key of doc.
func (s Schema) KeyOf(doc Document) (string, error) {
	values := make([]string, len(s.Key))
	for i, k := range s.Key {
		v, ok := doc[k]
		if !ok {
			return "", fmt.Errorf("%w: missing %q", ErrMissingKey, k)
		}
		values[i] = v
	}
	return JoinKey(values...), nil
}

// Document is a set of field values.
type Document map[string]string

// Clone returns a copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
