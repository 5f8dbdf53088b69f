package ftsync

import (
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/ftsync/lexical"
	"github.com/hupe1980/ftsync/model"
)

// MapSchema derives the index schema of a table.
//
// Every primary key column becomes a stored, unique ID field. A Names spec
// adds a stored, stemmed text field per text column and skips other columns.
// A Fields spec uses its configurations as given. The result only depends on
// table.
func MapSchema(table model.TableDescriptor) (lexical.Schema, error) {
	schema, _, err := mapSchema(table)
	return schema, err
}

// mapSchema also returns the searchable fields, the parser's default fields.
func mapSchema(table model.TableDescriptor) (lexical.Schema, []string, error) {
	if err := validateTableName(table.Name); err != nil {
		return lexical.Schema{}, nil, err
	}
	if len(table.PrimaryKey) == 0 {
		return lexical.Schema{}, nil, &ConfigurationError{Table: table.Name, Reason: "no primary key"}
	}

	spec := table.Searchable
	fields := make(map[string]lexical.FieldConfig)
	var searchable []string

	switch {
	case spec.Names != nil && spec.Fields == nil:
		for _, name := range spec.Names {
			col, ok := table.Column(name)
			if !ok {
				return lexical.Schema{}, nil, &ConfigurationError{Table: table.Name, Reason: "unknown searchable column " + strconv.Quote(name)}
			}
			if !col.IsText() {
				continue
			}
			if _, dup := fields[name]; !dup {
				searchable = append(searchable, name)
			}
			fields[name] = lexical.TextField(1)
		}
	case spec.Fields != nil && spec.Names == nil:
		names := make([]string, 0, len(spec.Fields))
		for name := range spec.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, ok := table.Column(name); !ok {
				return lexical.Schema{}, nil, &ConfigurationError{Table: table.Name, Reason: "unknown searchable column " + strconv.Quote(name)}
			}
			f := spec.Fields[name].Normalize()
			if err := f.Validate(); err != nil {
				return lexical.Schema{}, nil, &ConfigurationError{Table: table.Name, Reason: "field " + strconv.Quote(name), cause: err}
			}
			fields[name] = f
			searchable = append(searchable, name)
		}
	default:
		return lexical.Schema{}, nil, &ConfigurationError{
			Table:  table.Name,
			Reason: "searchable spec must set exactly one of Names or Fields",
		}
	}

	for _, pk := range table.PrimaryKey {
		if _, ok := table.Column(pk); !ok {
			return lexical.Schema{}, nil, &ConfigurationError{Table: table.Name, Reason: "unknown primary key column " + strconv.Quote(pk)}
		}
		fields[pk] = lexical.IDField()
	}
	searchable = withoutKeys(searchable, table.PrimaryKey)

	schema := lexical.NewSchema(fields, table.PrimaryKey...)
	if err := schema.Validate(); err != nil {
		return lexical.Schema{}, nil, &ConfigurationError{Table: table.Name, Reason: "invalid schema", cause: err}
	}
	return schema, searchable, nil
}

// defaultFields returns the searchable fields present in schema. If none
// remain, all non-key fields are used, then the key fields.
func defaultFields(schema lexical.Schema, searchable []string) []string {
	var out []string
	for _, name := range searchable {
		if _, ok := schema.Fields[name]; ok {
			out = append(out, name)
		}
	}
	if len(out) > 0 {
		return out
	}
	out = withoutKeys(schema.FieldNames(), schema.Key)
	if len(out) > 0 {
		return out
	}
	return append([]string(nil), schema.Key...)
}

func withoutKeys(names, keys []string) []string {
	out := names[:0:0]
	for _, n := range names {
		isKey := false
		for _, k := range keys {
			if n == k {
				isKey = true
				break
			}
		}
		if !isKey {
			out = append(out, n)
		}
	}
	return out
}

func validateTableName(name string) error {
	switch {
	case name == "":
		return &ConfigurationError{Table: name, Reason: "empty table name"}
	case name == "." || name == "..", strings.ContainsAny(name, `/\`+"\x00"):
		return &ConfigurationError{Table: name, Reason: "table name is not a valid directory name"}
	}
	return nil
}
