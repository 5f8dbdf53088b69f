package ftsync

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/ftsync/lexical"
	"github.com/hupe1980/ftsync/model"
)

// renderValue converts a column value to its indexed string form.
// ok is false for NULL.
func renderValue(v any) (s string, ok bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		if v == nil {
			return "", false
		}
		return string(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		return v.Format(time.RFC3339Nano), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// rowKey returns the document key of row: its primary key values joined
// in column order.
func rowKey(row model.Row, pk []string) (string, error) {
	values := make([]string, len(pk))
	for i, col := range pk {
		v, ok := row.Get(col)
		if !ok {
			return "", fmt.Errorf("%w: row of %q has no column %q", lexical.ErrMissingKey, row.Table(), col)
		}
		s, ok := renderValue(v)
		if !ok {
			return "", fmt.Errorf("%w: row of %q has NULL primary key %q", lexical.ErrMissingKey, row.Table(), col)
		}
		values[i] = s
	}
	return lexical.JoinKey(values...), nil
}

// rowDocument builds the document of row for schema. Columns missing from
// the row and NULL values are left out.
func rowDocument(row model.Row, schema lexical.Schema) lexical.Document {
	doc := make(lexical.Document, len(schema.Fields))
	for name := range schema.Fields {
		v, ok := row.Get(name)
		if !ok {
			continue
		}
		if s, ok := renderValue(v); ok {
			doc[name] = s
		}
	}
	return doc
}
