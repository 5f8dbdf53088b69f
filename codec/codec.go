// Package codec centralizes segment payload encoding.
//
// Persisted segments record the codec name in their header, so changing the
// configured codec only affects newly written segments.
package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
)

// Codec encodes and decodes segment payloads.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Built-in codecs.
var (
	// JSON uses encoding/json. Segments stay readable by any JSON tool.
	JSON = New("json", json.Marshal, json.Unmarshal)
	// GoJSON uses github.com/goccy/go-json; its output is interchangeable
	// with JSON.
	GoJSON = New("go-json", gojson.Marshal, gojson.Unmarshal)
	// BSON encodes payloads as BSON documents. The top-level value must be
	// a struct or a map with string keys.
	BSON = New("bson", bson.Marshal, bson.Unmarshal)
)

// Default is the codec used for new segments.
var Default = GoJSON

var builtin = []Codec{JSON, GoJSON, BSON}

type funcCodec struct {
	name      string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

// New returns a Codec named name built from a marshal/unmarshal pair.
func New(name string, marshal func(any) ([]byte, error), unmarshal func([]byte, any) error) Codec {
	return funcCodec{name: name, marshal: marshal, unmarshal: unmarshal}
}

func (c funcCodec) Marshal(v any) ([]byte, error)      { return c.marshal(v) }
func (c funcCodec) Unmarshal(data []byte, v any) error { return c.unmarshal(data, v) }
func (c funcCodec) Name() string                       { return c.name }

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	for _, c := range builtin {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Names lists the built-in codec names.
func Names() []string {
	names := make([]string, len(builtin))
	for i, c := range builtin {
		names[i] = c.Name()
	}
	return names
}
