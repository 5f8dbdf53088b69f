package lexical

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// posting is the occurrence list of one term in one field.
type posting struct {
	docs      *roaring.Bitmap
	positions map[uint32][]uint32 // len(positions[doc]) is the term frequency
}

func newPosting() *posting {
	return &posting{docs: roaring.New(), positions: make(map[uint32][]uint32)}
}

func (p *posting) clone() *posting {
	c := &posting{docs: p.docs.Clone(), positions: make(map[uint32][]uint32, len(p.positions))}
	for doc, pos := range p.positions {
		c.positions[doc] = pos
	}
	return c
}

func (p *posting) tf(doc uint32) uint32 {
	return uint32(len(p.positions[doc]))
}

// fieldIndex is the inverted index of one field.
type fieldIndex struct {
	terms    map[string]*posting
	lengths  map[uint32]uint32
	totalLen uint64
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{terms: make(map[string]*posting), lengths: make(map[uint32]uint32)}
}

func (f *fieldIndex) avgLen(docCount uint64) float64 {
	if docCount == 0 {
		return 0
	}
	return float64(f.totalLen) / float64(docCount)
}

// snapshot is an immutable view of the index. Writers derive a new snapshot
// with a builder and publish it atomically.
type snapshot struct {
	version  uint64
	schema   Schema
	analyzer map[string]Analyzer
	docs     map[uint32]Document
	keys     map[string]uint32
	docKeys  map[uint32]string
	live     *roaring.Bitmap
	fields   map[string]*fieldIndex
	nextDoc  uint32
}

func newSnapshot(schema Schema) (*snapshot, error) {
	s := &snapshot{
		schema:   schema,
		analyzer: make(map[string]Analyzer, len(schema.Fields)),
		docs:     make(map[uint32]Document),
		keys:     make(map[string]uint32),
		docKeys:  make(map[uint32]string),
		live:     roaring.New(),
		fields:   make(map[string]*fieldIndex, len(schema.Fields)),
	}
	for name, f := range schema.Fields {
		a, ok := AnalyzerByName(f.Analyzer)
		if !ok {
			return nil, fmt.Errorf("%w: field %q: unknown analyzer %q", ErrInvalidSchema, name, f.Analyzer)
		}
		s.analyzer[name] = a
		s.fields[name] = newFieldIndex()
	}
	return s, nil
}

func (s *snapshot) docCount() uint64 {
	return s.live.GetCardinality()
}

// builder applies mutations to a copy of a snapshot. Postings and field
// indexes are copied on first write, so untouched ones stay shared with the
// parent snapshot.
type builder struct {
	s           *snapshot
	ownedPost   map[*posting]bool
	ownedFields map[string]bool
}

func newBuilder(parent *snapshot) *builder {
	s := &snapshot{
		version:  parent.version,
		schema:   parent.schema,
		analyzer: parent.analyzer,
		docs:     make(map[uint32]Document, len(parent.docs)),
		keys:     make(map[string]uint32, len(parent.keys)),
		docKeys:  make(map[uint32]string, len(parent.docKeys)),
		live:     parent.live.Clone(),
		fields:   make(map[string]*fieldIndex, len(parent.fields)),
		nextDoc:  parent.nextDoc,
	}
	for k, v := range parent.docs {
		s.docs[k] = v
	}
	for k, v := range parent.keys {
		s.keys[k] = v
	}
	for k, v := range parent.docKeys {
		s.docKeys[k] = v
	}
	for k, v := range parent.fields {
		s.fields[k] = v
	}
	return &builder{s: s, ownedPost: make(map[*posting]bool), ownedFields: make(map[string]bool)}
}

func (b *builder) field(name string) *fieldIndex {
	f := b.s.fields[name]
	if b.ownedFields[name] {
		return f
	}
	c := &fieldIndex{
		terms:    make(map[string]*posting, len(f.terms)),
		lengths:  make(map[uint32]uint32, len(f.lengths)),
		totalLen: f.totalLen,
	}
	for t, p := range f.terms {
		c.terms[t] = p
	}
	for d, l := range f.lengths {
		c.lengths[d] = l
	}
	b.s.fields[name] = c
	b.ownedFields[name] = true
	return c
}

func (b *builder) posting(f *fieldIndex, term string, create bool) *posting {
	p, ok := f.terms[term]
	if !ok {
		if !create {
			return nil
		}
		p = newPosting()
		f.terms[term] = p
		b.ownedPost[p] = true
		return p
	}
	if !b.ownedPost[p] {
		p = p.clone()
		f.terms[term] = p
		b.ownedPost[p] = true
	}
	return p
}

// clear drops every document. Document numbers keep increasing so that
// insertion order stays comparable across a clear.
func (b *builder) clear() {
	next := b.s.nextDoc
	fresh, _ := newSnapshot(b.s.schema)
	fresh.version = b.s.version
	fresh.nextDoc = next
	b.s = fresh
	b.ownedPost = make(map[*posting]bool)
	b.ownedFields = make(map[string]bool, len(fresh.fields))
	for name := range fresh.fields {
		b.ownedFields[name] = true
	}
}

// delete removes the document with key. Missing keys are ignored.
func (b *builder) delete(key string) {
	doc, ok := b.s.keys[key]
	if !ok {
		return
	}
	values := b.s.docs[doc]
	for name := range b.s.schema.Fields {
		v, ok := values[name]
		if !ok {
			continue
		}
		f := b.field(name)
		seen := make(map[string]bool)
		for _, tok := range b.s.analyzer[name].Analyze(v) {
			if seen[tok.Term] {
				continue
			}
			seen[tok.Term] = true
			p := b.posting(f, tok.Term, false)
			if p == nil {
				continue
			}
			p.docs.Remove(doc)
			delete(p.positions, doc)
			if p.docs.IsEmpty() {
				delete(f.terms, tok.Term)
			}
		}
		f.totalLen -= uint64(f.lengths[doc])
		delete(f.lengths, doc)
	}
	delete(b.s.docs, doc)
	delete(b.s.docKeys, doc)
	delete(b.s.keys, key)
	b.s.live.Remove(doc)
}

// upsert replaces any document with the same key and appends doc as the
// newest document.
func (b *builder) upsert(key string, values Document) {
	b.delete(key)

	doc := b.s.nextDoc
	b.s.nextDoc++

	for name, v := range values {
		if _, ok := b.s.schema.Fields[name]; !ok {
			continue
		}
		tokens := b.s.analyzer[name].Analyze(v)
		f := b.field(name)
		for _, tok := range tokens {
			p := b.posting(f, tok.Term, true)
			p.docs.Add(doc)
			p.positions[doc] = append(p.positions[doc], uint32(tok.Pos))
		}
		f.lengths[doc] = uint32(len(tokens))
		f.totalLen += uint64(len(tokens))
	}

	b.s.docs[doc] = values
	b.s.docKeys[doc] = key
	b.s.keys[key] = doc
	b.s.live.Add(doc)
}

func (b *builder) apply(op segmentOp) error {
	switch op.Op {
	case opClear:
		b.clear()
	case opDelete:
		b.delete(op.Key)
	case opUpsert:
		b.upsert(op.Key, op.Doc)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrCorrupt, op.Op)
	}
	return nil
}

func (b *builder) snapshot() *snapshot {
	for _, f := range b.s.fields {
		for _, p := range f.terms {
			if b.ownedPost[p] {
				p.docs.RunOptimize()
			}
		}
	}
	return b.s
}

// Segment operations, in commit order.
const (
	opClear  = "clear"
	opDelete = "delete"
	opUpsert = "upsert"
)

type segmentOp struct {
	Op  string   `json:"op" bson:"op"`
	Key string   `json:"key,omitempty" bson:"key,omitempty"`
	Doc Document `json:"doc,omitempty" bson:"doc,omitempty"`
}

type segmentPayload struct {
	Ops []segmentOp `json:"ops" bson:"ops"`
}

// dump returns the operations that rebuild s from an empty index, in
// document order.
func (s *snapshot) dump() []segmentOp {
	ops := make([]segmentOp, 0, s.live.GetCardinality()+1)
	ops = append(ops, segmentOp{Op: opClear})
	it := s.live.Iterator()
	for it.HasNext() {
		doc := it.Next()
		ops = append(ops, segmentOp{Op: opUpsert, Key: s.docKeys[doc], Doc: s.docs[doc]})
	}
	return ops
}
