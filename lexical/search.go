package lexical

import (
	"context"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/ftsync/lexical/bm25"
)

// maxPrefixTerms caps the number of index terms a prefix query expands to.
const maxPrefixTerms = 1024

// Hit is a ranked search result.
type Hit struct {
	Key    string
	Score  float64
	Fields Document // stored fields only
}

// match returns the documents matching q. The result may alias index
// structures and must not be modified.
func (s *snapshot) match(q Query) *roaring.Bitmap {
	switch q := q.(type) {
	case TermQuery:
		if p := s.term(q.Field, q.Term); p != nil {
			return p.docs
		}
		return roaring.New()
	case PrefixQuery:
		terms := s.expand(q.Field, q.Prefix)
		bms := make([]*roaring.Bitmap, 0, len(terms))
		for _, t := range terms {
			bms = append(bms, s.fields[q.Field].terms[t].docs)
		}
		return roaring.FastOr(bms...)
	case PhraseQuery:
		return s.matchPhrase(q)
	case BoolQuery:
		return s.matchBool(q)
	default:
		return roaring.New()
	}
}

func (s *snapshot) matchBool(q BoolQuery) *roaring.Bitmap {
	var result *roaring.Bitmap
	switch {
	case len(q.Must) > 0:
		bms := make([]*roaring.Bitmap, len(q.Must))
		for i, c := range q.Must {
			bms[i] = s.match(c)
		}
		result = roaring.FastAnd(bms...)
	case len(q.Should) > 0:
		bms := make([]*roaring.Bitmap, len(q.Should))
		for i, c := range q.Should {
			bms[i] = s.match(c)
		}
		result = roaring.FastOr(bms...)
	default:
		result = s.live.Clone()
	}
	for _, c := range q.MustNot {
		result.AndNot(s.match(c))
	}
	return result
}

func (s *snapshot) matchPhrase(q PhraseQuery) *roaring.Bitmap {
	postings := make([]*posting, len(q.Terms))
	bms := make([]*roaring.Bitmap, len(q.Terms))
	for i, t := range q.Terms {
		p := s.term(q.Field, t.Term)
		if p == nil {
			return roaring.New()
		}
		postings[i] = p
		bms[i] = p.docs
	}
	candidates := roaring.FastAnd(bms...)
	result := roaring.New()
	it := candidates.Iterator()
	for it.HasNext() {
		doc := it.Next()
		if phraseAt(doc, q.Terms, postings) {
			result.Add(doc)
		}
	}
	return result
}

// phraseAt reports whether every term occurs at its offset from some start.
func phraseAt(doc uint32, terms []Token, postings []*posting) bool {
	base := terms[0].Pos
	for _, start := range postings[0].positions[doc] {
		ok := true
		for i := 1; i < len(terms) && ok; i++ {
			want := int(start) + terms[i].Pos - base
			ok = containsPos(postings[i].positions[doc], want)
		}
		if ok {
			return true
		}
	}
	return false
}

func containsPos(positions []uint32, want int) bool {
	if want < 0 {
		return false
	}
	i := sort.Search(len(positions), func(i int) bool { return int(positions[i]) >= want })
	return i < len(positions) && int(positions[i]) == want
}

func (s *snapshot) term(field, term string) *posting {
	f, ok := s.fields[field]
	if !ok {
		return nil
	}
	return f.terms[term]
}

// expand returns the sorted terms of field starting with prefix.
func (s *snapshot) expand(field, prefix string) []string {
	f, ok := s.fields[field]
	if !ok {
		return nil
	}
	var terms []string
	for t := range f.terms {
		if strings.HasPrefix(t, prefix) {
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)
	if len(terms) > maxPrefixTerms {
		terms = terms[:maxPrefixTerms]
	}
	return terms
}

// scoringTerm is a positive query term with its precomputed statistics.
type scoringTerm struct {
	posting *posting
	lengths map[uint32]uint32
	idf     float64
	scorer  bm25.Scorer
}

// scoringTerms collects the terms outside MustNot clauses.
func (s *snapshot) scoringTerms(q Query, params bm25.Params) []scoringTerm {
	n := int(s.docCount())
	var out []scoringTerm
	add := func(field, term string) {
		p := s.term(field, term)
		if p == nil {
			return
		}
		f := s.fields[field]
		out = append(out, scoringTerm{
			posting: p,
			lengths: f.lengths,
			idf:     bm25.IDF(n, int(p.docs.GetCardinality())),
			scorer:  bm25.NewScorer(params, f.avgLen(uint64(n)), s.schema.Fields[field].Boost),
		})
	}
	var walk func(Query)
	walk = func(q Query) {
		switch q := q.(type) {
		case TermQuery:
			add(q.Field, q.Term)
		case PhraseQuery:
			for _, t := range q.Terms {
				add(q.Field, t.Term)
			}
		case PrefixQuery:
			for _, t := range s.expand(q.Field, q.Prefix) {
				add(q.Field, t)
			}
		case BoolQuery:
			for _, c := range q.Must {
				walk(c)
			}
			for _, c := range q.Should {
				walk(c)
			}
		}
	}
	walk(q)
	return out
}

func (s *snapshot) search(ctx context.Context, q Query, limit int, params bm25.Params) ([]Hit, error) {
	if _, none := q.(MatchNone); none || q == nil {
		return nil, nil
	}

	matched := s.match(q)
	if !matched.IsEmpty() {
		matched = roaring.And(matched, s.live)
	}
	terms := s.scoringTerms(q, params)

	top := bm25.NewTopK(limit)
	it := matched.Iterator()
	for i := 0; it.HasNext(); i++ {
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		doc := it.Next()
		var score float64
		for _, t := range terms {
			if tf := t.posting.tf(doc); tf > 0 {
				score += t.scorer.Score(t.idf, tf, t.lengths[doc])
			}
		}
		top.Push(doc, score)
	}

	results := top.Results()
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{Key: s.docKeys[r.Doc], Score: r.Score, Fields: s.stored(r.Doc)}
	}
	return hits, nil
}

func (s *snapshot) stored(doc uint32) Document {
	values := s.docs[doc]
	out := make(Document, len(values))
	for name, v := range values {
		if f, ok := s.schema.Fields[name]; ok && f.Stored {
			out[name] = v
		}
	}
	return out
}
