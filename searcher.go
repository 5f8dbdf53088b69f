package ftsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/ftsync/lexical"
	"github.com/hupe1980/ftsync/model"
)

type cacheKey struct {
	text string
	op   Operator
}

// Searcher runs free-text queries against one table.
type Searcher struct {
	sub     *Subscription
	store   model.RowStore
	cache   *lru.Cache[cacheKey, lexical.Query]
	logger  *Logger
	metrics MetricsCollector
}

func newSearcher(sub *Subscription, store model.RowStore, opts options) (*Searcher, error) {
	s := &Searcher{
		sub:     sub,
		store:   store,
		logger:  sub.logger,
		metrics: opts.metrics,
	}
	if opts.queryCacheSize > 0 {
		cache, err := lru.New[cacheKey, lexical.Query](opts.queryCacheSize)
		if err != nil {
			return nil, fmt.Errorf("ftsync: query cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Table returns the table name.
func (s *Searcher) Table() string { return s.sub.Table() }

// Fields returns the fields unqualified terms are matched against.
func (s *Searcher) Fields() []string { return s.sub.Fields() }

// Parse parses text against the table schema. Malformed text yields an
// error matching ErrQueryParse.
func (s *Searcher) Parse(text string, op Operator) (lexical.Query, error) {
	key := cacheKey{text: text, op: op}
	if s.cache != nil {
		if q, ok := s.cache.Get(key); ok {
			return q, nil
		}
	}
	p, err := s.sub.Index().Parser(s.sub.fields, op)
	if err != nil {
		return nil, err
	}
	q, err := p.Parse(text)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(key, q)
	}
	return q, nil
}

// Hits returns the ranked hits of text, best first. Equal scores keep index
// insertion order.
func (s *Searcher) Hits(ctx context.Context, text string, optFns ...SearchOption) ([]lexical.Hit, error) {
	opts := applySearchOptions(optFns)
	start := time.Now()

	hits, err := s.hits(ctx, text, opts)
	s.metrics.RecordSearch(s.Table(), len(hits), time.Since(start), err)
	s.logger.LogSearch(ctx, s.Table(), text, len(hits), err)
	return hits, err
}

func (s *Searcher) hits(ctx context.Context, text string, opts searchOptions) ([]lexical.Hit, error) {
	q, err := s.Parse(text, opts.operator)
	if err != nil {
		return nil, err
	}
	hits, err := s.sub.Index().Search(ctx, q, opts.limit)
	if err != nil {
		if errors.Is(err, lexical.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return hits, nil
}

// Search returns a store query over the rows whose keys match text. The
// query can be refined with store predicates; its order is the store's.
func (s *Searcher) Search(ctx context.Context, text string, optFns ...SearchOption) (model.Query, error) {
	hits, err := s.Hits(ctx, text, optFns...)
	if err != nil {
		return nil, err
	}
	return s.store.RowsByKey(s.Table(), s.sub.PrimaryKey(), hitKeys(hits)), nil
}

// SearchAllOrdered returns the matching rows ordered by relevance, best
// first. Hits whose row no longer exists are skipped.
func (s *Searcher) SearchAllOrdered(ctx context.Context, text string, optFns ...SearchOption) ([]model.Row, error) {
	hits, err := s.Hits(ctx, text, optFns...)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	rows, err := s.store.RowsByKey(s.Table(), s.sub.PrimaryKey(), hitKeys(hits)).All(ctx)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]model.Row, len(rows))
	for _, row := range rows {
		key, err := rowKey(row, s.sub.PrimaryKey())
		if err != nil {
			return nil, err
		}
		byKey[key] = row
	}
	ordered := make([]model.Row, 0, len(hits))
	for _, h := range hits {
		if row, ok := byKey[h.Key]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

func hitKeys(hits []lexical.Hit) [][]string {
	keys := make([][]string, len(hits))
	for i, h := range hits {
		keys[i] = lexical.SplitKey(h.Key)
	}
	return keys
}
