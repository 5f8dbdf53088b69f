// Package bm25 implements Okapi BM25 term scoring and top-k hit collection.
//
// The package is independent of any index layout: callers supply document
// frequencies, term frequencies and field lengths, and collect scored
// document numbers in a TopK heap.
//
// # Parameters
//
// DefaultParams uses the usual k1=1.2, b=0.75.
package bm25
