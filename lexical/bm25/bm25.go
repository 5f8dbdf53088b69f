package bm25

import "math"

// Params are the BM25 free parameters.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams are the standard BM25 parameters.
var DefaultParams = Params{K1: 1.2, B: 0.75}

// IDF returns the inverse document frequency of a term that occurs in df of
// n documents: log(1 + (n - df + 0.5) / (df + 0.5)).
func IDF(n, df int) float64 {
	if n <= 0 || df <= 0 {
		return 0
	}
	N := float64(n)
	d := float64(df)
	return math.Log(1 + (N-d+0.5)/(d+0.5))
}

// Scorer scores term occurrences within one field.
// Constants that only depend on the field statistics are computed once.
type Scorer struct {
	k1Plus1 float64
	k1b1    float64
	k1bAvg  float64
	boost   float64
}

// NewScorer returns a scorer for a field with the given average length.
// A zero or negative boost is treated as 1.
func NewScorer(p Params, avgFieldLen, boost float64) Scorer {
	if boost <= 0 {
		boost = 1
	}
	s := Scorer{
		k1Plus1: p.K1 + 1,
		k1b1:    p.K1 * (1 - p.B),
		boost:   boost,
	}
	if avgFieldLen > 0 {
		s.k1bAvg = p.K1 * p.B / avgFieldLen
	}
	return s
}

// Score returns the boosted BM25 contribution of a term with frequency tf in
// a field of length fieldLen.
func (s Scorer) Score(idf float64, tf, fieldLen uint32) float64 {
	if tf == 0 {
		return 0
	}
	f := float64(tf)
	num := f * s.k1Plus1
	denom := f + s.k1b1 + s.k1bAvg*float64(fieldLen)
	return s.boost * idf * (num / denom)
}
