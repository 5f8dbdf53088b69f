package bm25

// Hit is a scored document number.
type Hit struct {
	Doc   uint32
	Score float64
}

// worse reports whether a ranks below b: lower score, or equal score and a
// later document.
func worse(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Doc > b.Doc
}

// TopK keeps the k best hits. A k of zero or less keeps every hit.
type TopK struct {
	k int
	h hitHeap
}

// NewTopK creates a collector for k hits.
func NewTopK(k int) *TopK {
	c := &TopK{k: k}
	if k > 0 {
		c.h = make(hitHeap, 0, k)
	}
	return c
}

// Push offers a hit to the collector.
func (c *TopK) Push(doc uint32, score float64) {
	hit := Hit{Doc: doc, Score: score}
	if c.k <= 0 || len(c.h) < c.k {
		c.h.push(hit)
		return
	}
	if worse(c.h[0], hit) {
		c.h[0] = hit
		c.h.down(0, len(c.h))
	}
}

// Len returns the number of collected hits.
func (c *TopK) Len() int { return len(c.h) }

// Results drains the collector and returns hits best first: score
// descending, ties broken by ascending document number.
func (c *TopK) Results() []Hit {
	out := make([]Hit, len(c.h))
	for i := len(c.h) - 1; i >= 0; i-- {
		out[i] = c.h.pop()
	}
	return out
}

// hitHeap is a min-heap ordered by worse, so the root is the weakest hit.
type hitHeap []Hit

func (h *hitHeap) push(n Hit) {
	*h = append(*h, n)
	h.up(len(*h) - 1)
}

func (h *hitHeap) pop() Hit {
	old := *h
	n := len(old) - 1
	root := old[0]
	old[0] = old[n]
	*h = old[:n]
	h.down(0, len(*h))
	return root
}

func (h hitHeap) up(j int) {
	for {
		i := (j - 1) / 2 // parent
		if i == j || !worse(h[j], h[i]) {
			break
		}
		h[i], h[j] = h[j], h[i]
		j = i
	}
}

func (h hitHeap) down(i0, n int) {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 { // j1 < 0 after int overflow
			break
		}
		j := j1 // left child
		if j2 := j1 + 1; j2 < n && worse(h[j2], h[j1]) {
			j = j2 // right child
		}
		if !worse(h[j], h[i]) {
			break
		}
		h[i], h[j] = h[j], h[i]
		i = j
	}
}
