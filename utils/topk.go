package utils

import (
	"container/heap"
	"sort"
)

// Scored is a candidate with a score and an integer tag (row id, base doc index).
type Scored struct {
	Score float64
	ID    int
}

// better orders by score descending, then by lower id.
func better(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// TopK keeps the k best candidates seen so far.
type TopK struct {
	k int
	h worstFirst
}

func NewTopK(k int) *TopK {
	return &TopK{k: k, h: make(worstFirst, 0, k+1)}
}

func (t *TopK) Push(score float64, id int) {
	if t.k <= 0 {
		return
	}
	s := Scored{Score: score, ID: id}
	if len(t.h) < t.k {
		heap.Push(&t.h, s)
		return
	}
	if better(s, t.h[0]) {
		t.h[0] = s
		heap.Fix(&t.h, 0)
	}
}

func (t *TopK) Len() int { return len(t.h) }

// Sorted returns the kept candidates best first.
func (t *TopK) Sorted() []Scored {
	out := make([]Scored, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

// min-heap on "goodness": the root is the worst kept candidate.
type worstFirst []Scored

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(Scored)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
