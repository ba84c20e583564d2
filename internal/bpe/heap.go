package bpe

import "container/heap"

// heapEntry is one value-copy record in the lazy max-heap: a pair and the
// count it was pushed with. An entry is stale once PairCount[pair] no
// longer equals count; staleness is discovered lazily on pop, never by
// walking the heap.
type heapEntry struct {
	count int
	pair  Pair
}

// pairHeap is a max-priority queue over (count, pair), ordered so that
// among equal counts the lexicographically greatest pair wins, the
// tie-break every merge selection depends on. container/heap only gives
// us a min-heap, so Less is written to select the maximum: higher count
// first, then the greater pair on a count tie. Equivalent to negating
// both count and pair and using a min-heap.
type pairHeap []heapEntry

func (h pairHeap) Len() int { return len(h) }

func (h pairHeap) Less(i, j int) bool {
	if h[i].count != h[j].count {
		return h[i].count > h[j].count
	}
	return h[j].pair.Less(h[i].pair)
}

func (h pairHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pairHeap) Push(x any) {
	*h = append(*h, x.(heapEntry))
}

func (h *pairHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// newPairHeap returns an empty heap, ready for heap.Push.
func newPairHeap() *pairHeap {
	h := &pairHeap{}
	heap.Init(h)
	return h
}

// push adds a fresh (count, pair) record. Any previously pushed entry for
// the same pair becomes stale and is discarded the next time it surfaces
// at the top.
func (h *pairHeap) push(count int, pair Pair) {
	heap.Push(h, heapEntry{count: count, pair: pair})
}

// popFresh pops entries until it finds one whose count still matches
// counts[pair], or the heap is exhausted. It returns ok=false only when
// no live pair remains.
func (h *pairHeap) popFresh(counts PairCount) (pair Pair, count int, ok bool) {
	for h.Len() > 0 {
		top := heap.Pop(h).(heapEntry)
		if live, exists := counts[top.pair]; exists && live == top.count {
			return top.pair, top.count, true
		}
		// stale: either the pair was removed, or its count has since
		// changed and a fresher entry is (or will be) in the heap.
	}
	return Pair{}, 0, false
}
