package bpe

import "testing"

func TestPairHeapTieBreak(t *testing.T) {
	h := newPairHeap()
	counts := PairCount{
		{1, 2}: 5,
		{1, 3}: 5,
		{0, 9}: 5,
	}
	for p, c := range counts {
		h.push(c, p)
	}

	pair, count, ok := h.popFresh(counts)
	if !ok {
		t.Fatal("expected a fresh entry")
	}
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}
	want := Pair{1, 3}
	if pair != want {
		t.Fatalf("pair = %v, want %v (lexicographically greatest on a count tie)", pair, want)
	}
}

func TestPairHeapStaleEntriesDiscarded(t *testing.T) {
	h := newPairHeap()
	counts := PairCount{}

	h.push(10, Pair{1, 1})
	// Simulate the count changing after the push (as updatePair would).
	counts[Pair{1, 1}] = 3
	h.push(3, Pair{1, 1})

	pair, count, ok := h.popFresh(counts)
	if !ok || pair != (Pair{1, 1}) || count != 3 {
		t.Fatalf("popFresh = (%v, %d, %v), want ({1 1}, 3, true)", pair, count, ok)
	}
	if _, _, ok := h.popFresh(counts); ok {
		t.Fatal("expected heap to be exhausted of fresh entries")
	}
}

func TestPairHeapEmptyAfterAllRemoved(t *testing.T) {
	h := newPairHeap()
	counts := PairCount{}
	if _, _, ok := h.popFresh(counts); ok {
		t.Fatal("popFresh on empty heap should report ok=false")
	}
}
