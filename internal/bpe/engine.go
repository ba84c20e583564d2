package bpe

import "fmt"

// InvariantError reports a broken engine invariant: a programming bug,
// never a recoverable condition. Callers at the trainer boundary recover
// the panic this carries and convert it to a returned error; the engine
// itself never tries to continue past one.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("bpe: invariant violated: %s", e.Detail)
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(&InvariantError{Detail: fmt.Sprintf(format, args...)})
	}
}

// Engine owns the pretoken table, the pair counts, the pair-to-pretoken
// locations and the lazy max-heap during training. It is strictly
// single-threaded; none of its indices tolerate concurrent mutation.
type Engine struct {
	pretokens *PretokenCount
	pairs     PairCount
	locations PairToPretokens
	heap      *pairHeap
}

// NewEngine takes ownership of counts (built by the parallel
// pre-tokenizer) and builds the pair-count, pair-location and heap
// indices in one pass.
func NewEngine(counts *PretokenCount) *Engine {
	e := &Engine{
		pretokens: counts,
		pairs:     make(PairCount),
		locations: make(PairToPretokens),
		heap:      newPairHeap(),
	}

	counts.Each(func(seq []TokenID, freq int) {
		key := pretoken(seq).key()
		for i := 0; i+1 < len(seq); i++ {
			p := Pair{seq[i], seq[i+1]}
			e.pairs[p] += freq
			e.locations.add(p, key)
		}
	})

	for p, count := range e.pairs {
		e.heap.push(count, p)
	}

	return e
}

// PretokenCount exposes the engine's pretoken table for diagnostics and
// tests. Training never needs it directly once NewEngine has run.
func (e *Engine) PretokenCount() *PretokenCount { return e.pretokens }

// PairCount exposes the engine's live pair counts, for diagnostics and
// tests.
func (e *Engine) PairCount() PairCount { return e.pairs }

// mostCommonPair pops the max entry from the heap, discarding stale
// entries. It returns ok=false only when no pair has a positive count
// left.
func (e *Engine) mostCommonPair() (pair Pair, count int, ok bool) {
	return e.heap.popFresh(e.pairs)
}

// Step performs one merge iteration: it selects the most frequent
// adjacent pair, assigns it newID, rewrites every pretoken containing it,
// and returns the promoted pair. It returns ok=false when no pair
// remains, which is the trainer's early-stop condition, not an error.
func (e *Engine) Step(newID TokenID) (pair Pair, ok bool) {
	if len(e.pairs) == 0 {
		return Pair{}, false
	}

	top, _, found := e.mostCommonPair()
	assertf(found, "heap exhausted while %d pair(s) remain in PairCount", len(e.pairs))

	keys := e.locations[top]
	assertf(len(keys) > 0, "pair %v present in PairCount with no locations", top)

	// Snapshot: mergeSequence mutates e.locations[top] as it rewrites each
	// pretoken, so we must not range over the live map.
	snapshot := make([]string, 0, len(keys))
	for k := range keys {
		snapshot = append(snapshot, k)
	}

	for _, key := range snapshot {
		entry, present := e.pretokens.byKey[key]
		assertf(present, "pretoken key %q listed under pair %v no longer in PretokenCount", key, top)
		assertf(entry.freq > 0, "pretoken %v has non-positive frequency %d", entry.seq, entry.freq)
		e.mergeSequence(key, entry, top, newID)
	}

	return top, true
}

// mergeSequence rewrites one pretoken, replacing every non-overlapping
// occurrence of top with newID (left to right, first match wins) and
// updating the pair indices for every pair gained or lost in the
// process.
func (e *Engine) mergeSequence(oldKey string, entry *pretokenEntry, top Pair, newID TokenID) {
	old := entry.seq
	freq := entry.freq
	newSeq := make(pretoken, 0, len(old))

	for i := 0; i < len(old); {
		if i+1 < len(old) && old[i] == top[0] && old[i+1] == top[1] {
			var left, right *TokenID
			if len(newSeq) > 0 {
				l := newSeq[len(newSeq)-1]
				left = &l
			}
			if i+2 < len(old) {
				r := old[i+2]
				right = &r
			}

			if left != nil {
				e.updatePair(Pair{*left, top[0]}, -freq)
				e.locations.remove(Pair{*left, top[0]}, oldKey)
				e.updatePair(Pair{*left, newID}, freq)
			}
			if right != nil {
				e.updatePair(Pair{top[1], *right}, -freq)
				e.locations.remove(Pair{top[1], *right}, oldKey)
				e.updatePair(Pair{newID, *right}, freq)
			}
			// The merged pair itself is consumed exactly once per match.
			e.updatePair(top, -freq)
			e.locations.remove(top, oldKey)

			newSeq = append(newSeq, newID)
			i += 2
			continue
		}
		newSeq = append(newSeq, old[i])
		i++
	}

	delete(e.pretokens.byKey, oldKey)
	newKey := newSeq.key()
	if existing, ok := e.pretokens.byKey[newKey]; ok {
		existing.freq += freq
		newSeq = existing.seq
	} else {
		e.pretokens.byKey[newKey] = &pretokenEntry{seq: newSeq, freq: freq}
	}

	// Pairs that survived the rewrite untouched still list oldKey in their
	// location sets; a later Step over such a pair would then look up a
	// pretoken that no longer exists. Swap every surviving pair's location
	// from oldKey to newKey.
	for i := 0; i+1 < len(newSeq); i++ {
		q := Pair{newSeq[i], newSeq[i+1]}
		e.locations.add(q, newKey)
		e.locations.remove(q, oldKey)
	}
}

// updatePair applies delta to PairCount[pair], pushing a fresh heap entry
// when the result is still positive and deleting the key (from PairCount
// and PairToPretokens) when it drops to zero or below. No-op for
// delta == 0.
func (e *Engine) updatePair(pair Pair, delta int) {
	if delta == 0 {
		return
	}
	next := e.pairs[pair] + delta
	if next > 0 {
		e.pairs[pair] = next
		e.heap.push(next, pair)
		return
	}
	delete(e.pairs, pair)
	delete(e.locations, pair)
}
