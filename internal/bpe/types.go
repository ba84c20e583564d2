// Package bpe implements the incremental byte-pair merge engine: the
// coupled pretoken-count, pair-count, pair-to-pretoken and lazy max-heap
// indices, and the single merge step that keeps them consistent.
package bpe

import (
	"strings"
)

// TokenID identifies a vocabulary entry. IDs 0..255 are reserved for raw
// bytes; IDs 256.. are assigned sequentially, one per merge.
type TokenID int32

// Pair is an ordered pair of adjacent token IDs within a pretoken.
type Pair [2]TokenID

// Less reports whether p is lexicographically less than o, treating both
// as 2-tuples of integer IDs. The heap's Less uses it to break count ties
// in favour of the greater pair.
func (p Pair) Less(o Pair) bool {
	if p[0] != o[0] {
		return p[0] < o[0]
	}
	return p[1] < o[1]
}

// pretoken is an ordered, non-empty sequence of token IDs.
type pretoken []TokenID

// key returns a string encoding of the sequence suitable for use as a map
// key. Token IDs are packed as fixed-width big-endian bytes rather than
// runes: WriteRune silently replaces surrogate-range and out-of-range
// values with U+FFFD, which would collide distinct high token IDs once a
// vocabulary grows past the UTF-16 surrogate range.
func (s pretoken) key() string {
	var b strings.Builder
	b.Grow(len(s) * 4)
	for _, id := range s {
		u := uint32(id)
		b.WriteByte(byte(u >> 24))
		b.WriteByte(byte(u >> 16))
		b.WriteByte(byte(u >> 8))
		b.WriteByte(byte(u))
	}
	return b.String()
}

func (s pretoken) clone() pretoken {
	out := make(pretoken, len(s))
	copy(out, s)
	return out
}

// pretokenEntry pairs a sequence with its corpus frequency. PretokenCount
// is keyed by the sequence's encoded string so that equal sequences share
// one entry, while the entry itself retains the actual []TokenID slice.
type pretokenEntry struct {
	seq  pretoken
	freq int
}

// PretokenCount maps pretoken sequences to their positive corpus
// frequency. Keys are unique; the Merge Engine is the sole owner and
// mutator during training.
type PretokenCount struct {
	byKey map[string]*pretokenEntry
}

// NewPretokenCount returns an empty table ready for AddSequence.
func NewPretokenCount() *PretokenCount {
	return &PretokenCount{byKey: make(map[string]*pretokenEntry)}
}

// AddSequence inserts or increments the frequency of a byte-value
// sequence. The pre-tokenizer's Reduce uses it to build the table that
// NewEngine then takes over.
func (pc *PretokenCount) AddSequence(seq []TokenID, freq int) {
	if freq <= 0 {
		return
	}
	s := pretoken(seq)
	k := s.key()
	if e, ok := pc.byKey[k]; ok {
		e.freq += freq
		return
	}
	pc.byKey[k] = &pretokenEntry{seq: s.clone(), freq: freq}
}

// Len returns the number of distinct pretokens.
func (pc *PretokenCount) Len() int { return len(pc.byKey) }

// Each calls fn once per distinct pretoken, with its current sequence and
// frequency. Iteration order is unspecified.
func (pc *PretokenCount) Each(fn func(seq []TokenID, freq int)) {
	for _, e := range pc.byKey {
		fn(e.seq, e.freq)
	}
}

// PairCount maps an adjacent token pair to the total number of times it
// occurs across all pretokens, weighted by pretoken frequency. Entries
// with a non-positive count must not exist; updatePair deletes them.
type PairCount map[Pair]int

// PairToPretokens maps a pair to the set of pretoken keys (by their
// encoded sequence string) that currently contain it at least once as
// adjacent elements. Sets are never empty; an empty set is deleted.
type PairToPretokens map[Pair]map[string]struct{}

func (pp PairToPretokens) add(p Pair, key string) {
	set, ok := pp[p]
	if !ok {
		set = make(map[string]struct{})
		pp[p] = set
	}
	set[key] = struct{}{}
}

func (pp PairToPretokens) remove(p Pair, key string) {
	set, ok := pp[p]
	if !ok {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(pp, p)
	}
}
