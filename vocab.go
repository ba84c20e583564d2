package bpetrain

import "github.com/corpusforge/bpetrain/internal/bpe"

// Vocab maps a token id to the byte string it expands to. Ids 0..255 map
// to the single byte equal to the id; ids 256.. map to the concatenation
// of the two merged ids' byte strings; the final len(specials) ids map
// to the raw UTF-8 bytes of the special-token strings.
type Vocab map[bpe.TokenID][]byte

// Merges records, in promotion order, the pair assigned to each id from
// 256 upward: Merges[i] was promoted to id 256+i.
type Merges []bpe.Pair

func newBaseVocab() Vocab {
	v := make(Vocab, 256)
	for i := 0; i < 256; i++ {
		v[bpe.TokenID(i)] = []byte{byte(i)}
	}
	return v
}

// appendMerge records a newly promoted pair, both in Merges and as the
// concatenated byte string for its assigned id in Vocab.
func (v Vocab) appendMerge(merges Merges, id bpe.TokenID, pair bpe.Pair) Merges {
	left := v[pair[0]]
	right := v[pair[1]]
	joined := make([]byte, 0, len(left)+len(right))
	joined = append(joined, left...)
	joined = append(joined, right...)
	v[id] = joined
	return append(merges, pair)
}

// appendSpecials assigns the final len(specials) ids, in order, to the
// raw UTF-8 bytes of each special-token string.
func (v Vocab) appendSpecials(nextID bpe.TokenID, specials []string) {
	for j, s := range specials {
		v[nextID+bpe.TokenID(j)] = []byte(s)
	}
}
