package bpe

import (
	"reflect"
	"testing"
)

func bytesOf(s string) []TokenID {
	seq := make([]TokenID, len(s))
	for i := 0; i < len(s); i++ {
		seq[i] = TokenID(s[i])
	}
	return seq
}

// TestEngineWikiExample reproduces the textbook "aaabdaaabac" walk: the
// first three merges must be (a,a), (aa,a), (aaa,b), in that order, with
// the lexicographically-greatest-pair tie-break deciding the second merge,
// where (aa,a) and (a,b) are tied at a count of 2.
func TestEngineWikiExample(t *testing.T) {
	counts := NewPretokenCount()
	counts.AddSequence(bytesOf("aaabdaaabac"), 1)

	e := NewEngine(counts)

	wantPairs := []Pair{
		{'a', 'a'},
		{256, 'a'},
		{257, 'b'},
	}

	for i, want := range wantPairs {
		top, ok := e.Step(TokenID(256 + i))
		if !ok {
			t.Fatalf("step %d: engine reported exhausted, want pair %v", i, want)
		}
		if top != want {
			t.Fatalf("step %d: merged pair = %v, want %v", i, top, want)
		}
	}
}

func TestEngineNonOverlappingMerge(t *testing.T) {
	counts := NewPretokenCount()
	counts.AddSequence(bytesOf("aaaa"), 1)

	e := NewEngine(counts)

	top, ok := e.Step(256)
	if !ok {
		t.Fatal("expected a mergeable pair")
	}
	if top != (Pair{'a', 'a'}) {
		t.Fatalf("merged pair = %v, want {97 97}", top)
	}

	var got []TokenID
	e.PretokenCount().Each(func(seq []TokenID, freq int) {
		got = seq
		if freq != 1 {
			t.Fatalf("freq = %d, want 1", freq)
		}
	})
	want := []TokenID{256, 256}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("merged sequence = %v, want %v (left-to-right non-overlapping match)", got, want)
	}
}

func TestEngineStepReturnsFalseWhenPairsExhausted(t *testing.T) {
	counts := NewPretokenCount()
	counts.AddSequence(bytesOf("ab"), 1)

	e := NewEngine(counts)

	if _, ok := e.Step(256); !ok {
		t.Fatal("expected the only pair (a,b) to be mergeable")
	}
	if _, ok := e.Step(257); ok {
		t.Fatal("expected engine to report exhaustion once no pair has a positive count")
	}
}

func TestEngineTieBreakSelectsLexicographicallyGreatestPair(t *testing.T) {
	counts := NewPretokenCount()
	// "ac" and "bd" each contribute one occurrence of a distinct pair at
	// equal frequency; (98,100) > (97,99) lexicographically and must win.
	counts.AddSequence(bytesOf("ac"), 1)
	counts.AddSequence(bytesOf("bd"), 1)

	e := NewEngine(counts)

	top, ok := e.Step(256)
	if !ok {
		t.Fatal("expected a mergeable pair")
	}
	want := Pair{'b', 'd'}
	if top != want {
		t.Fatalf("merged pair = %v, want %v (lexicographically greatest on a count tie)", top, want)
	}
}

// TestEngineMergeKeepsLocationsForUntouchedPairs rewrites a pretoken
// whose tail pair (c,d) is untouched by the merge of (a,b), then selects
// (c,d) on the next step. The location sets must by then point at the
// rewritten pretoken, not the deleted pre-merge one.
func TestEngineMergeKeepsLocationsForUntouchedPairs(t *testing.T) {
	counts := NewPretokenCount()
	counts.AddSequence(bytesOf("ab"), 5)
	counts.AddSequence(bytesOf("abcd"), 1)
	counts.AddSequence(bytesOf("cd"), 2)

	e := NewEngine(counts)

	top, ok := e.Step(256)
	if !ok || top != (Pair{'a', 'b'}) {
		t.Fatalf("first Step() = (%v, %v), want ({97 98}, true)", top, ok)
	}

	// (c,d) now has count 3 (once in the rewritten "abcd", twice via "cd")
	// and must be selectable without tripping over the deleted "abcd" key.
	top, ok = e.Step(257)
	if !ok || top != (Pair{'c', 'd'}) {
		t.Fatalf("second Step() = (%v, %v), want ({99 100}, true)", top, ok)
	}
}

// TestEnginePairCountMatchesRecount checks, after every step, that the
// incrementally maintained pair counts equal a from-scratch recount over
// the current pretoken table.
func TestEnginePairCountMatchesRecount(t *testing.T) {
	counts := NewPretokenCount()
	counts.AddSequence(bytesOf("the cat sat on the mat"), 3)
	counts.AddSequence(bytesOf("the cat"), 2)
	counts.AddSequence(bytesOf("aaaa"), 4)

	e := NewEngine(counts)

	for i := 0; i < 8; i++ {
		if _, ok := e.Step(TokenID(256 + i)); !ok {
			break
		}

		recount := make(PairCount)
		e.PretokenCount().Each(func(seq []TokenID, freq int) {
			if freq <= 0 {
				t.Fatalf("pretoken %v has non-positive frequency %d", seq, freq)
			}
			for j := 0; j+1 < len(seq); j++ {
				recount[Pair{seq[j], seq[j+1]}] += freq
			}
		})

		live := e.PairCount()
		if len(live) != len(recount) {
			t.Fatalf("after step %d: %d live pairs, recount has %d", i, len(live), len(recount))
		}
		for p, want := range recount {
			if got := live[p]; got != want {
				t.Fatalf("after step %d: PairCount[%v] = %d, recount = %d", i, p, got, want)
			}
		}
	}
}

func TestEngineMergeAcrossSharedPretokens(t *testing.T) {
	counts := NewPretokenCount()
	counts.AddSequence(bytesOf("aaa"), 2)
	counts.AddSequence(bytesOf("aab"), 3)

	e := NewEngine(counts)

	if got := e.PairCount()[Pair{'a', 'a'}]; got != 7 {
		t.Fatalf("initial PairCount[(a,a)] = %d, want 7 (2*2 occurrences in aaa + 1*3 in aab)", got)
	}

	top, ok := e.Step(256)
	if !ok || top != (Pair{'a', 'a'}) {
		t.Fatalf("Step() = (%v, %v), want ({97 97}, true)", top, ok)
	}

	if _, stillThere := e.PairCount()[Pair{'a', 'a'}]; stillThere {
		t.Fatal("(a,a) should have been fully consumed or reduced away, not left at its old count")
	}
}
