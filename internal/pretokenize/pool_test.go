package pretokenize

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/corpusforge/bpetrain/internal/bpe"
)

// sliceSource is a trivial SegmentSource over a fixed slice, used to drive
// Pool.Run without a real ChunkReader.
type sliceSource struct {
	mu   sync.Mutex
	segs []string
	i    int
}

func newSliceSource(segs []string) *sliceSource {
	return &sliceSource{segs: segs}
}

func (s *sliceSource) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.i >= len(s.segs) {
		return "", io.EOF
	}
	seg := s.segs[s.i]
	s.i++
	return seg, nil
}

func TestPoolRunMatchesCountSingle(t *testing.T) {
	segs := []string{"the cat", " sat on", " the mat", " the cat", " sat again"}

	single, err := CountSingle(joinSegs(segs))
	if err != nil {
		t.Fatalf("CountSingle() error = %v", err)
	}

	pool := NewPool(4, 2)
	parallel, err := pool.Run(context.Background(), newSliceSource(segs))
	if err != nil {
		t.Fatalf("Pool.Run() error = %v", err)
	}

	if single.Len() != parallel.Len() {
		t.Fatalf("distinct pretoken count: single=%d parallel=%d", single.Len(), parallel.Len())
	}

	singleFreqs := frequenciesByKey(single)
	parallelFreqs := frequenciesByKey(parallel)
	if len(singleFreqs) != len(parallelFreqs) {
		t.Fatalf("distinct keys: single=%d parallel=%d", len(singleFreqs), len(parallelFreqs))
	}
	for k, want := range singleFreqs {
		if got := parallelFreqs[k]; got != want {
			t.Fatalf("freq[%q]: single=%d parallel=%d, want equal (sum is commutative)", k, want, got)
		}
	}
}

func frequenciesByKey(pc *bpe.PretokenCount) map[string]int {
	out := make(map[string]int, pc.Len())
	pc.Each(func(seq []bpe.TokenID, freq int) {
		out[fmt.Sprint(seq)] += freq
	})
	return out
}

func joinSegs(segs []string) string {
	out := ""
	for _, s := range segs {
		out += s
	}
	return out
}

// TestPoolRunMatchesCountSingleNonASCII repeats the single-vs-parallel
// comparison with multi-byte UTF-8 content, where a byte-offset mistake
// anywhere in the pipeline would shift every count after the first
// non-ASCII rune.
func TestPoolRunMatchesCountSingleNonASCII(t *testing.T) {
	segs := []string{"hello there second with äöß", " just third  last! 123and me"}

	single, err := CountSingle(joinSegs(segs))
	if err != nil {
		t.Fatalf("CountSingle() error = %v", err)
	}

	pool := NewPool(2, 1)
	parallel, err := pool.Run(context.Background(), newSliceSource(segs))
	if err != nil {
		t.Fatalf("Pool.Run() error = %v", err)
	}

	singleFreqs := frequenciesByKey(single)
	parallelFreqs := frequenciesByKey(parallel)
	if len(singleFreqs) != len(parallelFreqs) {
		t.Fatalf("distinct keys: single=%d parallel=%d", len(singleFreqs), len(parallelFreqs))
	}
	for k, want := range singleFreqs {
		if got := parallelFreqs[k]; got != want {
			t.Fatalf("freq[%q]: single=%d parallel=%d", k, want, got)
		}
	}
}

func TestPoolRunEmptySource(t *testing.T) {
	pool := NewPool(2, 4)
	counts, err := pool.Run(context.Background(), newSliceSource(nil))
	if err != nil {
		t.Fatalf("Pool.Run() error = %v", err)
	}
	if counts.Len() != 0 {
		t.Fatalf("counts.Len() = %d, want 0 for an empty source", counts.Len())
	}
}

func TestPoolNewPoolClampsToMinimums(t *testing.T) {
	p := NewPool(0, 0)
	if p.Workers != 1 || p.BatchSize != 1 {
		t.Fatalf("NewPool(0, 0) = %+v, want Workers=1 BatchSize=1", p)
	}
}
