package pretokenize

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// Worker applies the GPT-2 split pattern to one text segment and returns
// a frequency table of the matched substrings. It does not convert
// matches to bytes; that is deferred to Reduce so UTF-8 encoding happens
// once per distinct string, not once per hit.
//
// A Worker is not safe for concurrent use: it owns one compiled
// *regexp2.Regexp whose matcher carries mutable state across calls. The
// parallel pre-tokenizer gives every goroutine its own Worker.
type Worker struct {
	re *regexp2.Regexp
}

// NewWorker compiles a fresh copy of SplitPattern for this worker.
func NewWorker() (*Worker, error) {
	re, err := CompileSplitPattern()
	if err != nil {
		return nil, err
	}
	return &Worker{re: re}, nil
}

// Count returns a frequency table of every SplitPattern match within
// segment.
func (w *Worker) Count(segment string) (map[string]int, error) {
	counts := make(map[string]int, 64)
	m, err := w.re.FindStringMatch(segment)
	if err != nil {
		return nil, fmt.Errorf("pretokenize: match segment: %w", err)
	}
	for m != nil {
		counts[m.String()]++
		m, err = w.re.FindNextMatch(m)
		if err != nil {
			return nil, fmt.Errorf("pretokenize: match segment: %w", err)
		}
	}
	return counts, nil
}
