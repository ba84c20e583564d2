// Package pretokenize implements the Chunk Reader, the GPT-2-pattern
// pre-tokenizer worker, and the parallel pre-tokenizer pool that together
// turn a streamed corpus into a pretoken frequency table.
package pretokenize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// SplitPattern is the GPT-2 pre-tokenization pattern, used verbatim. The
// `\s+(?!\S)` alternative requires a negative lookahead that RE2 (and so
// Go's stdlib regexp) cannot express, which is why this package depends
// on dlclark/regexp2 instead.
const SplitPattern = `'(?:[sdmt]|ll|ve|re)| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// CompileSplitPattern compiles SplitPattern. Each pre-tokenizer worker
// goroutine must hold its own compiled *regexp2.Regexp: regexp2 matchers
// carry mutable match state and are not safe for concurrent reuse.
func CompileSplitPattern() (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(SplitPattern, 0)
	if err != nil {
		return nil, fmt.Errorf("pretokenize: compile split pattern: %w", err)
	}
	return re, nil
}

// CompileDelimiter builds and compiles the special-token delimiter regex
// `(?:esc(s1)|esc(s2)|...)+`. The `+` makes back-to-back specials match
// as one delimiter run. specials must be non-empty.
func CompileDelimiter(specials []string) (*regexp2.Regexp, error) {
	if len(specials) == 0 {
		return nil, fmt.Errorf("pretokenize: no special tokens to build a delimiter from")
	}
	escaped := make([]string, len(specials))
	for i, s := range specials {
		escaped[i] = regexp.QuoteMeta(s)
	}
	pattern := fmt.Sprintf("(?:%s)+", strings.Join(escaped, "|"))
	re, err := regexp2.Compile(pattern, 0)
	if err != nil {
		return nil, fmt.Errorf("pretokenize: compile special-token delimiter: %w", err)
	}
	return re, nil
}
