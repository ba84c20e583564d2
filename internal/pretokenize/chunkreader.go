package pretokenize

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dlclark/regexp2"
)

// ChunkReader streams a corpus file and yields clean text segments that
// contain no match of delimiter and never split a pretoken across a
// segment boundary. It holds back an overlap-sized tail between reads so
// that a pretoken or delimiter straddling two reads is always seen whole
// on the next scan.
type ChunkReader struct {
	r         *bufio.Reader
	delimiter *regexp2.Regexp

	chunkSize   int
	overlapSize int

	buffer  string
	eof     bool
	pending []string
	err     error
}

// NewChunkReader constructs a ChunkReader over r. chunkSize is the number
// of runes read per refill; overlapSize must be at least as large as the
// longest pretoken that may appear in the corpus, or a pretoken at a
// read boundary can be emitted split in two.
func NewChunkReader(r io.Reader, delimiter *regexp2.Regexp, chunkSize, overlapSize int) *ChunkReader {
	return &ChunkReader{
		r:           bufio.NewReader(r),
		delimiter:   delimiter,
		chunkSize:   chunkSize,
		overlapSize: overlapSize,
	}
}

// Next returns the next non-empty segment, or io.EOF once the stream is
// exhausted. Segments are returned in source order; back-to-back
// delimiter matches collapse to nothing, since the delimiter is built as
// `(?:...)+`.
func (c *ChunkReader) Next() (string, error) {
	for {
		if c.err != nil {
			return "", c.err
		}
		if len(c.pending) > 0 {
			seg := c.pending[0]
			c.pending = c.pending[1:]
			return seg, nil
		}
		if c.eof && c.buffer == "" {
			c.err = io.EOF
			return "", io.EOF
		}
		if err := c.readChunk(); err != nil {
			c.err = err
			return "", err
		}
	}
}

// readChunk reads up to chunkSize runes, appends them to the held-back
// buffer, scans the result for delimiter matches, and queues any
// resulting segments.
func (c *ChunkReader) readChunk() error {
	buf := make([]rune, c.chunkSize)
	n := 0
	for n < c.chunkSize {
		r, _, err := c.r.ReadRune()
		if err != nil {
			if err == io.EOF {
				c.eof = true
				break
			}
			return fmt.Errorf("pretokenize: read corpus: %w", err)
		}
		buf[n] = r
		n++
	}

	current := c.buffer + string(buf[:n])
	segments, remainder, err := c.split(current)
	if err != nil {
		return err
	}
	c.pending = append(c.pending, segments...)
	c.buffer = remainder
	return nil
}

// split scans current for delimiter matches and returns the segments
// between them, plus whatever should be held back as the next buffer.
//
// regexp2 match indices are offsets into the rune sequence it matched
// over, not byte offsets into the Go string: it converts the input to
// []rune internally. current is converted to []rune once here so cursor
// arithmetic and slicing stay in the same coordinate space as m.Index
// and m.Length; byte-slicing current directly would misplace every
// segment boundary once the corpus contains multi-byte UTF-8 text.
func (c *ChunkReader) split(current string) (segments []string, remainder string, err error) {
	runes := []rune(current)
	effectiveSize := len(runes) - c.overlapSize
	if effectiveSize <= 0 && !c.eof {
		return nil, current, nil
	}
	if c.eof {
		effectiveSize = len(runes)
	}

	cursor := 0
	m, err := c.delimiter.FindStringMatch(current)
	if err != nil {
		return nil, "", fmt.Errorf("pretokenize: match delimiter: %w", err)
	}
	for m != nil {
		start, length := m.Index, m.Length
		end := start + length

		if start > cursor {
			segments = append(segments, string(runes[cursor:start]))
		}
		cursor = end

		if start >= effectiveSize {
			break
		}
		m, err = c.delimiter.FindNextMatch(m)
		if err != nil {
			return nil, "", fmt.Errorf("pretokenize: match delimiter: %w", err)
		}
	}

	if c.eof {
		if cursor < len(runes) {
			segments = append(segments, string(runes[cursor:]))
		}
		return segments, "", nil
	}

	return segments, string(runes[cursor:]), nil
}
