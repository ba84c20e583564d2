package pretokenize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/corpusforge/bpetrain/internal/bpe"
)

// SegmentSource supplies the next text segment to pre-tokenize, or
// io.EOF when exhausted. *ChunkReader satisfies this; in-memory training
// does not use a SegmentSource and calls CountSingle instead.
type SegmentSource interface {
	Next() (string, error)
}

// Pool is a bounded, data-parallel worker pool that drains a
// SegmentSource in batches, counts each batch's segments independently,
// and reduces the per-worker frequency tables into one pretoken count.
// Workers are stateless apart from their own compiled pattern; the only
// shared structure is the channel pair between producer, workers and the
// reducing goroutine.
type Pool struct {
	Workers   int
	BatchSize int
}

// NewPool returns a Pool configured with workers and batchSize, each
// clamped to a minimum of 1.
func NewPool(workers, batchSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Pool{Workers: workers, BatchSize: batchSize}
}

// Run drains src, applying the GPT-2 split pattern to every segment
// across p.Workers goroutines, and returns the reduced, byte-encoded
// pretoken count. Segments are dispatched in batches of p.BatchSize;
// results are reduced in arrival order, which is safe because summing
// counts on equal keys is commutative. ctx cancels all outstanding
// workers on the first error.
func (p *Pool) Run(ctx context.Context, src SegmentSource) (*bpe.PretokenCount, error) {
	batches := make(chan []string, p.Workers)
	partials := make(chan map[string]int, p.Workers)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		batch := make([]string, 0, p.BatchSize)
		for {
			seg, err := src.Next()
			if err != nil {
				if len(batch) > 0 {
					select {
					case batches <- batch:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				if isEOF(err) {
					return nil
				}
				return err
			}
			batch = append(batch, seg)
			if len(batch) == p.BatchSize {
				select {
				case batches <- batch:
				case <-ctx.Done():
					return ctx.Err()
				}
				batch = make([]string, 0, p.BatchSize)
			}
		}
	})

	for i := 0; i < p.Workers; i++ {
		g.Go(func() error {
			worker, err := NewWorker()
			if err != nil {
				return err
			}
			for {
				select {
				case batch, ok := <-batches:
					if !ok {
						return nil
					}
					merged := make(map[string]int, p.BatchSize*8)
					for _, seg := range batch {
						counts, err := worker.Count(seg)
						if err != nil {
							return err
						}
						for tok, n := range counts {
							merged[tok] += n
						}
					}
					select {
					case partials <- merged:
					case <-ctx.Done():
						return ctx.Err()
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	reduced := make(map[string]int)
	done := make(chan struct{})
	go func() {
		for merged := range partials {
			for tok, n := range merged {
				reduced[tok] += n
			}
		}
		close(done)
	}()

	err := g.Wait()
	close(partials)
	<-done

	if err != nil {
		return nil, fmt.Errorf("pretokenize: parallel pre-tokenization: %w", err)
	}

	return Reduce(reduced), nil
}

// CountSingle pre-tokenizes text on the calling goroutine, with no
// worker pool involved.
func CountSingle(text string) (*bpe.PretokenCount, error) {
	worker, err := NewWorker()
	if err != nil {
		return nil, err
	}
	counts, err := worker.Count(text)
	if err != nil {
		return nil, err
	}
	return Reduce(counts), nil
}

// Reduce converts a string-keyed frequency table into a PretokenCount,
// encoding each surviving key to its UTF-8 byte values exactly once.
// Encoding here, after the full reduction, avoids allocating a byte
// sequence per hit inside the workers.
func Reduce(counts map[string]int) *bpe.PretokenCount {
	out := bpe.NewPretokenCount()
	for s, freq := range counts {
		if freq <= 0 {
			continue
		}
		seq := make([]bpe.TokenID, 0, utf8.RuneCountInString(s)*2)
		for i := 0; i < len(s); i++ {
			seq = append(seq, bpe.TokenID(s[i]))
		}
		out.AddSequence(seq, freq)
	}
	return out
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
