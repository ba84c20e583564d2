package bpetrain

import (
	"context"
	"fmt"
	"os"

	"github.com/corpusforge/bpetrain/internal/bpe"
	"github.com/corpusforge/bpetrain/internal/pretokenize"
)

// Trainer orchestrates the chunk reader, the parallel pre-tokenizer and
// the merge engine to produce a Vocab and Merges from a corpus. It is
// not safe for concurrent use: Train/TrainFromFile mutate the same
// Vocab/Merges fields a concurrent SaveState would read.
type Trainer struct {
	cfg *trainerConfig

	vocab  Vocab
	merges Merges
}

// New constructs a Trainer with defaults overridden by opts.
func New(opts ...TrainerOption) (*Trainer, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &Trainer{cfg: cfg, vocab: newBaseVocab()}, nil
}

// Vocab returns the trainer's current vocabulary. The returned map is
// owned by the Trainer; callers must not mutate it.
func (t *Trainer) Vocab() Vocab { return t.vocab }

// Merges returns the trainer's current merge list, in promotion order.
// The returned slice is owned by the Trainer; callers must not mutate it.
func (t *Trainer) Merges() []bpe.Pair { return t.merges }

// Train builds a vocabulary of size vocabSize from text held entirely in
// memory. Delimiter matches for any of specials are stripped from text
// outright; stripping does not insert whitespace, so pretokens on either
// side of a removed special may fuse. That is deliberate, documented
// behavior, not a bug to paper over; TrainFromFile behaves differently
// because its segments are split at delimiter boundaries instead.
func (t *Trainer) Train(text string, vocabSize int, specials []string) error {
	if err := t.resetAndValidate("Train", vocabSize, specials); err != nil {
		return err
	}

	cleaned := text
	if len(specials) > 0 {
		delim, err := pretokenize.CompileDelimiter(specials)
		if err != nil {
			return newValueError("Train", err)
		}
		stripped, err := delim.Replace(cleaned, "", -1, -1)
		if err != nil {
			return newValueError("Train", err)
		}
		cleaned = stripped
	}

	t.cfg.logger.Info("bpetrain: pre-tokenizing in-memory text",
		"bytes", len(cleaned), "specials", len(specials))

	counts, err := pretokenize.CountSingle(cleaned)
	if err != nil {
		return newIOError("Train", "", err)
	}

	return t.runEngine(counts, vocabSize, specials)
}

// TrainFromFile builds a vocabulary of size vocabSize by streaming path
// in chunks through the chunk reader and parallel pre-tokenizer. It
// requires at least one special token, since the delimiter the chunk
// reader scans for is built from specials. ctx cancels the worker pool
// if the caller abandons training mid-run; the merge engine itself runs
// to completion once started, since it is strictly single-threaded and
// has no suspension points to cancel at.
func (t *Trainer) TrainFromFile(ctx context.Context, path string, vocabSize int, specials []string) error {
	if err := t.resetAndValidate("TrainFromFile", vocabSize, specials); err != nil {
		return err
	}
	if len(specials) == 0 {
		return newValueError("TrainFromFile", ErrNoSpecialTokens)
	}

	f, err := os.Open(path)
	if err != nil {
		return newIOError("TrainFromFile", path, err)
	}
	defer f.Close()

	delim, err := pretokenize.CompileDelimiter(specials)
	if err != nil {
		return newValueError("TrainFromFile", err)
	}

	overlap := t.cfg.overlapSize
	if min := longestSpecialLen(specials) + 64; overlap < min {
		overlap = min
	}

	t.cfg.logger.Info("bpetrain: pre-tokenizing corpus",
		"path", path, "workers", t.cfg.workers, "batch_size", t.cfg.batchSize,
		"chunk_size", t.cfg.chunkSize, "overlap_size", overlap)

	reader := pretokenize.NewChunkReader(f, delim, t.cfg.chunkSize, overlap)
	pool := pretokenize.NewPool(t.cfg.workers, t.cfg.batchSize)

	counts, err := pool.Run(ctx, reader)
	if err != nil {
		return newIOError("TrainFromFile", path, err)
	}

	return t.runEngine(counts, vocabSize, specials)
}

// runEngine drives the merge engine for at most
// vocabSize - 256 - len(specials) steps, appending each promoted pair to
// Vocab and Merges, then appends the special tokens at the end. Stopping
// early because the engine runs out of pairs is normal completion, not
// an error.
//
// internal/bpe asserts its invariants by panicking with a
// *bpe.InvariantError rather than returning one: an engine-internal
// broken invariant is a programming bug, not a recoverable condition,
// and must never be mistaken for one by continuing past it. The panic is
// recovered here via recoverEngineInvariant and converted into a
// returned *EngineError so that Train/TrainFromFile remain ordinary
// error-returning calls and no panic escapes to a library caller.
func (t *Trainer) runEngine(counts *bpe.PretokenCount, vocabSize int, specials []string) (err error) {
	defer recoverEngineInvariant("runEngine", &err)

	target := vocabSize - 256 - len(specials)
	engine := bpe.NewEngine(counts)

	t.cfg.logger.Info("bpetrain: merge engine initialized",
		"pretokens", counts.Len(), "pairs", len(engine.PairCount()), "target_merges", target)

	for i := 0; i < target; i++ {
		id := bpe.TokenID(256 + i)
		pair, ok := engine.Step(id)
		if !ok {
			t.cfg.logger.Info("bpetrain: stopping early, no mergeable pairs remain",
				"requested_merges", target, "completed_merges", i)
			break
		}
		t.merges = t.vocab.appendMerge(t.merges, id, pair)

		if (i+1)%1000 == 0 {
			t.cfg.logger.Debug("bpetrain: merge progress",
				"completed_merges", i+1, "target_merges", target)
		}
	}

	t.vocab.appendSpecials(bpe.TokenID(256+len(t.merges)), specials)

	t.cfg.logger.Info("bpetrain: training complete",
		"merges", len(t.merges), "vocab_size", len(t.vocab))
	return nil
}

// recoverEngineInvariant recovers a panic raised by internal/bpe's
// assertf and, if it carries a *bpe.InvariantError, stores an equivalent
// *EngineError through errp. Any other panic value is not ours to
// swallow and is re-raised unchanged; only the documented
// invariant-violation kind is converted into a returned error.
func recoverEngineInvariant(op string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*bpe.InvariantError)
	if !ok {
		panic(r)
	}
	*errp = newEngineError(op, ie)
}

// resetAndValidate resets Vocab/Merges to the 256-byte base vocabulary
// and checks vocabSize against the floor imposed by the base vocabulary
// plus specials. A rejected vocabSize leaves the trainer holding only
// the reset base vocabulary, never a half-built one from a prior call.
func (t *Trainer) resetAndValidate(op string, vocabSize int, specials []string) error {
	t.vocab = newBaseVocab()
	t.merges = nil

	if vocabSize < 256+len(specials) {
		return newValueError(op, fmt.Errorf("%w: got %d, need at least %d", ErrVocabSizeTooSmall, vocabSize, 256+len(specials)))
	}
	return nil
}

func longestSpecialLen(specials []string) int {
	longest := 0
	for _, s := range specials {
		if len(s) > longest {
			longest = len(s)
		}
	}
	return longest
}
