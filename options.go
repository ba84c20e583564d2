package bpetrain

import (
	"log/slog"
	"runtime"
)

// trainerConfig holds every knob a TrainerOption can set. Defaults are
// established in New; the struct stays private and is populated entirely
// through functional options.
type trainerConfig struct {
	workers     int
	batchSize   int
	chunkSize   int
	overlapSize int
	fastMerge   bool
	logger      *slog.Logger
}

func defaultConfig() *trainerConfig {
	return &trainerConfig{
		workers:     runtime.GOMAXPROCS(0),
		batchSize:   64,
		chunkSize:   1 << 16,
		overlapSize: 256,
		fastMerge:   true,
		logger:      slog.Default(),
	}
}

// TrainerOption configures a Trainer at construction time.
type TrainerOption func(*trainerConfig) error

// WithWorkers sets the parallel pre-tokenizer's worker pool size. Must be
// at least 1; defaults to runtime.GOMAXPROCS(0).
func WithWorkers(n int) TrainerOption {
	return func(cfg *trainerConfig) error {
		if n < 1 {
			return newValueError("WithWorkers", ErrInvalidOption)
		}
		cfg.workers = n
		return nil
	}
}

// WithBatchSize sets how many segments each worker claims per turn.
// Must be at least 1.
func WithBatchSize(n int) TrainerOption {
	return func(cfg *trainerConfig) error {
		if n < 1 {
			return newValueError("WithBatchSize", ErrInvalidOption)
		}
		cfg.batchSize = n
		return nil
	}
}

// WithChunkSize sets the Chunk Reader's per-read rune count for
// TrainFromFile. Must be positive.
func WithChunkSize(n int) TrainerOption {
	return func(cfg *trainerConfig) error {
		if n <= 0 {
			return newValueError("WithChunkSize", ErrInvalidOption)
		}
		cfg.chunkSize = n
		return nil
	}
}

// WithOverlapSize sets the Chunk Reader's held-back overlap, which must
// be at least as large as the longest pretoken that can appear in the
// corpus for TrainFromFile's output to match a single-threaded run.
func WithOverlapSize(n int) TrainerOption {
	return func(cfg *trainerConfig) error {
		if n < 0 {
			return newValueError("WithOverlapSize", ErrInvalidOption)
		}
		cfg.overlapSize = n
		return nil
	}
}

// WithFastMerge records whether the lazy-heap top-pair selection strategy
// is requested. The merge engine has only the lazy-heap strategy and the
// recorded value is not read anywhere, so passing false has no effect.
func WithFastMerge(enabled bool) TrainerOption {
	return func(cfg *trainerConfig) error {
		cfg.fastMerge = enabled
		return nil
	}
}

// WithLogger overrides the *slog.Logger used for progress and early-stop
// messages. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) TrainerOption {
	return func(cfg *trainerConfig) error {
		if logger == nil {
			return newValueError("WithLogger", ErrInvalidOption)
		}
		cfg.logger = logger
		return nil
	}
}
