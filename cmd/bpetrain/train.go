package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corpusforge/bpetrain"
)

var (
	trainInput      string
	trainVocabSize  int
	trainSpecials   []string
	trainOutputDir  string
	trainPrefix     string
	trainQuiet      bool
	trainVerboseCnt int
)

// newTrainCmd creates the train subcommand.
func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a BPE vocabulary from a corpus file",
		Long: `Train streams a corpus file through the chunk reader and parallel
pre-tokenizer, then runs the merge engine until the requested vocabulary
size is reached or no mergeable pair remains. The result is written as
JSON to the output directory.`,
		Example: `  bpetrain train -i corpus.txt -N 10000 -s '<|endoftext|>'`,
		RunE:    runTrain,
	}

	cmd.Flags().StringVarP(&trainInput, "input", "i", "", "corpus file to train on (required)")
	cmd.Flags().IntVarP(&trainVocabSize, "vocab-size", "N", 0, "target vocabulary size (required)")
	cmd.Flags().StringSliceVarP(&trainSpecials, "special-tokens", "s", nil, "special token strings")
	cmd.Flags().StringVarP(&trainOutputDir, "output-dir", "o", "out", "directory to write the trained state into")
	cmd.Flags().StringVarP(&trainPrefix, "prefix", "p", "", "output file prefix (default: input file's stem)")
	cmd.Flags().BoolVarP(&trainQuiet, "quiet", "q", false, "only log warnings and errors")
	cmd.Flags().CountVarP(&trainVerboseCnt, "verbose", "v", "increase log verbosity (stackable)")

	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("vocab-size")

	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: verbosityLevel()}))

	prefix := trainPrefix
	if prefix == "" {
		base := filepath.Base(trainInput)
		prefix = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := os.MkdirAll(trainOutputDir, 0o755); err != nil {
		return fmt.Errorf("bpetrain: create output directory %s: %w", trainOutputDir, err)
	}

	trainer, err := bpetrain.New(bpetrain.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("training started", "input", trainInput, "vocab_size", trainVocabSize, "specials", trainSpecials)

	if err := trainer.TrainFromFile(context.Background(), trainInput, trainVocabSize, trainSpecials); err != nil {
		return err
	}

	path, err := trainer.SaveState(prefix, trainOutputDir)
	if err != nil {
		return err
	}

	logger.Info("training complete", "merges", len(trainer.Merges()), "vocab_size", len(trainer.Vocab()), "output", path)
	fmt.Println(path)
	return nil
}

// verbosityLevel maps -q/-v flag combinations onto an slog.Level:
// quiet drops to Warn; the default is Info; -v selects Debug, and -vv or
// more selects one level below Debug.
func verbosityLevel() slog.Level {
	if trainQuiet {
		return slog.LevelWarn
	}
	switch {
	case trainVerboseCnt <= 0:
		return slog.LevelInfo
	case trainVerboseCnt == 1:
		return slog.LevelDebug
	default:
		return slog.LevelDebug - 4
	}
}
