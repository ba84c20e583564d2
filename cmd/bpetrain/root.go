package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bpetrain",
	Short: "Train a GPT-2-style byte-pair-encoding vocabulary",
	Long: `bpetrain trains a byte-pair-encoding vocabulary from a text corpus.

It pre-tokenizes the corpus with the GPT-2 split pattern, then repeatedly
merges the most frequent adjacent token pair until the target vocabulary
size is reached or no mergeable pair remains.`,
	Example: `  # Train a 10000-token vocabulary from a corpus file
  bpetrain train -i corpus.txt -N 10000 -s '<|endoftext|>'

  # Write the result under a custom prefix and output directory
  bpetrain train -i corpus.txt -N 10000 -s '<|endoftext|>' -o build -p mymodel`,
	SilenceUsage: true,
}

// versionCmd prints build version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bpetrain version %s\n", version)
		if commit != "none" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildDate != "unknown" {
			fmt.Printf("  built:  %s\n", buildDate)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newTrainCmd())
}
