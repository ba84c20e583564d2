package main

import (
	"os"

	"github.com/spf13/cobra"
)

// completionCmd represents the completion command.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script",
	Long: `Generate shell completion script for bpetrain.

To load completions:

Bash:
  $ source <(bpetrain completion bash)
  # To load completions for each session, execute once:
  $ bpetrain completion bash > /etc/bash_completion.d/bpetrain

Zsh:
  $ source <(bpetrain completion zsh)
  $ bpetrain completion zsh > "${fpath[1]}/_bpetrain"

Fish:
  $ bpetrain completion fish | source
  $ bpetrain completion fish > ~/.config/fish/completions/bpetrain.fish

PowerShell:
  PS> bpetrain completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
