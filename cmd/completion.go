package cmd

import (
	"github.com/spf13/cobra"
)

// completionCmd represents the completion command.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for couponvault.

Bash:
  $ source <(couponvault completion bash)

  # To load completions for each session, execute once:
  $ couponvault completion bash > /etc/bash_completion.d/couponvault

Zsh:
  # If completion is not enabled yet, run once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ couponvault completion zsh > "${fpath[1]}/_couponvault"

Fish:
  $ couponvault completion fish > ~/.config/fish/completions/couponvault.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Annotations:           noDB,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
