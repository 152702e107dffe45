package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/code996/pkg/version"
)

// NewRootCommand creates the code996 command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "code996",
		Short: "code996 - how much of the work happens after hours",
		Long: `code996 reads the commit history of a Git repository and estimates how much
of the work happens outside office hours and on weekends.

Commands:
  analyze   996 index of a repository or one author
  rank      author ranking by overtime
  trend     monthly 996 index series
  mcp       MCP server for AI agents`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String(flagConfig, "", "Config file (default: code996.yaml in ., ./config or ~/.config/code996)")
	flags.BoolP(flagVerbose, "v", false, "Verbose logging")
	flags.Bool(flagNoColor, false, "Disable colored output")

	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewRankCommand())
	rootCmd.AddCommand(NewTrendCommand())
	rootCmd.AddCommand(NewMCPCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "code996 %s\n", version.String())

			return err
		},
	}
}
