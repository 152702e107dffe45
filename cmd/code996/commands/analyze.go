package commands

import (
	"github.com/spf13/cobra"
)

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	flags := &commonFlags{}

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Compute the 996 index of a repository",
		Long: `Compute the 996 overtime index of a repository, or of one author in it.

Commits are split by author time into working-hour and overtime buckets and into
weekday and weekend buckets. Without a window flag the last year of history up
to the latest commit is analyzed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, flags, resolvePath(args))
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			rep, err := s.analyzer.Analyze(cmd.Context(), flags.opts)
			if err != nil {
				return handleOutcome(cmd.OutOrStdout(), err)
			}

			return s.renderer.RenderRepo(cmd.OutOrStdout(), rep)
		},
	}

	flags.register(cmd)
	registerAuthorFlags(cmd, &flags.opts)

	return cmd
}
