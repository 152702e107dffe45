package commands

import (
	"github.com/spf13/cobra"
)

// NewTrendCommand creates the trend command.
func NewTrendCommand() *cobra.Command {
	flags := &commonFlags{}

	cmd := &cobra.Command{
		Use:   "trend [path]",
		Short: "Show the 996 index month by month",
		Long: `Compute the 996 overtime index for every calendar month of the window.

Months with too few commits to score are listed without an index.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, flags, resolvePath(args))
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			rep, err := s.analyzer.Trend(cmd.Context(), flags.opts)
			if err != nil {
				return handleOutcome(cmd.OutOrStdout(), err)
			}

			return s.renderer.RenderTrend(cmd.OutOrStdout(), rep)
		},
	}

	flags.register(cmd)
	registerAuthorFlags(cmd, &flags.opts)

	return cmd
}
