package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/code996/pkg/ranking"
)

// NewRankCommand creates the rank command.
func NewRankCommand() *cobra.Command {
	flags := &commonFlags{}

	modes := make([]string, 0, len(ranking.SortModes()))
	for _, mode := range ranking.SortModes() {
		modes = append(modes, string(mode))
	}

	cmd := &cobra.Command{
		Use:     "rank [path]",
		Aliases: []string{"ranking"},
		Short:   "Rank authors by overtime",
		Long: `Score every author with enough commits in the window and rank them.

Authors below the minimum commit count are left out. With --merge, aliases of
one person (same email, same name, or one people-dict line) are folded together
before the minimum is applied.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, flags, resolvePath(args))
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			res, err := s.analyzer.Rank(cmd.Context(), flags.opts)
			if err != nil {
				return handleOutcome(cmd.OutOrStdout(), err)
			}

			return s.renderer.RenderRanking(cmd.OutOrStdout(), res)
		},
	}

	flags.register(cmd)

	cmd.Flags().StringSliceVar(&flags.opts.ExcludeAuthors, "exclude-authors", nil,
		"Drop authors whose name or email contains any of these (comma separated)")
	cmd.Flags().BoolVar(&flags.opts.Merge, "merge", false, "Merge aliases of the same person before ranking")
	cmd.Flags().StringVar(&flags.opts.SortBy, "by", "",
		fmt.Sprintf("Sort key: %s (default from config, score)", strings.Join(modes, ", ")))
	cmd.Flags().IntVar(&flags.opts.Limit, "limit", 0, "Show only the top N authors (0 = all)")

	return cmd
}
