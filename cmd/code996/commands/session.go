// Package commands implements CLI command handlers for code996.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/code996/pkg/analysis"
	"github.com/Sumatoshi-tech/code996/pkg/config"
	"github.com/Sumatoshi-tech/code996/pkg/gitlib"
	"github.com/Sumatoshi-tech/code996/pkg/observability"
	"github.com/Sumatoshi-tech/code996/pkg/report"
	"github.com/Sumatoshi-tech/code996/pkg/version"
)

// Flag names shared between commands and the root.
const (
	flagConfig  = "config"
	flagVerbose = "verbose"
	flagNoColor = "no-color"
)

// commonFlags are the flags every analysis command accepts.
type commonFlags struct {
	opts analysis.Options

	format      string
	workStart   int
	workEnd     int
	peopleDict  string
	concurrency int
}

// register adds the time window, filtering and output flags.
func (f *commonFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.BoolVar(&f.opts.AllTime, "all-time", false, "Analyze the whole history")
	flags.StringVar(&f.opts.Days, "days", "", "Analyze the last N days ending today")
	flags.StringVar(&f.opts.Year, "year", "", "Analyze a year (2024) or year range (2023-2024)")
	flags.StringVar(&f.opts.Since, "since", "", "Window start date (YYYY-MM-DD)")
	flags.StringVar(&f.opts.Until, "until", "", "Window end date (YYYY-MM-DD)")

	flags.BoolVar(&f.opts.NoMerges, "no-merges", false, "Skip merge commits")
	flags.BoolVar(&f.opts.FirstParent, "first-parent", false, "Follow only the first parent of merge commits")

	flags.StringVar(&f.format, "format", string(report.FormatText), "Output format: text, json, yaml, plot")
	flags.IntVar(&f.workStart, "work-start", 0, "First working hour (default from config, 9)")
	flags.IntVar(&f.workEnd, "work-end", 0, "Hour the working day ends (default from config, 18)")
	flags.StringVar(&f.peopleDict, "people-dict", "", "File of author aliases, one person per line separated by |")
	flags.IntVar(&f.concurrency, "concurrency", 0, "Authors analyzed in parallel (default from config)")
}

func registerAuthorFlags(cmd *cobra.Command, opts *analysis.Options) {
	cmd.Flags().BoolVar(&opts.Self, "self", false, "Only count commits of the user configured in the repository")
	cmd.Flags().StringVar(&opts.Author, "author", "", "Only count commits whose author name or email matches this pattern")
}

// session is everything one analysis command needs, built from config and flags.
type session struct {
	analyzer  *analysis.Analyzer
	renderer  *report.Renderer
	logger    *slog.Logger
	providers observability.Providers
}

func (s *session) close(ctx context.Context) {
	err := s.providers.Shutdown(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "observability shutdown failed", "error", err)
	}
}

// newSession loads configuration, applies flag overrides and opens the
// repository at path.
func newSession(cmd *cobra.Command, f *commonFlags, path string) (*session, error) {
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.Observability(observability.ModeCLI, version.Version)
	obsCfg.Log.Output = cmd.ErrOrStderr()

	verbose, _ := cmd.Flags().GetBool(flagVerbose)
	if verbose {
		obsCfg.Log.Level = slog.LevelDebug
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	s := &session{logger: providers.Logger, providers: providers}

	metrics, err := observability.NewAnalysisMetrics(providers.Meter)
	if err != nil {
		s.close(cmd.Context())

		return nil, err
	}

	merger, err := cfg.Merger()
	if err != nil {
		s.close(cmd.Context())

		return nil, err
	}

	source, err := gitlib.NewSource(path, providers.Logger)
	if err != nil {
		s.close(cmd.Context())

		return nil, err
	}

	s.analyzer = analysis.NewAnalyzer(source, cfg.Settings(),
		analysis.WithLogger(providers.Logger),
		analysis.WithTracer(providers.Tracer),
		analysis.WithMetrics(metrics),
		analysis.WithMerger(merger),
	)

	noColor, _ := cmd.Flags().GetBool(flagNoColor)
	s.renderer = report.NewRenderer(format, noColor)

	return s, nil
}

// loadConfig reads the config file and overlays the flags the user set.
// Options left unset on the command line fall back to the config values.
func loadConfig(cmd *cobra.Command, f *commonFlags) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(flagConfig)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("work-start") {
		cfg.WorkHours.Start = f.workStart
	}

	if flags.Changed("work-end") {
		cfg.WorkHours.End = f.workEnd
	}

	if flags.Changed("people-dict") {
		cfg.Identity.PeopleDict = f.peopleDict
	}

	if flags.Changed("concurrency") {
		cfg.Analysis.Concurrency = f.concurrency
	}

	if !flags.Changed("no-merges") {
		f.opts.NoMerges = cfg.Analysis.NoMerges
	}

	if !flags.Changed("first-parent") {
		f.opts.FirstParent = cfg.Analysis.FirstParent
	}

	if flags.Lookup("by") != nil && !flags.Changed("by") {
		f.opts.SortBy = cfg.Ranking.SortBy
	}

	if flags.Lookup("limit") != nil && !flags.Changed("limit") {
		f.opts.Limit = cfg.Ranking.Limit
	}

	if flags.Lookup("merge") != nil && !flags.Changed("merge") {
		f.opts.Merge = cfg.Ranking.Merge
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolvePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return "."
}

// handleOutcome prints early-return signals and lets real failures through.
// A sample too small to score, or a ranking with nobody left, is a normal
// result that ends the run successfully.
func handleOutcome(w io.Writer, err error) error {
	if errors.Is(err, analysis.ErrInsufficientSample) || errors.Is(err, analysis.ErrNoAuthors) {
		_, writeErr := fmt.Fprintf(w, "Not enough data: %v\n", err)
		if writeErr != nil {
			return fmt.Errorf("write message: %w", writeErr)
		}

		return nil
	}

	return err
}
