package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/code996/pkg/config"
	"github.com/Sumatoshi-tech/code996/pkg/mcp"
	"github.com/Sumatoshi-tech/code996/pkg/observability"
	"github.com/Sumatoshi-tech/code996/pkg/version"
)

const metricsReadHeaderTimeout = 5 * time.Second

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the code996 analyses as tools that AI agents can
discover and invoke:
  - code996_analyze: 996 index of a repository or one author
  - code996_rank: author ranking by overtime
  - code996_trend: monthly 996 index series`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(flagConfig)

			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}

			providers, err := initMCPObservability(cfg, debug)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			meter := providers.Meter

			var exporter *observability.PrometheusExporter
			if metricsAddr != "" {
				exporter, err = observability.NewPrometheusExporter()
				if err != nil {
					return err
				}

				meter = exporter.Meter()
			}

			red, err := observability.NewREDMetrics(meter)
			if err != nil {
				return err
			}

			analysisMetrics, err := observability.NewAnalysisMetrics(meter)
			if err != nil {
				return err
			}

			if exporter != nil {
				stop, serveErr := serveMetrics(cmd.Context(), metricsAddr, exporter, red, providers)
				if serveErr != nil {
					return serveErr
				}
				defer stop()
			}

			merger, err := cfg.Merger()
			if err != nil {
				return err
			}

			settings := cfg.Settings()

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:          providers.Logger,
				Metrics:         red,
				Tracer:          providers.Tracer,
				AnalysisMetrics: analysisMetrics,
				Settings:        &settings,
				Merger:          merger,
			})

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9996)")

	return cmd
}

func initMCPObservability(cfg *config.Config, debug bool) (observability.Providers, error) {
	obsCfg := cfg.Observability(observability.ModeMCP, version.Version)
	obsCfg.Log.JSON = true

	if debug {
		obsCfg.Log.Level = slog.LevelDebug
		obsCfg.Export.SampleAll = true
	}

	return observability.Init(obsCfg)
}

// serveMetrics serves the scrape and health routes of exporter on addr.
// The returned stop function shuts the listener and the exporter down.
func serveMetrics(
	ctx context.Context,
	addr string,
	exporter *observability.PrometheusExporter,
	red *observability.REDMetrics,
	providers observability.Providers,
) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           observability.MetricsHandler(exporter, providers.Tracer, red),
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		serveErr := server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			providers.Logger.ErrorContext(ctx, "metrics endpoint failed", "error", serveErr)
		}
	}()

	providers.Logger.InfoContext(ctx, "serving metrics", "addr", listener.Addr().String())

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsReadHeaderTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			providers.Logger.Warn("metrics endpoint shutdown failed", "error", err)
		}

		err = exporter.Shutdown(shutdownCtx)
		if err != nil {
			providers.Logger.Warn("prometheus exporter shutdown failed", "error", err)
		}
	}

	return stop, nil
}
