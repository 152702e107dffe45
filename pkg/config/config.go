// Package config provides configuration loading and validation for code996.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/code996/pkg/analysis"
	"github.com/Sumatoshi-tech/code996/pkg/identity"
	"github.com/Sumatoshi-tech/code996/pkg/observability"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/ranking"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

// Sentinel validation errors.
var (
	ErrInvalidThreshold   = errors.New("commit thresholds must be positive")
	ErrInvalidConcurrency = errors.New("analysis concurrency out of range")
	ErrInvalidWindow      = errors.New("analysis window days must be positive")
	ErrInvalidLimit       = errors.New("ranking limit must not be negative")
	ErrInvalidLogLevel    = errors.New("unknown log level")
	ErrInvalidLogFormat   = errors.New("unknown log format")
	ErrInvalidSampleRatio = errors.New("trace sample ratio must be within [0, 1]")
)

// Config holds all configuration for code996.
type Config struct {
	WorkHours  overtime.WorkHours   `mapstructure:"work_hours"`
	Thresholds ThresholdsConfig     `mapstructure:"thresholds"`
	Index      overtime.IndexPolicy `mapstructure:"index"`
	Analysis   AnalysisConfig       `mapstructure:"analysis"`
	Ranking    RankingConfig        `mapstructure:"ranking"`
	Identity   IdentityConfig       `mapstructure:"identity"`
	Logging    LoggingConfig        `mapstructure:"logging"`
	Telemetry  TelemetryConfig      `mapstructure:"telemetry"`
}

// ThresholdsConfig holds the minimum sample sizes.
type ThresholdsConfig struct {
	// MinRepoCommits is the smallest commit count a repository analysis accepts.
	MinRepoCommits int `mapstructure:"min_repo_commits"`
	// MinAuthorCommits drops authors below it from rankings, after merging.
	MinAuthorCommits int `mapstructure:"min_author_commits"`
	// MinTrendCommits marks trend months below it as insufficient.
	MinTrendCommits int `mapstructure:"min_trend_commits"`
}

// AnalysisConfig holds analysis-specific configuration.
type AnalysisConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	WindowDays  int  `mapstructure:"window_days"`
	NoMerges    bool `mapstructure:"no_merges"`
	FirstParent bool `mapstructure:"first_parent"`
}

// RankingConfig holds ranking-specific configuration.
type RankingConfig struct {
	SortBy string `mapstructure:"sort_by"`
	Limit  int    `mapstructure:"limit"`
	Merge  bool   `mapstructure:"merge"`
}

// IdentityConfig holds author identity merging configuration.
type IdentityConfig struct {
	// PeopleDict is a file of "alias|alias|..." lines; the first alias is canonical.
	PeopleDict string `mapstructure:"people_dict"`
	// ExactSignatures disables grouping by display name.
	ExactSignatures bool `mapstructure:"exact_signatures"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty path searches code996.yaml in the working directory, ./config and
// $HOME/.config/code996; a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.config/code996")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	return &Config{
		WorkHours: overtime.DefaultWorkHours(),
		Thresholds: ThresholdsConfig{
			MinRepoCommits:   DefaultMinRepoCommits,
			MinAuthorCommits: DefaultMinAuthorCommits,
			MinTrendCommits:  DefaultMinTrendCommits,
		},
		Index: overtime.DefaultIndexPolicy(),
		Analysis: AnalysisConfig{
			Concurrency: DefaultConcurrency,
			WindowDays:  timerange.DefaultWindowDays,
			NoMerges:    DefaultNoMerges,
			FirstParent: DefaultFirstParent,
		},
		Ranking: RankingConfig{SortBy: DefaultSortBy, Limit: DefaultLimit, Merge: DefaultMerge},
		Identity: IdentityConfig{
			PeopleDict:      DefaultPeopleDict,
			ExactSignatures: DefaultExactSignatures,
		},
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: DefaultOTLPEndpoint,
			OTLPInsecure: DefaultOTLPInsecure,
			SampleRatio:  DefaultSampleRatio,
			DebugTrace:   DefaultDebugTrace,
			TraceVerbose: DefaultTraceVerbose,
		},
	}
}

// setDefaults registers every key so that environment overrides reach Unmarshal.
func setDefaults(viperCfg *viper.Viper) {
	def := Default()

	viperCfg.SetDefault("work_hours.start", def.WorkHours.Start)
	viperCfg.SetDefault("work_hours.end", def.WorkHours.End)

	viperCfg.SetDefault("thresholds.min_repo_commits", def.Thresholds.MinRepoCommits)
	viperCfg.SetDefault("thresholds.min_author_commits", def.Thresholds.MinAuthorCommits)
	viperCfg.SetDefault("thresholds.min_trend_commits", def.Thresholds.MinTrendCommits)

	viperCfg.SetDefault("index.multiplier", def.Index.Multiplier)
	viperCfg.SetDefault("index.saturation_commits", def.Index.SaturationCommits)
	viperCfg.SetDefault("index.under_saturation_penalty", def.Index.UnderSaturationPenalty)

	viperCfg.SetDefault("analysis.concurrency", def.Analysis.Concurrency)
	viperCfg.SetDefault("analysis.window_days", def.Analysis.WindowDays)
	viperCfg.SetDefault("analysis.no_merges", def.Analysis.NoMerges)
	viperCfg.SetDefault("analysis.first_parent", def.Analysis.FirstParent)

	viperCfg.SetDefault("ranking.sort_by", def.Ranking.SortBy)
	viperCfg.SetDefault("ranking.limit", def.Ranking.Limit)
	viperCfg.SetDefault("ranking.merge", def.Ranking.Merge)

	viperCfg.SetDefault("identity.people_dict", def.Identity.PeopleDict)
	viperCfg.SetDefault("identity.exact_signatures", def.Identity.ExactSignatures)

	viperCfg.SetDefault("logging.level", def.Logging.Level)
	viperCfg.SetDefault("logging.format", def.Logging.Format)

	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.otlp_endpoint", def.Telemetry.OTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", def.Telemetry.OTLPInsecure)
	viperCfg.SetDefault("telemetry.sample_ratio", def.Telemetry.SampleRatio)
	viperCfg.SetDefault("telemetry.debug_trace", def.Telemetry.DebugTrace)
	viperCfg.SetDefault("telemetry.trace_verbose", def.Telemetry.TraceVerbose)
}

// Validate checks the configuration. It is called by LoadConfig and again by
// the CLI once flags have been applied on top.
func (c *Config) Validate() error {
	err := c.WorkHours.Validate()
	if err != nil {
		return fmt.Errorf("work_hours: %w", err)
	}

	err = c.Index.Validate()
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	if c.Thresholds.MinRepoCommits <= 0 || c.Thresholds.MinAuthorCommits <= 0 || c.Thresholds.MinTrendCommits <= 0 {
		return fmt.Errorf("%w: repo=%d author=%d trend=%d", ErrInvalidThreshold,
			c.Thresholds.MinRepoCommits, c.Thresholds.MinAuthorCommits, c.Thresholds.MinTrendCommits)
	}

	if c.Analysis.Concurrency <= 0 || c.Analysis.Concurrency > maxWorkers {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.Analysis.Concurrency)
	}

	if c.Analysis.WindowDays <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, c.Analysis.WindowDays)
	}

	_, err = ranking.ParseSortMode(c.Ranking.SortBy)
	if err != nil {
		return fmt.Errorf("ranking: %w", err)
	}

	if c.Ranking.Limit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, c.Ranking.Limit)
	}

	_, err = c.LogLevel()
	if err != nil {
		return err
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Logging.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return level, nil
}

// Observability maps the logging and telemetry sections onto an
// observability.Config for the given launch mode.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	obs := observability.DefaultConfig()

	obs.ServiceVersion = version
	obs.Environment = c.Telemetry.Environment
	obs.Mode = mode
	obs.Export = observability.Export{
		Endpoint:    c.Telemetry.OTLPEndpoint,
		Headers:     observability.ParseHeaders(c.Telemetry.OTLPHeaders),
		Insecure:    c.Telemetry.OTLPInsecure,
		SampleRatio: c.Telemetry.SampleRatio,
		SampleAll:   c.Telemetry.DebugTrace,
		AuthorSpans: c.Telemetry.TraceVerbose,
	}
	obs.Log.JSON = c.Logging.Format == "json"

	if level, err := c.LogLevel(); err == nil {
		obs.Log.Level = level
	}

	return obs
}

// Settings returns the analysis tunables.
func (c *Config) Settings() analysis.Settings {
	return analysis.Settings{
		WorkHours:        c.WorkHours,
		Index:            c.Index,
		MinRepoCommits:   c.Thresholds.MinRepoCommits,
		MinAuthorCommits: c.Thresholds.MinAuthorCommits,
		MinTrendCommits:  c.Thresholds.MinTrendCommits,
		Concurrency:      c.Analysis.Concurrency,
		WindowDays:       c.Analysis.WindowDays,
	}
}

// Merger builds the identity merger, loading the people dict when one is set.
func (c *Config) Merger() (*identity.Merger, error) {
	merger := identity.NewMerger()
	merger.ExactSignatures = c.Identity.ExactSignatures

	if c.Identity.PeopleDict == "" {
		return merger, nil
	}

	err := merger.LoadPeopleDict(c.Identity.PeopleDict)
	if err != nil {
		return nil, err
	}

	return merger, nil
}
