// Package report renders analysis results as text, JSON, YAML or an HTML plot.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/code996/pkg/analysis"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/ranking"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

// Format is an output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatPlot Format = "plot"
)

// ErrUnknownFormat is returned for an unrecognized --format value.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists every accepted format.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML, FormatPlot}
}

// ParseFormat parses a --format value. An empty value selects text.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatPlot:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q: expected one of text, json, yaml, plot", ErrUnknownFormat, raw)
	}
}

// Renderer writes reports in one format.
type Renderer struct {
	format  Format
	palette palette
}

// NewRenderer returns a renderer for format. noColor strips ANSI styling from
// text output; other formats never carry it.
func NewRenderer(format Format, noColor bool) *Renderer {
	return &Renderer{format: format, palette: newPalette(noColor)}
}

// Format returns the renderer's output format.
func (r *Renderer) Format() Format {
	return r.format
}

// RenderRepo writes a repository or single-author report.
func (r *Renderer) RenderRepo(w io.Writer, rep *analysis.RepoReport) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatYAML:
		return writeYAML(w, rep)
	case FormatPlot:
		return plotRepo(w, rep)
	default:
		return r.textRepo(w, rep)
	}
}

// RenderRanking writes an author ranking.
func (r *Renderer) RenderRanking(w io.Writer, res *ranking.AuthorRankingResult) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, newRankingDoc(res))
	case FormatYAML:
		return writeYAML(w, newRankingDoc(res))
	case FormatPlot:
		return plotRanking(w, res)
	default:
		return r.textRanking(w, res)
	}
}

// RenderTrend writes a monthly trend.
func (r *Renderer) RenderTrend(w io.Writer, rep *analysis.TrendReport) error {
	switch r.format {
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatYAML:
		return writeYAML(w, rep)
	case FormatPlot:
		return plotTrend(w, rep)
	default:
		return r.textTrend(w, rep)
	}
}

// rankingDoc is the structured form of a ranking; each author carries its
// rank, and its composite score when the ranking is sorted by score.
type rankingDoc struct {
	Authors      []rankedAuthor      `json:"authors"       yaml:"authors"`
	TotalAuthors int                 `json:"total_authors" yaml:"total_authors"`
	TimeRange    timerange.TimeRange `json:"time_range"    yaml:"time_range"`
	SortBy       ranking.SortMode    `json:"sort_by"       yaml:"sort_by"`
}

type rankedAuthor struct {
	Rank int `json:"rank" yaml:"rank"`

	overtime.AuthorStats `yaml:",inline"`

	Score *float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

func newRankingDoc(res *ranking.AuthorRankingResult) rankingDoc {
	authors := make([]rankedAuthor, len(res.Authors))
	for i, author := range res.Authors {
		authors[i] = rankedAuthor{Rank: i + 1, AuthorStats: author}

		if res.SortBy == ranking.SortByScore {
			score := ranking.Score(author)
			authors[i].Score = &score
		}
	}

	return rankingDoc{
		Authors:      authors,
		TotalAuthors: res.TotalAuthors,
		TimeRange:    res.TimeRange,
		SortBy:       res.SortBy,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return nil
}
