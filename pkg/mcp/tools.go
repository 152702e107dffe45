package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/code996/pkg/analysis"
)

// Tool name constants.
const (
	ToolNameAnalyze = "code996_analyze"
	ToolNameRank    = "code996_rank"
	ToolNameTrend   = "code996_trend"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyRepoPath indicates the repo_path parameter is empty.
	ErrEmptyRepoPath = errors.New("repo_path parameter is required and must not be empty")
	// ErrRepoPathNotAbsolute indicates the repo_path is not an absolute path.
	ErrRepoPathNotAbsolute = errors.New("repo_path must be an absolute path")
	// ErrRepoNotFound indicates the repository path does not exist.
	ErrRepoNotFound = errors.New("repository path does not exist")
	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("path is not a git repository")
)

// Input types (auto-generate JSON schemas via struct tags).

// AnalyzeInput is the input schema for the code996_analyze tool.
type AnalyzeInput struct {
	RepoPath    string `json:"repo_path"              jsonschema:"absolute path to a Git repository"`
	AllTime     bool   `json:"all_time,omitempty"     jsonschema:"analyze the whole history"`
	Days        int    `json:"days,omitempty"         jsonschema:"analyze the last N days ending today"`
	Year        string `json:"year,omitempty"         jsonschema:"a year (2024) or year range (2023-2024)"`
	Since       string `json:"since,omitempty"        jsonschema:"window start date YYYY-MM-DD"`
	Until       string `json:"until,omitempty"        jsonschema:"window end date YYYY-MM-DD"`
	Author      string `json:"author,omitempty"       jsonschema:"case-insensitive regular expression matched against author name or email"`
	Self        bool   `json:"self,omitempty"         jsonschema:"restrict to the user configured in the repository"`
	NoMerges    bool   `json:"no_merges,omitempty"    jsonschema:"skip merge commits"`
	FirstParent bool   `json:"first_parent,omitempty" jsonschema:"follow only the first parent of merge commits"`
}

// RankInput is the input schema for the code996_rank tool.
type RankInput struct {
	RepoPath       string   `json:"repo_path"                 jsonschema:"absolute path to a Git repository"`
	AllTime        bool     `json:"all_time,omitempty"        jsonschema:"analyze the whole history"`
	Days           int      `json:"days,omitempty"            jsonschema:"analyze the last N days ending today"`
	Year           string   `json:"year,omitempty"            jsonschema:"a year (2024) or year range (2023-2024)"`
	Since          string   `json:"since,omitempty"           jsonschema:"window start date YYYY-MM-DD"`
	Until          string   `json:"until,omitempty"           jsonschema:"window end date YYYY-MM-DD"`
	ExcludeAuthors []string `json:"exclude_authors,omitempty" jsonschema:"drop authors whose name or email contains any of these strings"`
	Merge          bool     `json:"merge,omitempty"           jsonschema:"merge aliases of the same person before ranking"`
	By             string   `json:"by,omitempty"              jsonschema:"sort key: index, overtime, commits or score (default score)"`
	Limit          int      `json:"limit,omitempty"           jsonschema:"keep only the top N authors (default all)"`
	NoMerges       bool     `json:"no_merges,omitempty"       jsonschema:"skip merge commits"`
	FirstParent    bool     `json:"first_parent,omitempty"    jsonschema:"follow only the first parent of merge commits"`
}

// TrendInput is the input schema for the code996_trend tool.
type TrendInput struct {
	RepoPath    string `json:"repo_path"              jsonschema:"absolute path to a Git repository"`
	AllTime     bool   `json:"all_time,omitempty"     jsonschema:"analyze the whole history"`
	Days        int    `json:"days,omitempty"         jsonschema:"analyze the last N days ending today"`
	Year        string `json:"year,omitempty"         jsonschema:"a year (2024) or year range (2023-2024)"`
	Since       string `json:"since,omitempty"        jsonschema:"window start date YYYY-MM-DD"`
	Until       string `json:"until,omitempty"        jsonschema:"window end date YYYY-MM-DD"`
	Author      string `json:"author,omitempty"       jsonschema:"case-insensitive regular expression matched against author name or email"`
	Self        bool   `json:"self,omitempty"         jsonschema:"restrict to the user configured in the repository"`
	NoMerges    bool   `json:"no_merges,omitempty"    jsonschema:"skip merge commits"`
	FirstParent bool   `json:"first_parent,omitempty" jsonschema:"follow only the first parent of merge commits"`
}

func (in AnalyzeInput) options() analysis.Options {
	return analysis.Options{
		Path:        in.RepoPath,
		AllTime:     in.AllTime,
		Days:        daysFlag(in.Days),
		Year:        in.Year,
		Since:       in.Since,
		Until:       in.Until,
		Author:      in.Author,
		Self:        in.Self,
		NoMerges:    in.NoMerges,
		FirstParent: in.FirstParent,
	}
}

func (in RankInput) options() analysis.Options {
	return analysis.Options{
		Path:           in.RepoPath,
		AllTime:        in.AllTime,
		Days:           daysFlag(in.Days),
		Year:           in.Year,
		Since:          in.Since,
		Until:          in.Until,
		ExcludeAuthors: in.ExcludeAuthors,
		Merge:          in.Merge,
		SortBy:         in.By,
		Limit:          in.Limit,
		NoMerges:       in.NoMerges,
		FirstParent:    in.FirstParent,
	}
}

func (in TrendInput) options() analysis.Options {
	return AnalyzeInput(in).options()
}

// daysFlag keeps zero as "unset" and lets the window resolver reject
// negative values.
func daysFlag(days int) string {
	if days == 0 {
		return ""
	}

	return strconv.Itoa(days)
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// noticeResult reports an outcome that is not a failure but carries no
// report, such as a sample too small to score.
func noticeResult(msg string) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: msg},
		},
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateRepoPath checks that repoPath is an existing absolute path.
func validateRepoPath(repoPath string) error {
	if repoPath == "" {
		return ErrEmptyRepoPath
	}

	if !filepath.IsAbs(repoPath) {
		return fmt.Errorf("%w: %s", ErrRepoPathNotAbsolute, repoPath)
	}

	_, err := os.Stat(repoPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, repoPath)
	}

	return nil
}
