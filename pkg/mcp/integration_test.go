package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/code996/pkg/mcp"
	"github.com/Sumatoshi-tech/code996/pkg/observability"
)

// historyRepo creates a repository where alice has 30 commits at 10:00 on
// Tuesday 2024-03-05 and 10 at 21:00 on Wednesday 2024-03-06, and bob has 2.
func historyRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	index, err := repo.Index()
	require.NoError(t, err)

	defer index.Free()

	treeID, err := index.WriteTree()
	require.NoError(t, err)

	tree, err := repo.LookupTree(treeID)
	require.NoError(t, err)

	defer tree.Free()

	var parents []*git2go.Commit

	add := func(name string, n int, when time.Time) {
		for i := range n {
			sig := &git2go.Signature{Name: name, Email: name + "@example.com", When: when.Add(time.Duration(i) * time.Second)}

			oid, commitErr := repo.CreateCommit("HEAD", sig, sig, "change", tree, parents...)
			require.NoError(t, commitErr)

			commit, lookupErr := repo.LookupCommit(oid)
			require.NoError(t, lookupErr)

			parents = []*git2go.Commit{commit}
		}
	}

	add("alice", 30, time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC))
	add("alice", 10, time.Date(2024, time.March, 6, 21, 0, 0, 0, time.UTC))
	add("bob", 2, time.Date(2024, time.March, 7, 11, 0, 0, 0, time.UTC))

	return dir
}

// connect runs srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func call(t *testing.T, session *mcpsdk.ClientSession, tool string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func text(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	content, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return content.Text
}

func TestMCPServer_ToolsList(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	assert.Equal(t, []string{mcp.ToolNameAnalyze, mcp.ToolNameRank, mcp.ToolNameTrend}, srv.ListToolNames())

	session := connect(t, srv)

	toolsResult, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.ElementsMatch(t, []string{"code996_analyze", "code996_rank", "code996_trend"}, toolNames)
}

func TestMCPServer_InputValidation(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))
	notRepo := t.TempDir()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"empty path", map[string]any{"repo_path": ""}, "repo_path parameter is required"},
		{"relative path", map[string]any{"repo_path": "relative/path"}, "absolute path"},
		{"missing path", map[string]any{"repo_path": "/nonexistent/path/to/repo"}, "does not exist"},
		{"not a repository", map[string]any{"repo_path": notRepo}, "not a git repository"},
	}

	for _, tt := range tests {
		for _, tool := range []string{mcp.ToolNameAnalyze, mcp.ToolNameRank, mcp.ToolNameTrend} {
			result := call(t, session, tool, tt.args)
			assert.True(t, result.IsError, "%s/%s", tool, tt.name)
			assert.Contains(t, text(t, result), tt.want, "%s/%s", tool, tt.name)
		}
	}
}

func TestMCPServer_Analyze(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameAnalyze, map[string]any{
		"repo_path": historyRepo(t),
		"all_time":  true,
	})
	require.False(t, result.IsError, text(t, result))

	var report struct {
		Data struct {
			TotalCommits int `json:"total_commits"`
		} `json:"data"`
		Result struct {
			OvertimeRatioPercent float64 `json:"overtime_ratio_percent"`
		} `json:"result"`
	}

	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &report))
	assert.Equal(t, 42, report.Data.TotalCommits)
	assert.Positive(t, report.Result.OvertimeRatioPercent)
}

func TestMCPServer_AnalyzeBadWindow(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameAnalyze, map[string]any{
		"repo_path": historyRepo(t),
		"days":      -3,
	})
	assert.True(t, result.IsError)
}

func TestMCPServer_AnalyzeInsufficientSample(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameAnalyze, map[string]any{
		"repo_path": historyRepo(t),
		"all_time":  true,
		"author":    "bob",
	})
	assert.False(t, result.IsError)
	assert.Contains(t, text(t, result), "at least 20 are needed")
}

func TestMCPServer_Rank(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameRank, map[string]any{
		"repo_path": historyRepo(t),
		"all_time":  true,
		"by":        "commits",
	})
	require.False(t, result.IsError, text(t, result))

	var res struct {
		Authors []struct {
			Identity struct {
				Email string `json:"email"`
			} `json:"identity"`
			TotalCommits int `json:"total_commits"`
		} `json:"authors"`
		SortBy string `json:"sort_by"`
	}

	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &res))
	require.Len(t, res.Authors, 1)
	assert.Equal(t, "alice@example.com", res.Authors[0].Identity.Email)
	assert.Equal(t, 40, res.Authors[0].TotalCommits)
	assert.Equal(t, "commits", res.SortBy)
}

func TestMCPServer_RankNobodyLeft(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameRank, map[string]any{
		"repo_path":       historyRepo(t),
		"all_time":        true,
		"exclude_authors": []string{"alice"},
	})
	assert.False(t, result.IsError)
	assert.Contains(t, text(t, result), "no authors to rank")
}

func TestMCPServer_RankUnknownSort(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameRank, map[string]any{
		"repo_path": historyRepo(t),
		"all_time":  true,
		"by":        "lines",
	})
	assert.True(t, result.IsError)
}

func TestMCPServer_Trend(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameTrend, map[string]any{
		"repo_path": historyRepo(t),
		"since":     "2024-02-01",
		"until":     "2024-03-31",
	})
	require.False(t, result.IsError, text(t, result))

	var rep struct {
		Points []struct {
			Month        time.Time `json:"month"`
			Commits      int       `json:"commits"`
			Insufficient bool      `json:"insufficient"`
		} `json:"points"`
	}

	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &rep))
	require.Len(t, rep.Points, 2)
	assert.Equal(t, time.February, rep.Points[0].Month.Month())
	assert.True(t, rep.Points[0].Insufficient)
	assert.Equal(t, 42, rep.Points[1].Commits)
	assert.False(t, rep.Points[1].Insufficient)
}

func TestMCPServer_TracingAndMetrics(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Metrics: red,
		Tracer:  tp.Tracer("test"),
	}))

	ok := call(t, session, mcp.ToolNameAnalyze, map[string]any{"repo_path": historyRepo(t), "all_time": true})
	require.False(t, ok.IsError)

	last, isText := ok.Content[len(ok.Content)-1].(*mcpsdk.TextContent)
	require.True(t, isText)
	assert.True(t, strings.HasPrefix(last.Text, "trace_id="))

	failed := call(t, session, mcp.ToolNameRank, map[string]any{"repo_path": "relative"})
	require.True(t, failed.IsError)

	var names []string
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}

	assert.Contains(t, names, "mcp.code996_analyze")
	assert.Contains(t, names, "code996.analysis.analyze")
	assert.Contains(t, names, "mcp.code996_rank")

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	var requests, errs int64

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, isSum := m.Data.(metricdata.Sum[int64])
			if !isSum {
				continue
			}

			for _, dp := range sum.DataPoints {
				switch m.Name {
				case "code996.requests.total":
					requests += dp.Value
				case "code996.errors.total":
					errs += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(2), requests)
	assert.Equal(t, int64(1), errs)
}
