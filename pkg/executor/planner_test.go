package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aicoder/internal/mocks"
	"aicoder/pkg/exec"
	"aicoder/pkg/logx"
)

type fakePlanClient struct {
	response string
	err      error
	prompts  []string
}

func (f *fakePlanClient) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestPlanner(llm planClient, runner exec.Executor) *StructuredPlanExecutor {
	return &StructuredPlanExecutor{
		llm:    llm,
		runner: runner,
		logger: logx.NewLogger("planner"),
		lookPath: func(string) (string, error) {
			return "", os.ErrNotExist
		},
	}
}

func writeRepoFile(t *testing.T, repo, rel, content string) {
	t.Helper()
	path := filepath.Join(repo, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestAnalyzeWithoutLLMReturnsDefaultPlan(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "app.py", "print('hi')\n")
	writeRepoFile(t, repo, "lib/util.py", "x = 1\n")

	planner := newTestPlanner(nil, mocks.NewMockExecutor())
	plan, err := planner.Analyze(context.Background(), "add logging", repo)
	require.NoError(t, err)

	assert.Equal(t, "add logging", plan.Intent)
	assert.ElementsMatch(t, []string{"app.py", "lib/util.py"}, plan.Files)
	assert.Empty(t, plan.Changes)
	assert.NotEmpty(t, plan.Tests)
}

func TestAnalyzeParsesLLMPlan(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "main.go", "package main\n")

	llm := &fakePlanClient{response: `{
		"files": ["main.go"],
		"changes": [{"file": "main.go", "operation": "append", "content": "// note"}],
		"tests": ["go test ./..."]
	}`}
	planner := newTestPlanner(llm, mocks.NewMockExecutor())

	plan, err := planner.Analyze(context.Background(), "annotate main", repo)
	require.NoError(t, err)

	assert.Equal(t, "annotate main", plan.Intent, "intent is filled in when the model omits it")
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, OpAppend, plan.Changes[0].Operation)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "annotate main")
	assert.Contains(t, llm.prompts[0], "main.go")
}

func TestAnalyzeFallsBackOnLLMFailure(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "a.py", "")

	cases := map[string]*fakePlanClient{
		"request error": {err: fmt.Errorf("boom")},
		"invalid json":  {response: "I cannot produce JSON, sorry."},
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			planner := newTestPlanner(llm, mocks.NewMockExecutor())
			plan, err := planner.Analyze(context.Background(), "fix it", repo)
			require.NoError(t, err)
			assert.Equal(t, "fix it", plan.Intent)
			assert.Empty(t, plan.Changes)
		})
	}
}

func TestSummaryTruncation(t *testing.T) {
	repo := t.TempDir()
	for i := 0; i < maxSummaryEntries+5; i++ {
		writeRepoFile(t, repo, fmt.Sprintf("src/file_%03d.txt", i), "data")
	}

	planner := newTestPlanner(nil, mocks.NewMockExecutor())
	summary, err := planner.summariseRepository(repo)
	require.NoError(t, err)

	assert.Len(t, summary.Files, maxSummaryEntries)
	assert.True(t, summary.Truncated)
}

func TestSummarySkipsGitDir(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, ".git/HEAD", "ref: refs/heads/main\n")
	writeRepoFile(t, repo, "README.md", "hello\n")

	planner := newTestPlanner(nil, mocks.NewMockExecutor())
	summary, err := planner.summariseRepository(repo)
	require.NoError(t, err)

	require.Len(t, summary.Files, 1)
	assert.Equal(t, "README.md", summary.Files[0].Path)
	assert.False(t, summary.Truncated)
}

func TestApplyChangeOperations(t *testing.T) {
	planner := newTestPlanner(nil, mocks.NewMockExecutor())

	t.Run("write creates parent directories", func(t *testing.T) {
		repo := t.TempDir()
		plan := &Plan{Changes: []Change{
			{File: "deep/nested/new.txt", Operation: OpWrite, Content: "created"},
		}}
		result, err := planner.Apply(context.Background(), plan, repo)
		require.NoError(t, err)
		assert.Equal(t, []string{"write:deep/nested/new.txt"}, result.Applied)

		data, err := os.ReadFile(filepath.Join(repo, "deep/nested/new.txt"))
		require.NoError(t, err)
		assert.Equal(t, "created", string(data))
	})

	t.Run("empty operation defaults to write", func(t *testing.T) {
		repo := t.TempDir()
		plan := &Plan{Changes: []Change{{File: "plain.txt", Content: "x"}}}
		result, err := planner.Apply(context.Background(), plan, repo)
		require.NoError(t, err)
		assert.Equal(t, []string{"write:plain.txt"}, result.Applied)
	})

	t.Run("append adds trailing newline", func(t *testing.T) {
		repo := t.TempDir()
		writeRepoFile(t, repo, "log.txt", "first\n")
		plan := &Plan{Changes: []Change{
			{File: "log.txt", Operation: OpAppend, Content: "second"},
		}}
		result, err := planner.Apply(context.Background(), plan, repo)
		require.NoError(t, err)
		assert.Len(t, result.Applied, 1)

		data, err := os.ReadFile(filepath.Join(repo, "log.txt"))
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", string(data))
	})

	t.Run("replace swaps all occurrences", func(t *testing.T) {
		repo := t.TempDir()
		writeRepoFile(t, repo, "conf.ini", "port=80\nport=80\n")
		plan := &Plan{Changes: []Change{
			{File: "conf.ini", Operation: OpReplace, Search: "port=80", Replace: "port=8080"},
		}}
		result, err := planner.Apply(context.Background(), plan, repo)
		require.NoError(t, err)
		assert.Len(t, result.Applied, 1)

		data, err := os.ReadFile(filepath.Join(repo, "conf.ini"))
		require.NoError(t, err)
		assert.Equal(t, "port=8080\nport=8080\n", string(data))
	})

	t.Run("replace without match is skipped", func(t *testing.T) {
		repo := t.TempDir()
		writeRepoFile(t, repo, "conf.ini", "port=80\n")
		plan := &Plan{Changes: []Change{
			{File: "conf.ini", Operation: OpReplace, Search: "host=", Replace: "host=db"},
		}}
		result, err := planner.Apply(context.Background(), plan, repo)
		require.NoError(t, err)
		assert.Empty(t, result.Applied)
		require.Len(t, result.Skipped, 1)
		assert.Contains(t, result.Skipped[0].Reason, "not found")
	})

	t.Run("replace without search field is skipped", func(t *testing.T) {
		repo := t.TempDir()
		plan := &Plan{Changes: []Change{
			{File: "conf.ini", Operation: OpReplace, Replace: "x"},
		}}
		result, err := planner.Apply(context.Background(), plan, repo)
		require.NoError(t, err)
		require.Len(t, result.Skipped, 1)
		assert.Contains(t, result.Skipped[0].Reason, "search")
	})

	t.Run("missing file path is skipped", func(t *testing.T) {
		repo := t.TempDir()
		plan := &Plan{Changes: []Change{{Operation: OpWrite, Content: "orphan"}}}
		result, err := planner.Apply(context.Background(), plan, repo)
		require.NoError(t, err)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, "missing file path", result.Skipped[0].Reason)
	})

	t.Run("unknown operation is skipped", func(t *testing.T) {
		repo := t.TempDir()
		plan := &Plan{Changes: []Change{{File: "a.txt", Operation: "delete"}}}
		result, err := planner.Apply(context.Background(), plan, repo)
		require.NoError(t, err)
		require.Len(t, result.Skipped, 1)
		assert.Contains(t, result.Skipped[0].Reason, "unsupported operation")
	})

	t.Run("one bad change does not block the rest", func(t *testing.T) {
		repo := t.TempDir()
		plan := &Plan{Changes: []Change{
			{Operation: OpWrite, Content: "orphan"},
			{File: "kept.txt", Operation: OpWrite, Content: "ok"},
		}}
		result, err := planner.Apply(context.Background(), plan, repo)
		require.NoError(t, err)
		assert.Equal(t, []string{"write:kept.txt"}, result.Applied)
		assert.Len(t, result.Skipped, 1)
	})
}

func TestValidateRunsConfiguredCommands(t *testing.T) {
	repo := t.TempDir()
	runner := mocks.NewMockExecutor()
	runner.RunFunc = func(_ context.Context, cmd []string, opts exec.Opts) (exec.Result, error) {
		assert.Equal(t, repo, opts.WorkDir)
		if cmd[0] == "pytest" {
			return exec.Result{ExitCode: 1, Stdout: "1 failed"}, nil
		}
		return exec.Result{ExitCode: 0}, nil
	}

	planner := newTestPlanner(nil, runner)
	planner.SyntaxCommand = []string{"gofmt", "-l", "."}
	planner.TestCommand = []string{"pytest", "-q"}

	result, err := planner.Validate(context.Background(), repo)
	require.NoError(t, err)

	assert.True(t, result.SyntaxOK)
	require.Len(t, result.TestRuns, 1)
	assert.Equal(t, "pytest -q", result.TestRuns[0].Command)
	assert.Equal(t, 1, result.TestRuns[0].ReturnCode)
	assert.Equal(t, "1 failed", result.TestRuns[0].Stdout)
	assert.Equal(t, []string{"gofmt -l .", "pytest -q"}, runner.CommandLines())
}

func TestValidateReportsSyntaxFailure(t *testing.T) {
	repo := t.TempDir()
	runner := mocks.NewMockExecutor()
	runner.RunFunc = func(_ context.Context, cmd []string, _ exec.Opts) (exec.Result, error) {
		return exec.Result{ExitCode: 1, Stderr: "bad.py: invalid syntax"}, nil
	}

	planner := newTestPlanner(nil, runner)
	planner.SyntaxCommand = []string{"python3", "-m", "compileall", "-q", "."}

	result, err := planner.Validate(context.Background(), repo)
	require.NoError(t, err)
	assert.False(t, result.SyntaxOK)
	assert.Contains(t, result.CompilationError, "invalid syntax")
}

func TestValidateSkipsMissingTooling(t *testing.T) {
	runner := mocks.NewMockExecutor()
	planner := newTestPlanner(nil, runner)

	result, err := planner.Validate(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.True(t, result.SyntaxOK)
	assert.Empty(t, result.TestRuns)
	assert.Zero(t, runner.CallCount(), "no commands run when no tooling is available")
}
