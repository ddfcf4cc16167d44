package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aicoder/pkg/config"
	"aicoder/pkg/exec"
	"aicoder/pkg/logx"
	"aicoder/pkg/utils"
)

const (
	// maxSummaryEntries caps the repository summary sent to the model.
	maxSummaryEntries = 200
	// promptTokenBudget caps the repository context portion of the prompt.
	promptTokenBudget = 6000
)

// fileEntry is one line of the repository summary.
type fileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type repoSummary struct {
	Files     []fileEntry `json:"files"`
	Truncated bool        `json:"truncated"`
}

// StructuredPlanExecutor derives a typed Plan from the task intent via an
// LLM, applies the planned changes itself, and validates the result by
// running syntax and test commands in the repository.
type StructuredPlanExecutor struct {
	llm      planClient
	runner   exec.Executor
	tokens   *utils.TokenCounter
	logger   *logx.Logger
	lookPath func(string) (string, error)

	// SyntaxCommand and TestCommand override the validation defaults.
	SyntaxCommand []string
	TestCommand   []string
}

// NewStructuredPlanExecutor builds the LLM-planning executor. When the
// configuration carries no API key the executor still works, producing
// default plans with no changes.
func NewStructuredPlanExecutor(cfg config.LLMConfig, runner exec.Executor) (*StructuredPlanExecutor, error) {
	llm, err := newPlanClient(cfg)
	if err != nil {
		return nil, err
	}
	tokens, err := utils.NewTokenCounter()
	if err != nil {
		// Token counting degrades to character estimation.
		tokens = nil
	}
	return &StructuredPlanExecutor{
		llm:      llm,
		runner:   runner,
		tokens:   tokens,
		logger:   logx.NewLogger("planner"),
		lookPath: defaultLookPath(),
	}, nil
}

// Analyze produces a plan for the requested changes. Any LLM failure falls
// back to a default plan so the workflow can continue.
func (e *StructuredPlanExecutor) Analyze(ctx context.Context, intent, repoPath string) (*Plan, error) {
	summary, err := e.summariseRepository(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise repository: %w", err)
	}

	if e.llm == nil {
		return e.defaultPlan(intent, summary), nil
	}

	prompt := e.buildPlanningPrompt(intent, summary)
	content, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("Planning request failed, using default plan: %v", err)
		return e.defaultPlan(intent, summary), nil
	}

	var plan Plan
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &plan); err != nil {
		e.logger.Warn("Planning response was not valid JSON, using default plan: %v", err)
		return e.defaultPlan(intent, summary), nil
	}
	if plan.Intent == "" {
		plan.Intent = intent
	}
	return &plan, nil
}

// Apply executes the plan's changes against the repository, recording each
// change as applied or skipped with a reason.
func (e *StructuredPlanExecutor) Apply(_ context.Context, plan *Plan, repoPath string) (*ExecutionResult, error) {
	result := &ExecutionResult{Applied: []string{}, Skipped: []SkippedChange{}}
	for _, change := range plan.Changes {
		if change.File == "" {
			result.Skipped = append(result.Skipped, SkippedChange{Change: change, Reason: "missing file path"})
			continue
		}
		if err := applyChange(change, repoPath); err != nil {
			result.Skipped = append(result.Skipped, SkippedChange{Change: change, Reason: err.Error()})
			continue
		}
		op := change.Operation
		if op == "" {
			op = OpWrite
		}
		result.Applied = append(result.Applied, op+":"+change.File)
	}
	return result, nil
}

func applyChange(change Change, repoPath string) error {
	target := filepath.Join(repoPath, change.File)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	op := change.Operation
	if op == "" {
		op = OpWrite
	}
	switch op {
	case OpWrite:
		return os.WriteFile(target, []byte(change.Content), 0o644)
	case OpAppend:
		f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		content := change.Content
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		_, err = f.WriteString(content)
		return err
	case OpReplace:
		if change.Search == "" {
			return fmt.Errorf("replace operation requires 'search' field")
		}
		original := ""
		if data, err := os.ReadFile(target); err == nil {
			original = string(data)
		}
		if !strings.Contains(original, change.Search) {
			return fmt.Errorf("search pattern not found")
		}
		return os.WriteFile(target, []byte(strings.ReplaceAll(original, change.Search, change.Replace)), 0o644)
	default:
		return fmt.Errorf("unsupported operation %q", op)
	}
}

// Validate runs the syntax check and test commands inside the repository,
// capturing each run's command line, exit code, and output.
func (e *StructuredPlanExecutor) Validate(ctx context.Context, repoPath string) (*ValidationResult, error) {
	result := &ValidationResult{SyntaxOK: true, TestRuns: []TestRun{}}

	if cmd := e.syntaxCommand(); len(cmd) > 0 {
		run, err := e.runner.Run(ctx, cmd, exec.Opts{WorkDir: repoPath})
		if err != nil {
			result.SyntaxOK = false
			result.CompilationError = err.Error()
		} else if run.ExitCode != 0 {
			result.SyntaxOK = false
			result.CompilationError = strings.TrimSpace(run.Stdout + "\n" + run.Stderr)
		}
	}

	if cmd := e.testCommand(); len(cmd) > 0 {
		run, err := e.runner.Run(ctx, cmd, exec.Opts{WorkDir: repoPath})
		if err != nil {
			return result, fmt.Errorf("failed to run tests: %w", err)
		}
		result.TestRuns = append(result.TestRuns, TestRun{
			Command:    strings.Join(cmd, " "),
			ReturnCode: run.ExitCode,
			Stdout:     run.Stdout,
			Stderr:     run.Stderr,
		})
	}

	return result, nil
}

// syntaxCommand returns the configured syntax check, falling back to Python
// bytecode compilation when a Python toolchain is present.
func (e *StructuredPlanExecutor) syntaxCommand() []string {
	if len(e.SyntaxCommand) > 0 {
		return e.SyntaxCommand
	}
	if _, err := e.lookPath("python3"); err == nil {
		return []string{"python3", "-m", "compileall", "-q", "."}
	}
	return nil
}

// testCommand returns the configured test command, falling back to pytest
// when available on PATH.
func (e *StructuredPlanExecutor) testCommand() []string {
	if len(e.TestCommand) > 0 {
		return e.TestCommand
	}
	if _, err := e.lookPath("pytest"); err == nil {
		return []string{"pytest", "--maxfail=1", "--disable-warnings", "-q"}
	}
	return nil
}

// summariseRepository collects a lightweight file listing, truncated at
// maxSummaryEntries entries.
func (e *StructuredPlanExecutor) summariseRepository(repoPath string) (*repoSummary, error) {
	summary := &repoSummary{Files: []fileEntry{}}
	var paths []string
	sizes := make(map[string]int64)

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		sizes[rel] = info.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	for _, p := range paths {
		if len(summary.Files) >= maxSummaryEntries {
			summary.Truncated = true
			break
		}
		summary.Files = append(summary.Files, fileEntry{Path: p, Size: sizes[p]})
	}
	return summary, nil
}

// defaultPlan is the fallback when no LLM is available or planning fails.
func (e *StructuredPlanExecutor) defaultPlan(intent string, summary *repoSummary) *Plan {
	files := make([]string, 0, len(summary.Files))
	for _, entry := range summary.Files {
		files = append(files, entry.Path)
	}
	tests := []string{"Run unit tests"}
	if len(files) > 0 {
		tests = []string{"Run the project's test suite"}
	}
	return &Plan{
		Intent:  intent,
		Files:   files,
		Changes: []Change{},
		Tests:   tests,
	}
}

// buildPlanningPrompt renders the planning request, keeping the repository
// context within the prompt token budget.
func (e *StructuredPlanExecutor) buildPlanningPrompt(intent string, summary *repoSummary) string {
	context, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		context = []byte("{}")
	}
	repoContext := e.tokens.TruncateToTokenLimit(string(context), promptTokenBudget)

	return fmt.Sprintf(
		"You are assisting an autonomous coding agent. Given the repository "+
			"summary and the task intent, produce a JSON plan with the fields "+
			"'files', 'changes', and 'tests'. Keep the output strictly valid JSON.\n"+
			"Intent: %s\nRepository Summary:\n%s\n",
		intent, repoContext)
}
