// Package executor defines the code-change executor capability: deriving a
// plan from a task intent, applying the planned edits, and validating the
// result. Two variants exist — LLM-backed structured planning and delegation
// to an external coding CLI — behind one interface.
package executor

import "context"

// Change describes one file edit in a plan.
type Change struct {
	File      string `json:"file"`
	Operation string `json:"operation"`
	Content   string `json:"content,omitempty"`
	Search    string `json:"search,omitempty"`
	Replace   string `json:"replace,omitempty"`
}

// Supported change operations.
const (
	OpWrite   = "write"
	OpAppend  = "append"
	OpReplace = "replace"
)

// Plan is the structured description of intended edits for one task.
type Plan struct {
	Intent  string   `json:"intent"`
	Files   []string `json:"files"`
	Changes []Change `json:"changes"`
	Tests   []string `json:"tests"`
}

// SkippedChange records a change that could not be applied and why.
type SkippedChange struct {
	Change Change `json:"change"`
	Reason string `json:"reason"`
}

// ExecutionResult summarises the outcome of applying a plan.
type ExecutionResult struct {
	Applied []string        `json:"applied"`
	Skipped []SkippedChange `json:"skipped"`
	// Output carries raw tool output for the delegated CLI variant.
	Output string `json:"output,omitempty"`
}

// TestRun captures one validation command execution.
type TestRun struct {
	Command    string `json:"command"`
	ReturnCode int    `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// ValidationResult reports syntax and test outcomes for the modified tree.
type ValidationResult struct {
	SyntaxOK         bool      `json:"syntax_ok"`
	CompilationError string    `json:"compilation_error,omitempty"`
	TestRuns         []TestRun `json:"test_runs"`
}

// CodeChangeExecutor is the capability the orchestrator depends on. It is
// agnostic to whether edits come from LLM planning or an external CLI.
type CodeChangeExecutor interface {
	Analyze(ctx context.Context, intent, repoPath string) (*Plan, error)
	Apply(ctx context.Context, plan *Plan, repoPath string) (*ExecutionResult, error)
	Validate(ctx context.Context, repoPath string) (*ValidationResult, error)
}
