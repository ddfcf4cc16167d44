package executor

import (
	"context"
	"fmt"
	"strings"

	"aicoder/pkg/exec"
	"aicoder/pkg/logx"
)

// DelegatedCLIExecutor hands the whole coding step to an external tool such
// as a headless coding agent. The tool receives the task intent as its final
// argument and is expected to edit the repository in place.
type DelegatedCLIExecutor struct {
	command []string
	runner  exec.Executor
	logger  *logx.Logger

	// Validation reuses the structured executor's command logic.
	validator *StructuredPlanExecutor
}

// NewDelegatedCLIExecutor builds an executor around the given command line.
func NewDelegatedCLIExecutor(command []string, runner exec.Executor) (*DelegatedCLIExecutor, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("delegated coder command cannot be empty")
	}
	return &DelegatedCLIExecutor{
		command: command,
		runner:  runner,
		logger:  logx.NewLogger("delegated-coder"),
		validator: &StructuredPlanExecutor{
			runner:   runner,
			logger:   logx.NewLogger("delegated-coder"),
			lookPath: defaultLookPath(),
		},
	}, nil
}

// Analyze returns a stub plan. The external tool does its own analysis, so
// the plan only records the intent for reporting purposes.
func (e *DelegatedCLIExecutor) Analyze(_ context.Context, intent, _ string) (*Plan, error) {
	return &Plan{
		Intent:  intent,
		Files:   []string{},
		Changes: []Change{},
		Tests:   []string{},
	}, nil
}

// Apply invokes the external tool in the repository and captures its output.
// A non-zero exit from the tool is an error; nothing was reliably applied.
func (e *DelegatedCLIExecutor) Apply(ctx context.Context, plan *Plan, repoPath string) (*ExecutionResult, error) {
	cmd := make([]string, 0, len(e.command)+1)
	cmd = append(cmd, e.command...)
	cmd = append(cmd, plan.Intent)

	e.logger.Info("Delegating code changes to %q", strings.Join(e.command, " "))
	run, err := e.runner.Run(ctx, cmd, exec.Opts{WorkDir: repoPath})
	if err != nil {
		return nil, fmt.Errorf("failed to run coder command: %w", err)
	}
	output := run.Stdout
	if run.Stderr != "" {
		output += run.Stderr
	}
	if run.ExitCode != 0 {
		return nil, fmt.Errorf("coder command exited with code %d: %s", run.ExitCode, strings.TrimSpace(output))
	}

	return &ExecutionResult{
		Applied: []string{"delegated:" + strings.Join(e.command, " ")},
		Skipped: []SkippedChange{},
		Output:  output,
	}, nil
}

// Validate runs the same syntax and test commands as the structured executor.
func (e *DelegatedCLIExecutor) Validate(ctx context.Context, repoPath string) (*ValidationResult, error) {
	return e.validator.Validate(ctx, repoPath)
}
