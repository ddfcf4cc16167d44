// Package gitx wraps the git command line for the clone, branch, and commit
// operations used by the task workflow.
package gitx

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"aicoder/pkg/logx"
)

// GitRunner provides an interface for running git commands with dependency
// injection support.
type GitRunner interface {
	// Run executes a git command in the specified directory.
	// Returns stdout+stderr combined output and any error.
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// DefaultGitRunner implements GitRunner using the system git command.
type DefaultGitRunner struct {
	logger *logx.Logger
}

// NewDefaultGitRunner creates a new DefaultGitRunner.
func NewDefaultGitRunner() *DefaultGitRunner {
	return &DefaultGitRunner{
		logger: logx.NewLogger("git"),
	}
}

// Run executes a git command using exec.CommandContext.
func (g *DefaultGitRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	logDir := dir
	if logDir == "" {
		logDir = "."
	}
	g.logger.Debug("Executing git command: cd %s && git %s", logDir, strings.Join(args, " "))

	// Combine stdout and stderr to capture all git output.
	output, err := cmd.CombinedOutput()
	if err != nil {
		g.logger.Error("Git command failed: %v", err)
		g.logger.Debug("Git command output: %s", string(output))
		return output, fmt.Errorf("git %s failed in %s: %w\nOutput: %s",
			strings.Join(args, " "), dir, err, string(output))
	}

	g.logger.Debug("Git command succeeded: %s", string(output))
	return output, nil
}
