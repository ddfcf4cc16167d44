// Package controller implements the task orchestration state machine: clone,
// branch, plan, apply, validate, commit, push, with a status notification at
// every phase transition.
package controller

import (
	"context"
	"errors"
	"fmt"

	"aicoder/pkg/config"
	"aicoder/pkg/exec"
	"aicoder/pkg/executor"
	"aicoder/pkg/gitx"
	"aicoder/pkg/logx"
	"aicoder/pkg/metrics"
	"aicoder/pkg/status"
	"aicoder/pkg/webhook"
)

// Task is the immutable input for one orchestration run.
type Task struct {
	TaskID         string `json:"task_id"`
	RepoURL        string `json:"repo_url"`
	Intent         string `json:"intent"`
	Branch         string `json:"branch"`
	FeatureBranch  string `json:"feature_branch"`
	GitlabAPIToken string `json:"gitlab_api_token"`
	GitUsername    string `json:"git_username"`
	GitPassword    string `json:"git_password"`
}

// Result is the final payload reported to the webhook and printed to stdout.
// It is a free-form JSON object because the success and failure shapes
// differ: success carries commit/test details, failure carries the error.
type Result map[string]any

// Task phase names, in state machine order.
const (
	PhaseStarted    = "started"
	PhaseCloning    = "cloning"
	PhaseAnalyzing  = "analyzing"
	PhaseCoding     = "coding"
	PhaseTesting    = "testing"
	PhaseCommitting = "committing"
	PhaseCompleted  = "completed"
	PhaseFailed     = "failed"
)

// repoGateway is the clone/branch surface the orchestrator needs.
type repoGateway interface {
	Clone(ctx context.Context, repoURL, dest, branch string, creds gitx.Credentials, retries int) (string, error)
	Branches(ctx context.Context) (map[string]bool, error)
	CreateFeatureBranch(ctx context.Context, branchName string, checkout bool) (bool, error)
}

// commitGateway is the stage/commit/push surface the orchestrator needs.
type commitGateway interface {
	AttachRepo(repoPath string)
	Stage(ctx context.Context, pattern string) error
	Commit(ctx context.Context, message string) (string, error)
	Push(ctx context.Context, remote, branch string, creds gitx.Credentials) (bool, error)
}

// statusNotifier is the webhook delivery surface. Failures are logged and
// never abort the workflow.
type statusNotifier interface {
	SendStatusUpdate(ctx context.Context, taskID, status string, data map[string]any) error
}

// Orchestrator drives one task through the workflow phases.
type Orchestrator struct {
	cfg          *config.Config
	repos        repoGateway
	commits      commitGateway
	coder        executor.CodeChangeExecutor
	notifier     statusNotifier
	store        *status.Store
	logger       *logx.Logger
	cloneRetries int
}

// New wires an orchestrator from the configuration. store may be nil when no
// status endpoint is embedded.
func New(cfg *config.Config, store *status.Store) (*Orchestrator, error) {
	gitRunner := gitx.NewDefaultGitRunner()
	coder, err := executor.New(cfg, exec.NewLocalExec())
	if err != nil {
		return nil, fmt.Errorf("failed to build code-change executor: %w", err)
	}
	notifier, err := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	if err != nil {
		return nil, err
	}
	name, email := cfg.GitIdentity()
	return &Orchestrator{
		cfg:          cfg,
		repos:        gitx.NewRepoManager(gitRunner),
		commits:      gitx.NewCommitManager(gitRunner, name, email),
		coder:        coder,
		notifier:     notifier,
		store:        store,
		logger:       logx.NewLogger("controller"),
		cloneRetries: 3,
	}, nil
}

// Execute runs the full workflow for one task. Errors never propagate to the
// caller: every failure is converted into a {task_id, status, error} result
// after a "failed" notification.
func (o *Orchestrator) Execute(ctx context.Context, task Task) Result {
	branch := task.Branch
	if branch == "" {
		branch = "main"
	}
	creds := gitx.Credentials{
		APIToken: task.GitlabAPIToken,
		Username: task.GitUsername,
		Password: task.GitPassword,
	}
	if creds.APIToken == "" {
		creds.APIToken = o.cfg.Git.APIToken
	}

	o.notify(ctx, task.TaskID, PhaseStarted, map[string]any{})

	if task.RepoURL == "" {
		return o.fail(ctx, task.TaskID, fmt.Errorf("%w: a repository URL is required", gitx.ErrInvalidArgument))
	}

	o.notify(ctx, task.TaskID, PhaseCloning, map[string]any{"repo": task.RepoURL, "branch": branch})
	repoPath, err := o.repos.Clone(ctx, task.RepoURL, "", branch, creds, o.cloneRetries)
	if err != nil {
		return o.fail(ctx, task.TaskID, err)
	}

	existing, err := o.repos.Branches(ctx)
	if err != nil {
		return o.fail(ctx, task.TaskID, err)
	}
	preference := task.FeatureBranch
	if preference == "" {
		preference = task.Intent
	}
	featureBranch := deriveFeatureBranchName(preference, task.TaskID, existing)
	if _, err := o.repos.CreateFeatureBranch(ctx, featureBranch, true); err != nil {
		return o.fail(ctx, task.TaskID, err)
	}
	o.logger.Info("Working on feature branch %q", featureBranch)

	o.commits.AttachRepo(repoPath)

	o.notify(ctx, task.TaskID, PhaseAnalyzing, map[string]any{})
	plan, err := o.coder.Analyze(ctx, task.Intent, repoPath)
	if err != nil {
		return o.fail(ctx, task.TaskID, err)
	}

	o.notify(ctx, task.TaskID, PhaseCoding, map[string]any{"plan": plan})
	changes, err := o.coder.Apply(ctx, plan, repoPath)
	if err != nil {
		return o.fail(ctx, task.TaskID, err)
	}

	o.notify(ctx, task.TaskID, PhaseTesting, map[string]any{"changes": changes})
	testResults, err := o.coder.Validate(ctx, repoPath)
	if err != nil {
		return o.fail(ctx, task.TaskID, err)
	}

	o.notify(ctx, task.TaskID, PhaseCommitting, map[string]any{"test_results": testResults})
	if err := o.commits.Stage(ctx, "."); err != nil {
		return o.fail(ctx, task.TaskID, err)
	}

	var commitHash any
	pushResult := false
	hash, err := o.commits.Commit(ctx, "AI: "+task.Intent)
	switch {
	case errors.Is(err, gitx.ErrNothingToCommit):
		// A no-op coding attempt is not a task failure.
		o.logger.Info("No staged changes, skipping commit and push")
	case err != nil:
		return o.fail(ctx, task.TaskID, err)
	default:
		commitHash = hash
		pushed, err := o.commits.Push(ctx, "origin", featureBranch, creds)
		if err != nil {
			return o.fail(ctx, task.TaskID, err)
		}
		pushResult = pushed
	}

	result := Result{
		"task_id":        task.TaskID,
		"status":         PhaseCompleted,
		"commit_hash":    commitHash,
		"changes":        changes,
		"test_results":   testResults,
		"feature_branch": featureBranch,
		"push_result":    pushResult,
	}
	o.notify(ctx, task.TaskID, PhaseCompleted, result)
	return result
}

// fail builds the terminal failure result and notifies it.
func (o *Orchestrator) fail(ctx context.Context, taskID string, err error) Result {
	o.logger.Error("Task %s failed: %v", taskID, err)
	result := Result{
		"task_id": taskID,
		"status":  PhaseFailed,
		"error":   err.Error(),
	}
	o.notify(ctx, taskID, PhaseFailed, result)
	return result
}

// notify records the phase in the status store and delivers the webhook.
// Both are best-effort side channels; neither can abort the workflow.
func (o *Orchestrator) notify(ctx context.Context, taskID, phase string, data map[string]any) {
	metrics.PhaseTransitions.WithLabelValues(phase).Inc()
	if o.store != nil {
		o.store.Update(taskID, phase, data)
	}
	if o.notifier != nil {
		if err := o.notifier.SendStatusUpdate(ctx, taskID, phase, data); err != nil {
			o.logger.Warn("Status webhook delivery failed: %v", err)
		}
	}
}
