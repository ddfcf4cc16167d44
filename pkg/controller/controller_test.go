package controller

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aicoder/pkg/config"
	"aicoder/pkg/executor"
	"aicoder/pkg/gitx"
	"aicoder/pkg/logx"
	"aicoder/pkg/status"
)

type fakeRepoGateway struct {
	cloneErr   error
	clonePath  string
	cloneCalls int
	branches   map[string]bool
	created    []string
}

func (f *fakeRepoGateway) Clone(_ context.Context, _, _, _ string, _ gitx.Credentials, _ int) (string, error) {
	f.cloneCalls++
	if f.cloneErr != nil {
		return "", f.cloneErr
	}
	if f.clonePath == "" {
		f.clonePath = "/tmp/workspace/repo"
	}
	return f.clonePath, nil
}

func (f *fakeRepoGateway) Branches(_ context.Context) (map[string]bool, error) {
	if f.branches == nil {
		return map[string]bool{"main": true}, nil
	}
	return f.branches, nil
}

func (f *fakeRepoGateway) CreateFeatureBranch(_ context.Context, name string, _ bool) (bool, error) {
	f.created = append(f.created, name)
	return true, nil
}

type fakeCommitGateway struct {
	attached   string
	staged     []string
	commitHash string
	commitErr  error
	pushOK     bool
	pushErr    error
	pushBranch string
	pushCalls  int
}

func (f *fakeCommitGateway) AttachRepo(path string) { f.attached = path }

func (f *fakeCommitGateway) Stage(_ context.Context, pattern string) error {
	f.staged = append(f.staged, pattern)
	return nil
}

func (f *fakeCommitGateway) Commit(_ context.Context, _ string) (string, error) {
	if f.commitErr != nil {
		return "", f.commitErr
	}
	return f.commitHash, nil
}

func (f *fakeCommitGateway) Push(_ context.Context, _, branch string, _ gitx.Credentials) (bool, error) {
	f.pushCalls++
	f.pushBranch = branch
	return f.pushOK, f.pushErr
}

type fakeExecutor struct {
	analyzeErr error
}

func (f *fakeExecutor) Analyze(_ context.Context, intent, _ string) (*executor.Plan, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &executor.Plan{Intent: intent}, nil
}

func (f *fakeExecutor) Apply(_ context.Context, _ *executor.Plan, _ string) (*executor.ExecutionResult, error) {
	return &executor.ExecutionResult{Applied: []string{}, Skipped: []executor.SkippedChange{}}, nil
}

func (f *fakeExecutor) Validate(_ context.Context, _ string) (*executor.ValidationResult, error) {
	return &executor.ValidationResult{SyntaxOK: true, TestRuns: []executor.TestRun{}}, nil
}

type notification struct {
	status string
	data   map[string]any
}

type fakeNotifier struct {
	err  error
	sent []notification
}

func (f *fakeNotifier) SendStatusUpdate(_ context.Context, _, phase string, data map[string]any) error {
	f.sent = append(f.sent, notification{status: phase, data: data})
	return f.err
}

func (f *fakeNotifier) phases() []string {
	out := make([]string, 0, len(f.sent))
	for _, n := range f.sent {
		out = append(out, n.status)
	}
	return out
}

func newTestOrchestrator(repos *fakeRepoGateway, commits *fakeCommitGateway, notifier *fakeNotifier) *Orchestrator {
	return &Orchestrator{
		cfg:          &config.Config{},
		repos:        repos,
		commits:      commits,
		coder:        &fakeExecutor{},
		notifier:     notifier,
		store:        status.NewStore(),
		logger:       logx.NewLogger("controller"),
		cloneRetries: 3,
	}
}

func TestExecuteRequiresRepoURL(t *testing.T) {
	notifier := &fakeNotifier{}
	repos := &fakeRepoGateway{}
	o := newTestOrchestrator(repos, &fakeCommitGateway{}, notifier)

	result := o.Execute(context.Background(), Task{TaskID: "task_1"})

	assert.Equal(t, "failed", result["status"])
	assert.Contains(t, result["error"], "repository URL is required")
	assert.Equal(t, []string{"started", "failed"}, notifier.phases(),
		"the started notification precedes the validation failure")
	assert.Zero(t, repos.cloneCalls)
}

func TestExecuteFullSuccess(t *testing.T) {
	notifier := &fakeNotifier{}
	repos := &fakeRepoGateway{}
	commits := &fakeCommitGateway{commitHash: "abc123", pushOK: true}
	o := newTestOrchestrator(repos, commits, notifier)

	result := o.Execute(context.Background(), Task{
		TaskID:  "task_1",
		RepoURL: "https://gitlab.example.com/team/app.git",
		Intent:  "Add login page",
	})

	assert.Equal(t, "completed", result["status"])
	assert.Equal(t, "abc123", result["commit_hash"])
	assert.Equal(t, true, result["push_result"])
	assert.Equal(t, "add-login-page", result["feature_branch"])

	assert.Equal(t, []string{"add-login-page"}, repos.created)
	assert.Equal(t, "/tmp/workspace/repo", commits.attached)
	assert.Equal(t, []string{"."}, commits.staged)
	assert.Equal(t, "add-login-page", commits.pushBranch, "pushes the feature branch")
	assert.Equal(t,
		[]string{"started", "cloning", "analyzing", "coding", "testing", "committing", "completed"},
		notifier.phases())
}

func TestExecuteNothingToCommitCompletes(t *testing.T) {
	notifier := &fakeNotifier{}
	commits := &fakeCommitGateway{commitErr: gitx.ErrNothingToCommit}
	o := newTestOrchestrator(&fakeRepoGateway{}, commits, notifier)

	result := o.Execute(context.Background(), Task{
		TaskID:  "task_1",
		RepoURL: "https://example.com/repo.git",
		Intent:  "no-op change",
	})

	assert.Equal(t, "completed", result["status"])
	assert.Nil(t, result["commit_hash"])
	assert.Equal(t, false, result["push_result"])
	assert.Zero(t, commits.pushCalls, "push is skipped when there is nothing to commit")
}

func TestExecuteCloneFailureProducesFailedResult(t *testing.T) {
	notifier := &fakeNotifier{}
	repos := &fakeRepoGateway{cloneErr: fmt.Errorf("%w after 3 attempts: auth rejected", gitx.ErrCloneFailed)}
	o := newTestOrchestrator(repos, &fakeCommitGateway{}, notifier)

	result := o.Execute(context.Background(), Task{
		TaskID:  "task_1",
		RepoURL: "https://example.com/repo.git",
	})

	assert.Equal(t, "failed", result["status"])
	assert.Contains(t, result["error"], "auth rejected")
	assert.Equal(t, []string{"started", "cloning", "failed"}, notifier.phases())
}

func TestExecuteNotifierFailureDoesNotAffectResult(t *testing.T) {
	notifier := &fakeNotifier{err: fmt.Errorf("webhook delivery failed after 5 attempts: status 500")}
	commits := &fakeCommitGateway{commitHash: "abc123", pushOK: true}
	o := newTestOrchestrator(&fakeRepoGateway{}, commits, notifier)

	result := o.Execute(context.Background(), Task{
		TaskID:  "task_1",
		RepoURL: "https://example.com/repo.git",
		Intent:  "tidy docs",
	})

	assert.Equal(t, "completed", result["status"])
	assert.Equal(t, "abc123", result["commit_hash"])
	assert.Len(t, notifier.sent, 7, "every phase is still attempted")
}

func TestExecuteUpdatesStatusStore(t *testing.T) {
	o := newTestOrchestrator(&fakeRepoGateway{}, &fakeCommitGateway{commitHash: "abc123", pushOK: true}, &fakeNotifier{})

	o.Execute(context.Background(), Task{
		TaskID:  "task_1",
		RepoURL: "https://example.com/repo.git",
		Intent:  "tidy docs",
	})

	snap := o.store.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "task_1", snap.TaskID)
	assert.Equal(t, "completed", snap.Status)
	assert.False(t, snap.IsRunning)
}

func TestExecuteUsesFeatureBranchPreference(t *testing.T) {
	repos := &fakeRepoGateway{}
	o := newTestOrchestrator(repos, &fakeCommitGateway{commitHash: "abc123", pushOK: true}, &fakeNotifier{})

	result := o.Execute(context.Background(), Task{
		TaskID:        "task_1",
		RepoURL:       "https://example.com/repo.git",
		Intent:        "Add login page",
		FeatureBranch: "My Custom Branch!",
	})

	assert.Equal(t, "my-custom-branch", result["feature_branch"])
	assert.Equal(t, []string{"my-custom-branch"}, repos.created)
}

func TestExecuteAvoidsExistingBranchNames(t *testing.T) {
	repos := &fakeRepoGateway{branches: map[string]bool{"main": true, "tidy-docs": true}}
	o := newTestOrchestrator(repos, &fakeCommitGateway{commitHash: "abc123", pushOK: true}, &fakeNotifier{})

	result := o.Execute(context.Background(), Task{
		TaskID:  "task_1",
		RepoURL: "https://example.com/repo.git",
		Intent:  "tidy docs",
	})

	assert.Equal(t, "tidy-docs-1", result["feature_branch"])
}
