package gitx

import (
	"context"
	"fmt"
	"strings"

	"aicoder/pkg/logx"
)

// CommitManager encapsulates the staging, commit, and push workflow for a
// cloned repository. The bot identity is fixed per process and used as both
// author and committer.
type CommitManager struct {
	gitRunner GitRunner
	logger    *logx.Logger
	repoPath  string
	botName   string
	botEmail  string
}

// NewCommitManager creates a commit manager with the given bot identity.
func NewCommitManager(gitRunner GitRunner, botName, botEmail string) *CommitManager {
	return &CommitManager{
		gitRunner: gitRunner,
		logger:    logx.NewLogger("commit"),
		botName:   botName,
		botEmail:  botEmail,
	}
}

// AttachRepo points the manager at an already-cloned repository path.
func (c *CommitManager) AttachRepo(repoPath string) {
	c.repoPath = repoPath
}

// Stage stages changes according to the provided pattern. The default
// pattern "." stages all paths including untracked files.
func (c *CommitManager) Stage(ctx context.Context, pattern string) error {
	if c.repoPath == "" {
		return ErrNotInitialised
	}
	var args []string
	if pattern == "." || pattern == "" {
		args = []string{"add", "-A"}
	} else {
		args = []string{"add", pattern}
	}
	if _, err := c.gitRunner.Run(ctx, c.repoPath, args...); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	return nil
}

// Commit creates a commit with the staged changes and returns its hash.
// Fails with ErrInvalidArgument on an empty message and ErrNothingToCommit
// when the working tree has no staged or untracked changes.
func (c *CommitManager) Commit(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("%w: commit message cannot be empty", ErrInvalidArgument)
	}
	if c.repoPath == "" {
		return "", ErrNotInitialised
	}

	status, err := c.gitRunner.Run(ctx, c.repoPath, "status", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("failed to inspect working tree: %w", err)
	}
	if strings.TrimSpace(string(status)) == "" {
		return "", ErrNothingToCommit
	}

	identity := fmt.Sprintf("%s <%s>", c.botName, c.botEmail)
	_, err = c.gitRunner.Run(ctx, c.repoPath,
		"-c", "user.name="+c.botName,
		"-c", "user.email="+c.botEmail,
		"commit", "--author", identity, "-m", message)
	if err != nil {
		return "", fmt.Errorf("failed to create commit: %w", err)
	}

	hash, err := c.gitRunner.Run(ctx, c.repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve commit hash: %w", err)
	}
	return strings.TrimSpace(string(hash)), nil
}

// Push pushes branch to the named remote. branch defaults to the current
// branch. Credentials, when supplied, are written to the remote URL for the
// duration of the push and restored afterwards on every exit path.
//
// Returns true when the push produced per-ref results and none carries an
// error flag, false when there were no results. Hard transport failures are
// reported as ErrPushFailed.
func (c *CommitManager) Push(ctx context.Context, remote, branch string, creds Credentials) (bool, error) {
	if c.repoPath == "" {
		return false, ErrNotInitialised
	}
	if remote == "" {
		remote = "origin"
	}
	if branch == "" {
		current, err := c.gitRunner.Run(ctx, c.repoPath, "rev-parse", "--abbrev-ref", "HEAD")
		if err != nil {
			return false, fmt.Errorf("failed to resolve current branch: %w", err)
		}
		branch = strings.TrimSpace(string(current))
	}

	originalURL, err := c.gitRunner.Run(ctx, c.repoPath, "remote", "get-url", remote)
	if err != nil {
		return false, fmt.Errorf("%w: %q: %w", ErrRemoteNotConfigured, remote, err)
	}
	remoteURL := strings.TrimSpace(string(originalURL))

	if !creds.Empty() {
		authURL := InjectPushCredentials(remoteURL, creds)
		if authURL != remoteURL {
			if _, err := c.gitRunner.Run(ctx, c.repoPath, "remote", "set-url", remote, authURL); err != nil {
				return false, fmt.Errorf("failed to set authenticated remote URL: %w", err)
			}
			// Restore the original URL regardless of push outcome. Failure to
			// restore is logged, not fatal.
			defer func() {
				if _, restoreErr := c.gitRunner.Run(ctx, c.repoPath, "remote", "set-url", remote, remoteURL); restoreErr != nil {
					c.logger.Warn("Failed to restore remote URL after push: %v", restoreErr)
				}
			}()
		}
	}

	output, err := c.gitRunner.Run(ctx, c.repoPath, "push", "--porcelain", remote, branch)
	if err != nil {
		return false, fmt.Errorf("%w: branch %q: %w", ErrPushFailed, branch, err)
	}
	return parsePushResults(string(output)), nil
}

// parsePushResults inspects git push --porcelain output. Each ref result line
// starts with a flag character; '!' marks a rejected ref.
func parsePushResults(output string) bool {
	results := 0
	for _, line := range strings.Split(output, "\n") {
		if line == "" || strings.HasPrefix(line, "To ") || strings.HasPrefix(line, "Done") {
			continue
		}
		if strings.HasPrefix(line, "!") {
			return false
		}
		results++
	}
	return results > 0
}

// CreatePullRequest is intentionally unimplemented. Merge request creation is
// handled by the consuming platform, not this workflow.
func (c *CommitManager) CreatePullRequest(_ context.Context, _, _ string) error {
	return fmt.Errorf("pull request creation is not implemented")
}
