package gitx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"aicoder/pkg/logx"
	"aicoder/pkg/metrics"
)

// DirListing describes one directory level of the repository structure.
type DirListing struct {
	Directories []string `json:"directories"`
	Files       []string `json:"files"`
}

// RepoManager handles cloning and branch management for one task workspace.
type RepoManager struct {
	gitRunner GitRunner
	logger    *logx.Logger
	repoPath  string
	sleep     func(time.Duration)
}

// NewRepoManager creates a repository manager backed by the given runner.
func NewRepoManager(gitRunner GitRunner) *RepoManager {
	return &RepoManager{
		gitRunner: gitRunner,
		logger:    logx.NewLogger("repo"),
		sleep:     time.Sleep,
	}
}

// Path returns the local path of the cloned repository.
func (r *RepoManager) Path() string {
	return r.repoPath
}

// Clone clones repoURL into dest, retrying with exponential backoff.
//
// dest may be empty, in which case a temporary directory is created per
// attempt and removed again on failure. branch selects the branch to check
// out after cloning. Credentials, when present, are injected into the clone
// URL and the remote URL is restored to the original afterwards (best
// effort). Fails with ErrCloneFailed wrapping the last git error once
// retries are exhausted.
func (r *RepoManager) Clone(ctx context.Context, repoURL, dest, branch string, creds Credentials, retries int) (string, error) {
	if retries < 1 {
		return "", fmt.Errorf("%w: retries must be a positive integer", ErrInvalidArgument)
	}

	preparedURL := InjectCredentials(repoURL, creds)
	var lastErr error

	for attempt := 1; attempt <= retries; attempt++ {
		targetDir, generated, err := r.prepareTarget(dest)
		if err != nil {
			return "", err
		}

		args := []string{"clone"}
		if branch != "" {
			args = append(args, "--branch", branch)
		}
		args = append(args, preparedURL, targetDir)

		_, err = r.gitRunner.Run(ctx, "", args...)
		if err == nil {
			metrics.CloneAttempts.WithLabelValues("success").Inc()
			r.repoPath = targetDir
			if preparedURL != repoURL {
				// Best effort: never leave credentials in the remote config.
				if _, restoreErr := r.gitRunner.Run(ctx, targetDir, "remote", "set-url", "origin", repoURL); restoreErr != nil {
					r.logger.Warn("Failed to restore remote URL after clone: %v", restoreErr)
				}
			}
			return targetDir, nil
		}

		metrics.CloneAttempts.WithLabelValues("failure").Inc()
		lastErr = err
		r.logger.Warn("Clone attempt %d/%d failed: %v", attempt, retries, err)
		if generated {
			os.RemoveAll(targetDir)
		}
		if attempt < retries {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			r.logger.Debug("Retrying clone in %s", backoff)
			r.sleep(backoff)
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrCloneFailed, retries, lastErr)
}

// prepareTarget makes sure the destination directory exists and is empty.
// An existing non-empty directory is removed and recreated.
func (r *RepoManager) prepareTarget(dest string) (path string, generated bool, err error) {
	if dest == "" {
		tmp, err := os.MkdirTemp("", "ai-coder-")
		if err != nil {
			return "", false, fmt.Errorf("failed to create temporary clone directory: %w", err)
		}
		return tmp, true, nil
	}

	entries, err := os.ReadDir(dest)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", false, fmt.Errorf("failed to create clone directory %s: %w", dest, err)
		}
	case err != nil:
		return "", false, fmt.Errorf("failed to inspect clone directory %s: %w", dest, err)
	case len(entries) > 0:
		if err := os.RemoveAll(dest); err != nil {
			return "", false, fmt.Errorf("failed to clear clone directory %s: %w", dest, err)
		}
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", false, fmt.Errorf("failed to recreate clone directory %s: %w", dest, err)
		}
	}
	return dest, false, nil
}

// Branches returns the set of local branch heads.
func (r *RepoManager) Branches(ctx context.Context) (map[string]bool, error) {
	if r.repoPath == "" {
		return nil, ErrNotInitialised
	}
	output, err := r.gitRunner.Run(ctx, r.repoPath, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	branches := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			branches[name] = true
		}
	}
	return branches, nil
}

// CreateFeatureBranch creates branchName and optionally checks it out.
// If the branch already exists it is checked out (when requested) and
// created=false is returned without error.
func (r *RepoManager) CreateFeatureBranch(ctx context.Context, branchName string, checkout bool) (bool, error) {
	if r.repoPath == "" {
		return false, ErrNotInitialised
	}

	existing, err := r.Branches(ctx)
	if err != nil {
		return false, err
	}
	if existing[branchName] {
		if checkout {
			if _, err := r.gitRunner.Run(ctx, r.repoPath, "checkout", branchName); err != nil {
				return false, fmt.Errorf("failed to checkout existing branch %s: %w", branchName, err)
			}
		}
		return false, nil
	}

	if _, err := r.gitRunner.Run(ctx, r.repoPath, "checkout", "-b", branchName); err != nil {
		return false, fmt.Errorf("failed to create branch %s: %w", branchName, err)
	}
	if !checkout {
		// Return to the previous HEAD if checkout was not requested.
		if _, err := r.gitRunner.Run(ctx, r.repoPath, "checkout", "-"); err != nil {
			return true, fmt.Errorf("failed to return to previous branch: %w", err)
		}
	}
	return true, nil
}

// Structure returns a simplified view of the working tree. Directories
// deeper than maxDepth are pruned from traversal entirely.
func (r *RepoManager) Structure(maxDepth int) (map[string]DirListing, error) {
	if r.repoPath == "" {
		return nil, ErrNotInitialised
	}

	base, err := filepath.Abs(r.repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}

	structure := make(map[string]DirListing)
	err = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		depth := 0
		if rel != "." {
			depth = len(strings.Split(rel, string(filepath.Separator)))
		}
		if depth > maxDepth {
			return filepath.SkipDir
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		listing := DirListing{Directories: []string{}, Files: []string{}}
		for _, entry := range entries {
			if entry.IsDir() {
				listing.Directories = append(listing.Directories, entry.Name())
			} else {
				listing.Files = append(listing.Files, entry.Name())
			}
		}
		sort.Strings(listing.Directories)
		sort.Strings(listing.Files)
		structure[filepath.ToSlash(rel)] = listing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk repository structure: %w", err)
	}
	return structure, nil
}
