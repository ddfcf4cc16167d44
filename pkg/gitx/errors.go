package gitx

import "errors"

// Sentinel errors for the repository and commit workflow. Callers classify
// failures with errors.Is; the underlying git output stays attached via %w.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrCloneFailed         = errors.New("clone failed")
	ErrPushFailed          = errors.New("push failed")
	ErrNothingToCommit     = errors.New("there are no staged changes to commit")
	ErrRemoteNotConfigured = errors.New("remote is not configured")
	ErrNotInitialised      = errors.New("repository is not initialised")
)
