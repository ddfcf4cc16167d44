package mocks

import (
	"context"
	"sync"
)

// GitRunCall records the parameters of a git command call.
type GitRunCall struct {
	Dir  string
	Args []string
}

// MockGitRunner implements gitx.GitRunner for testing.
//
// For integration tests requiring realistic git behaviour, use a real
// GitRunner with a throwaway repository. Mocks are best suited for unit
// tests where speed and determinism are priorities.
type MockGitRunner struct {
	// RunFunc is called when Run is invoked. Override to customize behavior.
	RunFunc func(ctx context.Context, dir string, args ...string) ([]byte, error)

	// RunCalls tracks all calls to Run for verification.
	RunCalls []GitRunCall

	mu sync.Mutex
}

// NewMockGitRunner creates a mock git runner whose commands succeed with
// empty output by default.
func NewMockGitRunner() *MockGitRunner {
	return &MockGitRunner{
		RunFunc: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return []byte{}, nil
		},
	}
}

// Run implements gitx.GitRunner.
func (m *MockGitRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.RunCalls = append(m.RunCalls, GitRunCall{Dir: dir, Args: args})
	m.mu.Unlock()
	return m.RunFunc(ctx, dir, args...)
}

// OnRun sets a custom handler for Run calls.
func (m *MockGitRunner) OnRun(fn func(ctx context.Context, dir string, args ...string) ([]byte, error)) {
	m.RunFunc = fn
}

// FailRunWith configures Run to return the specified error.
func (m *MockGitRunner) FailRunWith(err error) {
	m.RunFunc = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, err
	}
}

// FailCommandWith configures Run to fail for one git subcommand while other
// commands succeed with empty output.
func (m *MockGitRunner) FailCommandWith(command string, err error) {
	m.RunFunc = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if len(args) > 0 && args[0] == command {
			return nil, err
		}
		return []byte{}, nil
	}
}

// RespondWithMap configures Run to return different outputs per subcommand.
// Commands not in the map return empty output.
func (m *MockGitRunner) RespondWithMap(responses map[string]string) {
	m.RunFunc = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if len(args) > 0 {
			if output, ok := responses[args[0]]; ok {
				return []byte(output), nil
			}
		}
		return []byte{}, nil
	}
}

// GetRunCallCount returns the number of times Run was called.
func (m *MockGitRunner) GetRunCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RunCalls)
}

// WasCommandCalled returns true if Run was called with the given subcommand.
func (m *MockGitRunner) WasCommandCalled(command string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.RunCalls {
		if len(call.Args) > 0 && call.Args[0] == command {
			return true
		}
	}
	return false
}

// GetCallsForCommand returns all Run calls for a specific subcommand.
func (m *MockGitRunner) GetCallsForCommand(command string) []GitRunCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []GitRunCall
	for _, call := range m.RunCalls {
		if len(call.Args) > 0 && call.Args[0] == command {
			calls = append(calls, call)
		}
	}
	return calls
}
