package mocks

import (
	"context"
	"strings"
	"sync"

	"aicoder/pkg/exec"
)

// ExecCall records one command handed to the mock executor.
type ExecCall struct {
	Cmd  []string
	Opts exec.Opts
}

// MockExecutor is a test double for exec.Executor.
type MockExecutor struct {
	mu       sync.Mutex
	RunFunc  func(ctx context.Context, cmd []string, opts exec.Opts) (exec.Result, error)
	RunCalls []ExecCall
}

// NewMockExecutor returns a mock whose default behaviour is a clean exit.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

func (m *MockExecutor) Run(ctx context.Context, cmd []string, opts exec.Opts) (exec.Result, error) {
	m.mu.Lock()
	m.RunCalls = append(m.RunCalls, ExecCall{Cmd: append([]string(nil), cmd...), Opts: opts})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, cmd, opts)
	}
	return exec.Result{ExitCode: 0}, nil
}

// CallCount returns the number of recorded Run invocations.
func (m *MockExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RunCalls)
}

// CommandLines renders each recorded command as a single string.
func (m *MockExecutor) CommandLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, 0, len(m.RunCalls))
	for _, c := range m.RunCalls {
		lines = append(lines, strings.Join(c.Cmd, " "))
	}
	return lines
}
