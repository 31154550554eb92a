package toolchain

import (
	"context"
	"os/exec"
	"sync"
)

// MockRunner implements ExecRunner for testing.
type MockRunner struct {
	mu       sync.Mutex
	lookPath map[string]string
	commands map[string]mockResult
	calls    []Command
	lookups  []string
}

type mockResult struct {
	out Output
	err error
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		lookPath: make(map[string]string),
		commands: make(map[string]mockResult),
	}
}

// SetLookPath configures the mock to resolve name to path.
func (m *MockRunner) SetLookPath(name, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookPath[name] = path
}

// SetCommand configures the result for a binary name or a full command line.
func (m *MockRunner) SetCommand(key string, out Output, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[key] = mockResult{out: out, err: err}
}

// LookPath implements ExecRunner.
func (m *MockRunner) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, name)
	if path, ok := m.lookPath[name]; ok {
		return path, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Run implements ExecRunner. The full command line is matched before the bare name.
func (m *MockRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, cmd)

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if r, ok := m.commands[cmd.String()]; ok {
		return r.out, r.err
	}
	if r, ok := m.commands[cmd.Name]; ok {
		return r.out, r.err
	}
	return Output{}, &exec.Error{Name: cmd.Name, Err: exec.ErrNotFound}
}

// Calls returns the commands run so far.
func (m *MockRunner) Calls() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.calls...)
}

// Lookups returns the names passed to LookPath so far.
func (m *MockRunner) Lookups() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lookups...)
}
