package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/moby/sys/mountinfo"
	"github.com/sirupsen/logrus"
)

var errFake = errors.New("fake failure")

// mockResponse is a canned command result.
type mockResponse struct {
	out string
	err error
}

// mockRunner is a mock implementation of Runner for testing.
// Responses are keyed by the full command line.
type mockRunner struct {
	mu sync.Mutex

	responses map[string]mockResponse

	// runFunc overrides responses when set.
	runFunc func(cmdline string) ([]byte, error)

	// Call tracking
	calls []string
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		responses: make(map[string]mockResponse),
	}
}

// on registers the output for a command line.
func (m *mockRunner) on(cmdline, out string) {
	m.responses[cmdline] = mockResponse{out: out}
}

// fail registers a failure for a command line.
func (m *mockRunner) fail(cmdline, msg string) {
	m.responses[cmdline] = mockResponse{out: msg, err: errors.New(msg)}
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.exec(name, args)
}

func (m *mockRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.exec(name, args)
}

func (m *mockRunner) exec(name string, args []string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmdline := commandLine(name, args)
	m.calls = append(m.calls, cmdline)

	if m.runFunc != nil {
		return m.runFunc(cmdline)
	}
	if resp, ok := m.responses[cmdline]; ok {
		return []byte(resp.out), resp.err
	}
	return nil, nil
}

// called reports whether cmdline was executed.
func (m *mockRunner) called(cmdline string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.calls {
		if c == cmdline {
			return true
		}
	}
	return false
}

// calledWithPrefix returns the executed command lines starting with prefix.
func (m *mockRunner) calledWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []string
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			matched = append(matched, c)
		}
	}
	return matched
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestManager returns a Manager wired to runner with a fixed mount table.
func newTestManager(runner *mockRunner, mounts ...*mountinfo.Info) *Manager {
	mgr := NewManager(runner, quietLogger())
	mgr.mountTable = func() ([]*mountinfo.Info, error) {
		return mounts, nil
	}
	return mgr
}
