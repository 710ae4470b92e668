package storage

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/moby/sys/mountinfo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultFstabPath is the persistent mount table edited by persistent unmounts.
const DefaultFstabPath = "/etc/fstab"

// Runner executes external commands.
// This allows for dependency injection and testing.
type Runner interface {
	// Run executes the command and returns its standard output.
	// Standard error is folded into the returned error on failure.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// CombinedOutput executes the command and returns standard output and
	// standard error interleaved.
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as local processes.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, errors.Wrap(err, msg)
		}
		return out, err
	}
	return out, nil
}

// CombinedOutput implements Runner.
func (ExecRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Manager performs storage operations against the local host.
type Manager struct {
	runner     Runner
	log        logrus.FieldLogger
	fstabPath  string
	mountTable func() ([]*mountinfo.Info, error)
}

// NewManager creates a new storage manager.
func NewManager(runner Runner, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		runner:    runner,
		log:       log,
		fstabPath: DefaultFstabPath,
		mountTable: func() ([]*mountinfo.Info, error) {
			return mountinfo.GetMounts(nil)
		},
	}
}

// run executes a command and wraps any failure as an OperationError.
func (m *Manager) run(ctx context.Context, op, name string, args ...string) ([]byte, error) {
	out, err := m.runner.Run(ctx, name, args...)
	if err != nil {
		return out, &OperationError{Op: op, Command: commandLine(name, args), Err: err}
	}
	return out, nil
}

// runTolerated executes a command whose failure is logged and ignored.
func (m *Manager) runTolerated(ctx context.Context, name string, args ...string) {
	if _, err := m.runner.Run(ctx, name, args...); err != nil {
		m.log.WithError(err).WithField("command", commandLine(name, args)).Debug("Ignoring command failure")
	}
}

func commandLine(name string, args []string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", name, strings.Join(args, " ")))
}
