// Package exec provides command execution abstractions for production use.
package exec

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts command execution for dependency injection.
type CommandRunner interface {
	// Run executes a command and returns its stdout.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// RunCombined executes a command and returns stdout and stderr
	// interleaved. Install and deploy step commands report diagnostics
	// on stderr, so their callers want both streams.
	RunCombined(ctx context.Context, name string, args ...string) ([]byte, error)
	// LookPath reports whether a binary is available on PATH.
	LookPath(name string) (string, error)
}

// ExecRunner executes real commands using os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner for production use.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns its stdout.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := execCommand(ctx, name, args...)
	return cmd.Output()
}

// RunCombined executes a command and returns combined stdout and stderr.
func (r *ExecRunner) RunCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := execCommand(ctx, name, args...)
	return cmd.CombinedOutput()
}

// LookPath reports whether a binary is available on PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return lookPath(name)
}

// execCommand and lookPath are variables to allow testing.
var (
	execCommand = execCommandImpl
	lookPath    = exec.LookPath
)

func execCommandImpl(ctx context.Context, name string, args ...string) execCmd {
	return realExecCmd{cmd: exec.CommandContext(ctx, name, args...)}
}

// execCmd abstracts exec.Cmd for testing.
type execCmd interface {
	Output() ([]byte, error)
	CombinedOutput() ([]byte, error)
}

type realExecCmd struct {
	cmd *exec.Cmd
}

func (c realExecCmd) Output() ([]byte, error) {
	return c.cmd.Output()
}

func (c realExecCmd) CombinedOutput() ([]byte, error) {
	return c.cmd.CombinedOutput()
}
