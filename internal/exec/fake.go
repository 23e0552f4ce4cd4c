package exec

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRunner is a scripted CommandRunner for tests. Outputs and errors are
// keyed by the full command line ("name arg1 arg2 ...").
type FakeRunner struct {
	mu sync.Mutex

	// Outputs maps command lines to their stdout.
	Outputs map[string][]byte
	// Errs maps command lines to a failure.
	Errs map[string]error
	// Missing lists binaries LookPath should not find.
	Missing map[string]bool

	// Commands records every executed command line in order.
	Commands []string
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Outputs: make(map[string][]byte),
		Errs:    make(map[string]error),
		Missing: make(map[string]bool),
	}
}

func (f *FakeRunner) run(name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.Commands = append(f.Commands, line)
	out, okOut := f.Outputs[line]
	err := f.Errs[line]
	f.mu.Unlock()

	if err != nil {
		return out, err
	}
	if !okOut {
		return nil, nil
	}
	return out, nil
}

// Run returns the scripted output for the command line.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.run(name, args...)
}

// RunCombined behaves like Run; the fake does not distinguish streams.
func (f *FakeRunner) RunCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.run(name, args...)
}

// LookPath resolves every binary except those listed in Missing.
func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

// Ran reports whether a command line was executed.
func (f *FakeRunner) Ran(line string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Commands {
		if c == line {
			return true
		}
	}
	return false
}
