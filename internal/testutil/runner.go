// Package testutil holds shared fixtures for exercising the watcher
// without a real scheduler on PATH.
package testutil

import (
	"context"
	"sync"
)

// FakeRunner stands in for the scheduler CLIs. Outputs are keyed by
// command name; unset commands return empty output and no error.
type FakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []Call
}

// Call records one command invocation, including the script piped to
// stdin for sbatch.
type Call struct {
	Name  string
	Args  []string
	Stdin string
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (f *FakeRunner) SetOutput(name, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[name] = output
}

func (f *FakeRunner) SetError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

func (f *FakeRunner) Run(_ context.Context, stdin string, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Name: name, Args: args, Stdin: stdin})
	if err := f.errs[name]; err != nil {
		return "", err
	}
	return f.outputs[name], nil
}

// Calls returns a snapshot of every invocation so far.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
