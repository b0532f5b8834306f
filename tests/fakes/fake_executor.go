package fakes

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// FakeCommandExecutor records executed commands and serves scripted
// results.
type FakeCommandExecutor struct {
	commands []string // space-joined command lines, in order
	results  map[string]fakeResult
	missing  map[string]bool // tools absent from PATH

	mu sync.Mutex
}

type fakeResult struct {
	stdout string
	stderr string
	err    error
}

func NewFakeCommandExecutor() *FakeCommandExecutor {
	return &FakeCommandExecutor{
		results: make(map[string]fakeResult),
		missing: make(map[string]bool),
	}
}

// WithResult scripts the outcome for a command line prefix, e.g.
// "docker push".
func (f *FakeCommandExecutor) WithResult(prefix, stdout, stderr string, err error) *FakeCommandExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[prefix] = fakeResult{stdout: stdout, stderr: stderr, err: err}
	return f
}

// WithoutTool makes LookPath fail for the named tool.
func (f *FakeCommandExecutor) WithoutTool(name string) *FakeCommandExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing[name] = true
	return f
}

func (f *FakeCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := strings.Join(append([]string{name}, args...), " ")
	f.commands = append(f.commands, line)
	for prefix, res := range f.results {
		if strings.HasPrefix(line, prefix) {
			return []byte(res.stdout), []byte(res.stderr), res.err
		}
	}
	return nil, nil, nil
}

func (f *FakeCommandExecutor) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + name, nil
}

// Commands returns the executed command lines in order.
func (f *FakeCommandExecutor) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	copy(out, f.commands)
	return out
}
