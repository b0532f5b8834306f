// Package exec abstracts external command execution so workflows that
// shell out (image builds, pushes) can be tested without the real tools.
package exec

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandExecutor runs an external command and returns its output streams.
type CommandExecutor interface {
	// Execute runs name with args. Returns stdout, stderr, and any error.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)

	// LookPath reports whether the named tool is available on PATH.
	LookPath(name string) (string, error)
}

// RealCommandExecutor is the production implementation on os/exec.
type RealCommandExecutor struct{}

func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func (r *RealCommandExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// DefaultExecutor returns the standard production executor.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}
