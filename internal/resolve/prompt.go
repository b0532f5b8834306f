package resolve

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	proverrors "github.com/systmms/provops/internal/errors"
)

// Prompter supplies values for interactive variables. Prompts block the
// single workflow thread until input arrives; there is no timeout, so
// non-interactive contexts must satisfy every interactive rule via override
// or use NonInteractivePrompter.
type Prompter interface {
	// Prompt displays label and returns the operator's input, trimmed.
	Prompt(label string) (string, error)

	// Confirm asks a yes/no question and returns the answer. Used by the
	// confirmation gates on existing resources.
	Confirm(question string) (bool, error)
}

// TerminalPrompter reads from an input stream (normally stdin) and writes
// prompts to an output stream (normally stderr, keeping stdout scriptable).
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter creates a prompter on the given streams.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// DefaultPrompter returns a prompter on stdin/stderr.
func DefaultPrompter() *TerminalPrompter {
	return NewTerminalPrompter(os.Stdin, os.Stderr)
}

func (p *TerminalPrompter) Prompt(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p *TerminalPrompter) Confirm(question string) (bool, error) {
	for {
		fmt.Fprintf(p.out, "%s [y/N]: ", question)
		line, err := p.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("failed to read input: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		}
		if err == io.EOF {
			return false, nil
		}
	}
}

// NonInteractivePrompter fails every prompt deterministically. Confirmation
// gates answer "no", which commands treat as a clean abort.
type NonInteractivePrompter struct{}

func (NonInteractivePrompter) Prompt(label string) (string, error) {
	return "", proverrors.UserError{
		Message:    "Interactive input required in non-interactive mode",
		Details:    label,
		Suggestion: "Supply the value via an identically named environment variable",
	}
}

func (NonInteractivePrompter) Confirm(string) (bool, error) {
	return false, nil
}
