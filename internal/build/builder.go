// Package build wraps the container image build and push steps. The image
// build itself is delegated to the docker CLI; the build output directory
// is treated as an opaque input.
package build

import (
	"context"
	"fmt"
	"strings"

	provopserrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/exec"
)

// Builder builds and pushes the service image.
type Builder struct {
	executor exec.CommandExecutor
	logger   *logging.Logger
}

func New(executor exec.CommandExecutor, logger *logging.Logger) *Builder {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	if logger == nil {
		logger = logging.New(false, true)
	}
	return &Builder{executor: executor, logger: logger}
}

// CheckPrerequisites verifies the docker CLI is available.
func (b *Builder) CheckPrerequisites() error {
	if _, err := b.executor.LookPath("docker"); err != nil {
		return &provopserrors.PreconditionError{
			Requirement: "docker",
			Message:     "the docker CLI is required to build and push images",
			Suggestion:  "Install Docker and make sure `docker` is on PATH",
		}
	}
	return nil
}

// Build builds contextDir into an image tagged ref.
func (b *Builder) Build(ctx context.Context, ref, contextDir string) error {
	if err := b.CheckPrerequisites(); err != nil {
		return err
	}
	b.logger.Info("Building image %s from %s", ref, contextDir)
	_, stderr, err := b.executor.Execute(ctx, "docker", "build", "-t", ref, contextDir)
	if err != nil {
		return fmt.Errorf("docker build failed: %w: %s", err, firstLine(stderr))
	}
	return nil
}

// Push pushes the image to its registry.
func (b *Builder) Push(ctx context.Context, ref string) error {
	if err := b.CheckPrerequisites(); err != nil {
		return err
	}
	b.logger.Info("Pushing image %s", ref)
	_, stderr, err := b.executor.Execute(ctx, "docker", "push", ref)
	if err != nil {
		return fmt.Errorf("docker push failed: %w: %s", err, firstLine(stderr))
	}
	return nil
}

func firstLine(out []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line
}
