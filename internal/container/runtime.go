// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container detects a docker or podman runtime and runs
// single-shot conversion containers that read stdin and write stdout.
package container

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/pdf2md/internal/runner"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Runtime provides container operations: checking availability, verifying
// images, and running containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available(ctx context.Context) bool

	// ImageExists returns nil when the image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes image with stdin attached, copying its stdout to stdout.
	// Env entries are passed into the container with -e.
	Run(ctx context.Context, image string, env []string, stdin io.Reader, stdout io.Writer) error
}

// runtime implements Runtime for a specific container binary. Docker and
// Podman differ only in binary name and the image check subcommand.
type runtime struct {
	bin           string
	imageCheckCmd []string
	run           runner.Runner
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available(ctx context.Context) bool {
	if _, err := r.run.LookPath(r.bin); err != nil {
		return false
	}
	return r.run.Run(ctx, runner.Command{Name: r.bin, Args: []string{"info"}, Stdout: io.Discard}) == nil
}

func (r *runtime) ImageExists(ctx context.Context, image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.run.Run(ctx, runner.Command{Name: r.bin, Args: args, Stdout: io.Discard}); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, image string, env []string, stdin io.Reader, stdout io.Writer) error {
	args := []string{"run", "--rm", "-i"}
	for _, kv := range env {
		args = append(args, "-e", kv)
	}
	args = append(args, image)

	c := runner.Command{Name: r.bin, Args: args, Stdin: stdin, Stdout: stdout}
	if err := r.run.Run(ctx, c); err != nil {
		return fmt.Errorf("running %s container %s: %w", r.bin, image, err)
	}
	return nil
}

func newDockerRuntime(run runner.Runner) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		run:           run,
	}
}

func newPodmanRuntime(run runner.Runner) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		run:           run,
	}
}

// DetectRuntime tries docker first and falls back to podman.
func DetectRuntime(ctx context.Context, run runner.Runner) (Runtime, error) {
	if run == nil {
		run = runner.Default
	}

	docker := newDockerRuntime(run)
	if docker.Available(ctx) {
		return docker, nil
	}

	podman := newPodmanRuntime(run)
	if podman.Available(ctx) {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}
