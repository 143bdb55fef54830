// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runner executes external programs for the conversion engines and
// lets tests substitute a fake.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// maxStderr caps how much of a failed command's stderr is logged and
// returned in the error.
const maxStderr = 8 << 10

// Command describes one external program invocation.
type Command struct {
	Name string
	Args []string

	// Env is appended to the current process environment.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner looks up and runs external programs.
type Runner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, c Command) error
}

// Exec is the production Runner backed by os/exec.
type Exec struct{}

// Default is the shared production runner.
var Default Runner = Exec{}

func (Exec) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (Exec) Run(ctx context.Context, c Command) error {
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	var errb bytes.Buffer
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		stderr := Truncate(strings.TrimSpace(errb.String()), maxStderr)
		slog.Error("exec failed",
			"cmd", c.Name,
			"args", strings.Join(c.Args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", stderr,
		)
		if stderr != "" {
			return fmt.Errorf("%s: %w: %s", c.Name, err, stderr)
		}
		return fmt.Errorf("%s: %w", c.Name, err)
	}

	slog.Debug("exec ok",
		"cmd", c.Name,
		"args", strings.Join(c.Args, " "),
		"duration_ms", dur.Milliseconds(),
		"stderr_bytes", errb.Len(),
	)
	return nil
}

// Truncate shortens s to at most max bytes, marking the cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
