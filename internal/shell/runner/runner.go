// Package runner wraps external command execution behind a small interface
// so the tool adapters can be tested without spawning system processes.
package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes external commands.
type Runner interface {
	// Run executes the command, discarding output on success. On failure
	// the error carries the tail of the combined output.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes the command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// LookPath reports where the named binary lives, if anywhere.
	LookPath(name string) (string, error)
}

// New returns a Runner backed by os/exec.
func New() Runner {
	return execRunner{}
}

type execRunner struct{}

const outputTailLimit = 2048

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, tail(out))
	}
	return nil
}

func (execRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > outputTailLimit {
		s = "..." + s[len(s)-outputTailLimit:]
	}
	return s
}
