// Package ports snapshots listening TCP sockets for status reporting.
package ports

import (
	"context"
	"strings"

	"github.com/meetops/meetctl/internal/shell/runner"
)

// Prober runs the host socket statistics tool. Best-effort only: callers
// treat failures as warnings.
type Prober struct {
	runner runner.Runner
}

// New creates a Prober on the given runner.
func New(r runner.Runner) *Prober {
	return &Prober{runner: r}
}

// ListeningPorts returns the raw listening-socket table.
func (p *Prober) ListeningPorts(ctx context.Context) (string, error) {
	out, err := p.runner.Output(ctx, "ss", "-ltn")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
