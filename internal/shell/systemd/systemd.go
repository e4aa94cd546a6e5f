// Package systemd adapts systemctl to the supervisor's Systemctl capability.
package systemd

import (
	"context"

	"github.com/meetops/meetctl/internal/shell/runner"
)

// Systemctl invokes the host systemctl binary.
type Systemctl struct {
	runner runner.Runner
}

// New creates a Systemctl on the given runner.
func New(r runner.Runner) *Systemctl {
	return &Systemctl{runner: r}
}

// DaemonReload re-reads unit files from disk.
func (s *Systemctl) DaemonReload(ctx context.Context) error {
	return s.runner.Run(ctx, "systemctl", "daemon-reload")
}

// Enable marks the unit for automatic start.
func (s *Systemctl) Enable(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, "systemctl", "enable", unit)
}

// Disable unmarks the unit for automatic start.
func (s *Systemctl) Disable(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, "systemctl", "disable", unit)
}

// Stop stops the unit if running.
func (s *Systemctl) Stop(ctx context.Context, unit string) error {
	return s.runner.Run(ctx, "systemctl", "stop", unit)
}
