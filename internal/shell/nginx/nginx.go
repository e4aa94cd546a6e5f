// Package nginx adapts the host nginx installation to the orchestrator's
// ProxyTool capability. The syntax check uses nginx's own -t subcommand;
// reload goes through the service supervisor so a running master process
// picks up the config without dropping connections.
package nginx

import (
	"context"

	"github.com/meetops/meetctl/internal/shell/runner"
)

// Tool drives the nginx binary and service.
type Tool struct {
	runner runner.Runner
}

// New creates a Tool on the given runner.
func New(r runner.Runner) *Tool {
	return &Tool{runner: r}
}

// Installed reports whether the nginx binary is on PATH.
func (t *Tool) Installed() bool {
	_, err := t.runner.LookPath("nginx")
	return err == nil
}

// CheckConfig validates the full on-disk configuration.
func (t *Tool) CheckConfig(ctx context.Context) error {
	return t.runner.Run(ctx, "nginx", "-t")
}

// Reload signals the running nginx service.
func (t *Tool) Reload(ctx context.Context) error {
	return t.runner.Run(ctx, "systemctl", "reload", "nginx")
}
