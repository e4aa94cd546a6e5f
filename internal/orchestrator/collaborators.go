package orchestrator

import "context"

// Every external effect goes through one of these narrow capabilities so
// tests can substitute fakes without spawning system tools.

// ProxyTool controls the reverse proxy.
type ProxyTool interface {
	// Installed reports whether the proxy binary is on the host.
	Installed() bool

	// CheckConfig validates the on-disk configuration syntactically.
	CheckConfig(ctx context.Context) error

	// Reload signals the running proxy service to pick up the config.
	Reload(ctx context.Context) error
}

// AcmeClient obtains authority-issued certificates.
type AcmeClient interface {
	// Installed reports whether the authority client is on the host.
	Installed() bool

	// Obtain runs a non-interactive webroot-validated issuance.
	Obtain(ctx context.Context, domain, webroot, email string) error
}

// ContainerLister inspects the container runtime. Read-only.
type ContainerLister interface {
	// ListStack returns containers whose names follow the stack's
	// naming convention.
	ListStack(ctx context.Context, project string) ([]ContainerInfo, error)
}

// PortProber snapshots listening network ports. Read-only, best-effort.
type PortProber interface {
	ListeningPorts(ctx context.Context) (string, error)
}

// ContainerInfo is the minimal container view used by status reporting.
type ContainerInfo struct {
	Name   string
	Image  string
	State  string
	Status string
	Ports  []string
}
