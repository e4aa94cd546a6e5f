package orchestrator

import (
	"context"
	"os"
)

// Status is the read-only deployment snapshot. Probe failures never fail the
// report; they accumulate as warnings.
type Status struct {
	Domain       string
	WebLocalPort int
	ColibriPort  int

	SitePath   string
	SiteExists bool

	EnabledPath string
	Activated   bool
	LinkTarget  string

	CertDir      string
	ChainPresent bool

	Containers     []ContainerInfo
	ListeningPorts string

	Warnings []string
}

// StatusReport inspects the deployment without modifying anything.
func (o *Orchestrator) StatusReport(ctx context.Context) *Status {
	st := &Status{
		Domain:       o.cfg.Domain,
		WebLocalPort: o.cfg.WebLocalPort,
		ColibriPort:  o.cfg.ColibriPort,
		SitePath:     o.cfg.SitePath(),
		EnabledPath:  o.cfg.EnabledPath(),
		CertDir:      o.cfg.CertDir,
	}

	st.SiteExists = fileExists(st.SitePath)
	st.ChainPresent = fileExists(o.cfg.ChainPath())

	if target, err := os.Readlink(st.EnabledPath); err == nil {
		st.Activated = true
		st.LinkTarget = target
	}

	if o.containers == nil {
		st.Warnings = append(st.Warnings, "container runtime unavailable")
	} else if containers, err := o.containers.ListStack(ctx, o.cfg.StackProject); err != nil {
		st.Warnings = append(st.Warnings, "list containers: "+err.Error())
	} else {
		st.Containers = containers
	}

	if o.ports == nil {
		st.Warnings = append(st.Warnings, "port probe unavailable")
	} else if ports, err := o.ports.ListeningPorts(ctx); err != nil {
		st.Warnings = append(st.Warnings, "list ports: "+err.Error())
	} else {
		st.ListeningPorts = ports
	}

	return st
}
