package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/meetops/meetctl/internal/orchestrator"
	"github.com/meetops/meetctl/internal/shell/certbot"
	"github.com/meetops/meetctl/internal/shell/docker"
	"github.com/meetops/meetctl/internal/shell/nginx"
	"github.com/meetops/meetctl/internal/shell/ports"
	"github.com/meetops/meetctl/internal/shell/runner"
	"github.com/meetops/meetctl/internal/shell/systemd"
	"github.com/meetops/meetctl/internal/supervisor"
	"github.com/meetops/meetctl/internal/xmpp"
)

// dispatch routes the subcommand to the appropriate handler.
func dispatch(ctx context.Context, cfg *Config, logger *slog.Logger, cmd string) int {
	switch cmd {
	case "render-config":
		return renderConfigCmd(ctx, cfg, logger)
	case "activate":
		return activateCmd(cfg, logger)
	case "obtain-certificate":
		return obtainCertificateCmd(ctx, cfg, logger)
	case "generate-self-signed":
		return generateSelfSignedCmd(cfg, logger)
	case "reload":
		return reloadCmd(ctx, cfg, logger)
	case "status":
		return statusCmd(ctx, cfg, logger)
	case "install-supervisor-unit":
		return installUnitCmd(ctx, cfg, logger)
	case "remove-supervisor-unit":
		return removeUnitCmd(ctx, cfg, logger)
	case "list-xmpp-users":
		return listXMPPUsersCmd(ctx, cfg, logger)
	case "deploy":
		return deployCmd(ctx, cfg, logger)
	case "help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		return ExitUsage
	}
}

// newOrchestrator wires the real system adapters. The container runtime is
// optional; without it status inspection degrades to a warning.
func newOrchestrator(cfg *Config, logger *slog.Logger) (*orchestrator.Orchestrator, func()) {
	r := runner.New()

	var lister orchestrator.ContainerLister
	closeFn := func() {}
	if dc, err := docker.New(); err != nil {
		logger.Warn("container runtime unavailable", "error", err)
	} else {
		lister = dc
		closeFn = func() { dc.Close() }
	}

	orch := orchestrator.New(
		cfg.OrchestratorConfig(),
		nginx.New(r),
		certbot.New(r),
		lister,
		ports.New(r),
		logger,
	)
	return orch, closeFn
}

func newUnitManager(cfg *Config, logger *slog.Logger) *supervisor.Manager {
	return supervisor.NewManager(
		cfg.Supervisor.UnitPath,
		cfg.Unit(),
		cfg.StackModel(),
		systemd.New(runner.New()),
		logger,
	)
}

func logWarnings(logger *slog.Logger, warnings []string) {
	for _, w := range warnings {
		logger.Warn(w)
	}
}

// =============================================================================
// Orchestrator Commands
// =============================================================================

func renderConfigCmd(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	orch, closeFn := newOrchestrator(cfg, logger)
	defer closeFn()

	res, err := orch.RenderConfig(ctx)
	if err != nil {
		logger.Error("render config failed", "error", err)
		return ExitError
	}
	logWarnings(logger, res.Warnings)
	logger.Info("vhost "+res.Outcome, "path", orch.Config().SitePath())
	return ExitSuccess
}

func activateCmd(cfg *Config, logger *slog.Logger) int {
	orch, closeFn := newOrchestrator(cfg, logger)
	defer closeFn()

	res := orch.ActivateConfig()
	logWarnings(logger, res.Warnings)
	logger.Info("vhost " + res.Outcome)
	return ExitSuccess
}

func obtainCertificateCmd(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	orch, closeFn := newOrchestrator(cfg, logger)
	defer closeFn()

	res, err := orch.AcquireCertificate(ctx)
	if err != nil {
		logger.Error("certificate acquisition failed", "error", err)
		return ExitError
	}
	logWarnings(logger, res.Warnings)
	logger.Info("certificate "+res.Outcome, "domain", cfg.Domain.Name)
	return ExitSuccess
}

func generateSelfSignedCmd(cfg *Config, logger *slog.Logger) int {
	orch, closeFn := newOrchestrator(cfg, logger)
	defer closeFn()

	res, err := orch.GenerateSelfSigned()
	if err != nil {
		logger.Error("self-signed generation failed", "error", err)
		return ExitError
	}
	logger.Info("certificate "+res.Outcome, "domain", cfg.Domain.Name)
	return ExitSuccess
}

func reloadCmd(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	orch, closeFn := newOrchestrator(cfg, logger)
	defer closeFn()

	res, err := orch.ReloadProxy(ctx)
	if err != nil {
		logger.Error("reload failed", "error", err)
		return ExitError
	}
	logger.Info("proxy " + res.Outcome)
	return ExitSuccess
}

func statusCmd(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	orch, closeFn := newOrchestrator(cfg, logger)
	defer closeFn()

	printStatus(orch.StatusReport(ctx), logger)
	return ExitSuccess
}

func deployCmd(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	orch, closeFn := newOrchestrator(cfg, logger)
	defer closeFn()

	report, err := orch.Deploy(ctx)
	if err != nil {
		logger.Error("deploy failed", "error", err)
		return ExitError
	}
	logWarnings(logger, report.Warnings())

	logger.Info("vhost " + report.Render.Outcome)
	logger.Info("activation " + report.Activate.Outcome)
	if report.CertificateSkipped {
		logger.Info("certificate already present, step skipped")
	} else {
		logger.Info("certificate " + report.Certificate.Outcome)
	}
	logger.Info("proxy " + report.Reload.Outcome)
	printStatus(report.Status, logger)
	return ExitSuccess
}

func printStatus(st *orchestrator.Status, logger *slog.Logger) {
	fmt.Printf("domain:           %s\n", st.Domain)
	fmt.Printf("web local port:   %d\n", st.WebLocalPort)
	fmt.Printf("colibri port:     %d\n", st.ColibriPort)
	fmt.Printf("vhost:            %s (exists: %t)\n", st.SitePath, st.SiteExists)
	if st.Activated {
		fmt.Printf("activation:       %s -> %s\n", st.EnabledPath, st.LinkTarget)
	} else {
		fmt.Printf("activation:       %s (not linked)\n", st.EnabledPath)
	}
	fmt.Printf("certificates:     %s (chain present: %t)\n", st.CertDir, st.ChainPresent)

	if len(st.Containers) > 0 {
		fmt.Println("containers:")
		for _, c := range st.Containers {
			line := fmt.Sprintf("  %-24s %-12s %s", c.Name, c.State, c.Image)
			if len(c.Ports) > 0 {
				line += "  " + strings.Join(c.Ports, ", ")
			}
			fmt.Println(line)
		}
	}
	if st.ListeningPorts != "" {
		fmt.Println("listening ports:")
		for _, line := range strings.Split(st.ListeningPorts, "\n") {
			fmt.Println("  " + line)
		}
	}
	logWarnings(logger, st.Warnings)
}

// =============================================================================
// Supervisor Unit Commands
// =============================================================================

func installUnitCmd(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	res, err := newUnitManager(cfg, logger).Install(ctx)
	if err != nil {
		logger.Error("unit install failed", "error", err)
		return ExitError
	}
	logWarnings(logger, res.Warnings)
	logger.Info("unit "+res.Outcome, "path", cfg.Supervisor.UnitPath)
	return ExitSuccess
}

func removeUnitCmd(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	res, err := newUnitManager(cfg, logger).Remove(ctx)
	if err != nil {
		logger.Error("unit removal failed", "error", err)
		return ExitError
	}
	logWarnings(logger, res.Warnings)
	logger.Info("unit "+res.Outcome, "path", cfg.Supervisor.UnitPath)
	return ExitSuccess
}

// =============================================================================
// XMPP Commands
// =============================================================================

func listXMPPUsersCmd(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	var execer xmpp.ContainerExecer
	if dc, err := docker.New(); err != nil {
		logger.Warn("container runtime unavailable", "error", err)
	} else {
		execer = dc
		defer dc.Close()
	}

	lister := xmpp.NewLister(execer, cfg.Prosody.Container, cfg.Prosody.DataDir, logger)
	users, warnings := lister.ListUsers(ctx)
	logWarnings(logger, warnings)

	for _, u := range users {
		fmt.Println(u)
	}
	logger.Info("listed registered users", "count", len(users))
	return ExitSuccess
}
