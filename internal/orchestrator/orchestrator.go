// Package orchestrator sequences the deployment lifecycle: vhost rendering,
// activation, certificate acquisition with fallback, proxy reload, and
// status inspection. All external effects are delegated to the collaborator
// capabilities; the orchestrator only sequences them and inspects file
// existence and error feedback.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/meetops/meetctl/internal/core/certgen"
	"github.com/meetops/meetctl/internal/core/nginxconf"
)

// Config holds the immutable deployment parameters and paths for one run.
type Config struct {
	Domain       string
	WebLocalPort int
	ColibriPort  int

	SitesAvailableDir string
	SitesEnabledDir   string

	// CertDir is the base certificate directory; the bundle for the domain
	// lives at <CertDir>/<Domain>/.
	CertDir string
	Webroot string
	Email   string

	// StackProject is the compose project name used to recognise stack
	// containers during status inspection.
	StackProject string
}

// SitePath returns the canonical vhost artifact path.
func (c Config) SitePath() string {
	return nginxconf.SitePath(c.SitesAvailableDir, c.Domain)
}

// EnabledPath returns the activation symlink path.
func (c Config) EnabledPath() string {
	return nginxconf.EnabledPath(c.SitesEnabledDir, c.Domain)
}

// ChainPath returns the certificate chain file path. Its presence is the
// sole signal that a certificate exists; provenance is not tracked.
func (c Config) ChainPath() string {
	return filepath.Join(c.CertDir, c.Domain, "fullchain.pem")
}

// KeyPath returns the private key file path.
func (c Config) KeyPath() string {
	return filepath.Join(c.CertDir, c.Domain, "privkey.pem")
}

func (c Config) renderParams() nginxconf.Params {
	return nginxconf.Params{
		Domain:       c.Domain,
		WebLocalPort: c.WebLocalPort,
		ColibriPort:  c.ColibriPort,
		CertDir:      c.CertDir,
		Webroot:      c.Webroot,
	}
}

// Orchestrator runs the lifecycle operations. Every operation is idempotent
// and safe to re-invoke; interrupted runs recover by re-invocation.
type Orchestrator struct {
	cfg        Config
	proxy      ProxyTool
	acme       AcmeClient
	containers ContainerLister
	ports      PortProber
	logger     *slog.Logger

	// now is swappable for deterministic backup names in tests.
	now func() time.Time
}

// New creates an orchestrator. containers and ports may be nil; status
// inspection then records a warning instead of probing.
func New(cfg Config, proxy ProxyTool, acme AcmeClient, containers ContainerLister, ports PortProber, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		proxy:      proxy,
		acme:       acme,
		containers: containers,
		ports:      ports,
		logger:     logger,
		now:        time.Now,
	}
}

// Config returns the immutable run configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// =============================================================================
// RenderConfig
// =============================================================================

// RenderConfig renders the vhost artifact. An existing artifact is copied to
// a timestamped backup first, then atomically replaced.
func (o *Orchestrator) RenderConfig(ctx context.Context) (*Result, error) {
	if !o.proxy.Installed() {
		return nil, NewMissingDependency("render config", "nginx", fmt.Errorf("proxy binary not found"))
	}

	content, err := nginxconf.Render(o.cfg.renderParams())
	if err != nil {
		return nil, NewConfigWrite("render config", o.cfg.SitePath(), err)
	}

	site := o.cfg.SitePath()
	res := &Result{Outcome: OutcomeWritten}

	if _, err := os.Stat(site); err == nil {
		backup := nginxconf.BackupPath(site, o.now())
		if err := copyFile(site, backup); err != nil {
			return nil, NewConfigWrite("backup config", backup, err)
		}
		res.Outcome = OutcomeReplaced
		res.Detail = backup
		o.logger.Info("backed up previous vhost", "path", backup)
	}

	if err := writeFileAtomic(site, []byte(content), 0o644); err != nil {
		return nil, NewConfigWrite("write config", site, err)
	}

	o.logger.Info("rendered vhost", "path", site, "domain", o.cfg.Domain)
	return res, nil
}

// =============================================================================
// ActivateConfig
// =============================================================================

// ActivateConfig links the artifact into sites-enabled, replacing any
// existing link of the same name. Failure is recorded as a warning on the
// result, never raised: the historic behaviour swallowed these errors, and
// the warning keeps the outcome observable.
func (o *Orchestrator) ActivateConfig() *Result {
	site := o.cfg.SitePath()
	enabled := o.cfg.EnabledPath()

	if err := os.Remove(enabled); err != nil && !os.IsNotExist(err) {
		res := &Result{Outcome: OutcomeLinkFailed}
		res.warnf("remove existing link %s: %v", enabled, err)
		o.logger.Warn("activation failed", "path", enabled, "error", err)
		return res
	}

	if err := os.Symlink(site, enabled); err != nil {
		res := &Result{Outcome: OutcomeLinkFailed}
		res.warnf("link %s -> %s: %v", enabled, site, err)
		o.logger.Warn("activation failed", "path", enabled, "error", err)
		return res
	}

	o.logger.Info("activated vhost", "link", enabled)
	return &Result{Outcome: OutcomeLinked}
}

// =============================================================================
// AcquireCertificate
// =============================================================================

// AcquireCertificate runs the preference chain: reuse an existing bundle,
// else obtain one from the authority client, else generate a temporary
// self-signed bundle. Fatal only when the authority client exists but
// errored AND the self-signed fallback cannot be written.
func (o *Orchestrator) AcquireCertificate(ctx context.Context) (*Result, error) {
	if fileExists(o.cfg.ChainPath()) {
		o.logger.Info("certificate already present", "path", o.cfg.ChainPath())
		return &Result{Outcome: OutcomeCertPresent}, nil
	}

	res := &Result{}
	acmeFailed := false

	if o.acme.Installed() {
		err := o.acme.Obtain(ctx, o.cfg.Domain, o.cfg.Webroot, o.cfg.Email)
		if err == nil {
			o.logger.Info("certificate issued", "domain", o.cfg.Domain)
			res.Outcome = OutcomeCertIssued
			return res, nil
		}
		acmeFailed = true
		res.warnf("authority client failed, falling back to self-signed: %v", err)
		o.logger.Warn("certificate issuance failed", "domain", o.cfg.Domain, "error", err)
	} else {
		res.warnf("authority client not installed, falling back to self-signed")
	}

	selfRes, err := o.GenerateSelfSigned()
	if err != nil {
		if acmeFailed {
			return nil, NewCertAcquisition("acquire certificate", o.cfg.ChainPath(), err)
		}
		// The chain never produced a bundle, but nothing fatal happened:
		// the client was absent and the fallback path was unwritable.
		res.Outcome = OutcomeUnavailable
		res.warnf("self-signed fallback failed: %v", err)
		o.logger.Warn("no certificate produced", "domain", o.cfg.Domain, "error", err)
		return res, nil
	}

	selfRes.Warnings = append(res.Warnings, selfRes.Warnings...)
	return selfRes, nil
}

// GenerateSelfSigned writes a temporary self-signed bundle for the domain.
// An existing private key at the target path is never overwritten; the step
// is a no-op in that case.
func (o *Orchestrator) GenerateSelfSigned() (*Result, error) {
	if fileExists(o.cfg.KeyPath()) {
		o.logger.Info("existing private key preserved", "path", o.cfg.KeyPath())
		return &Result{Outcome: OutcomeKeyPreserved}, nil
	}

	dir := filepath.Dir(o.cfg.ChainPath())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create certificate directory %s: %w", dir, err)
	}

	certPEM, keyPEM, err := certgen.SelfSigned(o.cfg.Domain, certgen.DefaultValidity, certgen.DefaultKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate self-signed bundle: %w", err)
	}

	if err := os.WriteFile(o.cfg.KeyPath(), keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(o.cfg.ChainPath(), certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("write certificate chain: %w", err)
	}

	o.logger.Info("generated self-signed certificate", "domain", o.cfg.Domain, "path", o.cfg.ChainPath())
	return &Result{Outcome: OutcomeSelfSigned}, nil
}

// =============================================================================
// ReloadProxy
// =============================================================================

// ReloadProxy validates the rendered configuration and signals the running
// proxy to reload. The syntax check is the one hard gate: a rejected config
// never reaches the live service.
func (o *Orchestrator) ReloadProxy(ctx context.Context) (*Result, error) {
	if !o.proxy.Installed() {
		return nil, NewMissingDependency("reload proxy", "nginx", fmt.Errorf("proxy binary not found"))
	}

	if err := o.proxy.CheckConfig(ctx); err != nil {
		return nil, NewReload("check config", err)
	}

	if err := o.proxy.Reload(ctx); err != nil {
		return nil, NewReload("reload", err)
	}

	o.logger.Info("proxy reloaded")
	return &Result{Outcome: OutcomeReloaded}, nil
}

// =============================================================================
// Deploy
// =============================================================================

// DeployReport collects the step results of a full deploy run.
type DeployReport struct {
	Render      *Result
	Activate    *Result
	Certificate *Result
	// CertificateSkipped is set when the chain file pre-existed and the
	// acquisition step was not entered at all.
	CertificateSkipped bool
	Reload             *Result
	Status             *Status
}

// Warnings returns all step warnings in execution order.
func (r *DeployReport) Warnings() []string {
	var all []string
	for _, res := range []*Result{r.Render, r.Activate, r.Certificate, r.Reload} {
		if res != nil {
			all = append(all, res.Warnings...)
		}
	}
	if r.Status != nil {
		all = append(all, r.Status.Warnings...)
	}
	return all
}

// Deploy runs the full sequence: render, activate, certificate (skipped when
// the chain pre-exists), reload, status. Straight-line, no retries; the only
// rollback is the backup-on-overwrite policy.
func (o *Orchestrator) Deploy(ctx context.Context) (*DeployReport, error) {
	report := &DeployReport{}

	res, err := o.RenderConfig(ctx)
	if err != nil {
		return report, err
	}
	report.Render = res

	report.Activate = o.ActivateConfig()

	if fileExists(o.cfg.ChainPath()) {
		report.CertificateSkipped = true
		o.logger.Info("certificate step skipped", "path", o.cfg.ChainPath())
	} else {
		res, err := o.AcquireCertificate(ctx)
		if err != nil {
			return report, err
		}
		report.Certificate = res
	}

	res, err = o.ReloadProxy(ctx)
	if err != nil {
		return report, err
	}
	report.Reload = res

	report.Status = o.StatusReport(ctx)
	return report, nil
}

// =============================================================================
// Filesystem helpers
// =============================================================================

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// writeFileAtomic writes via a temp file in the target directory and renames
// it into place, so readers never observe a partial artifact.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
