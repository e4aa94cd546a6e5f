package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeProxy struct {
	installed bool
	checkErr  error
	reloadErr error
	calls     []string
}

func (f *fakeProxy) Installed() bool { return f.installed }

func (f *fakeProxy) CheckConfig(ctx context.Context) error {
	f.calls = append(f.calls, "check")
	return f.checkErr
}

func (f *fakeProxy) Reload(ctx context.Context) error {
	f.calls = append(f.calls, "reload")
	return f.reloadErr
}

type fakeAcme struct {
	installed bool
	obtainErr error
	calls     int
}

func (f *fakeAcme) Installed() bool { return f.installed }

func (f *fakeAcme) Obtain(ctx context.Context, domain, webroot, email string) error {
	f.calls++
	return f.obtainErr
}

type fakeLister struct {
	containers []ContainerInfo
	err        error
}

func (f *fakeLister) ListStack(ctx context.Context, project string) ([]ContainerInfo, error) {
	return f.containers, f.err
}

type fakePorts struct {
	out string
	err error
}

func (f *fakePorts) ListeningPorts(ctx context.Context) (string, error) {
	return f.out, f.err
}

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	orch  *Orchestrator
	cfg   Config
	proxy *fakeProxy
	acme  *fakeAcme
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()

	cfg := Config{
		Domain:            "meet.example.com",
		WebLocalPort:      8445,
		ColibriPort:       9091,
		SitesAvailableDir: filepath.Join(root, "sites-available"),
		SitesEnabledDir:   filepath.Join(root, "sites-enabled"),
		CertDir:           filepath.Join(root, "live"),
		Webroot:           filepath.Join(root, "webroot"),
		StackProject:      "meet",
	}
	require.NoError(t, os.MkdirAll(cfg.SitesAvailableDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.SitesEnabledDir, 0o755))

	proxy := &fakeProxy{installed: true}
	acme := &fakeAcme{installed: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orch := New(cfg, proxy, acme, &fakeLister{}, &fakePorts{out: "LISTEN 0.0.0.0:443"}, logger)
	return &harness{orch: orch, cfg: cfg, proxy: proxy, acme: acme}
}

// =============================================================================
// RenderConfig Tests
// =============================================================================

func TestRenderConfig_WritesArtifact(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.RenderConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWritten, res.Outcome)

	data, err := os.ReadFile(h.cfg.SitePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "server_name meet.example.com;")
	assert.Contains(t, string(data), "proxy_pass http://127.0.0.1:8445;")
	assert.Contains(t, string(data), "proxy_pass http://127.0.0.1:9091/colibri-ws/;")
}

func TestRenderConfig_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.RenderConfig(ctx)
	require.NoError(t, err)
	first, err := os.ReadFile(h.cfg.SitePath())
	require.NoError(t, err)

	// Fixed clock so the backup name is deterministic.
	h.orch.now = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC) }

	res, err := h.orch.RenderConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplaced, res.Outcome)
	assert.Equal(t, h.cfg.SitePath()+".bak-20260314150926", res.Detail)

	second, err := os.ReadFile(h.cfg.SitePath())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	backups, err := filepath.Glob(h.cfg.SitePath() + ".bak-*")
	require.NoError(t, err)
	require.Len(t, backups, 1)

	backup, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, first, backup)
}

func TestRenderConfig_MissingProxyTool(t *testing.T) {
	h := newHarness(t)
	h.proxy.installed = false

	_, err := h.orch.RenderConfig(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMissingDependency))
}

func TestRenderConfig_UnwritableTarget(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.RemoveAll(h.cfg.SitesAvailableDir))

	_, err := h.orch.RenderConfig(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfigWrite))
}

// =============================================================================
// ActivateConfig Tests
// =============================================================================

func TestActivateConfig_CreatesLink(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.RenderConfig(context.Background())
	require.NoError(t, err)

	res := h.orch.ActivateConfig()
	assert.Equal(t, OutcomeLinked, res.Outcome)
	assert.Empty(t, res.Warnings)

	target, err := os.Readlink(h.cfg.EnabledPath())
	require.NoError(t, err)
	assert.Equal(t, h.cfg.SitePath(), target)
}

func TestActivateConfig_ReplacesExistingLink(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Symlink("/nonexistent", h.cfg.EnabledPath()))

	res := h.orch.ActivateConfig()
	assert.Equal(t, OutcomeLinked, res.Outcome)

	target, err := os.Readlink(h.cfg.EnabledPath())
	require.NoError(t, err)
	assert.Equal(t, h.cfg.SitePath(), target)
}

func TestActivateConfig_FailureIsWarningNotError(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.RemoveAll(h.cfg.SitesEnabledDir))

	res := h.orch.ActivateConfig()
	assert.Equal(t, OutcomeLinkFailed, res.Outcome)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "link")
}

// =============================================================================
// AcquireCertificate Tests
// =============================================================================

func writeChain(t *testing.T, cfg Config) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.ChainPath()), 0o755))
	require.NoError(t, os.WriteFile(cfg.ChainPath(), []byte("chain"), 0o644))
}

func TestAcquireCertificate_AlreadyPresent(t *testing.T) {
	h := newHarness(t)
	writeChain(t, h.cfg)

	res, err := h.orch.AcquireCertificate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCertPresent, res.Outcome)
	assert.Zero(t, h.acme.calls, "no external calls when the chain exists")
}

func TestAcquireCertificate_Issued(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.AcquireCertificate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCertIssued, res.Outcome)
	assert.Equal(t, 1, h.acme.calls)
}

func TestAcquireCertificate_FallsBackToSelfSigned(t *testing.T) {
	h := newHarness(t)
	h.acme.obtainErr = errors.New("challenge failed")

	res, err := h.orch.AcquireCertificate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSelfSigned, res.Outcome)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "falling back to self-signed")

	chain, err := os.ReadFile(h.cfg.ChainPath())
	require.NoError(t, err)
	assert.Contains(t, string(chain), "BEGIN CERTIFICATE")

	key, err := os.ReadFile(h.cfg.KeyPath())
	require.NoError(t, err)
	assert.Contains(t, string(key), "BEGIN RSA PRIVATE KEY")
}

func TestAcquireCertificate_ClientAbsentSelfSigns(t *testing.T) {
	h := newHarness(t)
	h.acme.installed = false

	res, err := h.orch.AcquireCertificate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSelfSigned, res.Outcome)
	assert.Zero(t, h.acme.calls)
}

func TestAcquireCertificate_PreservesExistingKey(t *testing.T) {
	h := newHarness(t)
	h.acme.obtainErr = errors.New("challenge failed")

	require.NoError(t, os.MkdirAll(filepath.Dir(h.cfg.KeyPath()), 0o755))
	require.NoError(t, os.WriteFile(h.cfg.KeyPath(), []byte("precious"), 0o600))

	res, err := h.orch.AcquireCertificate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeKeyPreserved, res.Outcome)

	key, err := os.ReadFile(h.cfg.KeyPath())
	require.NoError(t, err)
	assert.Equal(t, "precious", string(key))
}

func TestAcquireCertificate_FatalWhenClientErrsAndFallbackUnwritable(t *testing.T) {
	h := newHarness(t)
	h.acme.obtainErr = errors.New("challenge failed")

	// Make <CertDir>/<domain> impossible to create.
	require.NoError(t, os.MkdirAll(h.cfg.CertDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.cfg.CertDir, h.cfg.Domain), []byte("not a dir"), 0o644))

	_, err := h.orch.AcquireCertificate(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCertAcquisition))
}

// =============================================================================
// ReloadProxy Tests
// =============================================================================

func TestReloadProxy_ChecksBeforeReload(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.ReloadProxy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeReloaded, res.Outcome)
	assert.Equal(t, []string{"check", "reload"}, h.proxy.calls)
}

func TestReloadProxy_NeverReloadsRejectedConfig(t *testing.T) {
	h := newHarness(t)
	h.proxy.checkErr = errors.New("unexpected end of file")

	_, err := h.orch.ReloadProxy(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindReload))
	assert.Equal(t, []string{"check"}, h.proxy.calls, "reload must not run after a failed check")
}

// =============================================================================
// StatusReport Tests
// =============================================================================

func TestStatusReport_ReflectsFilesystem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st := h.orch.StatusReport(ctx)
	assert.False(t, st.SiteExists)
	assert.False(t, st.Activated)
	assert.False(t, st.ChainPresent)

	_, err := h.orch.RenderConfig(ctx)
	require.NoError(t, err)
	h.orch.ActivateConfig()
	writeChain(t, h.cfg)

	st = h.orch.StatusReport(ctx)
	assert.True(t, st.SiteExists)
	assert.True(t, st.Activated)
	assert.Equal(t, h.cfg.SitePath(), st.LinkTarget)
	assert.True(t, st.ChainPresent)
	assert.Equal(t, "LISTEN 0.0.0.0:443", st.ListeningPorts)
	assert.Empty(t, st.Warnings)
}

func TestStatusReport_ProbeFailuresAreWarnings(t *testing.T) {
	h := newHarness(t)
	h.orch.containers = &fakeLister{err: errors.New("docker unreachable")}
	h.orch.ports = &fakePorts{err: errors.New("ss not found")}

	st := h.orch.StatusReport(context.Background())
	require.Len(t, st.Warnings, 2)
	assert.Contains(t, st.Warnings[0], "docker unreachable")
	assert.Contains(t, st.Warnings[1], "ss not found")
}

func TestStatusReport_NilProbes(t *testing.T) {
	h := newHarness(t)
	h.orch.containers = nil
	h.orch.ports = nil

	st := h.orch.StatusReport(context.Background())
	require.Len(t, st.Warnings, 2)
	assert.Contains(t, st.Warnings[0], "container runtime unavailable")
}

// =============================================================================
// Deploy Tests
// =============================================================================

func TestDeploy_FullSequence(t *testing.T) {
	h := newHarness(t)

	report, err := h.orch.Deploy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeWritten, report.Render.Outcome)
	assert.Equal(t, OutcomeLinked, report.Activate.Outcome)
	assert.False(t, report.CertificateSkipped)
	assert.Equal(t, OutcomeCertIssued, report.Certificate.Outcome)
	assert.Equal(t, OutcomeReloaded, report.Reload.Outcome)
	require.NotNil(t, report.Status)
	assert.True(t, report.Status.SiteExists)
	assert.Equal(t, []string{"check", "reload"}, h.proxy.calls)
}

func TestDeploy_SkipsCertificateWhenChainPresent(t *testing.T) {
	h := newHarness(t)
	writeChain(t, h.cfg)

	report, err := h.orch.Deploy(context.Background())
	require.NoError(t, err)

	assert.True(t, report.CertificateSkipped)
	assert.Nil(t, report.Certificate)
	assert.Zero(t, h.acme.calls)
}

func TestDeploy_AbortsOnRejectedConfig(t *testing.T) {
	h := newHarness(t)
	h.proxy.checkErr = errors.New("duplicate location")

	report, err := h.orch.Deploy(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindReload))
	assert.Nil(t, report.Reload)
	assert.Nil(t, report.Status, "status never runs after an aborted reload")
	assert.NotContains(t, h.proxy.calls, "reload")
}

func TestDeploy_CollectsWarnings(t *testing.T) {
	h := newHarness(t)
	h.acme.obtainErr = errors.New("rate limited")
	require.NoError(t, os.RemoveAll(h.cfg.SitesEnabledDir))

	report, err := h.orch.Deploy(context.Background())
	require.NoError(t, err)

	warnings := report.Warnings()
	require.NotEmpty(t, warnings)
	assert.True(t, containsSubstring(warnings, "link"), "activation failure recorded")
	assert.True(t, containsSubstring(warnings, "falling back to self-signed"))
}

func containsSubstring(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
