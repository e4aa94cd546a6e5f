// Package supervisor installs and removes the systemd unit descriptor that
// starts and stops the compose stack. The descriptor is never updated in
// place: it is installed when absent and removed on request, nothing else.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meetops/meetctl/internal/core/stack"
	"github.com/meetops/meetctl/internal/core/unitfile"
)

// Systemctl is the narrow supervisor capability; fakes substitute it in
// tests.
type Systemctl interface {
	DaemonReload(ctx context.Context) error
	Enable(ctx context.Context, unit string) error
	Disable(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
}

// Result describes the outcome of an install or remove.
type Result struct {
	Outcome  string
	Warnings []string
}

const (
	OutcomeInstalled     = "installed"
	OutcomeAlreadyExists = "already exists"
	OutcomeRemoved       = "removed"
	OutcomeNotInstalled  = "not installed"
)

// Manager owns the descriptor file at a fixed path.
type Manager struct {
	unitPath string
	unit     unitfile.Unit
	stack    stack.Stack
	sys      Systemctl
	logger   *slog.Logger
}

// NewManager creates a unit manager for the given descriptor path.
func NewManager(unitPath string, unit unitfile.Unit, st stack.Stack, sys Systemctl, logger *slog.Logger) *Manager {
	return &Manager{
		unitPath: unitPath,
		unit:     unit,
		stack:    st,
		sys:      sys,
		logger:   logger,
	}
}

// UnitName returns the systemd unit name derived from the descriptor path.
func (m *Manager) UnitName() string {
	return filepath.Base(m.unitPath)
}

// Install writes the descriptor, registers it with the supervisor, and
// enables it for automatic start. No-op when the descriptor already exists.
func (m *Manager) Install(ctx context.Context) (*Result, error) {
	if _, err := os.Stat(m.unitPath); err == nil {
		m.logger.Info("unit already installed", "path", m.unitPath)
		return &Result{Outcome: OutcomeAlreadyExists}, nil
	}

	res := &Result{Outcome: OutcomeInstalled}
	m.crossCheckServices(res)

	content, err := unitfile.Render(m.unit)
	if err != nil {
		return nil, fmt.Errorf("render unit: %w", err)
	}

	if err := os.WriteFile(m.unitPath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write unit %s: %w", m.unitPath, err)
	}

	if err := m.sys.DaemonReload(ctx); err != nil {
		return nil, fmt.Errorf("daemon-reload: %w", err)
	}
	if err := m.sys.Enable(ctx, m.UnitName()); err != nil {
		return nil, fmt.Errorf("enable %s: %w", m.UnitName(), err)
	}

	m.logger.Info("unit installed", "path", m.unitPath, "unit", m.UnitName())
	return res, nil
}

// Remove disables and stops the unit (best-effort), deletes the descriptor,
// and re-registers the supervisor state. No-op when the descriptor is
// absent.
func (m *Manager) Remove(ctx context.Context) (*Result, error) {
	if _, err := os.Stat(m.unitPath); err != nil {
		m.logger.Info("unit not installed", "path", m.unitPath)
		return &Result{Outcome: OutcomeNotInstalled}, nil
	}

	res := &Result{Outcome: OutcomeRemoved}

	if err := m.sys.Disable(ctx, m.UnitName()); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("disable %s: %v", m.UnitName(), err))
		m.logger.Warn("disable failed", "unit", m.UnitName(), "error", err)
	}
	if err := m.sys.Stop(ctx, m.UnitName()); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("stop %s: %v", m.UnitName(), err))
		m.logger.Warn("stop failed", "unit", m.UnitName(), "error", err)
	}

	if err := os.Remove(m.unitPath); err != nil {
		return nil, fmt.Errorf("remove unit %s: %w", m.unitPath, err)
	}

	if err := m.sys.DaemonReload(ctx); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("daemon-reload: %v", err))
		m.logger.Warn("daemon-reload failed", "error", err)
	}

	m.logger.Info("unit removed", "path", m.unitPath)
	return res, nil
}

// crossCheckServices warns when a service named in the descriptor is missing
// from the readable compose file. Best-effort: an unreadable or unparsable
// compose file only produces a warning.
func (m *Manager) crossCheckServices(res *Result) {
	content, err := os.ReadFile(m.stack.ComposePath())
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("compose file not readable: %v", err))
		return
	}

	names, err := stack.ParseServices(content)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("compose file not parsable: %v", err))
		return
	}

	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	var missing []string
	for _, svc := range m.unit.BaseServices {
		if !known[svc] {
			missing = append(missing, svc)
		}
	}
	if len(missing) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("services not in compose file: %s", strings.Join(missing, ", ")))
	}
}
