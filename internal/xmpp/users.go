// Package xmpp lists registered chat accounts from the prosody container and
// from the per-account data files on the host, unioned. Read-only and
// best-effort throughout: a failing source becomes a warning, never an
// error.
package xmpp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ContainerExecer runs a command inside a named container and returns its
// stdout.
type ContainerExecer interface {
	Exec(ctx context.Context, container string, cmd []string) (string, error)
}

// userRegex matches a bare JID. prosodyctl mixes warnings and notices into
// its output; anything that is not user@domain shaped is dropped.
var userRegex = regexp.MustCompile(`^[^@\s|]+@[^@\s|]+$`)

// Lister reads registered accounts.
type Lister struct {
	execer    ContainerExecer
	container string
	dataDir   string
	logger    *slog.Logger
}

// NewLister creates a lister. execer may be nil; the container source is
// then skipped with a warning.
func NewLister(execer ContainerExecer, container, dataDir string, logger *slog.Logger) *Lister {
	return &Lister{
		execer:    execer,
		container: container,
		dataDir:   dataDir,
		logger:    logger,
	}
}

// ListUsers returns the sorted union of both sources plus any warnings
// recorded along the way.
func (l *Lister) ListUsers(ctx context.Context) (users []string, warnings []string) {
	seen := make(map[string]bool)

	if l.execer == nil {
		warnings = append(warnings, "container runtime unavailable")
	} else {
		fromContainer, err := l.listFromContainer(ctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("container listing: %v", err))
			l.logger.Warn("container user listing failed", "container", l.container, "error", err)
		}
		for _, u := range fromContainer {
			seen[u] = true
		}
	}

	fromFiles, err := l.listFromDataDir()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("data dir scan: %v", err))
		l.logger.Warn("account file scan failed", "dir", l.dataDir, "error", err)
	}
	for _, u := range fromFiles {
		seen[u] = true
	}

	users = make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, warnings
}

func (l *Lister) listFromContainer(ctx context.Context) ([]string, error) {
	out, err := l.execer.Exec(ctx, l.container, []string{
		"prosodyctl", "--config", "/config/prosody.cfg.lua", "mod_listusers",
	})
	if err != nil {
		return nil, err
	}

	var users []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if userRegex.MatchString(line) {
			users = append(users, line)
		}
	}
	return users, nil
}

// listFromDataDir derives accounts from prosody's storage layout:
// <dataDir>/<host>/accounts/<user>.dat. Host directory names carry
// prosody's percent-encoding for special characters.
func (l *Lister) listFromDataDir() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.dataDir, "*", "accounts", "*.dat"))
	if err != nil {
		return nil, err
	}
	if matches == nil {
		if _, err := os.Stat(l.dataDir); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var users []string
	for _, path := range matches {
		user := strings.TrimSuffix(filepath.Base(path), ".dat")
		host := filepath.Base(filepath.Dir(filepath.Dir(path)))
		users = append(users, decodeNode(user)+"@"+decodeNode(host))
	}
	return users, nil
}

var encodedByte = regexp.MustCompile(`%([0-9a-fA-F]{2})`)

// decodeNode reverses prosody's filename encoding (%2e for '.', etc).
func decodeNode(s string) string {
	return encodedByte.ReplaceAllStringFunc(s, func(m string) string {
		b, err := strconv.ParseUint(m[1:], 16, 8)
		if err != nil {
			return m
		}
		return string(rune(b))
	})
}
