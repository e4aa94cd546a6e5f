// Package unitfile renders the systemd unit descriptor that drives the
// compose stack. Pure rendering only; installation lives in the supervisor
// package.
package unitfile

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// StartTimeoutSec leaves room for image pulls and container bring-up on the
// first start.
const StartTimeoutSec = 600

var (
	ErrNoBaseServices = errors.New("at least one base service is required")
	ErrNoStackDir     = errors.New("stack directory is required")
	ErrNoComposeFile  = errors.New("compose file is required")
)

// Unit describes the descriptor contents.
type Unit struct {
	Description    string
	StackDir       string
	ComposeFile    string
	OverlayFile    string
	BaseServices   []string
	OverlayService string
	TimeoutSec     int
}

// DefaultUnit returns the descriptor for the meet stack: the four base
// services come up first, then the overlay service that depends on them.
func DefaultUnit(stackDir, composeFile, overlayFile string) Unit {
	return Unit{
		Description:    "Meet video conferencing stack",
		StackDir:       stackDir,
		ComposeFile:    composeFile,
		OverlayFile:    overlayFile,
		BaseServices:   []string{"web", "prosody", "jicofo", "jvb"},
		OverlayService: "etherpad",
		TimeoutSec:     StartTimeoutSec,
	}
}

const unitTemplate = `[Unit]
Description={{ .Description }}
Requires=docker.service
After=docker.service network-online.target

[Service]
Type=oneshot
RemainAfterExit=yes
TimeoutStartSec={{ .TimeoutSec }}
WorkingDirectory={{ .StackDir }}
ExecStart=/usr/bin/docker compose -f {{ .ComposeFile }} up -d {{ join .BaseServices " " }}
ExecStartPost=/usr/bin/docker compose -f {{ .ComposeFile }} -f {{ .OverlayFile }} up -d {{ .OverlayService }}
ExecStop=/usr/bin/docker compose -f {{ .ComposeFile }} -f {{ .OverlayFile }} down

[Install]
WantedBy=multi-user.target
`

var unitTmpl = template.Must(template.New("unit").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(unitTemplate))

// Render produces the descriptor text.
func Render(u Unit) (string, error) {
	if u.StackDir == "" {
		return "", ErrNoStackDir
	}
	if u.ComposeFile == "" {
		return "", ErrNoComposeFile
	}
	if len(u.BaseServices) == 0 {
		return "", ErrNoBaseServices
	}
	if u.TimeoutSec <= 0 {
		u.TimeoutSec = StartTimeoutSec
	}

	var b strings.Builder
	if err := unitTmpl.Execute(&b, u); err != nil {
		return "", fmt.Errorf("render unit: %w", err)
	}
	return b.String(), nil
}
