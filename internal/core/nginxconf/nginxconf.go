// Package nginxconf renders the nginx vhost for the meet deployment.
// This is part of the Functional Core - all functions are pure with no I/O.
package nginxconf

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrDomainRequired = errors.New("domain is required")
	ErrDomainInvalid  = errors.New("domain contains invalid characters")
	ErrInvalidPort    = errors.New("port must be between 1 and 65535")
)

// =============================================================================
// Parameters
// =============================================================================

// Params holds the values substituted into the vhost template.
type Params struct {
	// Domain is the public name the vhost answers for.
	Domain string

	// WebLocalPort is the host port the meet web container publishes.
	WebLocalPort int

	// ColibriPort is the host port of the videobridge websocket endpoint.
	ColibriPort int

	// CertDir is the base certificate directory; the bundle lives at
	// <CertDir>/<Domain>/fullchain.pem and privkey.pem.
	CertDir string

	// Webroot is the directory serving ACME http-01 challenges.
	Webroot string
}

var domainRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.\-]*$`)

// Validate checks the parameters before rendering.
func (p Params) Validate() error {
	if p.Domain == "" {
		return ErrDomainRequired
	}
	if !domainRegex.MatchString(p.Domain) {
		return ErrDomainInvalid
	}
	if p.WebLocalPort < 1 || p.WebLocalPort > 65535 {
		return fmt.Errorf("web local port %d: %w", p.WebLocalPort, ErrInvalidPort)
	}
	if p.ColibriPort < 1 || p.ColibriPort > 65535 {
		return fmt.Errorf("colibri port %d: %w", p.ColibriPort, ErrInvalidPort)
	}
	return nil
}

// ChainPath returns the certificate chain file path for the domain.
func (p Params) ChainPath() string {
	return filepath.Join(p.CertDir, p.Domain, "fullchain.pem")
}

// KeyPath returns the private key file path for the domain.
func (p Params) KeyPath() string {
	return filepath.Join(p.CertDir, p.Domain, "privkey.pem")
}

// =============================================================================
// Paths
// =============================================================================

// SitePath returns the canonical artifact path under sites-available.
func SitePath(sitesAvailableDir, domain string) string {
	return filepath.Join(sitesAvailableDir, domain+".conf")
}

// EnabledPath returns the activation symlink path under sites-enabled.
func EnabledPath(sitesEnabledDir, domain string) string {
	return filepath.Join(sitesEnabledDir, domain+".conf")
}

// BackupPath returns the timestamped backup path for an artifact that is
// about to be replaced. Backups accumulate; they are never pruned.
func BackupPath(path string, now time.Time) string {
	return path + ".bak-" + now.Format("20060102150405")
}

// =============================================================================
// Template
// =============================================================================

// vhostTemplate is the fixed vhost shape: an HTTP listener that redirects
// everything to HTTPS except the ACME challenge path, and an HTTPS listener
// proxying the application, the two websocket signalling paths, the BOSH
// long-polling fallback, and the videobridge websocket to the two local
// upstreams.
const vhostTemplate = `server {
    listen 80;
    listen [::]:80;
    server_name {{ .Domain }};

    location ^~ /.well-known/acme-challenge/ {
        default_type "text/plain";
        root {{ .Webroot }};
    }

    location / {
        return 301 https://$host$request_uri;
    }
}

server {
    listen 443 ssl;
    listen [::]:443 ssl;
    http2 on;
    server_name {{ .Domain }};

    ssl_certificate {{ .ChainPath }};
    ssl_certificate_key {{ .KeyPath }};
    ssl_protocols TLSv1.2 TLSv1.3;
    ssl_prefer_server_ciphers on;

    location = /xmpp-websocket {
        proxy_pass http://127.0.0.1:{{ .WebLocalPort }};
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection "upgrade";
        proxy_set_header Host $host;
        proxy_read_timeout 900s;
        tcp_nodelay on;
    }

    location /ws/ {
        proxy_pass http://127.0.0.1:{{ .WebLocalPort }};
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection "upgrade";
        proxy_set_header Host $host;
        proxy_read_timeout 900s;
        tcp_nodelay on;
    }

    location = /http-bind {
        proxy_pass http://127.0.0.1:{{ .WebLocalPort }};
        proxy_set_header Host $host;
        proxy_set_header X-Forwarded-For $remote_addr;
    }

    location /colibri-ws/ {
        proxy_pass http://127.0.0.1:{{ .ColibriPort }}/colibri-ws/;
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection "upgrade";
        tcp_nodelay on;
    }

    location / {
        proxy_pass http://127.0.0.1:{{ .WebLocalPort }};
        proxy_set_header Host $host;
        proxy_set_header X-Forwarded-For $remote_addr;
        proxy_set_header X-Forwarded-Proto https;
    }
}
`

var vhost = template.Must(template.New("vhost").Parse(vhostTemplate))

// Render produces the vhost content for the given parameters.
// Rendering is pure: same params, same output, and no placeholder survives.
func Render(p Params) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	if err := vhost.Execute(&b, p); err != nil {
		return "", fmt.Errorf("render vhost: %w", err)
	}
	return b.String(), nil
}
