// Package certbot adapts the certbot binary to the orchestrator's AcmeClient
// capability.
package certbot

import (
	"context"

	"github.com/meetops/meetctl/internal/shell/runner"
)

// Client invokes certbot in non-interactive, webroot-validated mode.
type Client struct {
	runner runner.Runner
}

// New creates a Client on the given runner.
func New(r runner.Runner) *Client {
	return &Client{runner: r}
}

// Installed reports whether the certbot binary is on PATH.
func (c *Client) Installed() bool {
	_, err := c.runner.LookPath("certbot")
	return err == nil
}

// Obtain requests a certificate for the domain via the http-01 webroot
// challenge. Without an email the registration is explicitly anonymous;
// certbot refuses a bare non-interactive run otherwise.
func (c *Client) Obtain(ctx context.Context, domain, webroot, email string) error {
	args := []string{
		"certonly",
		"--non-interactive",
		"--agree-tos",
		"--webroot",
		"-w", webroot,
		"-d", domain,
	}
	if email != "" {
		args = append(args, "--email", email)
	} else {
		args = append(args, "--register-unsafely-without-email")
	}
	return c.runner.Run(ctx, "certbot", args...)
}
