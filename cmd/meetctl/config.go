package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/meetops/meetctl/internal/core/stack"
	"github.com/meetops/meetctl/internal/core/unitfile"
	"github.com/meetops/meetctl/internal/orchestrator"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all meetctl configuration. It is built once at startup and
// passed explicitly to every component.
type Config struct {
	Domain     DomainConfig     `mapstructure:"domain"`
	Ports      PortsConfig      `mapstructure:"ports"`
	Nginx      NginxConfig      `mapstructure:"nginx"`
	ACME       ACMEConfig       `mapstructure:"acme"`
	Certs      CertsConfig      `mapstructure:"certs"`
	Stack      StackConfig      `mapstructure:"stack"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Prosody    ProsodyConfig    `mapstructure:"prosody"`
	Log        LogConfig        `mapstructure:"log"`
}

// DomainConfig names the deployment.
type DomainConfig struct {
	Name string `mapstructure:"name"`
}

// PortsConfig holds the two local upstream ports the vhost proxies to.
type PortsConfig struct {
	// WebLocal is the host port published by the meet web container.
	WebLocal int `mapstructure:"web_local"`

	// Colibri is the host port of the videobridge websocket endpoint.
	Colibri int `mapstructure:"colibri"`
}

// NginxConfig holds the proxy site-configuration directories.
type NginxConfig struct {
	SitesAvailable string `mapstructure:"sites_available"`
	SitesEnabled   string `mapstructure:"sites_enabled"`
}

// ACMEConfig holds certificate-authority client settings.
type ACMEConfig struct {
	// Webroot serves http-01 challenge files.
	Webroot string `mapstructure:"webroot"`

	// Email is the registration contact; empty registers anonymously.
	Email string `mapstructure:"email"`
}

// CertsConfig holds the certificate bundle tree.
type CertsConfig struct {
	// Dir is the base directory; the bundle for a domain lives at
	// <Dir>/<domain>/fullchain.pem and privkey.pem.
	Dir string `mapstructure:"dir"`
}

// StackConfig locates the compose deployment.
type StackConfig struct {
	Dir         string `mapstructure:"dir"`
	Project     string `mapstructure:"project"`
	ComposeFile string `mapstructure:"compose_file"`
	OverlayFile string `mapstructure:"overlay_file"`
}

// SupervisorConfig holds the unit descriptor location.
type SupervisorConfig struct {
	UnitPath string `mapstructure:"unit_path"`
}

// ProsodyConfig locates the chat server's account storage.
type ProsodyConfig struct {
	// Container is the prosody container name used for exec-based listing.
	Container string `mapstructure:"container"`

	// DataDir is the host path of prosody's per-account data files.
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Derived Views
// =============================================================================

// OrchestratorConfig converts to the orchestrator's immutable run config.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Domain:            c.Domain.Name,
		WebLocalPort:      c.Ports.WebLocal,
		ColibriPort:       c.Ports.Colibri,
		SitesAvailableDir: c.Nginx.SitesAvailable,
		SitesEnabledDir:   c.Nginx.SitesEnabled,
		CertDir:           c.Certs.Dir,
		Webroot:           c.ACME.Webroot,
		Email:             c.ACME.Email,
		StackProject:      c.Stack.Project,
	}
}

// StackModel converts to the compose stack description.
func (c *Config) StackModel() stack.Stack {
	return stack.Stack{
		Dir:         c.Stack.Dir,
		Project:     c.Stack.Project,
		ComposeFile: c.Stack.ComposeFile,
		OverlayFile: c.Stack.OverlayFile,
	}
}

// Unit converts to the supervisor unit descriptor contents.
func (c *Config) Unit() unitfile.Unit {
	return unitfile.DefaultUnit(c.Stack.Dir, c.Stack.ComposeFile, c.Stack.OverlayFile)
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("domain.name", "meet.example.com")
	v.SetDefault("ports.web_local", 8445)
	v.SetDefault("ports.colibri", 9091)
	v.SetDefault("nginx.sites_available", "/etc/nginx/sites-available")
	v.SetDefault("nginx.sites_enabled", "/etc/nginx/sites-enabled")
	v.SetDefault("acme.webroot", "/var/www/certbot")
	v.SetDefault("acme.email", "")
	v.SetDefault("certs.dir", "/etc/letsencrypt/live")
	v.SetDefault("stack.dir", "/opt/meet")
	v.SetDefault("stack.project", "meet")
	v.SetDefault("stack.compose_file", "docker-compose.yml")
	v.SetDefault("stack.overlay_file", "etherpad.yml")
	v.SetDefault("supervisor.unit_path", "/etc/systemd/system/meet-stack.service")
	v.SetDefault("prosody.container", "meet-prosody-1")
	v.SetDefault("prosody.data_dir", "/opt/meet/prosody/config/data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("MEETCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
