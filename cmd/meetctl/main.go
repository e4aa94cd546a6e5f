// Package main provides the meetctl binary, the operator-facing lifecycle
// tool for a single self-hosted meet deployment.
//
// Usage:
//
//	meetctl [-config <path>] <command>
//
// Commands:
//
//	render-config            - Render the nginx vhost (backs up any previous one)
//	activate                 - Link the vhost into sites-enabled
//	obtain-certificate       - Run the certificate preference chain
//	generate-self-signed     - Generate a temporary self-signed bundle
//	reload                   - Validate config, then reload nginx
//	status                   - Inspect the deployment (read-only)
//	install-supervisor-unit  - Install and enable the systemd unit for the stack
//	remove-supervisor-unit   - Disable and delete the systemd unit
//	list-xmpp-users          - List registered chat accounts
//	deploy                   - Full sequence: render, activate, certificate, reload, status
//	help                     - Show this usage
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("meetctl %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitError
	}
	logger := SetupLogger(cfg)

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return ExitUsage
	}

	return dispatch(context.Background(), cfg, logger, args[0])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `usage: meetctl [-config <path>] <command>

Commands:
  render-config            render the nginx vhost (backs up any previous one)
  activate                 link the vhost into sites-enabled
  obtain-certificate       run the certificate preference chain
  generate-self-signed     generate a temporary self-signed bundle
  reload                   validate config, then reload nginx
  status                   inspect the deployment (read-only)
  install-supervisor-unit  install and enable the systemd unit for the stack
  remove-supervisor-unit   disable and delete the systemd unit
  list-xmpp-users          list registered chat accounts
  deploy                   render, activate, certificate, reload, status
  help                     show this usage
`)
}
