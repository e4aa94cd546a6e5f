// Package docker adapts the Docker SDK to the read-only container
// capabilities the orchestrator and the XMPP lister need: listing the stack's
// containers and running a command inside one of them.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/meetops/meetctl/internal/orchestrator"
)

// Client wraps the Docker SDK client.
type Client struct {
	cli *client.Client
}

// New connects to the local Docker daemon using the standard environment
// configuration.
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

// ListStack returns containers whose names start with the compose project
// prefix, running or not.
func (c *Client) ListStack(ctx context.Context, project string) ([]orchestrator.ContainerInfo, error) {
	f := filters.NewArgs()
	f.Add("name", project)

	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	var result []orchestrator.ContainerInfo
	for _, ctr := range containers {
		name := ""
		if len(ctr.Names) > 0 {
			name = strings.TrimPrefix(ctr.Names[0], "/")
		}
		// The name filter is a substring match; keep only real prefix
		// matches for the project.
		if !strings.HasPrefix(name, project+"-") && !strings.HasPrefix(name, project+"_") {
			continue
		}

		var ports []string
		for _, p := range ctr.Ports {
			ports = append(ports, formatPort(p.IP, p.PrivatePort, p.PublicPort, p.Type))
		}

		result = append(result, orchestrator.ContainerInfo{
			Name:   name,
			Image:  ctr.Image,
			State:  ctr.State,
			Status: ctr.Status,
			Ports:  ports,
		})
	}
	return result, nil
}

// Exec runs a command in the named container and returns its stdout. A
// non-zero exit status is an error carrying the stderr tail.
func (c *Client) Exec(ctx context.Context, containerName string, cmd []string) (string, error) {
	created, err := c.cli.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("create exec in %s: %w", containerName, err)
	}

	attach, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", fmt.Errorf("attach exec in %s: %w", containerName, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return "", fmt.Errorf("read exec output from %s: %w", containerName, err)
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return "", fmt.Errorf("inspect exec in %s: %w", containerName, err)
	}
	if inspect.ExitCode != 0 {
		return "", fmt.Errorf("%s exited %d: %s", strings.Join(cmd, " "), inspect.ExitCode, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

func formatPort(ip string, private, public uint16, proto string) string {
	port := nat.Port(fmt.Sprintf("%d/%s", private, proto))
	if public == 0 {
		return string(port)
	}
	if ip == "" {
		ip = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d->%s", ip, public, port)
}
