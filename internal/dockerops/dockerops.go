// Package dockerops manages containers for the docker view via the
// Docker Engine API.
package dockerops

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// ContainerInfo is the summary shown in the container table.
type ContainerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	State  string `json:"state"`
	Status string `json:"status"`
}

// Running reports whether the container is currently running.
func (c ContainerInfo) Running() bool {
	return c.State == "running"
}

// engineAPI is the subset of the Docker client the manager uses,
// extracted so tests can fake the engine.
type engineAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Manager wraps the Docker Engine client with console-shaped operations.
type Manager struct {
	cli engineAPI
}

// NewManager connects to the local Docker daemon using environment
// defaults and API version negotiation.
func NewManager() (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker daemon: %w", err)
	}
	return &Manager{cli: cli}, nil
}

// newManagerWithAPI is the test seam.
func newManagerWithAPI(api engineAPI) *Manager {
	return &Manager{cli: api}
}

// List returns all containers, running or not.
func (m *Manager) List(ctx context.Context) ([]ContainerInfo, error) {
	summaries, err := m.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	infos := make([]ContainerInfo, 0, len(summaries))
	for _, s := range summaries {
		name := s.ID
		if len(s.Names) > 0 {
			name = strings.TrimPrefix(s.Names[0], "/")
		}
		infos = append(infos, ContainerInfo{
			ID:     s.ID,
			Name:   name,
			Image:  s.Image,
			State:  s.State,
			Status: s.Status,
		})
	}
	return infos, nil
}

// Start starts a stopped container.
func (m *Manager) Start(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("container name is required")
	}
	if err := m.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	return nil
}

// Stop stops a running container with the engine's default grace period.
func (m *Manager) Stop(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("container name is required")
	}
	if err := m.cli.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	return nil
}

// Restart restarts a container.
func (m *Manager) Restart(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("container name is required")
	}
	if err := m.cli.ContainerRestart(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("restart %s: %w", name, err)
	}
	return nil
}

// Remove force-removes a container. Destructive; callers gate this behind
// the danger confirmation.
func (m *Manager) Remove(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("container name is required")
	}
	if err := m.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
