package store

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

const (
	// Port range for Redis containers (allows 100 namespaces)
	startPort = 6379
	endPort   = 6478
)

// PortChecker reports whether a host port can be bound.
type PortChecker func(port int) bool

// FindNextAvailablePort returns the first port in 6379-6478 that no exofit
// container has claimed and that the host can bind.
func FindNextAvailablePort(ctx context.Context, api DockerAPI, bindable PortChecker) (int, error) {
	containers, err := api.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", fmt.Sprintf("%s=true", LabelProject)),
			filters.Arg("label", fmt.Sprintf("%s=%s", LabelComponent, ComponentRedis)),
		),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query Docker containers: %w", err)
	}

	usedPorts := make(map[int]bool)
	for _, c := range containers {
		if port, err := strconv.Atoi(c.Labels[LabelRedisPort]); err == nil {
			usedPorts[port] = true
		}
	}

	for port := startPort; port <= endPort; port++ {
		if usedPorts[port] {
			continue
		}
		if bindable(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available Redis ports (range %d-%d exhausted)", startPort, endPort)
}

// IsPortBindable checks if a port can be bound on localhost.
func IsPortBindable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
