// Package store manages the local Redis container that holds saved runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no store container exists for the namespace.
var ErrNotFound = errors.New("no store container found")

// stopTimeoutSeconds is the graceful stop timeout.
const stopTimeoutSeconds = 10

// DockerAPI is the subset of the Docker client the store needs.
type DockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error)
}

var _ DockerAPI = (*client.Client)(nil)

// NewDockerClient creates a Docker client and validates the daemon is accessible.
func NewDockerClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

Ensure Docker is running:
  • macOS: Docker Desktop
  • Linux: sudo systemctl start docker`, err)
	}

	return cli, nil
}

// Info describes a store container.
type Info struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Image     string `json:"image"`
	Port      int    `json:"port"`
	State     string `json:"state"`
	URL       string `json:"url"`
}

// Running reports whether the container is up.
func (i *Info) Running() bool {
	return i.State == "running"
}

// Manager starts, stops and inspects store containers.
type Manager struct {
	api      DockerAPI
	logger   *zap.Logger
	bindable PortChecker
}

// NewManager creates a manager. A nil logger discards logs.
func NewManager(api DockerAPI, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{api: api, logger: logger, bindable: IsPortBindable}
}

// Find returns the store container of the namespace, or ErrNotFound.
func (m *Manager) Find(ctx context.Context, namespace string) (*Info, error) {
	containers, err := m.api.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", fmt.Sprintf("%s=%s", LabelNamespace, namespace)),
			filters.Arg("label", fmt.Sprintf("%s=%s", LabelComponent, ComponentRedis)),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return nil, ErrNotFound
	}

	c := containers[0]
	info := &Info{
		ID:        c.ID,
		Name:      RedisContainerName(namespace),
		Namespace: namespace,
		Image:     c.Image,
		State:     c.State,
	}
	if port, err := strconv.Atoi(c.Labels[LabelRedisPort]); err == nil {
		info.Port = port
		info.URL = RedisURL(port)
	}
	return info, nil
}

// Up ensures a running Redis container for the namespace and returns it.
// An existing stopped container is restarted rather than recreated.
func (m *Manager) Up(ctx context.Context, namespace, image string) (*Info, error) {
	if err := ValidateName(namespace); err != nil {
		return nil, err
	}

	existing, err := m.Find(ctx, namespace)
	switch {
	case err == nil:
		if existing.Running() {
			m.logger.Debug("store already running", zap.String("container", existing.Name))
			return existing, nil
		}
		if err := m.api.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
			return nil, fmt.Errorf("failed to start existing container %s: %w", existing.Name, err)
		}
		existing.State = "running"
		m.logger.Info("restarted store container", zap.String("container", existing.Name))
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	port, err := FindNextAvailablePort(ctx, m.api, m.bindable)
	if err != nil {
		return nil, err
	}

	if err := m.pull(ctx, image); err != nil {
		return nil, err
	}

	name := RedisContainerName(namespace)
	resp, err := m.api.ContainerCreate(ctx, &container.Config{
		Image:  image,
		Labels: BuildLabels(namespace, ComponentRedis, port),
		ExposedPorts: nat.PortSet{
			"6379/tcp": struct{}{},
		},
	}, &container.HostConfig{
		PortBindings: nat.PortMap{
			"6379/tcp": []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: strconv.Itoa(port),
				},
			},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis container: %w", err)
	}

	if err := m.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Leave nothing half-created behind.
		_ = m.api.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	m.logger.Info("started store container", zap.String("container", name), zap.Int("port", port))
	return &Info{
		ID:        resp.ID,
		Name:      name,
		Namespace: namespace,
		Image:     image,
		Port:      port,
		State:     "running",
		URL:       RedisURL(port),
	}, nil
}

// Down stops and removes the namespace's store container and its volumes.
// Runs saved in it are lost.
func (m *Manager) Down(ctx context.Context, namespace string) (*Info, error) {
	info, err := m.Find(ctx, namespace)
	if err != nil {
		return nil, err
	}

	timeout := stopTimeoutSeconds
	if err := m.api.ContainerStop(ctx, info.ID, container.StopOptions{Timeout: &timeout}); err != nil {
		// Container might already be stopped
		m.logger.Warn("failed to stop store container", zap.String("container", info.Name), zap.Error(err))
	}
	if err := m.api.ContainerRemove(ctx, info.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		return nil, fmt.Errorf("failed to remove %s: %w", info.Name, err)
	}

	info.State = "removed"
	m.logger.Info("removed store container", zap.String("container", info.Name))
	return info, nil
}

func (m *Manager) pull(ctx context.Context, image string) error {
	m.logger.Debug("pulling image", zap.String("image", image))
	rc, err := m.api.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}
	defer rc.Close()
	// The pull completes only once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}
	return nil
}

// RedisHost returns "host.docker.internal" when running inside a container
// so published host ports stay reachable, and "localhost" otherwise.
func RedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// RedisURL constructs the Redis URL for a published port.
func RedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d/0", RedisHost(), port)
}
