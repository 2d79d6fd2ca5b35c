package store

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeDocker keeps containers in memory and applies label filters.
type fakeDocker struct {
	containers []types.Container
	pulled     []string
	started    []string
	stopped    []string
	removed    []string
	startErr   error
	created    *container.Config
	hostConfig *container.HostConfig
}

func (f *fakeDocker) ContainerList(_ context.Context, opts container.ListOptions) ([]types.Container, error) {
	var out []types.Container
	for _, c := range f.containers {
		match := true
		for _, label := range opts.Filters.Get("label") {
			k, v, _ := strings.Cut(label, "=")
			if c.Labels[k] != v {
				match = false
			}
		}
		if match {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, hc *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.created, f.hostConfig = cfg, hc
	id := "id-" + name
	f.containers = append(f.containers, types.Container{ID: id, Names: []string{"/" + name}, Image: cfg.Image, Labels: cfg.Labels, State: "created"})
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeDocker) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeDocker) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDocker) ImagePull(_ context.Context, ref string, _ types.ImagePullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, ref)
	return io.NopCloser(strings.NewReader(`{"status":"done"}`)), nil
}

func newTestManager(t *testing.T, api DockerAPI, bindable PortChecker) *Manager {
	m := NewManager(api, zaptest.NewLogger(t))
	m.bindable = bindable
	return m
}

func allBindable(int) bool { return true }

func TestUp_CreatesContainer(t *testing.T) {
	api := &fakeDocker{}
	m := newTestManager(t, api, allBindable)

	info, err := m.Up(context.Background(), "default", "redis:7-alpine")
	require.NoError(t, err)

	assert.Equal(t, "exofit-redis-default", info.Name)
	assert.Equal(t, 6379, info.Port)
	assert.True(t, info.Running())
	assert.True(t, strings.HasSuffix(info.URL, ":6379/0"))
	assert.Equal(t, []string{"redis:7-alpine"}, api.pulled)
	assert.Equal(t, []string{"id-exofit-redis-default"}, api.started)

	assert.Equal(t, "true", api.created.Labels[LabelProject])
	assert.Equal(t, "default", api.created.Labels[LabelNamespace])
	assert.Equal(t, "6379", api.created.Labels[LabelRedisPort])
	bindings := api.hostConfig.PortBindings["6379/tcp"]
	require.Len(t, bindings, 1)
	assert.Equal(t, "127.0.0.1", bindings[0].HostIP)
	assert.Equal(t, "6379", bindings[0].HostPort)
}

func TestUp_SkipsUsedAndUnbindablePorts(t *testing.T) {
	api := &fakeDocker{containers: []types.Container{
		{ID: "other", Labels: BuildLabels("other", ComponentRedis, 6379), State: "running"},
	}}
	m := newTestManager(t, api, func(port int) bool { return port != 6380 })

	info, err := m.Up(context.Background(), "second", "redis:7-alpine")
	require.NoError(t, err)
	assert.Equal(t, 6381, info.Port)
}

func TestUp_ReusesExisting(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		api := &fakeDocker{containers: []types.Container{
			{ID: "c1", Labels: BuildLabels("default", ComponentRedis, 6390), State: "running"},
		}}
		info, err := newTestManager(t, api, allBindable).Up(context.Background(), "default", "redis:7-alpine")
		require.NoError(t, err)
		assert.Equal(t, 6390, info.Port)
		assert.Empty(t, api.pulled)
		assert.Empty(t, api.started)
	})

	t.Run("stopped", func(t *testing.T) {
		api := &fakeDocker{containers: []types.Container{
			{ID: "c1", Labels: BuildLabels("default", ComponentRedis, 6390), State: "exited"},
		}}
		info, err := newTestManager(t, api, allBindable).Up(context.Background(), "default", "redis:7-alpine")
		require.NoError(t, err)
		assert.True(t, info.Running())
		assert.Equal(t, []string{"c1"}, api.started)
		assert.Empty(t, api.pulled)
	})
}

func TestUp_Errors(t *testing.T) {
	t.Run("invalid namespace", func(t *testing.T) {
		_, err := newTestManager(t, &fakeDocker{}, allBindable).Up(context.Background(), "Bad_Name", "redis")
		assert.ErrorContains(t, err, "invalid namespace")
	})

	t.Run("ports exhausted", func(t *testing.T) {
		_, err := newTestManager(t, &fakeDocker{}, func(int) bool { return false }).Up(context.Background(), "default", "redis")
		assert.ErrorContains(t, err, "exhausted")
	})

	t.Run("start failure removes container", func(t *testing.T) {
		api := &fakeDocker{startErr: errors.New("port in use")}
		_, err := newTestManager(t, api, allBindable).Up(context.Background(), "default", "redis")
		assert.ErrorContains(t, err, "port in use")
		assert.Equal(t, []string{"id-exofit-redis-default"}, api.removed)
	})
}

func TestDown(t *testing.T) {
	t.Run("removes", func(t *testing.T) {
		api := &fakeDocker{containers: []types.Container{
			{ID: "c1", Labels: BuildLabels("default", ComponentRedis, 6379), State: "running"},
		}}
		info, err := newTestManager(t, api, allBindable).Down(context.Background(), "default")
		require.NoError(t, err)
		assert.Equal(t, "removed", info.State)
		assert.Equal(t, []string{"c1"}, api.stopped)
		assert.Equal(t, []string{"c1"}, api.removed)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := newTestManager(t, &fakeDocker{}, allBindable).Down(context.Background(), "default")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFind_IgnoresOtherNamespaces(t *testing.T) {
	api := &fakeDocker{containers: []types.Container{
		{ID: "c1", Labels: BuildLabels("other", ComponentRedis, 6379), State: "running"},
	}}
	_, err := newTestManager(t, api, allBindable).Find(context.Background(), "default")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"default", "a", "proj-2"} {
		assert.NoError(t, ValidateName(ok), ok)
	}
	for _, bad := range []string{"", "-x", "x-", "UPPER", "under_score", strings.Repeat("a", MaxNameLength+1)} {
		assert.Error(t, ValidateName(bad), bad)
	}
}
