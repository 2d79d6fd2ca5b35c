//go:build integration

package runstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func TestRunStore_RealRedis(t *testing.T) {
	url := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewClientFromURL(url, "integration")
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Ping(ctx))

	sub, err := client.SubscribeRunEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	trace := testTrace(4, 200)
	run := testRun(time.Now().UnixMilli(), trace)
	require.NoError(t, client.SaveRun(ctx, run, trace, testObs))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventSaved, ev.Type)
		assert.Equal(t, run.ID, ev.RunID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for save event")
	}

	loaded, err := client.LoadTrace(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, trace.Chains, loaded.Chains)

	matches, err := client.ScanRuns(ctx, run.ID[:6])
	require.NoError(t, err)
	assert.Contains(t, matches, run.ID)

	require.NoError(t, client.DeleteRun(ctx, run.ID))
	_, err = client.GetRun(ctx, run.ID)
	assert.True(t, IsNotFound(err))
}
