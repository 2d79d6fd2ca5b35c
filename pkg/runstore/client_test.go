package runstore

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/exofit/internal/diagnostics"
	"github.com/dyluth/exofit/internal/model"
	"github.com/dyluth/exofit/internal/sampler"
	"github.com/dyluth/exofit/internal/transform"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testTrace(chains, draws int) *sampler.Trace {
	trace := &sampler.Trace{ParamNames: model.ParamNames}
	for c := 0; c < chains; c++ {
		chain := make([][]float64, draws)
		for i := range chain {
			chain[i] = []float64{1.3 + 0.01*float64(i), 0.43, -2.3 + 0.1*float64(c)}
		}
		trace.Chains = append(trace.Chains, chain)
		trace.Acceptance = append(trace.Acceptance, 0.3)
		trace.StepScale = append(trace.StepScale, 1.7+0.1*float64(c))
	}
	return trace
}

func testRun(createdAtMs int64, trace *sampler.Trace) *Run {
	return &Run{
		ID:              uuid.New().String(),
		CreatedAtMs:     createdAtMs,
		Source:          "simulated",
		NumRows:         120,
		NumObservations: 100,
		ParamNames:      trace.ParamNames,
		NumChains:       trace.NumChains(),
		NumDraws:        trace.NumDraws(),
		Acceptance:      trace.Acceptance,
		StepScale:       trace.StepScale,
		Start:           []float64{1.3, 0.43, -2.3},
		Baseline:        model.LeastSquaresFit{Slope: 1.25, Intercept: 0.44, RSquared: 0.8},
		Summary: []diagnostics.ParamSummary{
			{Name: "A", Mean: 1.3, SD: 0.05, RHat: 1.001, ESSBulk: 900, ESSTail: 800, MCSEMean: 0.002},
			{Name: "B", Mean: 0.43, SD: 0.02, RHat: math.NaN()},
		},
		Problems: []string{},
	}
}

var testObs = []transform.Observation{
	{Name: "p1", LogRadius: 0.1, LogRadiusErr: 0.02, LogMass: 0.6, LogMassErr: 0.05},
	{Name: "p2", LogRadius: 0.4, LogRadiusErr: 0.02, LogMass: 0.9, LogMassErr: 0.1},
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.Equal(t, "test-ns", client.Namespace())
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.ErrorContains(t, err, "namespace cannot be empty")
	})

	t.Run("parses URL", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := NewClientFromURL("redis://"+mr.Addr()+"/0", "ns")
		require.NoError(t, err)
		defer client.Close()
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("rejects bad URL", func(t *testing.T) {
		_, err := NewClientFromURL("http://nope", "ns")
		assert.Error(t, err)
	})
}

func TestSaveAndGetRun(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	trace := testTrace(2, 5)
	run := testRun(time.Now().UnixMilli(), trace)
	require.NoError(t, client.SaveRun(ctx, run, trace, testObs))

	assert.True(t, mr.Exists(RunKey("test-ns", run.ID)))
	assert.True(t, mr.Exists(ChainKey("test-ns", run.ID, 1)))
	assert.True(t, mr.Exists(ObservationsKey("test-ns", run.ID)))

	got, err := client.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.CreatedAtMs, got.CreatedAtMs)
	assert.Equal(t, run.Source, got.Source)
	assert.Equal(t, run.NumObservations, got.NumObservations)
	assert.Equal(t, run.Baseline, got.Baseline)
	assert.Equal(t, run.Start, got.Start)
	require.Len(t, got.Summary, 2)
	assert.Equal(t, run.Summary[0], got.Summary[0])
	assert.True(t, math.IsNaN(got.Summary[1].RHat))
	assert.True(t, got.Converged())

	loaded, err := client.LoadTrace(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, trace.Chains, loaded.Chains)
	assert.Equal(t, trace.ParamNames, loaded.ParamNames)
	assert.Equal(t, trace.Acceptance, loaded.Acceptance)
	assert.Equal(t, trace.StepScale, loaded.StepScale)

	obs, err := client.LoadObservations(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, testObs, obs)

	exists, err := client.RunExists(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaveRunValidation(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	trace := testTrace(2, 5)

	t.Run("bad ID", func(t *testing.T) {
		run := testRun(1, trace)
		run.ID = "not-a-uuid"
		assert.ErrorContains(t, client.SaveRun(ctx, run, trace, nil), "invalid run")
	})

	t.Run("shape mismatch", func(t *testing.T) {
		run := testRun(1, trace)
		run.NumDraws = 6
		assert.ErrorContains(t, client.SaveRun(ctx, run, trace, nil), "does not match")
	})

	t.Run("empty trace", func(t *testing.T) {
		run := testRun(1, trace)
		assert.ErrorIs(t, client.SaveRun(ctx, run, &sampler.Trace{}, nil), sampler.ErrEmptyTrace)
	})
}

func TestGetRun_NotFound(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	id := uuid.New().String()

	_, err := client.GetRun(ctx, id)
	assert.True(t, IsNotFound(err))

	_, err = client.LoadTrace(ctx, id)
	assert.True(t, IsNotFound(err))

	_, err = client.LoadObservations(ctx, id)
	assert.True(t, IsNotFound(err))

	assert.True(t, IsNotFound(client.DeleteRun(ctx, id)))
}

func TestLoadTrace_MissingChain(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	trace := testTrace(2, 3)
	run := testRun(1000, trace)
	require.NoError(t, client.SaveRun(ctx, run, trace, nil))
	mr.Del(ChainKey("test-ns", run.ID, 1))

	_, err := client.LoadTrace(ctx, run.ID)
	assert.ErrorContains(t, err, "chain 1")
}

func TestListRuns(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	trace := testTrace(1, 2)
	var ids []string
	for _, ms := range []int64{3000, 1000, 2000} {
		run := testRun(ms, trace)
		require.NoError(t, client.SaveRun(ctx, run, trace, nil))
		ids = append(ids, run.ID)
	}

	t.Run("all oldest first", func(t *testing.T) {
		runs, err := client.ListRuns(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, []string{ids[1], ids[2], ids[0]}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	})

	t.Run("bounded", func(t *testing.T) {
		runs, err := client.ListRuns(ctx, 1500, 2500)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, ids[2], runs[0].ID)
	})

	t.Run("since only", func(t *testing.T) {
		runs, err := client.ListRuns(ctx, 2000, 0)
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})
}

func TestScanRuns(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	trace := testTrace(1, 2)
	run := testRun(1000, trace)
	require.NoError(t, client.SaveRun(ctx, run, trace, nil))

	matches, err := client.ScanRuns(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, []string{run.ID}, matches)

	matches, err = client.ScanRuns(ctx, "zzzzzzzz")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDeleteRun(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	trace := testTrace(2, 2)
	run := testRun(1000, trace)
	require.NoError(t, client.SaveRun(ctx, run, trace, testObs))
	require.NoError(t, client.DeleteRun(ctx, run.ID))

	assert.False(t, mr.Exists(RunKey("test-ns", run.ID)))
	assert.False(t, mr.Exists(ChainKey("test-ns", run.ID, 0)))
	assert.False(t, mr.Exists(ObservationsKey("test-ns", run.ID)))

	runs, err := client.ListRuns(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNamespaceIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	a, err := NewClient(&redis.Options{Addr: mr.Addr()}, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewClient(&redis.Options{Addr: mr.Addr()}, "b")
	require.NoError(t, err)
	defer b.Close()

	trace := testTrace(1, 2)
	run := testRun(1000, trace)
	require.NoError(t, a.SaveRun(ctx, run, trace, nil))

	_, err = b.GetRun(ctx, run.ID)
	assert.True(t, IsNotFound(err))
	runs, err := b.ListRuns(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSubscribeRunEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeRunEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	trace := testTrace(1, 2)
	run := testRun(1000, trace)
	require.NoError(t, client.SaveRun(ctx, run, trace, nil))
	require.NoError(t, client.DeleteRun(ctx, run.ID))

	for _, want := range []EventType{EventSaved, EventDeleted} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, want, ev.Type)
			assert.Equal(t, run.ID, ev.RunID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s event", want)
		}
	}

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}
