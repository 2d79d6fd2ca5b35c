package runstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHashRoundTrip(t *testing.T) {
	trace := testTrace(2, 3)
	run := testRun(1700000000000, trace)
	run.Problems = []string{"B: r_hat 1.050 > 1.01"}
	run.Config = "version: \"1.0\"\n"

	hash, err := RunToHash(run)
	require.NoError(t, err)

	// HSET stores everything as strings.
	strHash := make(map[string]string, len(hash))
	for k, v := range hash {
		strHash[k] = fmt.Sprint(v)
	}

	got, err := HashToRun(strHash)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.CreatedAtMs, got.CreatedAtMs)
	assert.Equal(t, run.NumChains, got.NumChains)
	assert.Equal(t, run.Problems, got.Problems)
	assert.Equal(t, run.Config, got.Config)
	assert.Equal(t, run.Acceptance, got.Acceptance)
	assert.Equal(t, run.StepScale, got.StepScale)
	assert.Len(t, got.StepScale, 2)
	assert.False(t, got.Converged())
}

func TestHashToRun_Invalid(t *testing.T) {
	t.Run("bad integer", func(t *testing.T) {
		_, err := HashToRun(map[string]string{"num_rows": "x"})
		assert.ErrorContains(t, err, "invalid num_")
	})

	t.Run("bad JSON", func(t *testing.T) {
		_, err := HashToRun(map[string]string{
			"num_rows": "1", "num_observations": "1", "num_chains": "1", "num_draws": "1",
			"created_at_ms": "1", "summary": "{",
		})
		assert.ErrorContains(t, err, "failed to unmarshal summary")
	})

	t.Run("nil problems become empty", func(t *testing.T) {
		got, err := HashToRun(map[string]string{
			"num_rows": "1", "num_observations": "1", "num_chains": "1", "num_draws": "1",
			"created_at_ms": "1",
		})
		require.NoError(t, err)
		assert.NotNil(t, got.Problems)
	})
}
