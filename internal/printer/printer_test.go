package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (stdout, stderr *bytes.Buffer) {
	t.Helper()
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	restore := SetOutput(stdout, stderr)
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		restore()
		color.NoColor = noColor
	})
	return stdout, stderr
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "This is a test error", nil)
		require.EqualError(t, err, "Test Error")
		assert.Equal(t, "Test Error\n\nThis is a test error\n", stderr.String())
	})

	t.Run("single suggestion", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.EqualError(t, err, "Test Error")
		assert.Contains(t, stderr.String(), "\nTry this fix\n")
		assert.NotContains(t, stderr.String(), "Either")
	})

	t.Run("numbered suggestions", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "Explanation", []string{"First option", "Second option"})
		require.EqualError(t, err, "Test Error")
		assert.Contains(t, stderr.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	_, stderr := capture(t)
	err := ErrorWithContext("Store unreachable", "", map[string]string{
		"Redis":     "redis://localhost:6379/0",
		"Namespace": "default",
	}, nil)
	require.EqualError(t, err, "Store unreachable")
	assert.Equal(t, "Store unreachable\n\n\n  Namespace: default\n  Redis: redis://localhost:6379/0\n", stderr.String())
}

func TestStatusLines(t *testing.T) {
	stdout, _ := capture(t)
	Success("saved %s\n", "run")
	Warning("slow\n")
	Step("sampling\n")
	Info("n=%d\n", 3)
	assert.Equal(t, "✓ saved run\n⚠️  slow\n→ sampling\nn=3\n", stdout.String())
	assert.Equal(t, stdout, Stdout())
}
