package runstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPatterns(t *testing.T) {
	assert.Equal(t, "exofit:default:run:abc", RunKey("default", "abc"))
	assert.Equal(t, "exofit:default:run:abc:chain:2", ChainKey("default", "abc", 2))
	assert.Equal(t, "exofit:default:run:abc:observations", ObservationsKey("default", "abc"))
	assert.Equal(t, "exofit:default:runs", RunIndexKey("default"))
	assert.Equal(t, "exofit:default:run_events", RunEventsChannel("default"))
}
