package runstore

import "fmt"

// RunKey returns the Redis key for a run hash.
// Pattern: exofit:{namespace}:run:{run_id}
func RunKey(namespace, runID string) string {
	return fmt.Sprintf("exofit:%s:run:%s", namespace, runID)
}

// ChainKey returns the Redis key holding the draws of one chain.
// Pattern: exofit:{namespace}:run:{run_id}:chain:{n}
func ChainKey(namespace, runID string, chain int) string {
	return fmt.Sprintf("exofit:%s:run:%s:chain:%d", namespace, runID, chain)
}

// ObservationsKey returns the Redis key holding the fitted observations.
// Pattern: exofit:{namespace}:run:{run_id}:observations
func ObservationsKey(namespace, runID string) string {
	return fmt.Sprintf("exofit:%s:run:%s:observations", namespace, runID)
}

// RunIndexKey returns the ZSET of all run IDs, scored by creation time.
// Pattern: exofit:{namespace}:runs
func RunIndexKey(namespace string) string {
	return fmt.Sprintf("exofit:%s:runs", namespace)
}

// RunEventsChannel returns the Pub/Sub channel for run events.
// Pattern: exofit:{namespace}:run_events
func RunEventsChannel(namespace string) string {
	return fmt.Sprintf("exofit:%s:run_events", namespace)
}
