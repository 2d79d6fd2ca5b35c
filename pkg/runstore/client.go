package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dyluth/exofit/internal/sampler"
	"github.com/dyluth/exofit/internal/transform"
	"github.com/redis/go-redis/v9"
)

// Client provides namespace-scoped Redis operations for saved runs.
// It is safe for concurrent use.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// NewClient creates a run store client for the given namespace.
// Returns an error if namespace is empty.
func NewClient(redisOpts *redis.Options, namespace string) (*Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &Client{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(url, namespace string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL %q: %w", url, err)
	}
	return NewClient(opts, namespace)
}

// Namespace returns the namespace every key is scoped to.
func (c *Client) Namespace() string {
	return c.namespace
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SaveRun writes the run hash, one key per chain, the observations and the
// index entry in a single MULTI/EXEC, then publishes an EventSaved event.
// The trace shape must match the run's NumChains and NumDraws.
func (c *Client) SaveRun(ctx context.Context, r *Run, trace *sampler.Trace, obs []transform.Observation) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if err := trace.Validate(); err != nil {
		return fmt.Errorf("invalid trace: %w", err)
	}
	if trace.NumChains() != r.NumChains || trace.NumDraws() != r.NumDraws {
		return fmt.Errorf("trace shape %dx%d does not match run %dx%d",
			trace.NumChains(), trace.NumDraws(), r.NumChains, r.NumDraws)
	}

	hash, err := RunToHash(r)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}
	chains := make([][]byte, trace.NumChains())
	for i, draws := range trace.Chains {
		if chains[i], err = json.Marshal(draws); err != nil {
			return fmt.Errorf("failed to marshal chain %d: %w", i, err)
		}
	}
	if obs == nil {
		obs = []transform.Observation{}
	}
	obsJSON, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observations: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, RunKey(c.namespace, r.ID), hash)
		for i, data := range chains {
			pipe.Set(ctx, ChainKey(c.namespace, r.ID, i), data, 0)
		}
		pipe.Set(ctx, ObservationsKey(c.namespace, r.ID), obsJSON, 0)
		pipe.ZAdd(ctx, RunIndexKey(c.namespace), redis.Z{Score: float64(r.CreatedAtMs), Member: r.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write run to Redis: %w", err)
	}

	return c.publish(ctx, RunEvent{Type: EventSaved, RunID: r.ID})
}

// GetRun retrieves a run by ID.
// Returns (nil, redis.Nil) if the run doesn't exist.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	hashData, err := c.rdb.HGetAll(ctx, RunKey(c.namespace, runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	r, err := HashToRun(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return r, nil
}

// RunExists checks if a run exists without fetching it.
func (c *Client) RunExists(ctx context.Context, runID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, RunKey(c.namespace, runID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check run existence: %w", err)
	}
	return exists > 0, nil
}

// LoadTrace reassembles the posterior draws of a run.
// Returns (nil, redis.Nil) if the run doesn't exist.
func (c *Client) LoadTrace(ctx context.Context, runID string) (*sampler.Trace, error) {
	r, err := c.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, r.NumChains)
	for i := range keys {
		keys[i] = ChainKey(c.namespace, runID, i)
	}
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chains from Redis: %w", err)
	}

	trace := &sampler.Trace{
		ParamNames: r.ParamNames,
		Chains:     make([][][]float64, r.NumChains),
		Acceptance: r.Acceptance,
		StepScale:  r.StepScale,
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("chain %d of run %s is missing", i, runID)
		}
		if err := json.Unmarshal([]byte(s), &trace.Chains[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chain %d: %w", i, err)
		}
	}
	if err := trace.Validate(); err != nil {
		return nil, fmt.Errorf("stored trace of run %s is corrupt: %w", runID, err)
	}
	return trace, nil
}

// LoadObservations returns the observations a run was fitted to.
// Returns (nil, redis.Nil) if none were stored.
func (c *Client) LoadObservations(ctx context.Context, runID string) ([]transform.Observation, error) {
	data, err := c.rdb.Get(ctx, ObservationsKey(c.namespace, runID)).Bytes()
	if err != nil {
		if IsNotFound(err) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read observations from Redis: %w", err)
	}
	var obs []transform.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal observations: %w", err)
	}
	return obs, nil
}

// ListRuns returns the runs created within [sinceMs, untilMs], oldest first.
// A zero bound is open.
func (c *Client) ListRuns(ctx context.Context, sinceMs, untilMs int64) ([]*Run, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if sinceMs > 0 {
		rng.Min = strconv.FormatInt(sinceMs, 10)
	}
	if untilMs > 0 {
		rng.Max = strconv.FormatInt(untilMs, 10)
	}

	ids, err := c.rdb.ZRangeByScore(ctx, RunIndexKey(c.namespace), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run index: %w", err)
	}

	runs := make([]*Run, 0, len(ids))
	for _, id := range ids {
		r, err := c.GetRun(ctx, id)
		if err != nil {
			// The index can briefly outlive a run deleted by another client.
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// ScanRuns returns the IDs of every run whose ID starts with prefix, sorted.
func (c *Client) ScanRuns(ctx context.Context, prefix string) ([]string, error) {
	ids, err := c.rdb.ZRange(ctx, RunIndexKey(c.namespace), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run index: %w", err)
	}

	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// DeleteRun removes a run, its draws, observations and index entry, then
// publishes an EventDeleted event.
// Returns redis.Nil if the run doesn't exist.
func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	r, err := c.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	keys := []string{RunKey(c.namespace, runID), ObservationsKey(c.namespace, runID)}
	for i := 0; i < r.NumChains; i++ {
		keys = append(keys, ChainKey(c.namespace, runID, i))
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, RunIndexKey(c.namespace), runID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return c.publish(ctx, RunEvent{Type: EventDeleted, RunID: runID})
}

func (c *Client) publish(ctx context.Context, ev RunEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}
	if err := c.rdb.Publish(ctx, RunEventsChannel(c.namespace), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}
	return nil
}

// Subscription is an active Pub/Sub subscription to run events.
// Caller must call Close() when done.
type Subscription struct {
	events <-chan RunEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of run events. It is closed when the
// subscription is closed or its context is cancelled.
func (s *Subscription) Events() <-chan RunEvent {
	return s.events
}

// Errors returns the channel of non-fatal decode errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeRunEvents subscribes to run events for this namespace. The
// subscription is confirmed before returning, so events published afterwards
// are delivered. Delivery is at-most-once.
func (c *Client) SubscribeRunEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, RunEventsChannel(c.namespace))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to run events: %w", err)
	}

	eventsChan := make(chan RunEvent, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev RunEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal run event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{events: eventsChan, errors: errorsChan, cancel: cancelFunc}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
