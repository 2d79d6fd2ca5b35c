// Package watch streams run events published by the store.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/exofit/pkg/runstore"
	"go.uber.org/zap"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault writes one human-readable line per event.
	OutputFormatDefault OutputFormat = "default"
	// OutputFormatJSON writes one JSON object per line.
	OutputFormatJSON OutputFormat = "json"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// RunGetter looks up saved runs to describe events.
type RunGetter interface {
	GetRun(ctx context.Context, runID string) (*runstore.Run, error)
}

// Stream writes events until ctx is done or the event channel closes.
// Malformed events reported on errs are logged and skipped.
func Stream(ctx context.Context, runs RunGetter, events <-chan runstore.RunEvent, errs <-chan error,
	format OutputFormat, w io.Writer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				// Closed together with events; stop reading it.
				errs = nil
				continue
			}
			logger.Warn("skipping malformed run event", zap.Error(err))

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			line, err := formatEvent(ctx, runs, ev, format, time.Now())
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
		}
	}
}

func formatEvent(ctx context.Context, runs RunGetter, ev runstore.RunEvent, format OutputFormat, now time.Time) (string, error) {
	if format == OutputFormatJSON {
		data, err := json.Marshal(ev)
		if err != nil {
			return "", fmt.Errorf("failed to marshal event: %w", err)
		}
		return string(data), nil
	}
	return Describe(ctx, runs, ev, now), nil
}

// Describe renders an event as a single line. Saved runs are looked up for
// their size and convergence; a failed lookup falls back to the bare ID.
func Describe(ctx context.Context, runs RunGetter, ev runstore.RunEvent, now time.Time) string {
	stamp := now.Format("15:04:05")
	if ev.Type != runstore.EventSaved || runs == nil {
		return fmt.Sprintf("[%s] %s %s", stamp, ev.Type, ev.RunID)
	}

	run, err := runs.GetRun(ctx, ev.RunID)
	if err != nil {
		return fmt.Sprintf("[%s] saved %s", stamp, ev.RunID)
	}

	status := "converged"
	if !run.Converged() {
		status = fmt.Sprintf("%d warning(s)", len(run.Problems))
	}
	return fmt.Sprintf("[%s] saved %s source=%s observations=%d chains=%dx%d %s",
		stamp, ev.RunID, run.Source, run.NumObservations, run.NumChains, run.NumDraws, status)
}
