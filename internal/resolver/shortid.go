// Package resolver turns user-typed run ID prefixes into full run IDs.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// maxListed caps the matches shown in an ambiguity message.
const maxListed = 10

// RunFinder is the subset of the run store the resolver needs.
type RunFinder interface {
	RunExists(ctx context.Context, runID string) (bool, error)
	ScanRuns(ctx context.Context, prefix string) ([]string, error)
}

// ResolveRunID resolves a short ID prefix to a full run ID.
//
// A full UUID is checked for existence and returned as-is. Anything shorter
// than MinShortIDLength is rejected. Otherwise the prefix must match exactly
// one stored run.
func ResolveRunID(ctx context.Context, store RunFinder, shortID string) (string, error) {
	shortID = strings.ToLower(strings.TrimSpace(shortID))

	if _, err := uuid.Parse(shortID); err == nil && len(shortID) == 36 {
		exists, err := store.RunExists(ctx, shortID)
		if err != nil {
			return "", fmt.Errorf("failed to verify run existence: %w", err)
		}
		if !exists {
			return "", &NotFoundError{ShortID: shortID}
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := store.ScanRuns(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for run: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no runs matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no runs found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple runs matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d runs", e.ShortID, len(e.Matches))
}

// Listing returns the matching IDs one per line, truncated after ten.
func (e *AmbiguousError) Listing() string {
	var b strings.Builder
	for i, id := range e.Matches {
		if i == maxListed {
			fmt.Fprintf(&b, "  ...and %d more\n", len(e.Matches)-maxListed)
			break
		}
		fmt.Fprintf(&b, "  %s\n", id)
	}
	return b.String()
}
