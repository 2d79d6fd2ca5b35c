package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/exofit/internal/catalog"
	"github.com/dyluth/exofit/internal/fit"
	"github.com/dyluth/exofit/internal/printer"
	"github.com/dyluth/exofit/internal/resolver"
	"github.com/dyluth/exofit/pkg/runstore"
)

// sourceArchive labels rows downloaded from the configured catalog.
const sourceArchive = "archive"

// catalogQuery builds the archive query from the loaded configuration.
func catalogQuery() catalog.Query {
	return catalog.Query{
		Endpoint: cfg.Catalog.Endpoint,
		Table:    cfg.Catalog.Table,
		Where:    cfg.Catalog.Where,
		Columns:  fit.ColumnsFromConfig(cfg),
	}
}

// fetchRows downloads the configured catalog table.
func fetchRows(ctx context.Context) ([]catalog.Row, error) {
	timeout, err := time.ParseDuration(cfg.Catalog.Timeout)
	if err != nil {
		return nil, printer.Error(
			"invalid catalog timeout",
			fmt.Sprintf("catalog.timeout %q is not a Go duration: %v", cfg.Catalog.Timeout, err),
			[]string{"Use a value like '60s' or '2m'"},
		)
	}

	rows, err := catalog.NewClient(nil, timeout, logger).Fetch(ctx, catalogQuery())
	if err != nil {
		return nil, printer.ErrorWithContext(
			"catalog download failed",
			err.Error(),
			map[string]string{"Endpoint": cfg.Catalog.Endpoint, "Table": cfg.Catalog.Table},
			[]string{
				"Check network access to the archive",
				"Or fit a local file instead:\n  exofit fit --input planets.csv",
			},
		)
	}
	return rows, nil
}

// readRows parses a CSV file using the configured column names.
func readRows(path string) ([]catalog.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, printer.Error(
			fmt.Sprintf("cannot open %s", path),
			err.Error(),
			[]string{"Download a catalog first:\n  exofit fetch --output planets.csv"},
		)
	}
	defer f.Close()

	rows, err := catalog.ParseCSV(f, fit.ColumnsFromConfig(cfg))
	if err != nil {
		return nil, printer.Error(
			fmt.Sprintf("cannot parse %s", path),
			err.Error(),
			[]string{"Check the header names match catalog.columns in exofit.yml"},
		)
	}
	return rows, nil
}

// loadRows reads path when set, otherwise downloads the archive.
// The returned source labels the rows for saved runs.
func loadRows(ctx context.Context, path string) ([]catalog.Row, string, error) {
	if path != "" {
		rows, err := readRows(path)
		return rows, path, err
	}
	rows, err := fetchRows(ctx)
	return rows, sourceArchive, err
}

// writeRows writes rows as CSV to path.
func writeRows(path string, rows []catalog.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := catalog.WriteCSV(f, rows, fit.ColumnsFromConfig(cfg)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// openStore connects to the configured Redis and verifies it answers.
func openStore(ctx context.Context) (*runstore.Client, error) {
	client, err := runstore.NewClientFromURL(cfg.Store.RedisURL, cfg.Store.Namespace)
	if err != nil {
		return nil, printer.Error(
			"invalid store URL",
			err.Error(),
			[]string{"Set store.redis_url in exofit.yml or EXOFIT_REDIS_URL"},
		)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Store.RedisURL),
			map[string]string{"Namespace": cfg.Store.Namespace},
			[]string{
				"Start a local store:\n  exofit store up",
				"Or point EXOFIT_REDIS_URL at a running Redis",
			},
		)
	}
	return client, nil
}

// resolveRun expands a short ID into a full run ID with user-facing errors.
func resolveRun(ctx context.Context, client *runstore.Client, shortID string) (string, error) {
	fullID, err := resolver.ResolveRunID(ctx, client, shortID)
	if err == nil {
		return fullID, nil
	}

	var notFound *resolver.NotFoundError
	var ambiguous *resolver.AmbiguousError
	switch {
	case errors.As(err, &notFound):
		return "", printer.Error(
			fmt.Sprintf("run with ID '%s' not found", shortID),
			fmt.Sprintf("No saved run in namespace '%s' matches.", client.Namespace()),
			[]string{"List saved runs:\n  exofit runs"},
		)
	case errors.As(err, &ambiguous):
		return "", printer.Error(
			fmt.Sprintf("ambiguous run ID '%s'", shortID),
			fmt.Sprintf("%d runs match:\n%s", len(ambiguous.Matches), ambiguous.Listing()),
			[]string{"Use more characters of the run ID"},
		)
	default:
		return "", fmt.Errorf("failed to resolve run ID: %w", err)
	}
}

// loadRun fetches a run record, translating a vanished key into a user error.
func loadRun(ctx context.Context, client *runstore.Client, runID string) (*runstore.Run, error) {
	run, err := client.GetRun(ctx, runID)
	if runstore.IsNotFound(err) {
		return nil, printer.Error(
			fmt.Sprintf("run with ID '%s' not found", runID),
			"The run was resolved but could not be fetched.",
			[]string{"It may have been deleted concurrently. Try again."},
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}
