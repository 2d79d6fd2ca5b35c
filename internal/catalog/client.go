package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPClient allows injecting fake transports for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Query describes a TAP synchronous query against a catalog table.
type Query struct {
	Endpoint string
	Table    string
	Where    string
	Columns  Columns
}

// ADQL returns the query text sent to the archive.
func (q Query) ADQL() string {
	stmt := fmt.Sprintf("select %s from %s", strings.Join(q.Columns.Select(), ","), q.Table)
	if q.Where != "" {
		stmt += " where " + q.Where
	}
	return stmt
}

// URL returns the full GET URL for the query, requesting CSV output.
func (q Query) URL() (string, error) {
	base, err := url.Parse(q.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid catalog endpoint %q: %w", q.Endpoint, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid catalog endpoint %q: scheme and host are required", q.Endpoint)
	}

	params := base.Query()
	params.Set("query", q.ADQL())
	params.Set("format", "csv")
	base.RawQuery = params.Encode()
	return base.String(), nil
}

// Client downloads catalog tables over HTTP.
type Client struct {
	httpClient HTTPClient
	logger     *zap.Logger
}

// NewClient creates a catalog client. A nil httpClient gets a client with the
// given timeout; a nil logger discards logs.
func NewClient(httpClient HTTPClient, timeout time.Duration, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// maxErrorBody caps how much of a failed response is quoted in the error.
const maxErrorBody = 512

// Fetch issues one GET for the query and parses the CSV response.
// There are no retries.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Row, error) {
	target, err := q.URL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	start := time.Now()
	c.logger.Info("Fetching catalog", zap.String("endpoint", q.Endpoint), zap.String("table", q.Table))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("catalog request returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	rows, err := ParseCSV(resp.Body, q.Columns)
	if err != nil {
		return nil, fmt.Errorf("malformed catalog response: %w", err)
	}

	c.logger.Info("Fetched catalog",
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)))
	return rows, nil
}
