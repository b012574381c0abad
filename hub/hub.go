// Package hub downloads datasets from the Hugging Face datasets-server
// API, so a run can translate a hub dataset (e.g. OpenAssistant/oasst1)
// without a local copy. Each split becomes one fold.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/minios-linux/transkit/dataset"
)

// DefaultBaseURL is the public datasets-server endpoint.
const DefaultBaseURL = "https://datasets-server.huggingface.co"

// pageSize is the row-page length; the API caps requests at 100 rows.
const pageSize = 100

// Client fetches dataset rows from a datasets-server instance.
type Client struct {
	// BaseURL overrides the API endpoint (tests, mirrors). Empty means
	// DefaultBaseURL.
	BaseURL string
	// Token is an optional hub access token for gated datasets.
	Token string
	// HTTPClient overrides the HTTP client. Nil means a 60s-timeout default.
	HTTPClient *http.Client
	// MaxRetries is the retry budget per request (default 3).
	MaxRetries int
	// OnLog emits progress messages while paging through rows.
	OnLog func(format string, args ...any)
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (c *Client) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}

func (c *Client) log(format string, args ...any) {
	if c.OnLog != nil {
		c.OnLog(format, args...)
	}
}

// ---------------------------------------------------------------------------
// API schemas
// ---------------------------------------------------------------------------

type splitsResponse struct {
	Splits []struct {
		Dataset string `json:"dataset"`
		Config  string `json:"config"`
		Split   string `json:"split"`
	} `json:"splits"`
}

type rowsResponse struct {
	Rows []struct {
		RowIdx int            `json:"row_idx"`
		Row    dataset.Record `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

// ---------------------------------------------------------------------------
// Public API
// ---------------------------------------------------------------------------

// Splits lists the (config, split) pairs of a hub dataset. Only the
// default config's splits are returned when several configs exist.
func (c *Client) Splits(ctx context.Context, datasetID string) ([]string, string, error) {
	q := url.Values{"dataset": {datasetID}}
	body, err := c.get(ctx, "/splits", q)
	if err != nil {
		return nil, "", fmt.Errorf("listing splits of %s: %w", datasetID, err)
	}

	var sr splitsResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, "", fmt.Errorf("parsing splits response: %w", err)
	}
	if len(sr.Splits) == 0 {
		return nil, "", fmt.Errorf("dataset %s has no splits", datasetID)
	}

	config := sr.Splits[0].Config
	var splits []string
	for _, s := range sr.Splits {
		if s.Config == config {
			splits = append(splits, s.Split)
		}
	}
	return splits, config, nil
}

// Load downloads every split of a hub dataset as a fold, paging through
// the rows API.
func (c *Client) Load(ctx context.Context, datasetID string) ([]dataset.Fold, error) {
	splits, config, err := c.Splits(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	var folds []dataset.Fold
	for _, split := range splits {
		records, err := c.loadSplit(ctx, datasetID, config, split)
		if err != nil {
			return nil, fmt.Errorf("downloading %s split %s: %w", datasetID, split, err)
		}
		folds = append(folds, dataset.Fold{Name: split, Records: records})
	}
	return folds, nil
}

func (c *Client) loadSplit(ctx context.Context, datasetID, config, split string) ([]dataset.Record, error) {
	var records []dataset.Record
	offset := 0

	for {
		q := url.Values{
			"dataset": {datasetID},
			"config":  {config},
			"split":   {split},
			"offset":  {fmt.Sprint(offset)},
			"length":  {fmt.Sprint(pageSize)},
		}
		body, err := c.get(ctx, "/rows", q)
		if err != nil {
			return nil, err
		}

		var rr rowsResponse
		if err := json.Unmarshal(body, &rr); err != nil {
			return nil, fmt.Errorf("parsing rows response: %w", err)
		}
		for _, row := range rr.Rows {
			records = append(records, row.Row)
		}

		offset += len(rr.Rows)
		if len(rr.Rows) == 0 || offset >= rr.NumRowsTotal {
			break
		}
		if offset%1000 == 0 {
			c.log("Downloaded %d/%d rows of %s/%s", offset, rr.NumRowsTotal, datasetID, split)
		}
	}
	return records, nil
}

// get performs a GET with retry on 429/5xx/transport errors.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	endpoint := c.baseURL() + path + "?" + q.Encode()
	client := c.httpClient()
	maxRetries := c.maxRetries()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}

		resp, err := client.Do(req)
		if err != nil {
			if attempt < maxRetries {
				if err := sleep(ctx, backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("datasets-server request failed: %w", err)
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}
		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < maxRetries {
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		return nil, fmt.Errorf("datasets-server status %d: %s", resp.StatusCode, body)
	}
	return nil, fmt.Errorf("exhausted all %d retries", maxRetries)
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
