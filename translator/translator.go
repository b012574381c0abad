// Package translator implements batch text translation against an HTTP
// inference server, with one backend per supported model family:
// OPUS (Helsinki-NLP per-pair models), MADLAD (Google's multilingual
// models), and M2M (Facebook's many-to-many models).
//
// All backends speak the same wire protocol (POST /v1/translate with a
// JSON body naming the model and the texts); they differ in how the
// model is selected, how the request is shaped, and how an unsupported
// language pair is recognized.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Backend IDs
// ---------------------------------------------------------------------------

const (
	BackendOPUS   = "opus"
	BackendMADLAD = "madlad"
	BackendM2M    = "m2m"
)

// ErrUnsupportedPair is returned by Translate when the backend cannot
// handle the requested source/target language combination. Callers
// check it with errors.Is and skip the batch; it is not a failure.
var ErrUnsupportedPair = errors.New("language pair not supported by backend")

// Translator turns a batch of texts from one language into another.
//
// On success the result has exactly one element per input text, in input
// order. A backend that cannot translate an individual element of an
// otherwise supported pair keeps the source text in that position rather
// than shrinking the list.
type Translator interface {
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config is the fixed per-run backend configuration. A translator is
// constructed once and reused across all batches and languages; it is
// never reconfigured mid-run.
type Config struct {
	// Endpoint is the inference server base URL (e.g. http://localhost:8090).
	Endpoint string
	// Device selects where the server should run the model: "cuda" or "cpu".
	Device string
	// Quant4 loads the model in 4-bit precision. Mutually exclusive with Quant8.
	Quant4 bool
	// Quant8 loads the model in 8-bit precision. Mutually exclusive with Quant4.
	Quant8 bool
	// MaxLength caps generated tokens per text (0 = server default).
	MaxLength int
	// ModelSize selects the backend-specific size variant
	// (MADLAD: 3b, 7b, 7b-bt; M2M: 418M, 1.2B; ignored by OPUS).
	ModelSize string
	// Timeout is the per-request timeout (0 = default).
	Timeout time.Duration
	// MaxRetries is the retry budget for rate limits and server errors.
	MaxRetries int
}

// Validate reports configuration errors before any model or dataset is
// touched.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("inference endpoint is required")
	}
	if c.Quant4 && c.Quant8 {
		return fmt.Errorf("quant4 and quant8 are mutually exclusive")
	}
	return nil
}

// quantization maps the quant flags to the wire value.
func (c Config) quantization() string {
	switch {
	case c.Quant4:
		return "int4"
	case c.Quant8:
		return "int8"
	default:
		return ""
	}
}

func (c Config) effectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 120 * time.Second
}

func (c Config) effectiveMaxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}

// New constructs the translator for a backend ID.
func New(backend string, cfg Config) (Translator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch backend {
	case BackendOPUS:
		return NewOPUS(cfg), nil
	case BackendMADLAD:
		return NewMADLAD(cfg)
	case BackendM2M:
		return NewM2M(cfg)
	default:
		return nil, fmt.Errorf("unknown backend %q (want opus, madlad or m2m)", backend)
	}
}

// ---------------------------------------------------------------------------
// Wire protocol
// ---------------------------------------------------------------------------

// translateRequest is the body of POST <endpoint>/v1/translate.
type translateRequest struct {
	Model        string   `json:"model"`
	Texts        []string `json:"texts"`
	SourceLang   string   `json:"source_lang,omitempty"`
	TargetLang   string   `json:"target_lang,omitempty"`
	MaxLength    int      `json:"max_length,omitempty"`
	Device       string   `json:"device,omitempty"`
	Quantization string   `json:"quantization,omitempty"`
}

type translateResponse struct {
	Translations []string `json:"translations"`
	Error        string   `json:"error,omitempty"`
}

// errModelNotFound signals that the inference server has no such model.
// OPUS maps it to ErrUnsupportedPair since its models are per-pair.
var errModelNotFound = errors.New("model not found")

// client wraps the shared HTTP call path with retry handling.
type client struct {
	http       *http.Client
	endpoint   string
	maxRetries int
}

func newClient(cfg Config) *client {
	return &client{
		http:       &http.Client{Timeout: cfg.effectiveTimeout()},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		maxRetries: cfg.effectiveMaxRetries(),
	}
}

// translate posts a request and returns the translations. 429 responses
// honor Retry-After; 5xx and transport errors back off exponentially.
// A 404 becomes errModelNotFound without retrying.
func (c *client) translate(ctx context.Context, req translateRequest) ([]string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	url := c.endpoint + "/v1/translate"

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			if attempt < c.maxRetries {
				if err := sleepCtx(ctx, backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("inference request failed: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			var tr translateResponse
			if err := json.Unmarshal(respBody, &tr); err != nil {
				return nil, fmt.Errorf("parsing response: %w", err)
			}
			if tr.Error != "" {
				return nil, fmt.Errorf("inference server: %s", tr.Error)
			}
			return tr.Translations, nil

		case resp.StatusCode == http.StatusNotFound:
			return nil, errModelNotFound

		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt < c.maxRetries {
				if err := sleepCtx(ctx, retryAfter(resp, attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("rate limited after %d retries: %s", c.maxRetries, truncate(string(respBody), 200))

		case resp.StatusCode >= 500:
			if attempt < c.maxRetries {
				if err := sleepCtx(ctx, backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("inference server status %d: %s", resp.StatusCode, truncate(string(respBody), 200))

		default:
			return nil, fmt.Errorf("inference server status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		}
	}

	return nil, fmt.Errorf("exhausted all %d retries", c.maxRetries)
}

// shape enforces the one-output-per-input invariant. Empty results keep
// the source text as a placeholder; a length mismatch is a protocol
// violation.
func shape(texts, translations []string) ([]string, error) {
	if len(translations) != len(texts) {
		return nil, fmt.Errorf("inference server returned %d translations for %d texts", len(translations), len(texts))
	}
	out := make([]string, len(texts))
	for i, tr := range translations {
		if tr == "" {
			out[i] = texts[i]
			continue
		}
		out[i] = tr
	}
	return out, nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// retryAfter reads the Retry-After header, falling back to exponential
// backoff when it is missing or unparsable.
func retryAfter(resp *http.Response, attempt int) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return backoff(attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
