package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/arkmeter/release-publisher/internal/logger"
)

const (
	// defaultProbeTimeout bounds each existence probe request.
	defaultProbeTimeout = 15 * time.Second

	// defaultUploadTimeout bounds each upload request.
	defaultUploadTimeout = 60 * time.Second

	// maxDiagnosticBodySize caps how much of an error response body is kept.
	maxDiagnosticBodySize = 64 * 1024
)

// Client talks to the object-storage HTTP API. It holds no mutable state
// across calls; all side effects are network I/O.
type Client struct {
	// endpoint is the storage base URL without a trailing slash.
	endpoint string
	// credential is sent as both bearer token and apikey header.
	credential string
	// httpClient performs all requests.
	httpClient *http.Client

	// probeTimeout bounds existence probes; uploadTimeout bounds uploads.
	probeTimeout  time.Duration
	uploadTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithProbeTimeout sets the per-request timeout for existence probes.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.probeTimeout = timeout
		}
	}
}

// WithUploadTimeout sets the per-request timeout for uploads.
func WithUploadTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.uploadTimeout = timeout
		}
	}
}

// UploadResult carries the service's response to a successful upload.
type UploadResult struct {
	// StatusCode is the HTTP status returned by the service.
	StatusCode int
	// Body is the raw response body.
	Body string
}

// listedObject is one entry of a prefix-list response.
type listedObject struct {
	Name string `json:"name"`
}

// New creates a storage client for the provided endpoint and credential.
func New(endpoint, credential string, opts ...Option) *Client {
	client := &Client{
		endpoint:      endpoint,
		credential:    credential,
		httpClient:    &http.Client{},
		probeTimeout:  defaultProbeTimeout,
		uploadTimeout: defaultUploadTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// probeOutcome is one strategy's verdict on an object's existence.
type probeOutcome struct {
	// exists is meaningful only when definitive is true.
	exists bool
	// definitive marks a 200 or 404 answer; other statuses are ambiguous.
	definitive bool
}

// Exists reports whether the object is present in the bucket. It tries the
// primary and alternate info paths, then the prefix-list fallback, stopping
// at the first definitive answer. When every strategy fails transport-wise
// it returns a *TransportError.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	encodedKey := url.PathEscape(key)

	probeURLs := []string{
		fmt.Sprintf("%s/storage/v1/object/info/%s/%s", c.endpoint, bucket, encodedKey),
		fmt.Sprintf("%s/object/info/%s/%s", c.endpoint, bucket, encodedKey),
	}

	var lastErr error

	for _, probeURL := range probeURLs {
		outcome, err := c.probeObject(ctx, probeURL)
		if err != nil {
			lastErr = err
			continue
		}

		if outcome.definitive {
			return outcome.exists, nil
		}
	}

	exists, err := c.listContains(ctx, bucket, key)
	if err != nil {
		if lastErr != nil {
			err = fmt.Errorf("%v (info probes: %v)", err, lastErr)
		}

		return false, &TransportError{Endpoint: c.endpoint, Err: err}
	}

	return exists, nil
}

// Upload stores the content under the object key with a single raw-body POST.
// Non-success statuses are returned as *UploadRejectedError; the pipeline
// does not retry partial uploads.
func (c *Client) Upload(ctx context.Context, bucket, key string, content io.Reader) (*UploadResult, error) {
	requestCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.endpoint, bucket, url.PathEscape(key))

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, uploadURL, content)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}

	c.authorize(req)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body := readDiagnosticBody(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &UploadRejectedError{Key: key, StatusCode: resp.StatusCode, Body: body}
	}

	return &UploadResult{StatusCode: resp.StatusCode, Body: body}, nil
}

// PublicURL constructs the public download URL for an object.
// Pure string construction, no network call.
func (c *Client) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.endpoint, bucket, key)
}

// probeObject issues one existence probe: 200 and 404 are definitive, any
// other status is ambiguous and the caller moves to the next strategy.
func (c *Client) probeObject(ctx context.Context, probeURL string) (probeOutcome, error) {
	requestCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, probeURL, nil)
	if err != nil {
		return probeOutcome{}, fmt.Errorf("build probe request: %w", err)
	}

	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return probeOutcome{}, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		return probeOutcome{exists: true, definitive: true}, nil
	case http.StatusNotFound:
		return probeOutcome{exists: false, definitive: true}, nil
	default:
		logger.DebugKV(ctx, "Ambiguous existence probe response",
			"url", probeURL,
			"status", resp.StatusCode,
			"body", readDiagnosticBody(resp.Body))

		return probeOutcome{}, nil
	}
}

// listContains asks the prefix-list endpoint and scans for an exact name match.
// A reachable but non-200 list response is treated as "not found" after
// logging, matching the permissive fallback behaviour of the info probes.
func (c *Client) listContains(ctx context.Context, bucket, key string) (bool, error) {
	requestCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	listURL := fmt.Sprintf("%s/storage/v1/object/list/%s", c.endpoint, bucket)

	payload, err := json.Marshal(map[string]string{"prefix": key})
	if err != nil {
		return false, fmt.Errorf("marshal list request: %w", err)
	}

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, listURL, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build list request: %w", err)
	}

	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		logger.WarnKV(ctx, "List fallback returned unexpected status",
			"url", listURL,
			"status", resp.StatusCode,
			"body", readDiagnosticBody(resp.Body))

		return false, nil
	}

	var items []listedObject
	if err = json.NewDecoder(resp.Body).Decode(&items); err != nil {
		logger.WarnKV(ctx, "List fallback returned malformed body", "url", listURL, "error", err)

		return false, nil
	}

	for _, item := range items {
		if item.Name == key {
			return true, nil
		}
	}

	return false, nil
}

// authorize attaches the credential headers required on every call.
func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("apikey", c.credential)
}

// readDiagnosticBody drains up to maxDiagnosticBodySize of a response body.
func readDiagnosticBody(r io.Reader) string {
	contents, err := io.ReadAll(io.LimitReader(r, maxDiagnosticBodySize))
	if err != nil {
		return "<unreadable body>"
	}

	return string(contents)
}
