package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/augview/augview/pkg/domain"
)

// DefaultRequestTimeout bounds each fallback round-trip.
const DefaultRequestTimeout = 30 * time.Second

// RESTClient is the request/response fallback channel and the initial-load
// path. It does not push state: after any write, callers must fetch a fresh
// snapshot to converge.
type RESTClient struct {
	baseURL string
	http    *http.Client
}

// NewRESTClient creates a client for the server's base URL
// (e.g. http://127.0.0.1:8080).
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &RESTClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Pipeline fetches the current snapshot.
func (c *RESTClient) Pipeline(ctx context.Context) (domain.Pipeline, error) {
	var p domain.Pipeline
	err := c.doJSON(ctx, http.MethodGet, "/api/pipeline", nil, "", &p)
	return p, err
}

// statusResponse is the acknowledgement-plus-snapshot body returned by the
// upload and rerun endpoints.
type statusResponse struct {
	Status   string          `json:"status"`
	Pipeline domain.Pipeline `json:"pipeline"`
}

// Upload sends an image file; the server re-runs the pipeline on it and
// returns the new snapshot.
func (c *RESTClient) Upload(ctx context.Context, filename string, file io.Reader) (domain.Pipeline, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return domain.Pipeline{}, fmt.Errorf("client: build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return domain.Pipeline{}, fmt.Errorf("client: copy upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.Pipeline{}, fmt.Errorf("client: finish upload form: %w", err)
	}

	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/upload", &buf, mw.FormDataContentType(), &resp); err != nil {
		return domain.Pipeline{}, err
	}
	return resp.Pipeline, nil
}

// Rerun re-executes the pipeline with fresh random draws and returns the
// new snapshot.
func (c *RESTClient) Rerun(ctx context.Context) (domain.Pipeline, error) {
	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/rerun", nil, "", &resp); err != nil {
		return domain.Pipeline{}, err
	}
	return resp.Pipeline, nil
}

// UpdateParams sets one or more parameters on a step. The response is only
// an acknowledgement; fetch a snapshot to observe the effect.
func (c *RESTClient) UpdateParams(ctx context.Context, stepID string, params map[string]any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("client: marshal params: %w", err)
	}
	path := "/api/step/" + url.PathEscape(stepID) + "/params"
	return c.doJSON(ctx, http.MethodPut, path, bytes.NewReader(body), "application/json", nil)
}

// Toggle enables or disables a step. Acknowledgement only, like
// UpdateParams.
func (c *RESTClient) Toggle(ctx context.Context, stepID string, enabled bool) error {
	path := "/api/step/" + url.PathEscape(stepID) + "/toggle?enabled=" + strconv.FormatBool(enabled)
	return c.doJSON(ctx, http.MethodPut, path, nil, "", nil)
}

func (c *RESTClient) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("client: %s %s: %w: status %d: %s",
			method, path, domain.ErrCommandRejected, resp.StatusCode, bytes.TrimSpace(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", path, err)
	}
	return nil
}
