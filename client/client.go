// Package client is a small HTTP client for the modelmux daemon API, used by
// the CLI and the console UI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/modelmux/modelmux/llm"
	"github.com/modelmux/modelmux/workspace"
)

// DefaultAddr is where the daemon listens unless configured otherwise.
const DefaultAddr = "http://localhost:8000"

// Client talks to a running daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the daemon at baseURL. An empty baseURL uses
// DefaultAddr.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAddr
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Generation can take a while on slow providers.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Health is the daemon's health report.
type Health struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

// GenerateRequest mirrors the daemon's generation payload.
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Fallback    *bool    `json:"fallback,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int64    `json:"max_tokens,omitempty"`
	Language    string   `json:"language,omitempty"`
}

// GenerateResult is a completed generation.
type GenerateResult struct {
	Text      string `json:"text"`
	Provider  string `json:"provider"`
	RequestID string `json:"request_id"`
}

// APIError is a non-2xx daemon response.
type APIError struct {
	StatusCode int
	Message    string                `json:"error"`
	Kind       string                `json:"kind,omitempty"`
	Provider   string                `json:"provider,omitempty"`
	Failures   []llm.ProviderFailure `json:"failures,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("daemon returned status %d", e.StatusCode)
}

// Health checks that the daemon is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Generate runs a text generation.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	var out GenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateCode runs a code generation. req.Language must be set.
func (c *Client) GenerateCode(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	var out GenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/generate/code", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Providers lists the registered providers.
func (c *Client) Providers(ctx context.Context) ([]llm.Descriptor, error) {
	var out struct {
		Providers []llm.Descriptor `json:"providers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/providers", nil, &out); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

// KeyStats reports per-key usage for every keyed provider.
func (c *Client) KeyStats(ctx context.Context) (map[string][]llm.KeyStats, error) {
	var out struct {
		Keys map[string][]llm.KeyStats `json:"keys"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/keys", nil, &out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

// CreateProject makes a new workspace project.
func (c *Client) CreateProject(ctx context.Context, name, description string) (*workspace.Project, error) {
	var out workspace.Project
	body := map[string]string{"name": name, "description": description}
	if err := c.do(ctx, http.MethodPost, "/api/projects", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Projects lists all workspace projects.
func (c *Client) Projects(ctx context.Context) ([]*workspace.Project, error) {
	var out struct {
		Projects []*workspace.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// Project fetches one project by id.
func (c *Client) Project(ctx context.Context, id string) (*workspace.Project, error) {
	var out workspace.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject removes a project and its files.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+id, nil, nil)
}

// ProjectGenerateRequest extends generation with an optional output path
// inside the project.
type ProjectGenerateRequest struct {
	GenerateRequest
	Path string `json:"path,omitempty"`
}

// ProjectGenerateResult is a project generation, with records of any files
// written.
type ProjectGenerateResult struct {
	Text      string                 `json:"text"`
	Provider  string                 `json:"provider"`
	RequestID string                 `json:"request_id"`
	Files     []workspace.FileRecord `json:"files"`
}

// ProjectGenerate runs a generation inside a project.
func (c *Client) ProjectGenerate(ctx context.Context, id string, req *ProjectGenerateRequest) (*ProjectGenerateResult, error) {
	var out ProjectGenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+id+"/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProjectFiles lists files under dir inside the project.
func (c *Client) ProjectFiles(ctx context.Context, id, dir string, recursive bool) ([]workspace.FileInfo, error) {
	path := "/api/projects/" + id + "/files"
	if dir != "" || recursive {
		path += fmt.Sprintf("?dir=%s&recursive=%t", dir, recursive)
	}
	var out struct {
		Files []workspace.FileInfo `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// ReadProjectFile fetches a file's content from a project.
func (c *Client) ReadProjectFile(ctx context.Context, id, path string) (string, error) {
	var out struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+id+"/files/"+path, nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// PreviewStatus reports the live preview state.
type PreviewStatus struct {
	Running   bool   `json:"running"`
	ProjectID string `json:"project_id,omitempty"`
	URL       string `json:"url,omitempty"`
}

// StartPreview serves a project over the preview server and returns its URL.
func (c *Client) StartPreview(ctx context.Context, projectID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/preview/"+projectID, nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// StopPreview stops the preview server.
func (c *Client) StopPreview(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/preview", nil, nil)
}

// Preview reports whether a preview is running.
func (c *Client) Preview(ctx context.Context) (*PreviewStatus, error) {
	var out PreviewStatus
	if err := c.do(ctx, http.MethodGet, "/api/preview", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		json.NewDecoder(resp.Body).Decode(apiErr) //nolint:errcheck
		return apiErr
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
