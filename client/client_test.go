package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelmux/modelmux/llm"
)

func TestGenerate(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody) //nolint:errcheck
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"text": "hello back", "provider": "gemini", "request_id": "r1",
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	res, err := c.Generate(context.Background(), &GenerateRequest{Prompt: "hello", Provider: "gemini"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "hello back" || res.Provider != "gemini" {
		t.Errorf("result = %+v", res)
	}
	if gotBody["prompt"] != "hello" || gotBody["provider"] != "gemini" {
		t.Errorf("request body = %v", gotBody)
	}
	if _, ok := gotBody["fallback"]; ok {
		t.Error("unset fallback should be omitted from the payload")
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"error": "all providers failed (2 attempted)",
			"kind":  "all_providers_failed",
			"failures": []map[string]string{
				{"provider": "gemini", "message": "invalid API key"},
				{"provider": "openai", "message": "quota exceeded"},
			},
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.Generate(context.Background(), &GenerateRequest{Prompt: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Kind != "all_providers_failed" {
		t.Errorf("kind = %q", apiErr.Kind)
	}
	if len(apiErr.Failures) != 2 || apiErr.Failures[0].Provider != "gemini" {
		t.Errorf("failures = %v", apiErr.Failures)
	}
	if apiErr.Error() != "all providers failed (2 attempted)" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestAPIErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Error() != "daemon returned status 500" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestProviders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/providers" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"providers": []llm.Descriptor{
				{Name: "gemini", Model: "gemini-1.5-pro", Available: true, Default: true},
				{Name: "ollama", Model: "llama3", Available: true},
			},
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	providers, err := c.Providers(context.Background())
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	if len(providers) != 2 || !providers[0].Default {
		t.Errorf("providers = %v", providers)
	}
}

func TestProjectLifecycleRequests(t *testing.T) {
	var deleted string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/projects":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": "p1", "name": "demo", "status": "initialized"}) //nolint:errcheck
		case r.Method == http.MethodPost && r.URL.Path == "/api/projects/p1/generate":
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"text":     "<html></html>",
				"provider": "gemini",
				"files": []map[string]any{
					{"path": "index.html", "size": 13, "provider": "gemini", "written_at": "2026-08-29T10:00:00Z"},
				},
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/projects/p1":
			deleted = "p1"
			json.NewEncoder(w).Encode(map[string]string{"status": "deleted"}) //nolint:errcheck
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := New(ts.URL)
	p, err := c.CreateProject(context.Background(), "demo", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID != "p1" {
		t.Errorf("id = %q", p.ID)
	}
	gen, err := c.ProjectGenerate(context.Background(), "p1", &ProjectGenerateRequest{
		GenerateRequest: GenerateRequest{Prompt: "landing page"},
		Path:            "index.html",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(gen.Files) != 1 {
		t.Fatalf("files = %v", gen.Files)
	}
	if f := gen.Files[0]; f.Path != "index.html" || f.Size != 13 || f.Provider != "gemini" || f.WrittenAt.IsZero() {
		t.Errorf("file record = %+v", f)
	}
	if err := c.DeleteProject(context.Background(), "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != "p1" {
		t.Error("delete request never reached the server")
	}
}

func TestDefaultBaseURL(t *testing.T) {
	c := New("")
	if c.baseURL != DefaultAddr {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	c = New("http://example.com/")
	if c.baseURL != "http://example.com" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
}
