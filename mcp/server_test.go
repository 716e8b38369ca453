package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/modelmux/modelmux/llm"
)

type echoProvider struct {
	name     string
	lastReq  *llm.Request
	lastLang string
}

func (p *echoProvider) Name() string    { return p.name }
func (p *echoProvider) Model() string   { return "test-model" }
func (p *echoProvider) Available() bool { return true }

func (p *echoProvider) Generate(ctx context.Context, req *llm.Request) (string, error) {
	p.lastReq = req
	return "echo: " + req.Prompt, nil
}

func (p *echoProvider) GenerateCode(ctx context.Context, req *llm.Request, language string) (string, error) {
	p.lastReq = req
	p.lastLang = language
	return "code(" + language + "): " + req.Prompt, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %v, want 1 block", res.Content)
	}
	text, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("content block is %T, want text", res.Content[0])
	}
	return text.Text
}

func newTestServer(t *testing.T) (*Server, *echoProvider) {
	t.Helper()
	mgr := llm.NewManager(zerolog.Nop())
	p := &echoProvider{name: llm.ProviderGemini}
	mgr.Register(p.name, p)
	return NewServer(mgr, "test", zerolog.Nop()), p
}

func TestGenerateTool(t *testing.T) {
	s, p := newTestServer(t)

	res, err := s.handleGenerate(context.Background(), callRequest("generate", map[string]any{
		"prompt":      "hello",
		"system":      "be brief",
		"max_tokens":  float64(128),
		"temperature": 0.5,
	}))
	if err != nil {
		t.Fatalf("handleGenerate: %v", err)
	}
	if got := resultText(t, res); got != "echo: hello" {
		t.Errorf("text = %q", got)
	}
	if p.lastReq.System != "be brief" {
		t.Errorf("system = %q", p.lastReq.System)
	}
	if p.lastReq.MaxTokens != 128 {
		t.Errorf("max_tokens = %d", p.lastReq.MaxTokens)
	}
	if p.lastReq.Temperature == nil || *p.lastReq.Temperature != 0.5 {
		t.Errorf("temperature = %v", p.lastReq.Temperature)
	}
}

func TestGenerateToolMissingPrompt(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleGenerate(context.Background(), callRequest("generate", map[string]any{}))
	if err != nil {
		t.Fatalf("handleGenerate: %v", err)
	}
	if !res.IsError {
		t.Error("expected an error result for missing prompt")
	}
}

func TestGenerateToolProviderFailure(t *testing.T) {
	mgr := llm.NewManager(zerolog.Nop())
	s := NewServer(mgr, "test", zerolog.Nop())

	res, err := s.handleGenerate(context.Background(), callRequest("generate", map[string]any{"prompt": "x"}))
	if err != nil {
		t.Fatalf("handleGenerate: %v", err)
	}
	if !res.IsError {
		t.Error("expected an error result with no providers configured")
	}
}

func TestGenerateCodeTool(t *testing.T) {
	s, p := newTestServer(t)

	res, err := s.handleGenerateCode(context.Background(), callRequest("generate_code", map[string]any{
		"prompt":   "fizzbuzz",
		"language": "go",
	}))
	if err != nil {
		t.Fatalf("handleGenerateCode: %v", err)
	}
	if got := resultText(t, res); got != "code(go): fizzbuzz" {
		t.Errorf("text = %q", got)
	}
	if p.lastLang != "go" {
		t.Errorf("language = %q", p.lastLang)
	}
}

func TestGenerateCodeToolMissingLanguage(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleGenerateCode(context.Background(), callRequest("generate_code", map[string]any{"prompt": "x"}))
	if err != nil {
		t.Fatalf("handleGenerateCode: %v", err)
	}
	if !res.IsError {
		t.Error("expected an error result for missing language")
	}
}

func TestListProvidersTool(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleListProviders(context.Background(), callRequest("list_providers", nil))
	if err != nil {
		t.Fatalf("handleListProviders: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, llm.ProviderGemini) || !strings.Contains(text, "[default]") {
		t.Errorf("text = %q", text)
	}
}
