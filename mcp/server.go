// Package mcp exposes generation as Model Context Protocol tools over stdio,
// so MCP-capable clients can use the daemon's providers directly.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/modelmux/modelmux/llm"
)

// Server wraps an MCP stdio server around the provider manager.
type Server struct {
	mcp     *server.MCPServer
	manager *llm.Manager
	logger  zerolog.Logger
}

// NewServer builds the MCP server with the generate and generate_code tools
// registered.
func NewServer(manager *llm.Manager, version string, logger zerolog.Logger) *Server {
	s := &Server{
		manager: manager,
		logger:  logger.With().Str("component", "mcp_server").Logger(),
	}

	srv := server.NewMCPServer("modelmux", version, server.WithToolCapabilities(false))

	generate := mcp.NewTool("generate",
		mcp.WithDescription("Generate text from a prompt using the configured LLM providers, with automatic fallback"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The prompt to send to the model")),
		mcp.WithString("system", mcp.Description("Optional system prompt")),
		mcp.WithString("provider", mcp.Description("Pin the request to one provider (gemini, anthropic, openai, ollama)")),
		mcp.WithNumber("max_tokens", mcp.Description("Maximum tokens to generate")),
		mcp.WithNumber("temperature", mcp.Description("Sampling temperature")),
		mcp.WithBoolean("fallback", mcp.Description("Whether other providers may be tried on failure (default true)")),
	)
	srv.AddTool(generate, s.handleGenerate)

	generateCode := mcp.NewTool("generate_code",
		mcp.WithDescription("Generate source code in a target language, returning only the code"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Description of the code to generate")),
		mcp.WithString("language", mcp.Required(), mcp.Description("Target programming language")),
		mcp.WithString("provider", mcp.Description("Pin the request to one provider")),
		mcp.WithNumber("max_tokens", mcp.Description("Maximum tokens to generate")),
		mcp.WithNumber("temperature", mcp.Description("Sampling temperature")),
		mcp.WithBoolean("fallback", mcp.Description("Whether other providers may be tried on failure (default true)")),
	)
	srv.AddTool(generateCode, s.handleGenerateCode)

	providers := mcp.NewTool("list_providers",
		mcp.WithDescription("List the configured LLM providers and their availability"),
	)
	srv.AddTool(providers, s.handleListProviders)

	s.mcp = srv
	return s
}

// ServeStdio blocks serving MCP requests on stdin and stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info().Msg("MCP server listening on stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) requestFrom(req mcp.CallToolRequest, prompt string) (*llm.Request, []llm.GenerateOption) {
	r := &llm.Request{
		Prompt:    prompt,
		System:    req.GetString("system", ""),
		MaxTokens: int64(req.GetInt("max_tokens", 0)),
	}
	if t := req.GetFloat("temperature", -1); t >= 0 {
		r.Temperature = &t
	}

	var opts []llm.GenerateOption
	if provider := req.GetString("provider", ""); provider != "" {
		opts = append(opts, llm.WithProvider(provider))
	}
	if !req.GetBool("fallback", true) {
		opts = append(opts, llm.WithoutFallback())
	}
	return r, opts
}

func (s *Server) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	llmReq, opts := s.requestFrom(req, prompt)
	res, err := s.manager.Generate(ctx, llmReq, opts...)
	if err != nil {
		s.logger.Warn().Err(err).Msg("MCP generate failed")
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Text), nil
}

func (s *Server) handleGenerateCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	language, err := req.RequireString("language")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	llmReq, opts := s.requestFrom(req, prompt)
	res, err := s.manager.GenerateCode(ctx, llmReq, language, opts...)
	if err != nil {
		s.logger.Warn().Err(err).Msg("MCP generate_code failed")
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Text), nil
}

func (s *Server) handleListProviders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := ""
	for _, d := range s.manager.Descriptors() {
		line := d.Name + " (model " + d.Model + ")"
		if d.Default {
			line += " [default]"
		}
		if !d.Available {
			line += " [unavailable]"
		}
		out += line + "\n"
	}
	if out == "" {
		out = "no providers configured\n"
	}
	return mcp.NewToolResultText(out), nil
}
