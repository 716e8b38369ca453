package server

import (
	"net/http"

	"github.com/modelmux/modelmux/ctxutil"
	"github.com/modelmux/modelmux/events"
	"github.com/modelmux/modelmux/llm"
)

type generateRequest struct {
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Fallback    *bool    `json:"fallback,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int64    `json:"max_tokens,omitempty"`
	Language    string   `json:"language,omitempty"` // generate/code only
}

type generateResponse struct {
	Text      string `json:"text"`
	Provider  string `json:"provider"`
	RequestID string `json:"request_id"`
}

func (g *generateRequest) options() []llm.GenerateOption {
	var opts []llm.GenerateOption
	if g.Provider != "" {
		opts = append(opts, llm.WithProvider(g.Provider))
	}
	if g.Fallback != nil && !*g.Fallback {
		opts = append(opts, llm.WithoutFallback())
	}
	return opts
}

func (g *generateRequest) llmRequest() *llm.Request {
	return &llm.Request{
		Prompt:      g.Prompt,
		System:      g.System,
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		jsonErr(w, "prompt is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	requestID := ctxutil.RequestID(ctx)
	manager := ctxutil.Manager(ctx)

	s.hub.Publish(events.Event{Type: events.TypeGenerationStarted, RequestID: requestID})
	res, err := manager.Generate(ctx, req.llmRequest(), req.options()...)
	if err != nil {
		s.hub.Publish(events.Event{Type: events.TypeGenerationFailed, RequestID: requestID, Message: err.Error()})
		writeLLMError(w, err)
		return
	}
	s.hub.Publish(events.Event{Type: events.TypeGenerationCompleted, RequestID: requestID, Provider: res.Provider})

	jsonOK(w, generateResponse{Text: res.Text, Provider: res.Provider, RequestID: requestID}, http.StatusOK)
}

func (s *Server) handleGenerateCode(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		jsonErr(w, "prompt is required", http.StatusBadRequest)
		return
	}
	if req.Language == "" {
		jsonErr(w, "language is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	requestID := ctxutil.RequestID(ctx)
	manager := ctxutil.Manager(ctx)

	s.hub.Publish(events.Event{Type: events.TypeGenerationStarted, RequestID: requestID})
	res, err := manager.GenerateCode(ctx, req.llmRequest(), req.Language, req.options()...)
	if err != nil {
		s.hub.Publish(events.Event{Type: events.TypeGenerationFailed, RequestID: requestID, Message: err.Error()})
		writeLLMError(w, err)
		return
	}
	s.hub.Publish(events.Event{Type: events.TypeGenerationCompleted, RequestID: requestID, Provider: res.Provider})

	jsonOK(w, generateResponse{Text: res.Text, Provider: res.Provider, RequestID: requestID}, http.StatusOK)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]any{"providers": s.manager.Descriptors()}, http.StatusOK)
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]llm.KeyStats, len(s.keyrings))
	for id, ring := range s.keyrings {
		if ring != nil && !ring.Empty() {
			out[id] = ring.Stats()
		}
	}
	jsonOK(w, map[string]any{"keys": out}, http.StatusOK)
}
