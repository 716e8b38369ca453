package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Manager holds an ordered collection of providers (normally RetryClients)
// and executes prioritized fallback across them. The registry is read far
// more often than written: the lock is held only long enough to copy the
// candidate list, never across a network call or a backoff suspension, so a
// fallback pass always operates on one consistent snapshot of the order.
type Manager struct {
	mu        sync.RWMutex
	clients   map[string]Provider
	order     []string // fallback priority, each id at most once
	defaultID string
	logger    zerolog.Logger
}

// NewManager creates an empty provider manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		clients: make(map[string]Provider),
		logger:  logger.With().Str("component", "provider_manager").Logger(),
	}
}

// GenerateOption customizes a single Generate/GenerateCode call.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	provider string
	fallback bool
}

// WithProvider pins the call to one registered provider, bypassing fallback
// entirely. The provider's result or error propagates verbatim.
func WithProvider(id string) GenerateOption {
	return func(o *generateOptions) { o.provider = id }
}

// WithoutFallback restricts the call to the default provider only; its
// failure propagates immediately, unaggregated.
func WithoutFallback() GenerateOption {
	return func(o *generateOptions) { o.fallback = false }
}

// Register appends a provider at the end of the priority order. A provider
// whose Available() is false at registration time is rejected (logged,
// no-op). Re-registering an existing id keeps its position but replaces the
// handle. The first accepted id becomes the default if none was set.
// Returns whether the provider was accepted.
func (m *Manager) Register(id string, client Provider) bool {
	return m.register(id, client, 0, false)
}

// RegisterAt inserts a provider at the given priority position, clamped to
// the valid range. Same acceptance rules as Register.
func (m *Manager) RegisterAt(id string, client Provider, priority int) bool {
	return m.register(id, client, priority, true)
}

func (m *Manager) register(id string, client Provider, priority int, clamp bool) bool {
	if !client.Available() {
		m.logger.Warn().Str("provider", id).Msg("Provider is not available (check credentials), skipping registration")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[id]; exists {
		// Keep the original priority position, replace the handle.
		m.clients[id] = client
		m.logger.Info().Str("provider", id).Msg("Replaced registered provider")
		return true
	}

	m.clients[id] = client
	if clamp {
		if priority < 0 {
			priority = 0
		}
		if priority > len(m.order) {
			priority = len(m.order)
		}
		m.order = append(m.order[:priority], append([]string{id}, m.order[priority:]...)...)
	} else {
		m.order = append(m.order, id)
	}

	if m.defaultID == "" {
		m.defaultID = id
	}
	m.logger.Info().Str("provider", id).Str("model", client.Model()).Int("priority", lo.IndexOf(m.order, id)).Msg("Registered provider")
	return true
}

// SetDefault makes id the default provider. Errors if id is not registered.
func (m *Manager) SetDefault(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return fmt.Errorf("provider %q is not registered", id)
	}
	m.defaultID = id
	return nil
}

// Default returns the default provider id, or "" when unset or when the
// recorded id no longer references a registered provider.
func (m *Manager) Default() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.clients[m.defaultID]; !ok {
		return ""
	}
	return m.defaultID
}

// Get returns the registered provider for id.
func (m *Manager) Get(id string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	return c, ok
}

// Providers returns every registered id in priority order.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// AvailableProviders returns the ids whose client currently reports
// available, in priority order.
func (m *Manager) AvailableProviders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Filter(append([]string(nil), m.order...), func(id string, _ int) bool {
		return m.clients[id].Available()
	})
}

// HasAvailableProvider reports whether at least one provider is available.
func (m *Manager) HasAvailableProvider() bool {
	return len(m.AvailableProviders()) > 0
}

// Descriptors returns a snapshot of every registered provider for API/UI
// layers, in priority order.
func (m *Manager) Descriptors() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Map(m.order, func(id string, _ int) Descriptor {
		c := m.clients[id]
		return Descriptor{
			Name:      id,
			Model:     c.Model(),
			Available: c.Available(),
			Default:   id == m.defaultID,
		}
	})
}

// Generate produces text with prioritized fallback across providers.
// See WithProvider and WithoutFallback for per-call overrides.
func (m *Manager) Generate(ctx context.Context, req *Request, opts ...GenerateOption) (*Result, error) {
	return m.run(ctx, opts, func(ctx context.Context, p Provider) (string, error) {
		return p.Generate(ctx, req)
	})
}

// GenerateCode mirrors Generate using GenerateCode on each candidate.
func (m *Manager) GenerateCode(ctx context.Context, req *Request, language string, opts ...GenerateOption) (*Result, error) {
	return m.run(ctx, opts, func(ctx context.Context, p Provider) (string, error) {
		return p.GenerateCode(ctx, req, language)
	})
}

type candidate struct {
	id     string
	client Provider
}

func (m *Manager) run(ctx context.Context, opts []GenerateOption, call func(context.Context, Provider) (string, error)) (*Result, error) {
	o := generateOptions{fallback: true}
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.RLock()
	if len(m.clients) == 0 {
		m.mu.RUnlock()
		return nil, &Error{Kind: KindNoProviders, Message: "no providers configured", Retryable: false}
	}

	// Explicit provider bypasses fallback entirely.
	if o.provider != "" {
		client, ok := m.clients[o.provider]
		m.mu.RUnlock()
		if !ok {
			return nil, &Error{
				Kind:      KindProviderNotFound,
				Provider:  o.provider,
				Message:   fmt.Sprintf("provider %q is not registered", o.provider),
				Retryable: false,
			}
		}
		text, err := call(ctx, client)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text, Provider: o.provider}, nil
	}

	// Snapshot the candidate list under the read lock; the calls below run
	// unlocked so registration never waits on a network call.
	var candidates []candidate
	if o.fallback {
		for _, id := range m.order {
			candidates = append(candidates, candidate{id: id, client: m.clients[id]})
		}
	} else if client, ok := m.clients[m.defaultID]; ok {
		candidates = append(candidates, candidate{id: m.defaultID, client: client})
	}
	m.mu.RUnlock()

	var failures []ProviderFailure
	for _, c := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !c.client.Available() {
			m.logger.Debug().Str("provider", c.id).Msg("Skipping unavailable provider")
			continue
		}

		text, err := call(ctx, c.client)
		if err == nil {
			return &Result{Text: text, Provider: c.id}, nil
		}
		if !o.fallback {
			// Single-candidate mode: the failure propagates unaggregated.
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.logger.Warn().Str("provider", c.id).Err(err).Msg("Provider failed, falling back to next candidate")
		failures = append(failures, ProviderFailure{Provider: c.id, Message: err.Error()})
	}

	if !o.fallback {
		// The default provider was unset or unavailable.
		return nil, NewUnavailableError(m.Default(), "default provider is not available", nil)
	}
	return nil, &Error{
		Kind:      KindAllFailed,
		Message:   fmt.Sprintf("all providers failed (%d attempted)", len(failures)),
		Retryable: false,
		Failures:  failures,
	}
}
