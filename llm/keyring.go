package llm

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/samber/lo"
)

// RotationStrategy selects how a Keyring picks the next key.
type RotationStrategy string

const (
	RotationRoundRobin  RotationStrategy = "round_robin"
	RotationLeastUsed   RotationStrategy = "least_used"
	RotationFailover    RotationStrategy = "failover"
	RotationLoadBalance RotationStrategy = "load_balance"
)

// ParseRotationStrategy maps a config string to a strategy, defaulting to
// round_robin for unrecognized values.
func ParseRotationStrategy(s string) RotationStrategy {
	switch RotationStrategy(s) {
	case RotationRoundRobin, RotationLeastUsed, RotationFailover, RotationLoadBalance:
		return RotationStrategy(s)
	default:
		return RotationRoundRobin
	}
}

// KeyStats is a point-in-time snapshot of one key's bookkeeping. The key
// itself is never exposed, only its positional id.
type KeyStats struct {
	KeyID          string     `json:"key_id"`
	UsageCount     int        `json:"usage_count"`
	ErrorCount     int        `json:"error_count"`
	RateLimitCount int        `json:"rate_limit_count"`
	Available      bool       `json:"available"`
	LastUsed       *time.Time `json:"last_used,omitempty"`
	LastError      *time.Time `json:"last_error,omitempty"`
}

type keyState struct {
	key            string
	id             string
	usageCount     int
	errorCount     int
	rateLimitCount int
	lastUsed       time.Time
	lastError      time.Time
	cooldownUntil  time.Time
}

func (k *keyState) available(now time.Time) bool {
	return now.After(k.cooldownUntil)
}

// Keyring is a rotating multi-key credential source for one provider.
// Adapters pull a key per request and report usage and failures back; keys
// that fail enter a cooldown window and are skipped until it passes. The
// per-key counters are adapter-side rotation bookkeeping; the retry core and
// the Manager never see them.
//
// Thread safe; pure in-memory.
type Keyring struct {
	mu       sync.Mutex
	provider string
	keys     []*keyState
	strategy RotationStrategy
	cooldown time.Duration
	index    int
	now      func() time.Time // stubbed in tests
}

// NewKeyring builds a ring over the given keys. Empty keys are dropped.
func NewKeyring(provider string, keys []string, strategy RotationStrategy, cooldown time.Duration) *Keyring {
	r := &Keyring{
		provider: provider,
		strategy: strategy,
		cooldown: cooldown,
		now:      time.Now,
	}
	for i, key := range lo.Compact(keys) {
		r.keys = append(r.keys, &keyState{
			key: key,
			id:  fmt.Sprintf("%s_key_%d", provider, i+1),
		})
	}
	return r
}

// Len returns the number of configured keys.
func (r *Keyring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Empty reports whether the ring holds no keys.
func (r *Keyring) Empty() bool { return r.Len() == 0 }

// Provider returns the provider id this ring serves.
func (r *Keyring) Provider() string { return r.provider }

// Next returns the key chosen by the rotation strategy, skipping keys in
// cooldown. If every key is cooling down, the first configured key is
// returned anyway. Returns "" when no keys are configured.
func (r *Keyring) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) == 0 {
		return ""
	}

	now := r.now()
	available := lo.Filter(r.keys, func(k *keyState, _ int) bool {
		return k.available(now)
	})
	if len(available) == 0 {
		return r.keys[0].key
	}

	switch r.strategy {
	case RotationLeastUsed:
		return lo.MinBy(available, func(a, b *keyState) bool {
			return a.usageCount < b.usageCount
		}).key
	case RotationFailover:
		return available[0].key
	case RotationLoadBalance:
		return available[rand.Intn(len(available))].key //nolint:gosec // load distribution, not security
	default: // round_robin
		k := available[r.index%len(available)]
		r.index = (r.index + 1) % len(available)
		return k.key
	}
}

// RecordUsage records a successful use of key.
func (r *Keyring) RecordUsage(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k := r.find(key); k != nil {
		k.usageCount++
		k.lastUsed = r.now()
	}
}

// RecordError records a failure for key and starts its cooldown clock.
func (r *Keyring) RecordError(key string, rateLimited bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.find(key)
	if k == nil {
		return
	}
	k.errorCount++
	if rateLimited {
		k.rateLimitCount++
	}
	k.lastError = r.now()
	k.cooldownUntil = r.now().Add(r.cooldown)
}

// Stats returns a snapshot of every key's bookkeeping for the API layer.
func (r *Keyring) Stats() []KeyStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	return lo.Map(r.keys, func(k *keyState, _ int) KeyStats {
		s := KeyStats{
			KeyID:          k.id,
			UsageCount:     k.usageCount,
			ErrorCount:     k.errorCount,
			RateLimitCount: k.rateLimitCount,
			Available:      k.available(now),
		}
		if !k.lastUsed.IsZero() {
			t := k.lastUsed
			s.LastUsed = &t
		}
		if !k.lastError.IsZero() {
			t := k.lastError
			s.LastError = &t
		}
		return s
	})
}

func (r *Keyring) find(key string) *keyState {
	for _, k := range r.keys {
		if k.key == key {
			return k
		}
	}
	return nil
}
