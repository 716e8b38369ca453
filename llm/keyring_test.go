package llm

import (
	"testing"
	"time"
)

func newTestKeyring(keys []string, strategy RotationStrategy, cooldown time.Duration) (*Keyring, *time.Time) {
	r := NewKeyring("gemini", keys, strategy, cooldown)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestKeyringRoundRobin(t *testing.T) {
	r, _ := newTestKeyring([]string{"k1", "k2", "k3"}, RotationRoundRobin, time.Minute)

	want := []string{"k1", "k2", "k3", "k1", "k2"}
	for i, w := range want {
		if got := r.Next(); got != w {
			t.Errorf("pick %d: expected %q, got %q", i, w, got)
		}
	}
}

func TestKeyringLeastUsed(t *testing.T) {
	r, _ := newTestKeyring([]string{"k1", "k2"}, RotationLeastUsed, time.Minute)

	r.RecordUsage("k1")
	r.RecordUsage("k1")
	if got := r.Next(); got != "k2" {
		t.Errorf("expected least used k2, got %q", got)
	}
	r.RecordUsage("k2")
	r.RecordUsage("k2")
	r.RecordUsage("k2")
	if got := r.Next(); got != "k1" {
		t.Errorf("expected least used k1, got %q", got)
	}
}

func TestKeyringFailover(t *testing.T) {
	r, _ := newTestKeyring([]string{"k1", "k2"}, RotationFailover, time.Minute)

	if got := r.Next(); got != "k1" {
		t.Errorf("failover must stick to the first key, got %q", got)
	}
	r.RecordError("k1", false)
	if got := r.Next(); got != "k2" {
		t.Errorf("expected failover to k2 during cooldown, got %q", got)
	}
}

func TestKeyringCooldownExpires(t *testing.T) {
	r, now := newTestKeyring([]string{"k1", "k2"}, RotationFailover, time.Minute)

	r.RecordError("k1", true)
	if got := r.Next(); got != "k2" {
		t.Errorf("expected k2 while k1 cools down, got %q", got)
	}

	*now = now.Add(2 * time.Minute)
	if got := r.Next(); got != "k1" {
		t.Errorf("expected k1 after cooldown expiry, got %q", got)
	}
}

func TestKeyringAllCoolingDownFallsBackToFirst(t *testing.T) {
	r, _ := newTestKeyring([]string{"k1", "k2"}, RotationRoundRobin, time.Minute)

	r.RecordError("k1", true)
	r.RecordError("k2", true)
	if got := r.Next(); got != "k1" {
		t.Errorf("expected first key when all cooling down, got %q", got)
	}
}

func TestKeyringEmpty(t *testing.T) {
	r, _ := newTestKeyring(nil, RotationRoundRobin, time.Minute)
	if !r.Empty() {
		t.Error("expected empty ring")
	}
	if got := r.Next(); got != "" {
		t.Errorf("expected empty key, got %q", got)
	}

	// Blank entries from unset env vars are dropped.
	r2 := NewKeyring("gemini", []string{"", "k1", ""}, RotationRoundRobin, time.Minute)
	if r2.Len() != 1 {
		t.Errorf("expected 1 key after compacting, got %d", r2.Len())
	}
}

func TestKeyringLoadBalancePicksAvailable(t *testing.T) {
	r, _ := newTestKeyring([]string{"k1", "k2"}, RotationLoadBalance, time.Minute)

	r.RecordError("k2", false)
	for i := 0; i < 10; i++ {
		if got := r.Next(); got != "k1" {
			t.Fatalf("expected only available key k1, got %q", got)
		}
	}
}

func TestKeyringStats(t *testing.T) {
	r, _ := newTestKeyring([]string{"k1", "k2"}, RotationRoundRobin, time.Minute)

	r.RecordUsage("k1")
	r.RecordUsage("k1")
	r.RecordError("k2", true)

	stats := r.Stats()
	if len(stats) != 2 {
		t.Fatalf("expected 2 stat entries, got %d", len(stats))
	}

	if stats[0].KeyID != "gemini_key_1" {
		t.Errorf("expected positional key id, got %q", stats[0].KeyID)
	}
	if stats[0].UsageCount != 2 || stats[0].ErrorCount != 0 {
		t.Errorf("k1 stats wrong: %+v", stats[0])
	}
	if !stats[0].Available {
		t.Error("k1 must be available")
	}
	if stats[0].LastUsed == nil {
		t.Error("k1 must record last use")
	}

	if stats[1].ErrorCount != 1 || stats[1].RateLimitCount != 1 {
		t.Errorf("k2 stats wrong: %+v", stats[1])
	}
	if stats[1].Available {
		t.Error("k2 must be cooling down")
	}
	if stats[1].LastError == nil {
		t.Error("k2 must record last error")
	}
}

func TestParseRotationStrategy(t *testing.T) {
	cases := map[string]RotationStrategy{
		"round_robin":  RotationRoundRobin,
		"least_used":   RotationLeastUsed,
		"failover":     RotationFailover,
		"load_balance": RotationLoadBalance,
		"bogus":        RotationRoundRobin,
		"":             RotationRoundRobin,
	}
	for in, want := range cases {
		if got := ParseRotationStrategy(in); got != want {
			t.Errorf("ParseRotationStrategy(%q): expected %q, got %q", in, want, got)
		}
	}
}
