// Package runtime hosts the daemon's background jobs.
package runtime

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/modelmux/modelmux/llm"
	"github.com/modelmux/modelmux/workspace"
)

// cronParser accepts standard 5-field expressions, an optional seconds field
// and descriptors like @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler runs the periodic maintenance jobs: stale workspace cleanup and
// the API key usage report.
type Scheduler struct {
	cron      *cron.Cron
	workspace *workspace.Manager
	keyrings  map[string]*llm.Keyring
	logger    zerolog.Logger
}

// Options configures which jobs run and how often.
type Options struct {
	CleanupCron   string // empty disables the cleanup job
	CleanupOld    bool
	MaxAge        time.Duration // projects older than this are removed
	KeyReportCron string        // empty disables the key report job
}

func NewScheduler(ws *workspace.Manager, keyrings map[string]*llm.Keyring, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithParser(cronParser)),
		workspace: ws,
		keyrings:  keyrings,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the configured jobs and begins running them.
func (s *Scheduler) Start(opts Options) error {
	if opts.CleanupCron != "" && opts.CleanupOld {
		if _, err := s.cron.AddFunc(opts.CleanupCron, func() { s.cleanupOldProjects(opts.MaxAge) }); err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", opts.CleanupCron, err)
		}
		s.logger.Info().
			Str("schedule", opts.CleanupCron).
			Dur("max_age", opts.MaxAge).
			Msg("Workspace cleanup job scheduled")
	}
	if opts.KeyReportCron != "" && len(s.keyrings) > 0 {
		if _, err := s.cron.AddFunc(opts.KeyReportCron, s.reportKeyUsage); err != nil {
			return fmt.Errorf("invalid key report schedule %q: %w", opts.KeyReportCron, err)
		}
		s.logger.Info().Str("schedule", opts.KeyReportCron).Msg("Key usage report job scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop halts the job runner and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// cleanupOldProjects removes projects whose last update is older than maxAge.
func (s *Scheduler) cleanupOldProjects(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-maxAge)

	removed := 0
	for _, p := range s.workspace.List() {
		if p.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.workspace.Delete(p.ID); err != nil {
			s.logger.Warn().Err(err).Str("project_id", p.ID).Msg("Failed to remove stale project")
			continue
		}
		s.logger.Info().
			Str("project_id", p.ID).
			Str("name", p.Name).
			Time("updated_at", p.UpdatedAt).
			Msg("Removed stale project")
		removed++
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Workspace cleanup finished")
	}
}

// reportKeyUsage logs per-key usage counters for every configured keyring.
func (s *Scheduler) reportKeyUsage() {
	for provider, ring := range s.keyrings {
		if ring == nil || ring.Empty() {
			continue
		}
		for _, st := range ring.Stats() {
			s.logger.Info().
				Str("provider", provider).
				Str("key_id", st.KeyID).
				Int("usage", st.UsageCount).
				Int("errors", st.ErrorCount).
				Int("rate_limits", st.RateLimitCount).
				Bool("available", st.Available).
				Msg("Key usage")
		}
	}
}
