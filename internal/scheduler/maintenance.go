package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const cachePurgeSpec = "@every 5m"

type TokenRefresher interface {
	RefreshToken(ctx context.Context) error
}

type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Purger interface {
	Purge() int
}

type Alerts interface {
	Degraded(key, msg string) bool
}

type Config struct {
	TokenRefreshCron string
	ArchivePruneCron string
	Retention        time.Duration
	JobTimeout       time.Duration // per run, default 30s
}

// Jobs holds the optional job targets. A nil target disables its job.
type Jobs struct {
	Tokens  TokenRefresher
	Archive Pruner
	Cache   Purger
	Alerts  Alerts
}

// Scheduler runs the service's housekeeping on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	cfg  Config
	jobs Jobs
	now  func() time.Time

	mu      sync.Mutex
	running bool
}

func New(cfg Config, jobs Jobs) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &Scheduler{
		cron: cron.New(),
		cfg:  cfg,
		jobs: jobs,
		now:  time.Now,
	}
}

// Register adds a cron entry for every job that has a target.
func (s *Scheduler) Register() error {
	if s.jobs.Tokens != nil && s.cfg.TokenRefreshCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.TokenRefreshCron, s.runTokenRefresh); err != nil {
			return fmt.Errorf("register token refresh: %w", err)
		}
	}
	if s.jobs.Archive != nil && s.cfg.ArchivePruneCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.ArchivePruneCron, s.runArchivePrune); err != nil {
			return fmt.Errorf("register archive prune: %w", err)
		}
	}
	if s.jobs.Cache != nil {
		if _, err := s.cron.AddFunc(cachePurgeSpec, func() { s.PurgeCache() }); err != nil {
			return fmt.Errorf("register cache purge: %w", err)
		}
	}
	return nil
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		fmt.Println("[SCHEDULER] Already running")
		return
	}
	s.cron.Start()
	s.running = true
	fmt.Printf("[SCHEDULER] Started (%d jobs)\n", s.Entries())
}

// Stop halts the scheduler and waits for running jobs up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		fmt.Println("[SCHEDULER] Stopped")
	case <-ctx.Done():
		fmt.Println("[SCHEDULER] Stop timed out waiting for running jobs")
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RefreshToken requests a new exchange token, alerting on failure.
func (s *Scheduler) RefreshToken(ctx context.Context) error {
	if s.jobs.Tokens == nil {
		return nil
	}
	if err := s.jobs.Tokens.RefreshToken(ctx); err != nil {
		s.alert("token", fmt.Sprintf("Exchange token refresh failed: %v", err))
		return fmt.Errorf("refresh token: %w", err)
	}
	fmt.Println("[SCHEDULER] Exchange token refreshed")
	return nil
}

// PruneArchive deletes observations older than the retention window.
func (s *Scheduler) PruneArchive(ctx context.Context) (int64, error) {
	if s.jobs.Archive == nil {
		return 0, nil
	}
	cutoff := s.now().Add(-s.cfg.Retention)
	n, err := s.jobs.Archive.PruneBefore(ctx, cutoff)
	if err != nil {
		s.alert("archive", fmt.Sprintf("Archive prune failed: %v", err))
		return 0, fmt.Errorf("prune archive: %w", err)
	}
	fmt.Printf("[SCHEDULER] Pruned %d observations older than %s\n", n, cutoff.UTC().Format(time.RFC3339))
	return n, nil
}

func (s *Scheduler) PurgeCache() int {
	if s.jobs.Cache == nil {
		return 0
	}
	n := s.jobs.Cache.Purge()
	if n > 0 {
		fmt.Printf("[SCHEDULER] Purged %d expired cache entries\n", n)
	}
	return n
}

func (s *Scheduler) runTokenRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	if err := s.RefreshToken(ctx); err != nil {
		fmt.Printf("[SCHEDULER] %v\n", err)
	}
}

func (s *Scheduler) runArchivePrune() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	if _, err := s.PruneArchive(ctx); err != nil {
		fmt.Printf("[SCHEDULER] %v\n", err)
	}
}

func (s *Scheduler) alert(key, msg string) {
	if s.jobs.Alerts == nil {
		fmt.Printf("[SCHEDULER] %s\n", msg)
		return
	}
	s.jobs.Alerts.Degraded(key, msg)
}
