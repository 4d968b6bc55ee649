package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/monocle-dev/keywatch/internal/repository"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var ErrBatchRunning = errors.New("a check batch is already running")

type ScheduleConfig struct {
	CheckSpec     string // cron spec for the check batch
	CleanupSpec   string // cron spec for the retention sweep, empty disables it
	RetentionDays int    // 0 disables the retention sweep
	Retry         RetryPolicy
}

// Scheduler drives check batches and the retention sweep from cron
type Scheduler struct {
	cron    *cron.Cron
	runner  *Runner
	results repository.CheckResultRepository
	config  ScheduleConfig
	ctx     context.Context
	cancel  context.CancelFunc

	batchMu sync.Mutex

	mu          sync.RWMutex
	lastSummary *Summary
	lastRunAt   time.Time
	lastErr     error
}

// NewScheduler initializes a new Scheduler instance
func NewScheduler(runner *Runner, results repository.CheckResultRepository, config ScheduleConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	logger := cronLogger{}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		runner:  runner,
		results: results,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the jobs and begins scheduling
func (s *Scheduler) Start() error {
	log.Info().Str("check_spec", s.config.CheckSpec).Msg("Starting scheduler...")

	if _, err := s.cron.AddFunc(s.config.CheckSpec, s.runScheduledBatch); err != nil {
		return fmt.Errorf("schedule check batch %q: %w", s.config.CheckSpec, err)
	}

	if s.config.CleanupSpec != "" && s.config.RetentionDays > 0 {
		if _, err := s.cron.AddFunc(s.config.CleanupSpec, s.runScheduledCleanup); err != nil {
			return fmt.Errorf("schedule cleanup %q: %w", s.config.CleanupSpec, err)
		}
	}

	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")

	return nil
}

// Stop cancels running work and waits for jobs in flight
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")
	s.cancel()

	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

// RunBatch runs one batch now under the configured retry policy unless another batch holds the slot
func (s *Scheduler) RunBatch(ctx context.Context, opts RunOptions) (*Summary, error) {
	return s.runExclusive(ctx, opts, s.config.Retry)
}

// RunNow runs one batch without retries, for callers that are waiting on the result
func (s *Scheduler) RunNow(ctx context.Context, opts RunOptions) (*Summary, error) {
	return s.runExclusive(ctx, opts, RetryPolicy{})
}

func (s *Scheduler) runExclusive(ctx context.Context, opts RunOptions, policy RetryPolicy) (*Summary, error) {
	if !s.batchMu.TryLock() {
		return nil, ErrBatchRunning
	}
	defer s.batchMu.Unlock()

	summary, err := s.runner.RunWithRetry(ctx, opts, policy)

	s.mu.Lock()
	s.lastSummary = summary
	s.lastRunAt = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	return summary, err
}

// Cleanup deletes check results older than the retention window
func (s *Scheduler) Cleanup(ctx context.Context) (int64, error) {
	return CleanupResults(ctx, s.results, s.config.RetentionDays, time.Now())
}

// CleanupResults deletes results checked more than retentionDays before now
func CleanupResults(ctx context.Context, results repository.CheckResultRepository, retentionDays int, now time.Time) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := now.AddDate(0, 0, -retentionDays)

	deleted, err := results.DeleteCheckResultsBefore(ctx, cutoff)

	if err != nil {
		return 0, fmt.Errorf("delete check results before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Cleaned up old check results")

	return deleted, nil
}

func (s *Scheduler) runScheduledBatch() {
	if _, err := s.RunBatch(s.ctx, RunOptions{}); err != nil {
		if errors.Is(err, ErrBatchRunning) {
			log.Warn().Msg("Previous check batch still running, skipping tick")
			return
		}

		log.Error().Err(err).Msg("Scheduled check batch failed")
	}
}

func (s *Scheduler) runScheduledCleanup() {
	if _, err := s.Cleanup(s.ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled cleanup failed")
	}
}

// GetStatus returns current scheduler status
func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]interface{}{
		"running":      s.ctx.Err() == nil,
		"jobs":         len(s.cron.Entries()),
		"last_summary": s.lastSummary,
	}

	if !s.lastRunAt.IsZero() {
		status["last_run_at"] = s.lastRunAt.Format(time.RFC3339)
	}

	if s.lastErr != nil {
		status["last_error"] = s.lastErr.Error()
	}

	return status
}

// cronLogger routes robfig/cron logging into zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
