package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/monocle-dev/keywatch/internal/lock"
	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/monitors"
	"github.com/monocle-dev/keywatch/internal/repository"
	"github.com/monocle-dev/keywatch/internal/services"
	"github.com/monocle-dev/keywatch/internal/subscriptions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const DefaultRequestDelay = 500 * time.Millisecond

// PageFetcher is satisfied by *monitors.Fetcher
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*monitors.Page, error)
}

// Guard keeps two workers from checking the same monitor at once
type Guard interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type Options struct {
	RequestDelay    time.Duration
	WarningDays     int
	FailurePolicy   FailurePolicy
	NotifyOnFailure bool
}

// RunOptions filters a batch. A filtered batch ignores the due window.
type RunOptions struct {
	MonitorID uint
	UserID    uint
}

func (o RunOptions) filtered() bool {
	return o.MonitorID != 0 || o.UserID != 0
}

type Summary struct {
	BatchID  string        `json:"batch_id"`
	Selected int           `json:"selected"`
	Checked  int           `json:"checked"`
	Found    int           `json:"found"`
	Errored  int           `json:"errored"`
	Skipped  int           `json:"skipped"`
	Warned   int           `json:"warned"`
	Duration time.Duration `json:"duration"`
}

// CheckEvent is published after every recorded check
type CheckEvent struct {
	BatchID      string    `json:"batch_id"`
	MonitorID    uint      `json:"monitor_id"`
	UserID       uint      `json:"user_id"`
	URL          string    `json:"url"`
	Keyword      string    `json:"keyword"`
	Status       string    `json:"status"`
	KeywordFound bool      `json:"keyword_found"`
	HTTPStatus   *int      `json:"http_status"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Runner executes check batches sequentially with a global fetch throttle
type Runner struct {
	repo     repository.Repository
	fetcher  PageFetcher
	notifier subscriptions.Notifier
	recorder *Recorder
	options  Options
	guard    Guard
	now      func() time.Time

	mu        sync.RWMutex
	observers []func(CheckEvent)
}

func NewRunner(repo repository.Repository, fetcher PageFetcher, notifier subscriptions.Notifier, options Options) *Runner {
	if options.FailurePolicy == "" {
		options.FailurePolicy = FailurePolicyHold
	}

	if options.WarningDays == 0 {
		options.WarningDays = subscriptions.DefaultWarningDays
	}

	if options.RequestDelay < 0 {
		options.RequestDelay = 0
	}

	return &Runner{
		repo:     repo,
		fetcher:  fetcher,
		notifier: notifier,
		recorder: NewRecorder(repo, repo, options.FailurePolicy),
		options:  options,
		now:      time.Now,
	}
}

// WithGuard sets a per-monitor lock used around each check
func (r *Runner) WithGuard(guard Guard) *Runner {
	r.guard = guard
	return r
}

// OnResult registers fn to receive every CheckEvent
func (r *Runner) OnResult(fn func(CheckEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers = append(r.observers, fn)
}

type batch struct {
	id      string
	summary *Summary
	gate    *subscriptions.Gate
	limiter *rate.Limiter
	users   map[uint]*models.User
}

// Run executes one batch. Per-monitor failures are counted in the summary and never
// returned. The error is only set when the monitor set cannot be loaded or ctx ends.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	start := time.Now()

	b := &batch{
		id:      uuid.NewString(),
		gate:    subscriptions.NewGate(r.repo, r.repo, r.notifier, r.options.WarningDays),
		limiter: r.newLimiter(),
		users:   make(map[uint]*models.User),
	}
	b.summary = &Summary{BatchID: b.id}

	logger := log.With().Str("batch_id", b.id).Logger()

	candidates, err := r.repo.ListMonitors(ctx, repository.MonitorFilter{
		MonitorID: opts.MonitorID,
		UserID:    opts.UserID,
		Statuses:  r.options.FailurePolicy.EligibleStatuses(),
	})

	if err != nil {
		return b.summary, fmt.Errorf("load monitors: %w", err)
	}

	selected := candidates
	if !opts.filtered() {
		selected = SelectDue(candidates, r.now(), r.options.FailurePolicy)
	}

	b.summary.Selected = len(selected)

	logger.Info().
		Int("candidates", len(candidates)).
		Int("selected", len(selected)).
		Uint("monitor_id", opts.MonitorID).
		Uint("user_id", opts.UserID).
		Msg("Starting check batch")

	for i := range selected {
		if err := ctx.Err(); err != nil {
			b.summary.Duration = time.Since(start)
			return b.summary, err
		}

		r.processSafely(ctx, b, &selected[i])
	}

	b.summary.Duration = time.Since(start)

	logger.Info().
		Int("checked", b.summary.Checked).
		Int("found", b.summary.Found).
		Int("errors", b.summary.Errored).
		Int("skipped", b.summary.Skipped).
		Int("warned", b.summary.Warned).
		Dur("duration", b.summary.Duration).
		Msg("Check batch complete")

	return b.summary, nil
}

func (r *Runner) newLimiter() *rate.Limiter {
	if r.options.RequestDelay == 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	return rate.NewLimiter(rate.Every(r.options.RequestDelay), 1)
}

// processSafely contains a panic in one monitor to that monitor
func (r *Runner) processSafely(ctx context.Context, b *batch, m *models.Monitor) {
	defer func() {
		if rec := recover(); rec != nil {
			b.summary.Errored++
			log.Error().Str("batch_id", b.id).Uint("monitor_id", m.ID).Interface("panic", rec).Msg("Monitor check panicked")
		}
	}()

	r.process(ctx, b, m)
}

func (r *Runner) process(ctx context.Context, b *batch, m *models.Monitor) {
	logger := log.With().Str("batch_id", b.id).Uint("monitor_id", m.ID).Uint("user_id", m.UserID).Logger()

	if r.guard != nil {
		release, err := r.guard.Acquire(ctx, "monitor:"+strconv.FormatUint(uint64(m.ID), 10))

		switch {
		case errors.Is(err, lock.ErrLockHeld):
			logger.Info().Msg("Monitor is being checked elsewhere, skipping")
			b.summary.Skipped++
			return
		case err != nil:
			logger.Warn().Err(err).Msg("Could not take monitor lock, checking anyway")
		default:
			defer release()
		}
	}

	user, err := r.user(ctx, b, m.UserID)

	if err != nil {
		logger.Error().Err(err).Msg("Failed to load monitor owner")
		b.summary.Errored++
		return
	}

	verdict, err := b.gate.Evaluate(ctx, m, user, r.now())

	if err != nil {
		logger.Error().Err(err).Msg("Subscription gate failed")
		b.summary.Errored++
		return
	}

	if verdict.Warned() {
		b.summary.Warned++
	}

	if !verdict.Decision.AllowsCheck() {
		logger.Debug().Stringer("decision", verdict.Decision).Msg("Monitor skipped by subscription gate")
		b.summary.Skipped++
		return
	}

	if err := b.limiter.Wait(ctx); err != nil {
		logger.Warn().Err(err).Msg("Throttle wait aborted")
		b.summary.Errored++
		return
	}

	outcome := r.check(ctx, m)
	checkedAt := r.now()

	result, err := r.recorder.Record(ctx, m, outcome, checkedAt)

	if err != nil {
		logger.Error().Err(err).Msg("Failed to record check")
		b.summary.Errored++
		return
	}

	r.publish(b, m, result)

	if outcome.Err != nil {
		logger.Warn().Err(outcome.Err).Str("url", m.URL).Msg("Monitor check failed")
		b.summary.Errored++

		if r.options.NotifyOnFailure {
			r.notify(ctx, logger, services.Event{
				Type:         models.NotificationCheckFailed,
				User:         user,
				Monitor:      m,
				ErrorMessage: result.ErrorMessage,
				At:           checkedAt,
			})
		}

		return
	}

	b.summary.Checked++

	logger.Debug().
		Str("url", m.URL).
		Str("keyword", m.Keyword).
		Bool("found", outcome.Found).
		Dur("response_time", outcome.ResponseTime).
		Msg("Monitor checked")

	if outcome.Found {
		b.summary.Found++

		r.notify(ctx, logger, services.Event{
			Type:        models.NotificationKeywordFound,
			User:        user,
			Monitor:     m,
			PageTitle:   result.PageTitle,
			PageExcerpt: result.PageExcerpt,
			At:          checkedAt,
		})
	}
}

// check runs fetch, extraction and matching, timing the whole span
func (r *Runner) check(ctx context.Context, m *models.Monitor) CheckOutcome {
	start := time.Now()

	page, err := r.fetcher.Fetch(ctx, m.URL)

	if err != nil {
		outcome := CheckOutcome{Err: err, ResponseTime: time.Since(start)}

		var fetchErr *monitors.FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
			status := fetchErr.StatusCode
			outcome.StatusCode = &status
		}

		return outcome
	}

	status := page.StatusCode

	content, err := monitors.ExtractContent(page.Body)

	if err != nil {
		return CheckOutcome{Err: err, StatusCode: &status, ResponseTime: time.Since(start)}
	}

	match := monitors.MatchKeyword(content.Text, m.Keyword)

	return CheckOutcome{
		Found:        match.Found,
		Title:        content.Title,
		Excerpt:      match.Excerpt,
		StatusCode:   &status,
		ResponseTime: time.Since(start),
	}
}

func (r *Runner) notify(ctx context.Context, logger zerolog.Logger, ev services.Event) {
	if _, err := r.notifier.Dispatch(ctx, ev); err != nil {
		logger.Error().Err(err).Str("type", ev.Type).Msg("Failed to record notification")
	}
}

func (r *Runner) user(ctx context.Context, b *batch, userID uint) (*models.User, error) {
	if user, ok := b.users[userID]; ok {
		return user, nil
	}

	user, err := r.repo.GetUser(ctx, userID)

	if err != nil {
		return nil, err
	}

	b.users[userID] = user

	return user, nil
}

func (r *Runner) publish(b *batch, m *models.Monitor, result *models.CheckResult) {
	r.mu.RLock()
	observers := append([]func(CheckEvent){}, r.observers...)
	r.mu.RUnlock()

	if len(observers) == 0 {
		return
	}

	event := CheckEvent{
		BatchID:      b.id,
		MonitorID:    m.ID,
		UserID:       m.UserID,
		URL:          m.URL,
		Keyword:      m.Keyword,
		Status:       m.Status,
		KeywordFound: result.KeywordFound,
		HTTPStatus:   result.HTTPStatus,
		Error:        result.ErrorMessage,
		CheckedAt:    result.CheckedAt,
	}

	for _, observer := range observers {
		observer(event)
	}
}
