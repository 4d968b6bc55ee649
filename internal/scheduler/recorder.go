package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/monitors"
	"github.com/monocle-dev/keywatch/internal/repository"
)

// CheckOutcome is the result of one fetch, parse and match span
type CheckOutcome struct {
	Found        bool
	Title        string
	Excerpt      string
	StatusCode   *int
	Err          error
	ResponseTime time.Duration
}

// Recorder persists check outcomes and advances monitor state
type Recorder struct {
	monitors repository.MonitorRepository
	results  repository.CheckResultRepository
	policy   FailurePolicy
}

func NewRecorder(monitors repository.MonitorRepository, results repository.CheckResultRepository, policy FailurePolicy) *Recorder {
	return &Recorder{monitors: monitors, results: results, policy: policy}
}

// Record writes one CheckResult for outcome and updates m. A failed outcome moves
// the monitor to error. The monitor is only touched once the result row exists.
func (r *Recorder) Record(ctx context.Context, m *models.Monitor, outcome CheckOutcome, at time.Time) (*models.CheckResult, error) {
	responseMS := int(outcome.ResponseTime.Milliseconds())

	result := &models.CheckResult{
		MonitorID:      m.ID,
		CheckedAt:      at,
		HTTPStatus:     outcome.StatusCode,
		ResponseTimeMS: &responseMS,
	}

	if outcome.Err != nil {
		result.KeywordFound = false
		result.ErrorMessage = outcome.Err.Error()
	} else {
		result.KeywordFound = outcome.Found
		result.PageTitle = monitors.TruncateRunes(outcome.Title, models.MaxPageTitleLength)
		result.PageExcerpt = monitors.TruncateRunes(outcome.Excerpt, models.MaxPageExcerptLength)
	}

	if err := r.results.CreateCheckResult(ctx, result); err != nil {
		return nil, fmt.Errorf("store check result for monitor %d: %w", m.ID, err)
	}

	if outcome.Err != nil {
		m.Status = models.MonitorStatusError
		m.MarkChecked(at, false)
	} else {
		if r.policy == FailurePolicyRetry && m.Status == models.MonitorStatusError {
			m.Status = models.MonitorStatusActive
		}
		m.MarkChecked(at, outcome.Found)
	}

	if err := r.monitors.SaveMonitor(ctx, m); err != nil {
		return result, fmt.Errorf("update monitor %d: %w", m.ID, err)
	}

	return result, nil
}
