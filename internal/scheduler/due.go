package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/subscriptions"
)

// FailurePolicy decides what happens to a monitor after a failed check
type FailurePolicy string

const (
	// FailurePolicyHold leaves errored monitors out of every batch until someone reactivates them
	FailurePolicyHold FailurePolicy = "hold"
	// FailurePolicyRetry keeps errored monitors eligible and restores them to active on success
	FailurePolicyRetry FailurePolicy = "retry"
)

func ParseFailurePolicy(value string) (FailurePolicy, error) {
	switch policy := FailurePolicy(strings.ToLower(strings.TrimSpace(value))); policy {
	case "":
		return FailurePolicyHold, nil
	case FailurePolicyHold, FailurePolicyRetry:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", value, FailurePolicyHold, FailurePolicyRetry)
	}
}

// EligibleStatuses lists the monitor statuses a batch may pick up under the policy
func (p FailurePolicy) EligibleStatuses() []string {
	if p == FailurePolicyRetry {
		return []string{models.MonitorStatusActive, models.MonitorStatusError}
	}

	return []string{models.MonitorStatusActive}
}

func (p FailurePolicy) eligible(status string) bool {
	for _, s := range p.EligibleStatuses() {
		if s == status {
			return true
		}
	}

	return false
}

// IsDue reports whether m should be checked at now. Elapsed time is compared in whole
// days, never checked monitors are always due, and an interval of 0 is due on every run.
func IsDue(m *models.Monitor, now time.Time, policy FailurePolicy) bool {
	if !policy.eligible(m.Status) {
		return false
	}

	if m.LastCheckedTime == nil || m.CheckIntervalDays <= 0 {
		return true
	}

	return subscriptions.WholeDays(now.Sub(*m.LastCheckedTime)) >= m.CheckIntervalDays
}

// SelectDue returns the due subset of candidates, preserving order
func SelectDue(candidates []models.Monitor, now time.Time, policy FailurePolicy) []models.Monitor {
	due := make([]models.Monitor, 0, len(candidates))

	for i := range candidates {
		if IsDue(&candidates[i], now, policy) {
			due = append(due, candidates[i])
		}
	}

	return due
}
