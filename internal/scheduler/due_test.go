package scheduler

import (
	"testing"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t time.Time) *time.Time {
	return &t
}

func TestIsDue(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		monitor models.Monitor
		policy  FailurePolicy
		want    bool
	}{
		{
			name:    "never checked",
			monitor: models.Monitor{Status: models.MonitorStatusActive, CheckIntervalDays: 30},
			want:    true,
		},
		{
			name:    "checked two days ago with daily interval",
			monitor: models.Monitor{Status: models.MonitorStatusActive, CheckIntervalDays: 1, LastCheckedTime: at(now.Add(-48 * time.Hour))},
			want:    true,
		},
		{
			name:    "checked twelve hours ago with daily interval",
			monitor: models.Monitor{Status: models.MonitorStatusActive, CheckIntervalDays: 1, LastCheckedTime: at(now.Add(-12 * time.Hour))},
			want:    false,
		},
		{
			name:    "exactly one day",
			monitor: models.Monitor{Status: models.MonitorStatusActive, CheckIntervalDays: 1, LastCheckedTime: at(now.Add(-24 * time.Hour))},
			want:    true,
		},
		{
			name:    "weekly interval after six and a half days",
			monitor: models.Monitor{Status: models.MonitorStatusActive, CheckIntervalDays: 7, LastCheckedTime: at(now.Add(-156 * time.Hour))},
			want:    false,
		},
		{
			name:    "zero interval checks every run",
			monitor: models.Monitor{Status: models.MonitorStatusActive, CheckIntervalDays: 0, LastCheckedTime: at(now)},
			want:    true,
		},
		{
			name:    "paused never selected",
			monitor: models.Monitor{Status: models.MonitorStatusPaused},
			want:    false,
		},
		{
			name:    "stopped never selected",
			monitor: models.Monitor{Status: models.MonitorStatusStopped},
			want:    false,
		},
		{
			name:    "errored held",
			monitor: models.Monitor{Status: models.MonitorStatusError},
			policy:  FailurePolicyHold,
			want:    false,
		},
		{
			name:    "errored retried when due",
			monitor: models.Monitor{Status: models.MonitorStatusError, CheckIntervalDays: 1, LastCheckedTime: at(now.Add(-25 * time.Hour))},
			policy:  FailurePolicyRetry,
			want:    true,
		},
		{
			name:    "errored retried but not yet due",
			monitor: models.Monitor{Status: models.MonitorStatusError, CheckIntervalDays: 1, LastCheckedTime: at(now.Add(-time.Hour))},
			policy:  FailurePolicyRetry,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := tt.policy
			if policy == "" {
				policy = FailurePolicyHold
			}

			assert.Equal(t, tt.want, IsDue(&tt.monitor, now, policy))
		})
	}
}

func TestSelectDueKeepsOrderAndSkipsInactive(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	candidates := []models.Monitor{
		{BaseModel: models.BaseModel{ID: 1}, Status: models.MonitorStatusActive},
		{BaseModel: models.BaseModel{ID: 2}, Status: models.MonitorStatusPaused},
		{BaseModel: models.BaseModel{ID: 3}, Status: models.MonitorStatusActive, CheckIntervalDays: 1, LastCheckedTime: at(now)},
		{BaseModel: models.BaseModel{ID: 4}, Status: models.MonitorStatusActive, CheckIntervalDays: 1, LastCheckedTime: at(now.AddDate(0, 0, -3))},
	}

	due := SelectDue(candidates, now, FailurePolicyHold)

	require.Len(t, due, 2)
	assert.Equal(t, uint(1), due[0].ID)
	assert.Equal(t, uint(4), due[1].ID)
}

func TestParseFailurePolicy(t *testing.T) {
	policy, err := ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailurePolicyHold, policy)

	policy, err = ParseFailurePolicy(" Retry ")
	require.NoError(t, err)
	assert.Equal(t, FailurePolicyRetry, policy)

	_, err = ParseFailurePolicy("sometimes")
	assert.Error(t, err)
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, time.Minute, policy.Delay(0))
	assert.Equal(t, 2*time.Minute, policy.Delay(1))
	assert.Equal(t, 4*time.Minute, policy.Delay(2))
}
