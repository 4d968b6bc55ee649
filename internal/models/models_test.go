package models

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestSubscriptionIsExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{name: "never expires", expiresAt: nil, want: false},
		{name: "in the past", expiresAt: &past, want: true},
		{name: "in the future", expiresAt: &future, want: false},
		{name: "exactly now", expiresAt: &now, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Subscription{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, s.IsExpired(now))
		})
	}
}

func TestMonitorMarkChecked(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := Monitor{Status: MonitorStatusActive}

	m.MarkChecked(now, false)
	require.NotNil(t, m.LastCheckedTime)
	assert.Equal(t, now, *m.LastCheckedTime)
	assert.Nil(t, m.LastFoundTime)

	later := now.Add(24 * time.Hour)
	m.MarkChecked(later, true)
	assert.Equal(t, later, *m.LastCheckedTime)
	require.NotNil(t, m.LastFoundTime)
	assert.Equal(t, later, *m.LastFoundTime)
	assert.True(t, m.IsActive())
}

func TestCheckResultFailed(t *testing.T) {
	status := 200
	assert.False(t, (&CheckResult{HTTPStatus: &status}).Failed())
	assert.True(t, (&CheckResult{HTTPStatus: &status, ErrorMessage: "parse error"}).Failed())
}

func TestColumnSizesAndDefaults(t *testing.T) {
	cache := &sync.Map{}

	notification, err := schema.Parse(&Notification{}, cache, schema.NamingStrategy{})
	require.NoError(t, err)
	assert.Equal(t, MaxNotificationSubjectLength, notification.LookUpField("Subject").Size)

	result, err := schema.Parse(&CheckResult{}, cache, schema.NamingStrategy{})
	require.NoError(t, err)
	assert.Equal(t, MaxPageTitleLength, result.LookUpField("PageTitle").Size)
	assert.Equal(t, MaxPageExcerptLength, result.LookUpField("PageExcerpt").Size)

	monitor, err := schema.Parse(&Monitor{}, cache, schema.NamingStrategy{})
	require.NoError(t, err)
	assert.Equal(t, 2048, monitor.LookUpField("URL").Size)
	assert.Equal(t, "1", monitor.LookUpField("CheckIntervalDays").DefaultValue)
	assert.Equal(t, "true", monitor.LookUpField("AlertEmail").DefaultValue)
	assert.Equal(t, "false", monitor.LookUpField("AlertSMS").DefaultValue)
}
