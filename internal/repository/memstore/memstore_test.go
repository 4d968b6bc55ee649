package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFiltersAndOwnership(t *testing.T) {
	store := New()
	ctx := context.Background()

	user := store.AddUser(models.User{Name: "A", Email: "a@example.com"})
	active := store.AddMonitor(models.Monitor{UserID: user, Status: models.MonitorStatusActive})
	store.AddMonitor(models.Monitor{UserID: user, Status: models.MonitorStatusPaused})

	monitors, err := store.ListMonitors(ctx, repository.MonitorFilter{Statuses: []string{models.MonitorStatusActive}})
	require.NoError(t, err)
	require.Len(t, monitors, 1)
	assert.Equal(t, active, monitors[0].ID)

	_, err = store.GetUserMonitor(ctx, active, user+100)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStoreActiveSubscriptionAndRetention(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	store.AddSubscription(models.Subscription{BaseModel: models.BaseModel{CreatedAt: base}, UserID: 1, Keyword: "old", Status: models.SubscriptionStatusActive})
	store.AddSubscription(models.Subscription{BaseModel: models.BaseModel{CreatedAt: base.Add(time.Hour)}, UserID: 1, Keyword: "new", Status: models.SubscriptionStatusActive})

	subscription, err := store.GetActiveSubscription(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, subscription)
	assert.Equal(t, "new", subscription.Keyword)

	none, err := store.GetActiveSubscription(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, store.CreateCheckResult(ctx, &models.CheckResult{MonitorID: 1, CheckedAt: base}))
	require.NoError(t, store.CreateCheckResult(ctx, &models.CheckResult{MonitorID: 1, CheckedAt: base.AddDate(0, 0, 100)}))

	deleted, err := store.DeleteCheckResultsBefore(ctx, base.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, store.CheckResults(1), 1)
}
