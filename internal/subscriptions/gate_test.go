package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/repository/memstore"
	"github.com/monocle-dev/keywatch/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMailer struct{ sent int }

func (m *nopMailer) SendMail(context.Context, string, string, string) error {
	m.sent++
	return nil
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memstore.Store
	mailer  *nopMailer
	gate    *Gate
	user    *models.User
	monitor *models.Monitor
}

func newFixture(t *testing.T, expiresAt *time.Time) (*fixture, uint) {
	t.Helper()

	store := memstore.New()
	mailer := &nopMailer{}

	userID := store.AddUser(models.User{Name: "Ada", Email: "ada@example.com"})
	user, err := store.GetUser(context.Background(), userID)
	require.NoError(t, err)

	monitorID := store.AddMonitor(models.Monitor{UserID: userID, URL: "https://example.com", Keyword: "Erase", Status: models.MonitorStatusActive, AlertEmail: true})
	monitor, _ := store.Monitor(monitorID)

	subscriptionID := store.AddSubscription(models.Subscription{UserID: userID, Keyword: "Erase", Status: models.SubscriptionStatusActive, ExpiresAt: expiresAt})

	gate := NewGate(store, store, services.NewDispatcher(store, mailer), DefaultWarningDays)

	return &fixture{store: store, mailer: mailer, gate: gate, user: user, monitor: &monitor}, subscriptionID
}

func TestWholeDays(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{in: 0, want: 0},
		{in: 12 * time.Hour, want: 0},
		{in: 36 * time.Hour, want: 1},
		{in: 7 * 24 * time.Hour, want: 7},
		{in: 8*24*time.Hour - time.Second, want: 7},
		{in: -time.Hour, want: -1},
		{in: -48 * time.Hour, want: -2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, WholeDays(tt.in), "WholeDays(%s)", tt.in)
	}
}

func TestGateSkipsWithoutSubscription(t *testing.T) {
	store := memstore.New()
	userID := store.AddUser(models.User{Email: "x@example.com"})
	monitorID := store.AddMonitor(models.Monitor{UserID: userID, Status: models.MonitorStatusActive})
	monitor, _ := store.Monitor(monitorID)
	user, _ := store.GetUser(context.Background(), userID)

	gate := NewGate(store, store, services.NewDispatcher(store, &nopMailer{}), DefaultWarningDays)
	verdict, err := gate.Evaluate(context.Background(), &monitor, user, now)

	require.NoError(t, err)
	assert.Equal(t, DecisionSkip, verdict.Decision)
	assert.False(t, verdict.Decision.AllowsCheck())

	stored, _ := store.Monitor(monitorID)
	assert.Equal(t, models.MonitorStatusActive, stored.Status)
	assert.Empty(t, store.Notifications())
}

func TestGateExpiresSubscription(t *testing.T) {
	expiresAt := now.Add(-time.Hour)
	f, subscriptionID := newFixture(t, &expiresAt)

	verdict, err := f.gate.Evaluate(context.Background(), f.monitor, f.user, now)

	require.NoError(t, err)
	assert.Equal(t, DecisionExpired, verdict.Decision)
	assert.False(t, verdict.Decision.AllowsCheck())

	monitor, _ := f.store.Monitor(f.monitor.ID)
	assert.Equal(t, models.MonitorStatusPaused, monitor.Status)

	subscription, _ := f.store.Subscription(subscriptionID)
	assert.Equal(t, models.SubscriptionStatusExpired, subscription.Status)

	notifications := f.store.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationSubscriptionExpired, notifications[0].Type)
	assert.Equal(t, models.NotificationStatusSent, notifications[0].Status)
	assert.Equal(t, models.DeliveryEmail, notifications[0].DeliveryMethod)
}

func TestGateWarnsOnceWhenExpiringSoon(t *testing.T) {
	expiresAt := now.Add(7 * 24 * time.Hour)
	f, _ := newFixture(t, &expiresAt)

	verdict, err := f.gate.Evaluate(context.Background(), f.monitor, f.user, now)

	require.NoError(t, err)
	assert.Equal(t, DecisionExpiringSoon, verdict.Decision)
	assert.True(t, verdict.Decision.AllowsCheck())
	assert.True(t, verdict.Warned())

	second, err := f.gate.Evaluate(context.Background(), f.monitor, f.user, now)
	require.NoError(t, err)
	assert.Equal(t, DecisionExpiringSoon, second.Decision)
	assert.False(t, second.Warned())

	notifications := f.store.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationSubscriptionExpiring, notifications[0].Type)
	assert.Equal(t, 1, f.mailer.sent)
}

func TestGateProceeds(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt *time.Time
	}{
		{name: "never expires", expiresAt: nil},
		{name: "eight days left", expiresAt: ptr(now.Add(8 * 24 * time.Hour))},
		{name: "six days left", expiresAt: ptr(now.Add(6*24*time.Hour + time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newFixture(t, tt.expiresAt)

			verdict, err := f.gate.Evaluate(context.Background(), f.monitor, f.user, now)

			require.NoError(t, err)
			assert.Equal(t, DecisionProceed, verdict.Decision)
			assert.Empty(t, f.store.Notifications())
		})
	}
}

func ptr(t time.Time) *time.Time {
	return &t
}
