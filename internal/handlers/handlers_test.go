package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/monocle-dev/keywatch/internal/auth"
	"github.com/monocle-dev/keywatch/internal/handlers"
	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/monitors"
	"github.com/monocle-dev/keywatch/internal/repository/memstore"
	"github.com/monocle-dev/keywatch/internal/router"
	"github.com/monocle-dev/keywatch/internal/scheduler"
	"github.com/monocle-dev/keywatch/internal/services"
	"github.com/monocle-dev/keywatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type discardMailer struct{}

func (discardMailer) SendMail(context.Context, string, string, string) error { return nil }

type fixture struct {
	engine    *gin.Engine
	store     *memstore.Store
	hub       *handlers.Hub
	userID    uint
	otherID   uint
	monitorID uint
	foreignID uint
	token     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Terms</title></head><body>We may erase your data.</body></html>"))
	}))
	t.Cleanup(page.Close)

	store := memstore.New()
	userID := store.AddUser(models.User{Name: "Ada", Email: "ada@example.com"})
	otherID := store.AddUser(models.User{Name: "Bob", Email: "bob@example.com"})
	store.AddSubscription(models.Subscription{UserID: userID, Status: models.SubscriptionStatusActive})

	lastChecked := time.Now()
	monitorID := store.AddMonitor(models.Monitor{
		UserID:            userID,
		URL:               page.URL,
		Keyword:           "erase",
		Status:            models.MonitorStatusActive,
		CheckIntervalDays: 7,
		LastCheckedTime:   &lastChecked,
		AlertEmail:        true,
	})
	foreignID := store.AddMonitor(models.Monitor{UserID: otherID, URL: page.URL, Keyword: "erase", Status: models.MonitorStatusActive})

	runner := scheduler.NewRunner(store, monitors.NewFetcher(types.DefaultCheckConfig()), services.NewDispatcher(store, discardMailer{}), scheduler.Options{})
	sched := scheduler.NewScheduler(runner, store, scheduler.ScheduleConfig{CheckSpec: "0 0 * * *"})

	hub := handlers.NewHub(nil)
	runner.OnResult(hub.Broadcast)

	engine := router.NewRouter(router.Config{JWTSecret: testSecret}, handlers.NewHandler(store, sched, hub), store)

	token, err := auth.GenerateJWT(testSecret, userID, "ada@example.com", time.Hour)
	require.NoError(t, err)

	return &fixture{engine: engine, store: store, hub: hub, userID: userID, otherID: otherID, monitorID: monitorID, foreignID: foreignID, token: token}
}

func (f *fixture) monitorPath(id uint, suffix string) string {
	return fmt.Sprintf("/api/monitors/%d/%s", id, suffix)
}

func (f *fixture) do(method, path string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)

	return rec
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/health", false)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "scheduler")
}

func TestRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/monitors", "/api/notifications", "/api/monitors/1/checks"} {
		rec := f.do(http.MethodGet, path, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/monitors", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetMonitorsIsScopedToCaller(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/monitors", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var monitors []handlers.MonitorSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &monitors))
	require.Len(t, monitors, 1)
	assert.Equal(t, f.monitorID, monitors[0].ID)
	assert.Equal(t, "erase", monitors[0].Keyword)
}

func TestGetMonitorChecksHidesOtherUsersMonitors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, f.monitorPath(f.foreignID, "checks"), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/monitors/abc/checks", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, f.monitorPath(f.monitorID, "checks?limit=-1"), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunMonitorCheckRecordsResult(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, f.monitorPath(f.monitorID, "check"), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response handlers.CheckRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotNil(t, response.Summary)
	assert.Equal(t, 1, response.Summary.Checked)
	assert.Equal(t, 1, response.Summary.Found)
	require.NotNil(t, response.Result)
	assert.True(t, response.Result.KeywordFound)
	assert.Equal(t, "Terms", response.Result.PageTitle)

	rec = f.do(http.MethodGet, f.monitorPath(f.monitorID, "checks"), true)
	require.Equal(t, http.StatusOK, rec.Code)

	var checks []handlers.CheckResultSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checks))
	assert.Len(t, checks, 1)

	rec = f.do(http.MethodGet, "/api/notifications?limit=10", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var notifications []handlers.NotificationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifications))
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationKeywordFound, notifications[0].Type)
	assert.Equal(t, models.NotificationStatusSent, notifications[0].Status)
	assert.NotEmpty(t, notifications[0].DeliveryLog)
}

func TestRunMonitorCheckUnknownMonitor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, f.monitorPath(99, "check"), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, f.monitorPath(f.foreignID, "check"), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketStreamsCheckEvents(t *testing.T) {
	f := newFixture(t)

	server := httptest.NewServer(f.engine)
	defer server.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.token)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	var welcome map[string]interface{}
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "connected", welcome["type"])
	require.Eventually(t, func() bool { return f.hub.Connections(f.userID) == 1 }, time.Second, 10*time.Millisecond)

	rec := f.do(http.MethodPost, f.monitorPath(f.monitorID, "check"), true)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var message struct {
		Type string               `json:"type"`
		Data scheduler.CheckEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "check", message.Type)
	assert.Equal(t, f.monitorID, message.Data.MonitorID)
	assert.True(t, message.Data.KeywordFound)
}
