package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/repository"
	"github.com/monocle-dev/keywatch/internal/scheduler"
	"github.com/monocle-dev/keywatch/internal/utils"
	"github.com/rs/zerolog/log"
)

type MonitorSummary struct {
	ID                uint       `json:"id"`
	URL               string     `json:"url"`
	Keyword           string     `json:"keyword"`
	Status            string     `json:"status"`
	CheckIntervalDays int        `json:"check_interval_days"`
	LastCheckedTime   *time.Time `json:"last_checked_time"`
	LastFoundTime     *time.Time `json:"last_found_time"`
	AlertEmail        bool       `json:"alert_email"`
	AlertSMS          bool       `json:"alert_sms"`
}

type CheckResultSummary struct {
	ID             uint      `json:"id"`
	CheckedAt      time.Time `json:"checked_at"`
	KeywordFound   bool      `json:"keyword_found"`
	PageTitle      string    `json:"page_title"`
	PageExcerpt    string    `json:"page_excerpt"`
	HTTPStatus     *int      `json:"http_status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ResponseTimeMS *int      `json:"response_time_ms"`
}

type CheckRunResponse struct {
	Summary *scheduler.Summary  `json:"summary"`
	Result  *CheckResultSummary `json:"result"`
}

func toMonitorSummary(m models.Monitor) MonitorSummary {
	return MonitorSummary{
		ID:                m.ID,
		URL:               m.URL,
		Keyword:           m.Keyword,
		Status:            m.Status,
		CheckIntervalDays: m.CheckIntervalDays,
		LastCheckedTime:   m.LastCheckedTime,
		LastFoundTime:     m.LastFoundTime,
		AlertEmail:        m.AlertEmail,
		AlertSMS:          m.AlertSMS,
	}
}

func toCheckResultSummary(r models.CheckResult) CheckResultSummary {
	return CheckResultSummary{
		ID:             r.ID,
		CheckedAt:      r.CheckedAt,
		KeywordFound:   r.KeywordFound,
		PageTitle:      r.PageTitle,
		PageExcerpt:    r.PageExcerpt,
		HTTPStatus:     r.HTTPStatus,
		ErrorMessage:   r.ErrorMessage,
		ResponseTimeMS: r.ResponseTimeMS,
	}
}

func (h *Handler) GetMonitors(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	monitors, err := h.repo.ListMonitors(ctx.Request.Context(), repository.MonitorFilter{UserID: userID})

	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("Failed to list monitors")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve monitors"})
		return
	}

	summaries := make([]MonitorSummary, 0, len(monitors))
	for _, monitor := range monitors {
		summaries = append(summaries, toMonitorSummary(monitor))
	}

	ctx.JSON(http.StatusOK, summaries)
}

// loadMonitor resolves :monitor_id for the caller, writing the error response itself
func (h *Handler) loadMonitor(ctx *gin.Context) (*models.Monitor, bool) {
	monitorID, err := utils.GetMonitorID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	monitor, err := h.repo.GetUserMonitor(ctx.Request.Context(), monitorID, userID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
		} else {
			log.Error().Err(err).Uint("monitor_id", monitorID).Msg("Failed to retrieve monitor")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve monitor"})
		}
		return nil, false
	}

	return monitor, true
}

func (h *Handler) GetMonitorChecks(ctx *gin.Context) {
	monitor, ok := h.loadMonitor(ctx)

	if !ok {
		return
	}

	limit, err := utils.GetLimit(ctx, defaultListLimit, maxListLimit)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.repo.ListCheckResults(ctx.Request.Context(), monitor.ID, limit)

	if err != nil {
		log.Error().Err(err).Uint("monitor_id", monitor.ID).Msg("Failed to list check results")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve monitor checks"})
		return
	}

	summaries := make([]CheckResultSummary, 0, len(results))
	for _, result := range results {
		summaries = append(summaries, toCheckResultSummary(result))
	}

	ctx.JSON(http.StatusOK, summaries)
}

// RunMonitorCheck forces a single-monitor batch outside the due window
func (h *Handler) RunMonitorCheck(ctx *gin.Context) {
	monitor, ok := h.loadMonitor(ctx)

	if !ok {
		return
	}

	if h.scheduler == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Checks are not available"})
		return
	}

	startedAt := time.Now().Truncate(time.Microsecond)

	summary, err := h.scheduler.RunNow(ctx.Request.Context(), scheduler.RunOptions{
		MonitorID: monitor.ID,
		UserID:    monitor.UserID,
	})

	if err != nil {
		if errors.Is(err, scheduler.ErrBatchRunning) {
			ctx.JSON(http.StatusConflict, gin.H{"error": "A check batch is already running"})
		} else {
			log.Error().Err(err).Uint("monitor_id", monitor.ID).Msg("Forced check failed")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run check"})
		}
		return
	}

	response := CheckRunResponse{Summary: summary}

	results, err := h.repo.ListCheckResults(ctx.Request.Context(), monitor.ID, 1)

	if err == nil && len(results) == 1 && !results[0].CheckedAt.Before(startedAt) {
		latest := toCheckResultSummary(results[0])
		response.Result = &latest
	}

	ctx.JSON(http.StatusOK, response)
}
