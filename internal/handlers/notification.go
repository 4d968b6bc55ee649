package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/keywatch/internal/utils"
	"github.com/rs/zerolog/log"
)

type NotificationSummary struct {
	ID             uint            `json:"id"`
	MonitorID      *uint           `json:"monitor_id"`
	Type           string          `json:"type"`
	DeliveryMethod string          `json:"delivery_method"`
	Status         string          `json:"status"`
	Subject        string          `json:"subject"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	DeliveryLog    json.RawMessage `json:"delivery_log,omitempty"`
	SentAt         *time.Time      `json:"sent_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (h *Handler) GetNotifications(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit, err := utils.GetLimit(ctx, defaultListLimit, maxListLimit)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notifications, err := h.repo.ListNotifications(ctx.Request.Context(), userID, limit)

	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("Failed to list notifications")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}

	summaries := make([]NotificationSummary, 0, len(notifications))
	for _, n := range notifications {
		summary := NotificationSummary{
			ID:             n.ID,
			MonitorID:      n.MonitorID,
			Type:           n.Type,
			DeliveryMethod: n.DeliveryMethod,
			Status:         n.Status,
			Subject:        n.Subject,
			ErrorMessage:   n.ErrorMessage,
			SentAt:         n.SentAt,
			CreatedAt:      n.CreatedAt,
		}

		if len(n.DeliveryLog) > 0 {
			summary.DeliveryLog = json.RawMessage(n.DeliveryLog)
		}

		summaries = append(summaries, summary)
	}

	ctx.JSON(http.StatusOK, summaries)
}
