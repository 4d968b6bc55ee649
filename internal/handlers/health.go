package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) HealthCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ok",
		"message":   "Keywatch is running",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if h.scheduler != nil {
		response["scheduler"] = h.scheduler.GetStatus()
	}

	c.JSON(http.StatusOK, response)
}
