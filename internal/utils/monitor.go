package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetMonitorID(ctx *gin.Context) (uint, error) {
	monitorIDStr := ctx.Param("monitor_id")

	if monitorIDStr == "" {
		return 0, errors.New("Monitor ID not found")
	}

	monitorID, err := strconv.ParseUint(monitorIDStr, 10, 32)

	if err != nil || monitorID == 0 {
		return 0, errors.New("Invalid Monitor ID")
	}

	return uint(monitorID), nil
}

// GetLimit reads the limit query parameter, falling back to def and capping at max
func GetLimit(ctx *gin.Context, def, max int) (int, error) {
	limitStr := ctx.Query("limit")

	if limitStr == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(limitStr)

	if err != nil || limit < 1 {
		return 0, errors.New("Limit must be a positive integer")
	}

	if limit > max {
		limit = max
	}

	return limit, nil
}
