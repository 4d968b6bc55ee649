package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/keywatch/internal/middleware"
	"github.com/monocle-dev/keywatch/internal/types"
)

var ErrNotAuthenticated = errors.New("User not authenticated")

// GetCurrentUser returns the user AuthMiddleware stored on ctx
func GetCurrentUser(ctx *gin.Context) (middleware.AuthenticatedUser, error) {
	value, exists := ctx.Get(types.ContextUserKey)

	if !exists {
		return middleware.AuthenticatedUser{}, ErrNotAuthenticated
	}

	user, ok := value.(middleware.AuthenticatedUser)

	if !ok || user.ID == 0 {
		return middleware.AuthenticatedUser{}, ErrNotAuthenticated
	}

	return user, nil
}

func GetCurrentUserID(ctx *gin.Context) (uint, error) {
	user, err := GetCurrentUser(ctx)

	if err != nil {
		return 0, err
	}

	return user.ID, nil
}
