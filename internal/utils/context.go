package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/surajs41/RideEasy-Rental/internal/middleware"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/types"
)

func GetCurrentUser(ctx *gin.Context) (middleware.AuthenticatedUser, error) {
	user, exists := ctx.Get(types.ContextUserKey)

	if !exists {
		return middleware.AuthenticatedUser{}, fmt.Errorf("User not authenticated")
	}

	authenticatedUser, ok := user.(middleware.AuthenticatedUser)

	if !ok {
		return middleware.AuthenticatedUser{}, fmt.Errorf("Invalid user type in context")
	}

	return authenticatedUser, nil
}

func GetCurrentUserID(ctx *gin.Context) (string, error) {
	user, err := GetCurrentUser(ctx)

	if err != nil {
		return "", err
	}

	return user.ID, nil
}

// CanAccessAudience reports whether user may read or subscribe to audience:
// their own mailbox, or the admin pool for admins.
func CanAccessAudience(user middleware.AuthenticatedUser, audience string) bool {
	if audience == models.AdminAudience {
		return user.IsAdmin()
	}
	return audience == user.ID
}

// CanAccessBooking reports whether user may see a booking owned by subjectUserID.
func CanAccessBooking(user middleware.AuthenticatedUser, subjectUserID string) bool {
	return user.IsAdmin() || user.ID == subjectUserID
}
