package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajs41/RideEasy-Rental/internal/middleware"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/types"
)

func TestGetCurrentUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, err := GetCurrentUser(ctx)
	assert.Error(t, err)

	ctx.Set(types.ContextUserKey, "not a user")
	_, err = GetCurrentUser(ctx)
	assert.Error(t, err)

	ctx.Set(types.ContextUserKey, middleware.AuthenticatedUser{ID: "alice"})
	id, err := GetCurrentUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
}

func TestAccessRules(t *testing.T) {
	alice := middleware.AuthenticatedUser{ID: "alice", Role: "user"}
	admin := middleware.AuthenticatedUser{ID: "root", Role: "admin"}

	assert.True(t, CanAccessAudience(alice, "alice"))
	assert.False(t, CanAccessAudience(alice, "bob"))
	assert.False(t, CanAccessAudience(alice, models.AdminAudience))
	assert.True(t, CanAccessAudience(admin, models.AdminAudience))
	assert.False(t, CanAccessAudience(admin, "alice"))

	assert.True(t, CanAccessBooking(alice, "alice"))
	assert.False(t, CanAccessBooking(alice, "bob"))
	assert.True(t, CanAccessBooking(admin, "bob"))
}
