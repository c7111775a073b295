package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/surajs41/RideEasy-Rental/internal/auth"
	"github.com/surajs41/RideEasy-Rental/internal/types"
)

type AuthenticatedUser struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func (u AuthenticatedUser) IsAdmin() bool {
	return u.Role == auth.RoleAdmin
}

// browsers cannot set headers on a websocket handshake, so the token may
// also come from the cookie or the query string
func tokenFromRequest(ctx *gin.Context) (string, string) {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)

		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", "Authorization header format must be Bearer {token}"
		}

		return parts[1], ""
	}

	if cookie, err := ctx.Cookie("token"); err == nil && cookie != "" {
		return cookie, ""
	}

	if token := ctx.Query("token"); token != "" {
		return token, ""
	}

	return "", "Authorization token is required"
}

func AuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, problem := tokenFromRequest(ctx)

		if problem != "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
			return
		}

		claims, err := auth.VerifyJWT(tokenString)

		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		ctx.Set(types.ContextUserKey, AuthenticatedUser{
			ID:   claims.Subject,
			Role: claims.Role,
		})
		ctx.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := ctx.Get(types.ContextUserKey)

		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		if authenticated, ok := user.(AuthenticatedUser); !ok || !authenticated.IsAdmin() {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		ctx.Next()
	}
}
