package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajs41/RideEasy-Rental/internal/auth"
	"github.com/surajs41/RideEasy-Rental/internal/types"
	"github.com/tidwall/gjson"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(ctx *gin.Context) {
		user, _ := ctx.Get(types.ContextUserKey)
		ctx.JSON(http.StatusOK, user)
	})
	r.GET("/admin", AuthMiddleware(), AdminOnly(), func(ctx *gin.Context) {
		ctx.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddlewareTokenSources(t *testing.T) {
	require.NoError(t, auth.InitJWTSecret("middleware-secret"))
	token, err := auth.GenerateJWT("alice", "user", time.Hour)
	require.NoError(t, err)

	r := newEngine()

	cases := map[string]func(*http.Request){
		"header": func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) },
		"cookie": func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "token", Value: token}) },
		"query":  func(req *http.Request) { req.URL.RawQuery = "token=" + token },
	}

	for name, prepare := range cases {
		t.Run(name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/me", nil)
			prepare(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "alice", gjson.Get(w.Body.String(), "id").String())
			assert.Equal(t, "user", gjson.Get(w.Body.String(), "role").String())
		})
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	require.NoError(t, auth.InitJWTSecret("middleware-secret"))
	r := newEngine()

	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		req, _ := http.NewRequest("GET", "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.NotEmpty(t, gjson.Get(w.Body.String(), "error").String())
	}
}

func TestAdminOnly(t *testing.T) {
	require.NoError(t, auth.InitJWTSecret("middleware-secret"))
	r := newEngine()

	for role, want := range map[string]int{"user": http.StatusForbidden, auth.RoleAdmin: http.StatusNoContent} {
		token, err := auth.GenerateJWT("someone", role, time.Hour)
		require.NoError(t, err)

		req, _ := http.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, want, w.Code, role)
	}
}
