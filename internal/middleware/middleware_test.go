package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"image-studio-backend/internal/config"
	"image-studio-backend/internal/middleware"
	"image-studio-backend/internal/models"
)

const secret = "test-secret-key-for-jwt-signing-must-be-long-enough"

func signed(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	assert.NoError(t, err)
	return s
}

func identityRouter(handler gin.HandlerFunc, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{SupabaseJWTSecret: secret}

	router := gin.New()
	router.Use(middleware.Identity(cfg))
	router.Use(extra...)
	router.GET("/test", handler)
	return router
}

func serve(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "198.51.100.10:5555"
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdentity_AnonymousUsesNetworkAddress(t *testing.T) {
	var ref models.IdentityRef
	router := identityRouter(func(c *gin.Context) {
		ref = middleware.CallerRef(c)
		_, ok := middleware.UserID(c)
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})

	w := serve(router, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.LeadRef("198.51.100.10"), ref)
}

func TestIdentity_ValidToken(t *testing.T) {
	userID := uuid.New()
	var ref models.IdentityRef
	router := identityRouter(func(c *gin.Context) {
		ref = middleware.CallerRef(c)
		c.Status(http.StatusOK)
	})

	w := serve(router, "Bearer "+signed(t, jwt.MapClaims{"sub": userID.String()}, secret))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AccountRef(userID), ref)
}

func TestIdentity_RejectsBadTokens(t *testing.T) {
	router := identityRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]string{
		"wrong scheme": "Basic abc",
		"empty token":  "Bearer ",
		"not a jwt":    "Bearer invalid-token",
		"wrong secret": "Bearer " + signed(t, jwt.MapClaims{"sub": uuid.NewString()}, "another-secret"),
		"expired":      "Bearer " + signed(t, jwt.MapClaims{"sub": uuid.NewString(), "exp": time.Now().Add(-time.Hour).Unix()}, secret),
		"missing sub":  "Bearer " + signed(t, jwt.MapClaims{"role": "authenticated"}, secret),
		"non-uuid sub": "Bearer " + signed(t, jwt.MapClaims{"sub": "user-123"}, secret),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			w := serve(router, header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireUser(t *testing.T) {
	router := identityRouter(func(c *gin.Context) { c.Status(http.StatusOK) }, middleware.RequireUser())

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, "Bearer "+signed(t, jwt.MapClaims{"sub": uuid.NewString()}, secret)).Code)
}

func TestRateLimiter_PerCaller(t *testing.T) {
	limiter := middleware.NewRateLimiter(0.001, 2)
	router := identityRouter(func(c *gin.Context) { c.Status(http.StatusOK) }, limiter.Middleware())

	assert.Equal(t, http.StatusOK, serve(router, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, "").Code)

	w := serve(router, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// A different caller has its own bucket.
	token := "Bearer " + signed(t, jwt.MapClaims{"sub": uuid.NewString()}, secret)
	assert.Equal(t, http.StatusOK, serve(router, token).Code)
}
