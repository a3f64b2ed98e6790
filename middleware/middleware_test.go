package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"research-grant-api/config"
	"research-grant-api/models"
	"research-grant-api/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	sessions map[string]*services.Session
	err      error
}

func (r stubResolver) CurrentSession(_ context.Context, token string) (*services.Session, error) {
	if r.err != nil {
		return nil, r.err
	}
	if s, ok := r.sessions[token]; ok {
		return s, nil
	}
	return nil, &services.AuthError{Message: "Invalid or expired token"}
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAndRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := stubResolver{sessions: map[string]*services.Session{
		"director-token":   {ID: "s1", UserID: "u1", Role: models.RoleDirector},
		"researcher-token": {ID: "s2", UserID: "u2", Role: models.RoleResearcher},
	}}

	router := gin.New()
	router.Use(AuthMiddleware(resolver))
	router.POST("/calls", RequireRole(models.RoleDirector), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"user_id": CurrentSession(c).UserID})
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer researcher-token", http.StatusForbidden},
		{"allowed", "Bearer director-token", http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/calls", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			require.Equal(t, tc.want, serve(router, req).Code)
		})
	}
}

func TestAuthMiddlewareHidesStoreFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AuthMiddleware(stubResolver{err: &services.StoreError{Op: "get session", Err: errors.New("dial tcp: refused")}}))
	router.GET("/profile", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := serve(router, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "dial tcp")
}

func TestCORSPreflightAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware([]string{"http://localhost:3000"}), SecurityHeaders(), RequestLogger(logrus.New()))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := httptest.NewRequest(http.MethodOptions, "/health", nil)
	preflight.Header.Set("Origin", "http://localhost:3000")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := serve(router, preflight)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set(RequestIDHeader, "req-42")
	rec = serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	foreign := httptest.NewRequest(http.MethodGet, "/health", nil)
	foreign.Header.Set("Origin", "http://evil.example")
	rec = serve(router, foreign)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, err := RateLimitMiddleware("ten per minute", NewRateLimitStore(config.RateLimitOptions{Storage: "memory"}, logrus.New()))
	require.Error(t, err)

	limit, err := RateLimitMiddleware("2-M", NewRateLimitStore(config.RateLimitOptions{Storage: "memory"}, logrus.New()))
	require.NoError(t, err)

	router := gin.New()
	router.POST("/login", limit, func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(router, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitStoreFallsBackToMemory(t *testing.T) {
	store := NewRateLimitStore(config.RateLimitOptions{Storage: "redis", RedisURL: "::not a url::"}, logrus.New())
	require.NotNil(t, store)
}
