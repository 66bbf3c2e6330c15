package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdemarket/engage-backend/pkg/util"
)

const testJWTSecret = "test-jwt-secret-for-middleware"

func setupMiddlewareTest() (*gin.Engine, *AuthMiddleware) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	middleware := NewAuthMiddleware(testJWTSecret)
	return router, middleware
}

func generateTestToken(t *testing.T, subject, email, role string) string {
	token, err := util.GenerateToken(subject, email, role, testJWTSecret, 15*time.Minute)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_Authenticate_Success(t *testing.T) {
	router, authMiddleware := setupMiddlewareTest()

	token := generateTestToken(t, "op_1", "ops@example.com", "admin")

	router.GET("/test", authMiddleware.Authenticate(), func(c *gin.Context) {
		operatorID, _ := GetOperatorID(c)
		c.JSON(http.StatusOK, gin.H{"operator_id": operatorID})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "op_1")
}

func TestAuthMiddleware_Authenticate_QueryToken(t *testing.T) {
	router, authMiddleware := setupMiddlewareTest()

	token := generateTestToken(t, "op_1", "ops@example.com", "admin")

	router.GET("/ws", authMiddleware.Authenticate(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "connected"})
	})

	// websocket clients pass the token as a query parameter
	req := httptest.NewRequest("GET", "/ws?token="+token, nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_Authenticate_NoToken(t *testing.T) {
	router, authMiddleware := setupMiddlewareTest()

	router.GET("/test", authMiddleware.Authenticate(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication required")
}

func TestAuthMiddleware_Authenticate_InvalidFormat(t *testing.T) {
	router, authMiddleware := setupMiddlewareTest()

	router.GET("/test", authMiddleware.Authenticate(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	tests := []struct {
		name   string
		header string
	}{
		{
			name:   "Missing Bearer prefix",
			header: "invalid-token",
		},
		{
			name:   "Wrong prefix",
			header: "Basic token123",
		},
		{
			name:   "Trailing garbage",
			header: "Bearer token extra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddleware_Authenticate_ExpiredToken(t *testing.T) {
	router, authMiddleware := setupMiddlewareTest()

	expired, err := util.GenerateToken("op_1", "ops@example.com", "admin", testJWTSecret, -time.Minute)
	require.NoError(t, err)

	router.GET("/test", authMiddleware.Authenticate(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Session has expired")
}

func TestAuthMiddleware_Authenticate_InvalidToken(t *testing.T) {
	router, authMiddleware := setupMiddlewareTest()

	router.GET("/test", authMiddleware.Authenticate(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid authentication token")
}

func TestAuthMiddleware_RequireRole(t *testing.T) {
	router, authMiddleware := setupMiddlewareTest()

	router.GET("/admin",
		authMiddleware.Authenticate(),
		authMiddleware.RequireRole("admin"),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "admin access granted"})
		},
	)

	tests := []struct {
		name       string
		role       string
		wantStatus int
	}{
		{
			name:       "Admin role",
			role:       "admin",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Operator role is rejected",
			role:       "operator",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := generateTestToken(t, "op_1", "ops@example.com", tt.role)

			req := httptest.NewRequest("GET", "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestGetOperatorID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	operatorID, exists := GetOperatorID(c)
	assert.False(t, exists)
	assert.Empty(t, operatorID)

	c.Set(OperatorIDKey, "op_42")
	operatorID, exists = GetOperatorID(c)
	assert.True(t, exists)
	assert.Equal(t, "op_42", operatorID)
}
