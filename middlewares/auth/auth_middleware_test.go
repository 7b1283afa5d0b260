package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantay/busbooking/models/shared_models"
)

func protectedRouter(adminOnly bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{AuthMiddleware()}
	if adminOnly {
		handlers = append(handlers, RequireAdmin())
	}
	handlers = append(handlers, func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		role, _ := c.Get("role")
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": role})
	})
	r.GET("/protected", handlers...)
	return r
}

func get(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	userID, err := uuid.NewV7()
	require.NoError(t, err)
	token, err := shared_models.GenerateAccessToken(userID, shared_models.RoleCustomer, time.Hour)
	require.NoError(t, err)

	r := protectedRouter(false)

	t.Run("ValidToken", func(t *testing.T) {
		w := get(r, "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
	})

	t.Run("MissingHeader", func(t *testing.T) {
		w := get(r, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("WrongScheme", func(t *testing.T) {
		w := get(r, "Basic "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		w := get(r, "Bearer garbage")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		expired, err := shared_models.GenerateAccessToken(userID, shared_models.RoleCustomer, -2*time.Hour)
		require.NoError(t, err)
		w := get(r, "Bearer "+expired)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	userID, err := uuid.NewV7()
	require.NoError(t, err)

	r := protectedRouter(true)

	t.Run("CustomerForbidden", func(t *testing.T) {
		token, err := shared_models.GenerateAccessToken(userID, shared_models.RoleCustomer, time.Hour)
		require.NoError(t, err)
		w := get(r, "Bearer "+token)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("AdminAllowed", func(t *testing.T) {
		token, err := shared_models.GenerateAccessToken(userID, shared_models.RoleAdmin, time.Hour)
		require.NoError(t, err)
		w := get(r, "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
