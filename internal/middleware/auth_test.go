package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func serve(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	var (
		gotID    uuid.UUID
		gotRole  string
		gotAdmin bool
	)
	r := gin.New()
	r.GET("/", AuthMiddleware("secret"), func(c *gin.Context) {
		gotID, gotRole, gotAdmin = GetUserID(c), GetUserRole(c), IsAdmin(c)
		c.Status(http.StatusOK)
	})

	valid := sign(t, "secret", jwt.MapClaims{
		"sub": userID.String(), "role": "SL", "admin": true, "exp": time.Now().Add(time.Hour).Unix(),
	})
	w := serve(r, valid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "SL", gotRole)
	assert.True(t, gotAdmin)

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, sign(t, "other", jwt.MapClaims{"sub": userID.String()})).Code)

	expired := sign(t, "secret", jwt.MapClaims{"sub": userID.String(), "exp": time.Now().Add(-time.Minute).Unix()})
	assert.Equal(t, http.StatusUnauthorized, serve(r, expired).Code)

	badSub := sign(t, "secret", jwt.MapClaims{"sub": "nope"})
	assert.Equal(t, http.StatusUnauthorized, serve(r, badSub).Code)
}

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", AuthMiddleware("secret"), AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	buyer := sign(t, "secret", jwt.MapClaims{"sub": uuid.NewString(), "role": "BY", "admin": false})
	assert.Equal(t, http.StatusForbidden, serve(r, buyer).Code)

	staff := sign(t, "secret", jwt.MapClaims{"sub": uuid.NewString(), "role": "BY", "admin": true})
	assert.Equal(t, http.StatusNoContent, serve(r, staff).Code)
}
