package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farmassist-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthToken_EmptySecret(t *testing.T) {
	_, err := NewAuthToken("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestAuthToken_GenerateAndVerify(t *testing.T) {
	at, err := NewAuthToken("secret")
	require.NoError(t, err)

	token, err := at.GenerateToken("device-1")
	require.NoError(t, err)

	deviceID, err := at.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "device-1", deviceID)
}

func TestAuthToken_VerifyFailures(t *testing.T) {
	at, err := NewAuthToken("secret")
	require.NoError(t, err)
	other, err := NewAuthToken("other-secret")
	require.NoError(t, err)

	wrongKey, err := other.GenerateToken("device-1")
	require.NoError(t, err)

	expiredIssuer, err := NewAuthToken("secret")
	require.NoError(t, err)
	expired, err := expiredIssuer.WithTTL(-time.Minute).GenerateToken("device-1")
	require.NoError(t, err)

	noDevice, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "密钥不匹配", token: wrongKey},
		{name: "已过期", token: expired},
		{name: "缺少设备ID", token: noDevice},
		{name: "格式错误", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := at.VerifyToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	at, err := NewAuthToken("secret")
	require.NoError(t, err)
	valid, err := at.GenerateToken("device-9")
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(Middleware(at, utils.NewConsoleLogger("error", nil), func(_ *gin.Context, reason string) interface{} {
		return gin.H{"tips": []string{}, "error": reason}
	}))
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"device": c.GetString(DeviceIDKey)})
	}
	engine.POST("/api/x", handler)
	engine.GET("/api/x", handler)
	engine.OPTIONS("/api/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name       string
		method     string
		header     string
		wantStatus int
	}{
		{name: "有效令牌", method: http.MethodPost, header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "缺少令牌", method: http.MethodPost, wantStatus: http.StatusUnauthorized},
		{name: "无效令牌", method: http.MethodPost, header: "Bearer junk", wantStatus: http.StatusUnauthorized},
		{name: "非Bearer", method: http.MethodPost, header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "GET不校验", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "预检不校验", method: http.MethodOptions, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusUnauthorized {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Contains(t, body, "tips")
				assert.NotEmpty(t, body["error"])
			}
			if tt.wantStatus == http.StatusOK && tt.method == http.MethodPost {
				assert.Contains(t, w.Body.String(), "device-9")
			}
		})
	}
}
