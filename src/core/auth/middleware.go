package auth

import (
	"net/http"
	"strings"

	"farmassist-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// DeviceIDKey 校验通过后写入gin上下文的设备ID键
const DeviceIDKey = "device_id"

// FallbackFunc 生成401响应体，可以读取请求内容（例如语言）
type FallbackFunc func(c *gin.Context, reason string) interface{}

// Middleware 校验 Authorization: Bearer <token>
// 失败时返回401，响应体为该接口的兜底结构
func Middleware(at *AuthToken, logger *utils.Logger, fallback FallbackFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			reject(c, fallback, "missing bearer token")
			return
		}

		deviceID, err := at.VerifyToken(strings.TrimSpace(token))
		if err != nil {
			logger.Warn("令牌校验失败", map[string]interface{}{
				"path":  c.FullPath(),
				"error": err.Error(),
			})
			reject(c, fallback, "invalid token")
			return
		}

		c.Set(DeviceIDKey, deviceID)
		c.Next()
	}
}

func reject(c *gin.Context, fallback FallbackFunc, reason string) {
	if fallback == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, fallback(c, reason))
}
