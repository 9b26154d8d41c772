package gateway

import (
	"net/http"

	"farmassist-server-go/src/core/types"

	"github.com/gin-gonic/gin"
)

// RequestIDHeader 响应头中返回的请求ID
const RequestIDHeader = "X-Request-ID"

// CORS 为所有代理接口添加宽松的跨域头
func CORS(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", allowedOrigin)
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		c.Next()
	}
}

// HandleOptions 预检请求
func HandleOptions(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// HTTPStatus 把失败分类映射为响应状态码
// quotaPassthrough为false时402按普通失败返回500
func HTTPStatus(kind types.Kind, quotaPassthrough bool) int {
	switch kind {
	case types.KindNone:
		return http.StatusOK
	case types.KindRateLimited:
		return http.StatusTooManyRequests
	case types.KindQuota:
		if quotaPassthrough {
			return http.StatusPaymentRequired
		}
		return http.StatusInternalServerError
	case types.KindCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage 返回给客户端的通用错误说明，不包含上游原始错误
func ErrorMessage(kind types.Kind) string {
	switch kind {
	case types.KindConfig:
		return "AI service is not configured"
	case types.KindRateLimited:
		return "AI service is busy, please try again shortly"
	case types.KindQuota:
		return "AI service quota exceeded"
	case types.KindCanceled:
		return "request canceled or timed out"
	default:
		return "AI service is temporarily unavailable"
	}
}
