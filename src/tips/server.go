package tips

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"farmassist-server-go/src/core/auth"
	"farmassist-server-go/src/core/gateway"
	"farmassist-server-go/src/core/normalize"
	"farmassist-server-go/src/core/types"
	"farmassist-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

const (
	routePath = "/generate-custom-tips"
	proxyName = "tips"
)

// TipsService 种植建议服务接口
type TipsService interface {
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}

type DefaultTipsService struct {
	logger    *utils.TaggedLogger
	baseLog   *utils.Logger
	gateway   *gateway.Gateway
	authToken *auth.AuthToken
}

// NewDefaultTipsService 构造函数
func NewDefaultTipsService(gw *gateway.Gateway, authToken *auth.AuthToken, logger *utils.Logger) *DefaultTipsService {
	return &DefaultTipsService{
		logger:    logger.WithTag(proxyName),
		baseLog:   logger,
		gateway:   gw,
		authToken: authToken,
	}
}

// Start 注册路由
func (s *DefaultTipsService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	handlers := []gin.HandlerFunc{}
	if s.authToken != nil {
		handlers = append(handlers, auth.Middleware(s.authToken, s.baseLog, func(_ *gin.Context, reason string) interface{} {
			return normalize.WithError(normalize.EmptyTips(), reason)
		}))
	}

	apiGroup.GET(routePath, s.handleGet)
	apiGroup.POST(routePath, append(handlers, s.handlePost)...)
	apiGroup.OPTIONS(routePath, gateway.HandleOptions)

	s.logger.Info("种植建议路由注册完成")
	return nil
}

func (s *DefaultTipsService) handleGet(c *gin.Context) {
	c.String(http.StatusOK, fmt.Sprintf("Custom tips generator is running, provider: %s", s.gateway.ProviderName()))
}

func (s *DefaultTipsService) handlePost(c *gin.Context) {
	var req TipsRequest
	// 空请求体合法，全部使用默认值
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("请求体解析失败", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusBadRequest, normalize.WithError(normalize.EmptyTips(), "invalid request body"))
		return
	}
	req.applyDefaults()

	result := s.gateway.Complete(c.Request.Context(), gateway.Call{
		Proxy:    proxyName,
		Strategy: normalize.StrategyTips,
		Request: types.CompletionRequest{
			Messages: []types.Message{
				{Role: types.RoleSystem, Content: systemPrompt},
				{Role: types.RoleUser, Content: buildUserPrompt(req)},
			},
		},
	})
	c.Header(gateway.RequestIDHeader, result.RequestID)

	switch result.Kind {
	case types.KindNone:
		c.JSON(http.StatusOK, result.Outcome.Value)
	case types.KindRateLimited:
		c.JSON(http.StatusTooManyRequests, normalize.WithError(normalize.RateLimitedTips(), gateway.ErrorMessage(result.Kind)))
	default:
		c.JSON(gateway.HTTPStatus(result.Kind, false), normalize.WithError(normalize.EmptyTips(), gateway.ErrorMessage(result.Kind)))
	}
}
