package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"farmassist-server-go/src/core/auth"
	"farmassist-server-go/src/core/gateway"
	"farmassist-server-go/src/core/image"
	"farmassist-server-go/src/core/normalize"
	"farmassist-server-go/src/core/types"
	"farmassist-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

const (
	routePath = "/analyze-crop-image"
	proxyName = "analysis"
)

type DefaultAnalysisService struct {
	logger    *utils.TaggedLogger
	baseLog   *utils.Logger
	gateway   *gateway.Gateway
	images    *image.Processor
	authToken *auth.AuthToken // 为nil时不校验
}

// NewDefaultAnalysisService 构造函数
func NewDefaultAnalysisService(gw *gateway.Gateway, images *image.Processor, authToken *auth.AuthToken, logger *utils.Logger) *DefaultAnalysisService {
	return &DefaultAnalysisService{
		logger:    logger.WithTag(proxyName),
		baseLog:   logger,
		gateway:   gw,
		images:    images,
		authToken: authToken,
	}
}

// Start 实现 AnalysisService 接口，注册路由
func (s *DefaultAnalysisService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	handlers := []gin.HandlerFunc{}
	if s.authToken != nil {
		handlers = append(handlers, auth.Middleware(s.authToken, s.baseLog, func(_ *gin.Context, reason string) interface{} {
			return normalize.WithError(normalize.FallbackAnalysis(), reason)
		}))
	}

	apiGroup.GET(routePath, s.handleGet)
	apiGroup.POST(routePath, append(handlers, s.handlePost)...)
	apiGroup.OPTIONS(routePath, gateway.HandleOptions)

	s.logger.Info("作物图片分析路由注册完成")
	return nil
}

func (s *DefaultAnalysisService) handleGet(c *gin.Context) {
	c.String(http.StatusOK, fmt.Sprintf("Crop image analysis is running, provider: %s", s.gateway.ProviderName()))
}

func (s *DefaultAnalysisService) handlePost(c *gin.Context) {
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("请求体解析失败", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusBadRequest, normalize.WithError(normalize.FallbackAnalysis(), "invalid request body"))
		return
	}
	req.applyDefaults()

	img, _, err := s.images.Process(req.ImageData)
	if err != nil {
		reason := "invalid image"
		if errors.Is(err, image.ErrMissingImage) {
			reason = "imageData is required"
		}
		s.logger.Warn("图片校验失败", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusBadRequest, normalize.WithError(normalize.FallbackAnalysis(), reason))
		return
	}

	result := s.gateway.Complete(c.Request.Context(), gateway.Call{
		Proxy:    proxyName,
		Strategy: normalize.StrategyAnalysis,
		Request: types.CompletionRequest{
			Vision:    true,
			MaxTokens: analysisMaxTokens,
			Messages: []types.Message{
				{Role: types.RoleSystem, Content: systemPrompt},
				{Role: types.RoleUser, Content: buildUserPrompt(req), ImageURL: img.DataURI()},
			},
		},
	})
	c.Header(gateway.RequestIDHeader, result.RequestID)

	switch result.Kind {
	case types.KindNone:
		c.JSON(http.StatusOK, result.Outcome.Value)
	case types.KindRateLimited:
		c.JSON(http.StatusTooManyRequests, normalize.WithError(normalize.RateLimitedAnalysis(), gateway.ErrorMessage(result.Kind)))
	default:
		c.JSON(gateway.HTTPStatus(result.Kind, false), normalize.WithError(normalize.FallbackAnalysis(), gateway.ErrorMessage(result.Kind)))
	}
}
