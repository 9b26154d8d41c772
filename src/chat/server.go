package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"farmassist-server-go/src/core/auth"
	dialogue "farmassist-server-go/src/core/chat"
	"farmassist-server-go/src/core/gateway"
	"farmassist-server-go/src/core/normalize"
	"farmassist-server-go/src/core/types"
	"farmassist-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	routePath = "/farming-chat"
	proxyName = "chat"
)

// ChatRequest 对话请求
type ChatRequest struct {
	Message             string          `json:"message"`
	Language            string          `json:"language"`
	ConversationHistory []dialogue.Turn `json:"conversationHistory"`
}

// ChatService 对话服务接口
type ChatService interface {
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}

type DefaultChatService struct {
	logger    *utils.TaggedLogger
	baseLog   *utils.Logger
	gateway   *gateway.Gateway
	authToken *auth.AuthToken
}

// NewDefaultChatService 构造函数
func NewDefaultChatService(gw *gateway.Gateway, authToken *auth.AuthToken, logger *utils.Logger) *DefaultChatService {
	return &DefaultChatService{
		logger:    logger.WithTag(proxyName),
		baseLog:   logger,
		gateway:   gw,
		authToken: authToken,
	}
}

// Start 注册路由
func (s *DefaultChatService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	handlers := []gin.HandlerFunc{}
	if s.authToken != nil {
		handlers = append(handlers, auth.Middleware(s.authToken, s.baseLog, func(c *gin.Context, reason string) interface{} {
			// 请求已被拒绝，读取请求体只为选择回复语言
			var req ChatRequest
			_ = c.ShouldBindBodyWith(&req, binding.JSON)
			return reply(LocaleFor(req.Language).Unavailable, reason)
		}))
	}

	apiGroup.GET(routePath, s.handleGet)
	apiGroup.POST(routePath, append(handlers, s.handlePost)...)
	apiGroup.OPTIONS(routePath, gateway.HandleOptions)

	s.logger.Info("对话路由注册完成")
	return nil
}

func (s *DefaultChatService) handleGet(c *gin.Context) {
	c.String(http.StatusOK, fmt.Sprintf("Farming chat is running, provider: %s", s.gateway.ProviderName()))
}

func (s *DefaultChatService) handlePost(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("请求体解析失败", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusBadRequest, reply(LocaleFor(DefaultLocale).EmptyMessage, "invalid request body"))
		return
	}

	locale := LocaleFor(req.Language)
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, reply(locale.EmptyMessage, "message is required"))
		return
	}

	dm := dialogue.NewDialogueManager(locale.SystemPrompt)
	dm.Replay(req.ConversationHistory)
	dm.Put(dialogue.Message{Role: types.RoleUser, Content: req.Message})

	result := s.gateway.Complete(c.Request.Context(), gateway.Call{
		Proxy:    proxyName,
		Strategy: normalize.StrategyChat,
		Request:  types.CompletionRequest{Messages: dm.GetLLMDialogue()},
	})
	c.Header(gateway.RequestIDHeader, result.RequestID)

	var fallback string
	switch result.Kind {
	case types.KindNone:
		c.JSON(http.StatusOK, result.Outcome.Value)
		return
	case types.KindRateLimited:
		fallback = locale.RateLimited
	case types.KindQuota:
		fallback = locale.Quota
	default:
		fallback = locale.Unavailable
	}
	c.JSON(gateway.HTTPStatus(result.Kind, true), reply(fallback, gateway.ErrorMessage(result.Kind)))
}

func reply(text, reason string) gin.H {
	return gin.H{"response": text, "error": reason}
}
