package ollama

import (
	"context"
	"fmt"
	"strings"

	"farmassist-server-go/src/core/providers/llm"
	"farmassist-server-go/src/core/types"

	"github.com/go-resty/resty/v2"
)

// Provider Ollama原生接口的LLM提供者，支持视觉模型（llava等）
type Provider struct {
	*llm.BaseProvider
	client *resty.Client
}

// ChatRequest Ollama /api/chat 请求结构
type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ChatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ChatMessage Ollama消息结构
type ChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // 纯base64，不带data URL前缀
}

// ChatResponse Ollama /api/chat 非流式响应结构
type ChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// 注册提供者
func init() {
	llm.Register("ollama", NewProvider)
}

// NewProvider 创建Ollama提供者
func NewProvider(config *llm.Config) (llm.Provider, error) {
	return &Provider{BaseProvider: llm.NewBaseProvider(config)}, nil
}

// Initialize 初始化提供者
func (p *Provider) Initialize() error {
	config := p.Config()
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434" // 默认Ollama地址
	}
	// 兼容填写了OpenAI风格/v1后缀的地址
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")

	p.client = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeaders(config.Headers)
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	return nil
}

// Complete types.LLMProvider接口实现
func (p *Provider) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	options := map[string]interface{}{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	} else if p.Config().Temperature > 0 {
		options["temperature"] = p.Config().Temperature
	}
	if p.Config().TopP > 0 {
		options["top_p"] = p.Config().TopP
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	} else if p.Config().MaxTokens > 0 {
		options["num_predict"] = p.Config().MaxTokens
	}

	body := ChatRequest{
		Model:    p.Model(req.Vision),
		Messages: toChatMessages(req.Messages),
		Stream:   false,
		Options:  options,
	}

	var result ChatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/api/chat")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("ollama chat aborted: %w", ctxErr)
		}
		return "", &types.UpstreamError{Message: err.Error(), Err: err}
	}
	if resp.IsError() {
		return "", &types.UpstreamError{
			StatusCode: resp.StatusCode(),
			Message:    strings.TrimSpace(resp.String()),
		}
	}

	content := result.Message.Content
	if strings.TrimSpace(content) == "" {
		return "", types.ErrEmptyContent
	}
	return content, nil
}

// toChatMessages 转换消息格式，data URI图片去掉前缀后放入images
func toChatMessages(messages []types.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		m := ChatMessage{Role: msg.Role, Content: msg.Content}
		if msg.HasImage() {
			m.Images = []string{stripDataURIPrefix(msg.ImageURL)}
		}
		out = append(out, m)
	}
	return out
}

func stripDataURIPrefix(uri string) string {
	if idx := strings.Index(uri, ";base64,"); idx >= 0 && strings.HasPrefix(uri, "data:") {
		return uri[idx+len(";base64,"):]
	}
	return uri
}
