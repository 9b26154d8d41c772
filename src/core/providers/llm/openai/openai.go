package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"farmassist-server-go/src/core/providers/llm"
	"farmassist-server-go/src/core/types"

	"github.com/sashabaranov/go-openai"
)

// Provider OpenAI兼容接口（OpenAI、OpenRouter等）的LLM提供者
type Provider struct {
	*llm.BaseProvider
	client    *openai.Client
	maxTokens int
}

// 注册提供者
func init() {
	llm.Register("openai", NewProvider)
}

// NewProvider 创建OpenAI提供者
func NewProvider(config *llm.Config) (llm.Provider, error) {
	base := llm.NewBaseProvider(config)
	provider := &Provider{
		BaseProvider: base,
		maxTokens:    config.MaxTokens,
	}
	if provider.maxTokens <= 0 {
		provider.maxTokens = 1000
	}

	return provider, nil
}

// Initialize 初始化提供者，API key缺失不在这里报错，由每次请求返回ErrMissingAPIKey
func (p *Provider) Initialize() error {
	config := p.Config()
	if config.ModelName == "" {
		return fmt.Errorf("missing OpenAI model name")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout:   config.Timeout,
		Transport: &headerTransport{headers: config.Headers, base: http.DefaultTransport},
	}

	p.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	return nil
}

// Complete types.LLMProvider接口实现
func (p *Provider) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	if p.Config().APIKey == "" {
		return "", types.ErrMissingAPIKey
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = float32(p.Config().Temperature)
	}

	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       p.Model(req.Vision),
			Messages:    toChatMessages(req.Messages),
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        float32(p.Config().TopP),
		},
	)
	if err != nil {
		return "", classifyError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", types.ErrNoChoices
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", types.ErrEmptyContent
	}
	return content, nil
}

// toChatMessages 转换消息格式，带图片的消息转换为多模态消息
func toChatMessages(messages []types.Message) []openai.ChatCompletionMessage {
	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		if !msg.HasImage() {
			chatMessages[i] = openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			}
			continue
		}

		chatMessages[i] = openai.ChatCompletionMessage{
			Role: msg.Role,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: msg.Content,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    msg.ImageURL,
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		}
	}
	return chatMessages
}

// classifyError 把go-openai的错误转换为UpstreamError
func classifyError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("chat completion aborted: %w", ctxErr)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &types.UpstreamError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &types.UpstreamError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Err:        err,
		}
	}

	return &types.UpstreamError{Message: err.Error(), Err: err}
}

// headerTransport 为每个请求附加固定请求头（如OpenRouter的HTTP-Referer/X-Title）
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}
