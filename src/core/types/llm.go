package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrMissingAPIKey 未配置上游API密钥，在发起网络请求之前返回
	ErrMissingAPIKey = errors.New("missing upstream API key")
	// ErrNoChoices 上游返回的choices为空
	ErrNoChoices = errors.New("upstream returned no choices")
	// ErrEmptyContent 上游返回的内容为空
	ErrEmptyContent = errors.New("upstream returned empty content")
)

// Message 对话消息结构，ImageURL为data URI时表示多模态消息
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// HasImage 是否携带图片
func (m Message) HasImage() bool {
	return m.ImageURL != ""
}

// CompletionRequest 一次对话补全请求
type CompletionRequest struct {
	Messages    []Message
	Vision      bool    // 为true时使用视觉模型
	Temperature float32 // 0 表示使用provider默认值
	MaxTokens   int     // 0 表示使用provider默认值
}

// UpstreamError 上游接口返回非2xx或网络失败，StatusCode为0表示网络层错误
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream transport error: %s", e.Message)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsRateLimited 上游限流
func (e *UpstreamError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsQuotaExceeded 上游额度不足
func (e *UpstreamError) IsQuotaExceeded() bool {
	return e.StatusCode == http.StatusPaymentRequired
}

// Temporary 是否为可重试的临时错误（网络错误或5xx）
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// Provider 基础提供者接口
type Provider interface {
	Initialize() error
	Cleanup() error
}

// LLMProvider 大语言模型提供者接口
type LLMProvider interface {
	Provider
	// Complete 发起一次非流式补全，返回choices[0].message.content
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name 提供者名称，用于日志和状态接口
	Name() string
}
