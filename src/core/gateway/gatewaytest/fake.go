// Package gatewaytest 提供测试用的假LLM提供者
package gatewaytest

import (
	"context"
	"sync"

	"farmassist-server-go/src/core/types"
)

// FakeProvider 按顺序返回预设结果的提供者，记录收到的每个请求
type FakeProvider struct {
	mu       sync.Mutex
	Replies  []FakeReply
	Requests []types.CompletionRequest
}

// FakeReply 一次预设结果
type FakeReply struct {
	Content string
	Err     error
}

// NewFakeProvider 创建假提供者，预设结果用完后重复最后一个
func NewFakeProvider(replies ...FakeReply) *FakeProvider {
	return &FakeProvider{Replies: replies}
}

func (f *FakeProvider) Initialize() error { return nil }
func (f *FakeProvider) Cleanup() error    { return nil }
func (f *FakeProvider) Name() string      { return "fake" }

// Complete 返回下一个预设结果
func (f *FakeProvider) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(f.Replies) == 0 {
		return "", nil
	}
	idx := len(f.Requests) - 1
	if idx >= len(f.Replies) {
		idx = len(f.Replies) - 1
	}
	reply := f.Replies[idx]
	return reply.Content, reply.Err
}

// Calls 已收到的请求数
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// LastRequest 最近一次请求
func (f *FakeProvider) LastRequest() types.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return types.CompletionRequest{}
	}
	return f.Requests[len(f.Requests)-1]
}
