// Package gateway 封装"按策略调用补全接口并得到归一化结果"的公共流程：
// 有限次指数退避重试、错误分类、调用监控。三个代理共用这一份实现。
package gateway

import (
	"context"
	"errors"
	"time"

	"farmassist-server-go/src/configs"
	"farmassist-server-go/src/core/monitor"
	"farmassist-server-go/src/core/normalize"
	"farmassist-server-go/src/core/types"
	"farmassist-server-go/src/core/utils"
	"farmassist-server-go/src/models"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// RetryConfig 重试配置，Attempts为总尝试次数（含第一次）
type RetryConfig struct {
	Attempts     uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// RetryConfigFrom 从代理配置生成重试配置
func RetryConfigFrom(cfg configs.ProxyConfig) RetryConfig {
	attempts := cfg.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return RetryConfig{
		Attempts:     uint(attempts),
		InitialDelay: configs.ParseDuration(cfg.Retry.InitialDelay, configs.DefaultRetryInitialDelay),
		MaxDelay:     configs.ParseDuration(cfg.Retry.MaxDelay, configs.DefaultRetryMaxDelay),
	}
}

// Call 一次代理调用
type Call struct {
	Proxy    string
	Strategy normalize.Strategy
	Request  types.CompletionRequest
}

// Result 调用结果，Kind为KindNone时Outcome有效
type Result struct {
	RequestID      string
	Outcome        normalize.Outcome
	Kind           types.Kind
	UpstreamStatus int
	Attempts       int
	Latency        time.Duration
	Err            error
}

// Gateway 上游补全接口网关
type Gateway struct {
	provider types.LLMProvider
	retry    RetryConfig
	monitor  *monitor.Monitor
	logger   *utils.TaggedLogger
}

// New 创建网关，mon可以为nil
func New(provider types.LLMProvider, cfg RetryConfig, mon *monitor.Monitor, logger *utils.Logger) *Gateway {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Gateway{
		provider: provider,
		retry:    cfg,
		monitor:  mon,
		logger:   logger.WithTag("gateway"),
	}
}

// ProviderName 当前使用的提供者名称
func (g *Gateway) ProviderName() string {
	return g.provider.Name()
}

// Complete 调用上游并归一化结果，ctx取自入站请求，客户端断开时上游调用随之取消
func (g *Gateway) Complete(ctx context.Context, call Call) Result {
	start := time.Now()
	result := Result{RequestID: uuid.NewString()}

	var raw string
	err := retry.Do(
		func() error {
			result.Attempts++
			content, err := g.provider.Complete(ctx, call.Request)
			if err != nil {
				return err
			}
			raw = content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.retry.Attempts),
		retry.Delay(g.retry.InitialDelay),
		retry.MaxDelay(g.retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Warn("上游调用失败，准备重试", map[string]interface{}{
				"request_id":   result.RequestID,
				"proxy":        call.Proxy,
				"attempt":      n + 1,
				"max_attempts": g.retry.Attempts,
				"error":        err.Error(),
			})
		}),
	)

	// 2xx但内容为空时交给归一化器处理，按解析失败走兜底
	if errors.Is(err, types.ErrNoChoices) || errors.Is(err, types.ErrEmptyContent) {
		err = nil
		raw = ""
	}

	result.Latency = time.Since(start)
	result.Err = err
	result.Kind, result.UpstreamStatus = Classify(ctx, err)
	if result.Kind == types.KindNone {
		result.Outcome = normalize.Normalize(call.Strategy, raw)
	}

	g.record(call, result, raw)
	return result
}

// Classify 把调用错误映射为失败分类和上游状态码
func Classify(ctx context.Context, err error) (types.Kind, int) {
	if err == nil {
		return types.KindNone, 200
	}
	if errors.Is(err, types.ErrMissingAPIKey) {
		return types.KindConfig, 0
	}
	// 只有入站请求本身结束才算取消；provider的Timeout触发时ctx仍然有效，按网络错误处理
	if ctx.Err() != nil {
		return types.KindCanceled, 0
	}

	var upstreamErr *types.UpstreamError
	if errors.As(err, &upstreamErr) {
		switch {
		case upstreamErr.IsRateLimited():
			return types.KindRateLimited, upstreamErr.StatusCode
		case upstreamErr.IsQuotaExceeded():
			return types.KindQuota, upstreamErr.StatusCode
		default:
			return types.KindUpstream, upstreamErr.StatusCode
		}
	}
	return types.KindUpstream, 0
}

// isRetryable 只重试网络错误和5xx
func isRetryable(err error) bool {
	var upstreamErr *types.UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Temporary()
	}
	return false
}

func (g *Gateway) record(call Call, result Result, raw string) {
	fields := map[string]interface{}{
		"request_id":      result.RequestID,
		"proxy":           call.Proxy,
		"strategy":        string(call.Strategy),
		"kind":            string(result.Kind),
		"upstream_status": result.UpstreamStatus,
		"attempts":        result.Attempts,
		"fallback":        result.Outcome.Fallback,
		"latency_ms":      result.Latency.Milliseconds(),
	}
	if result.Err != nil {
		fields["error"] = result.Err.Error()
		g.logger.Warn("代理调用失败", fields)
	} else {
		if result.Outcome.Fallback {
			fields["reason"] = result.Outcome.Reason
		}
		g.logger.Info("代理调用完成", fields)
	}
	if g.logger.Enabled(utils.DebugLevel) && raw != "" {
		g.logger.Debug("上游原始内容", map[string]interface{}{
			"request_id": result.RequestID,
			"content":    utils.Truncate(raw, 2000),
		})
	}

	if g.monitor == nil {
		return
	}
	inv := &models.ProxyInvocation{
		RequestID:      result.RequestID,
		Proxy:          call.Proxy,
		Strategy:       string(call.Strategy),
		Provider:       g.provider.Name(),
		Kind:           string(result.Kind),
		UpstreamStatus: result.UpstreamStatus,
		Attempts:       result.Attempts,
		Fallback:       result.Kind != types.KindNone || result.Outcome.Fallback,
		LatencyMs:      result.Latency.Milliseconds(),
	}
	if result.Err != nil {
		inv.Error = result.Err.Error()
	}
	g.monitor.Record(inv)
}
