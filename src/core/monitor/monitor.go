// Package monitor 统计每个代理的调用结果，连续失败达到阈值时输出告警。
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"farmassist-server-go/src/core/types"
	"farmassist-server-go/src/core/utils"
	"farmassist-server-go/src/models"
)

const (
	storeTimeout   = 3 * time.Second
	storeQueueSize = 256
)

// ProxyStats 单个代理的统计
type ProxyStats struct {
	Total               int64      `json:"total"`
	Success             int64      `json:"success"`
	Fallback            int64      `json:"fallback"`
	RateLimited         int64      `json:"rate_limited"`
	Quota               int64      `json:"quota"`
	ConfigErrors        int64      `json:"config_errors"`
	UpstreamErrors      int64      `json:"upstream_errors"`
	Canceled            int64      `json:"canceled"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Alerts              int        `json:"alerts"`
	LastKind            types.Kind `json:"last_kind"`
	LastError           string     `json:"last_error,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`

	alerting bool
}

// Monitor 调用结果监控
type Monitor struct {
	mu        sync.Mutex
	stats     map[string]*ProxyStats
	threshold int
	store     Store
	logger    *utils.TaggedLogger

	// store不为nil时由后台协程写入，Close之后不再接收
	queueMu sync.RWMutex
	queue   chan *models.ProxyInvocation
	closed  bool
	done    chan struct{}
}

// New 创建监控器，store可以为nil
func New(threshold int, store Store, logger *utils.Logger) *Monitor {
	if threshold <= 0 {
		threshold = 1
	}
	m := &Monitor{
		stats:     make(map[string]*ProxyStats),
		threshold: threshold,
		store:     store,
		logger:    logger.WithTag("monitor"),
	}
	if store != nil {
		m.queue = make(chan *models.ProxyInvocation, storeQueueSize)
		m.done = make(chan struct{})
		go m.persist()
	}
	return m
}

// Record 记录一次调用结果
func (m *Monitor) Record(inv *models.ProxyInvocation) {
	kind := types.Kind(inv.Kind)

	m.mu.Lock()
	s, ok := m.stats[inv.Proxy]
	if !ok {
		s = &ProxyStats{}
		m.stats[inv.Proxy] = s
	}
	s.Total++
	s.LastKind = kind
	if inv.Fallback {
		s.Fallback++
	}

	switch kind {
	case types.KindNone:
		s.Success++
	case types.KindRateLimited:
		s.RateLimited++
	case types.KindQuota:
		s.Quota++
	case types.KindConfig:
		s.ConfigErrors++
	case types.KindCanceled:
		s.Canceled++
	default:
		s.UpstreamErrors++
	}

	var alert bool
	switch {
	case kind == types.KindNone:
		s.ConsecutiveFailures = 0
		s.alerting = false
	case kind.IsFailure():
		now := time.Now()
		s.ConsecutiveFailures++
		s.LastError = inv.Error
		s.LastFailureAt = &now
		// 配置错误第一次就告警
		if !s.alerting && (kind == types.KindConfig || s.ConsecutiveFailures >= m.threshold) {
			s.alerting = true
			s.Alerts++
			alert = true
		}
	}
	consecutive := s.ConsecutiveFailures
	m.mu.Unlock()

	if alert {
		m.logger.Error("代理连续失败，客户端正在收到兜底结果", map[string]interface{}{
			"proxy":                inv.Proxy,
			"kind":                 inv.Kind,
			"consecutive_failures": consecutive,
			"upstream_status":      inv.UpstreamStatus,
			"error":                inv.Error,
		})
	}

	m.enqueue(inv)
}

// enqueue 把记录交给后台协程，队列满或已关闭时丢弃
func (m *Monitor) enqueue(inv *models.ProxyInvocation) {
	m.queueMu.RLock()
	defer m.queueMu.RUnlock()
	if m.queue == nil || m.closed {
		return
	}
	select {
	case m.queue <- inv:
	default:
		m.logger.Warn("调用记录队列已满，丢弃记录", map[string]interface{}{
			"request_id": inv.RequestID,
		})
	}
}

func (m *Monitor) persist() {
	defer close(m.done)
	for inv := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := m.store.Save(ctx, inv); err != nil {
			m.logger.Warn("保存调用记录失败", map[string]interface{}{
				"request_id": inv.RequestID,
				"error":      err.Error(),
			})
		}
		cancel()
	}
}

// Close 停止接收新记录，等待队列中的记录写完
func (m *Monitor) Close() {
	m.queueMu.Lock()
	if m.queue == nil || m.closed {
		m.queueMu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.queueMu.Unlock()

	<-m.done
}

// Snapshot 返回所有代理统计的副本
func (m *Monitor) Snapshot() map[string]ProxyStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ProxyStats, len(m.stats))
	for name, s := range m.stats {
		out[name] = *s
	}
	return out
}

// Degraded 返回处于告警状态的代理名称
func (m *Monitor) Degraded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for name, s := range m.stats {
		if s.alerting {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Threshold 告警阈值
func (m *Monitor) Threshold() int {
	return m.threshold
}

// Store 返回持久化存储，未配置时为nil
func (m *Monitor) Store() Store {
	return m.store
}
