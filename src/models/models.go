package models

import "time"

// ProxyInvocation 一次代理调用的结果记录，只在配置了 DATABASE_URL 时落库
type ProxyInvocation struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RequestID      string    `gorm:"size:36;uniqueIndex;not null" json:"request_id"`
	Proxy          string    `gorm:"size:32;index;not null" json:"proxy"` // analysis / tips / chat
	Strategy       string    `gorm:"size:16" json:"strategy"`
	Provider       string    `gorm:"size:64" json:"provider"`
	Kind           string    `gorm:"size:16;index" json:"kind"` // none / config / rate_limited / quota / upstream / canceled
	UpstreamStatus int       `json:"upstream_status"`
	Attempts       int       `json:"attempts"`
	Fallback       bool      `json:"fallback"`
	LatencyMs      int64     `json:"latency_ms"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// AllModels 需要自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{&ProxyInvocation{}}
}
