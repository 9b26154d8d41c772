package server

import (
	"context"
	"net/http"
	"time"

	"farmassist-server-go/src/configs"
	"farmassist-server-go/src/core/gateway"
	"farmassist-server-go/src/core/image"
	"farmassist-server-go/src/core/monitor"
	"farmassist-server-go/src/core/utils"
	"farmassist-server-go/src/models"

	"github.com/gin-gonic/gin"
)

const recentLimit = 20

// recentLister 支持查询最近调用记录的存储
type recentLister interface {
	Recent(ctx context.Context, proxy string, limit int) ([]models.ProxyInvocation, error)
}

type DefaultCfgService struct {
	logger  *utils.TaggedLogger
	config  *configs.Config
	gateway *gateway.Gateway
	monitor *monitor.Monitor
	images  *image.Processor
	started time.Time
}

// NewDefaultCfgService 构造函数
func NewDefaultCfgService(config *configs.Config, gw *gateway.Gateway, mon *monitor.Monitor, images *image.Processor, logger *utils.Logger) *DefaultCfgService {
	return &DefaultCfgService{
		logger:  logger.WithTag("cfg"),
		config:  config,
		gateway: gw,
		monitor: mon,
		images:  images,
		started: time.Now(),
	}
}

// Start 实现 CfgService 接口，注册状态相关路由
func (s *DefaultCfgService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	apiGroup.GET("/cfg", s.handleCfg)
	apiGroup.OPTIONS("/cfg", gateway.HandleOptions)
	apiGroup.GET("/health", s.handleHealth)
	apiGroup.OPTIONS("/health", gateway.HandleOptions)

	s.logger.Info("状态接口路由注册完成")
	return nil
}

// handleCfg 返回不含密钥的运行配置
func (s *DefaultCfgService) handleCfg(c *gin.Context) {
	name, llm, _ := s.config.SelectedLLM()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"llm": gin.H{
			"name":               name,
			"type":               llm.Type,
			"model":              llm.ModelName,
			"vision_model":       llm.VisionModelName,
			"url":                llm.BaseURL,
			"api_key_configured": llm.APIKey != "",
		},
		"proxy": gin.H{
			"retry_attempts":          s.config.Proxy.Retry.Attempts,
			"retry_initial_delay":     s.config.Proxy.Retry.InitialDelay,
			"retry_max_delay":         s.config.Proxy.Retry.MaxDelay,
			"failure_alert_threshold": s.config.Proxy.FailureAlertThreshold,
		},
		"security": gin.H{
			"max_file_size":   s.config.Security.MaxFileSize,
			"max_width":       s.config.Security.MaxWidth,
			"max_height":      s.config.Security.MaxHeight,
			"allowed_formats": s.config.Security.AllowedFormats,
		},
		"auth_enabled": s.config.Server.Auth.Enabled,
	})
}

// handleHealth 代理调用统计，任一代理处于告警状态时为degraded
func (s *DefaultCfgService) handleHealth(c *gin.Context) {
	degraded := s.monitor.Degraded()
	status := "ok"
	if len(degraded) > 0 {
		status = "degraded"
	}

	body := gin.H{
		"status":         status,
		"provider":       s.gateway.ProviderName(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"threshold":      s.monitor.Threshold(),
		"degraded":       degraded,
		"proxies":        s.monitor.Snapshot(),
		"images":         s.images.GetMetrics(),
	}

	if lister, ok := s.monitor.Store().(recentLister); ok {
		recent, err := lister.Recent(c.Request.Context(), c.Query("proxy"), recentLimit)
		if err != nil {
			s.logger.Warn("查询调用记录失败", map[string]interface{}{"error": err.Error()})
		} else {
			body["recent"] = recent
		}
	}

	c.JSON(http.StatusOK, body)
}
