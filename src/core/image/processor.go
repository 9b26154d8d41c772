package image

import (
	"fmt"
	"sync/atomic"

	"farmassist-server-go/src/configs"
	"farmassist-server-go/src/core/utils"
)

// Processor 图片处理器，解析并验证客户端上传的data URI
type Processor struct {
	validator *SecurityValidator
	logger    *utils.Logger
	metrics   ImageMetrics
}

// NewProcessor 创建图片处理器
func NewProcessor(config *configs.SecurityConfig, logger *utils.Logger) *Processor {
	return &Processor{
		validator: NewSecurityValidator(config, logger),
		logger:    logger,
	}
}

// Process 解析data URI并做安全验证，返回可直接转发给模型的图片数据
func (p *Processor) Process(dataURI string) (ImageData, ValidationResult, error) {
	atomic.AddInt64(&p.metrics.TotalProcessed, 1)

	data, err := ParseDataURI(dataURI)
	if err != nil {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		return ImageData{}, ValidationResult{Error: err}, err
	}

	result := p.validator.Validate(data)
	if !result.IsValid {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		if result.SecurityRisk != "" {
			atomic.AddInt64(&p.metrics.SecurityIncidents, 1)
			p.logger.Warn("图片验证未通过", map[string]interface{}{
				"error":         result.Error.Error(),
				"security_risk": result.SecurityRisk,
				"format":        data.Format,
			})
		}
		return data, result, fmt.Errorf("图片验证失败: %w", result.Error)
	}

	atomic.AddInt64(&p.metrics.Accepted, 1)
	p.logger.Debug("图片验证通过", map[string]interface{}{
		"format": result.Format,
		"width":  result.Width,
		"height": result.Height,
		"size":   result.FileSize,
	})

	// 以实际格式为准，避免声明的MIME类型与内容不一致
	data.Format = result.Format
	data.MediaType = "image/" + result.Format
	return data, result, nil
}

// GetMetrics 获取处理统计信息
func (p *Processor) GetMetrics() ImageMetrics {
	return ImageMetrics{
		TotalProcessed:    atomic.LoadInt64(&p.metrics.TotalProcessed),
		Accepted:          atomic.LoadInt64(&p.metrics.Accepted),
		FailedValidations: atomic.LoadInt64(&p.metrics.FailedValidations),
		SecurityIncidents: atomic.LoadInt64(&p.metrics.SecurityIncidents),
	}
}
