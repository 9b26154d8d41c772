package llm

import (
	"fmt"
	"time"

	"farmassist-server-go/src/configs"
	"farmassist-server-go/src/core/types"
)

// Config LLM配置结构
type Config struct {
	Name            string
	Type            string
	ModelName       string
	VisionModelName string
	BaseURL         string
	APIKey          string
	Temperature     float64
	MaxTokens       int
	TopP            float64
	Timeout         time.Duration
	Headers         map[string]string
}

// ConfigFromYAML 把配置文件中的LLM段转换为provider配置
func ConfigFromYAML(name string, c configs.LLMConfig) *Config {
	vision := c.VisionModelName
	if vision == "" {
		vision = c.ModelName
	}
	return &Config{
		Name:            name,
		Type:            c.Type,
		ModelName:       c.ModelName,
		VisionModelName: vision,
		BaseURL:         c.BaseURL,
		APIKey:          c.APIKey,
		Temperature:     c.Temperature,
		MaxTokens:       c.MaxTokens,
		TopP:            c.TopP,
		Timeout:         configs.ParseDuration(c.Timeout, configs.DefaultLLMTimeout),
		Headers:         c.Headers,
	}
}

// Provider LLM提供者接口
type Provider interface {
	types.LLMProvider
}

// BaseProvider LLM基础实现
type BaseProvider struct {
	config *Config
}

// Config 获取配置
func (p *BaseProvider) Config() *Config {
	return p.config
}

// Name 提供者名称
func (p *BaseProvider) Name() string {
	if p.config.Name != "" {
		return p.config.Name
	}
	return p.config.Type
}

// Model 根据是否为图片请求选择模型
func (p *BaseProvider) Model(vision bool) string {
	if vision && p.config.VisionModelName != "" {
		return p.config.VisionModelName
	}
	return p.config.ModelName
}

// NewBaseProvider 创建LLM基础提供者
func NewBaseProvider(config *Config) *BaseProvider {
	return &BaseProvider{
		config: config,
	}
}

// Initialize 初始化提供者
func (p *BaseProvider) Initialize() error {
	return nil
}

// Cleanup 清理资源
func (p *BaseProvider) Cleanup() error {
	return nil
}

// Factory LLM工厂函数类型
type Factory func(config *Config) (Provider, error)

var (
	factories = make(map[string]Factory)
)

// Register 注册LLM提供者工厂
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create 创建LLM提供者实例
func Create(name string, config *Config) (Provider, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("未知的LLM提供者: %s", name)
	}

	provider, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("创建LLM提供者失败: %v", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化LLM提供者失败: %v", err)
	}

	return provider, nil
}
