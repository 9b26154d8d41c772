package configs

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认值
const (
	DefaultPort                  = 8000
	DefaultAPIKeyEnv             = "OPENROUTER_API_KEY"
	DefaultAuthSecretEnv         = "FARMASSIST_AUTH_SECRET"
	DefaultRetryAttempts         = 2
	DefaultRetryInitialDelay     = 300 * time.Millisecond
	DefaultRetryMaxDelay         = 3 * time.Second
	DefaultLLMTimeout            = 60 * time.Second
	DefaultFailureAlertThreshold = 5
	DefaultMaxFileSize           = 10 * 1024 * 1024
	DefaultMaxDimension          = 4096
	DefaultMaxPixels             = 4096 * 4096
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
		Auth struct {
			Enabled   bool   `yaml:"enabled"`
			SecretEnv string `yaml:"secret_env"`
			Secret    string `yaml:"-"` // 启动时从环境变量读取
		} `yaml:"auth"`
	} `yaml:"server"`

	Log struct {
		LogLevel string `yaml:"log_level"`
		LogDir   string `yaml:"log_dir"`
		LogFile  string `yaml:"log_file"`
	} `yaml:"log"`

	SelectedModule map[string]string `yaml:"selected_module"`

	LLM map[string]LLMConfig `yaml:"LLM"`

	Proxy    ProxyConfig    `yaml:"proxy"`
	Security SecurityConfig `yaml:"security"`
}

// LLMConfig LLM配置结构
type LLMConfig struct {
	Type            string            `yaml:"type"`
	ModelName       string            `yaml:"model_name"`
	VisionModelName string            `yaml:"vision_model_name"` // 图片分析使用的模型，为空时使用model_name
	BaseURL         string            `yaml:"url"`
	APIKeyEnv       string            `yaml:"api_key_env"`
	APIKey          string            `yaml:"-"` // 启动时从环境变量读取，不落盘
	Temperature     float64           `yaml:"temperature"`
	MaxTokens       int               `yaml:"max_tokens"`
	TopP            float64           `yaml:"top_p"`
	Timeout         string            `yaml:"timeout"`
	Headers         map[string]string `yaml:"headers"`
}

// ProxyConfig 代理行为配置
type ProxyConfig struct {
	Retry struct {
		Attempts     int    `yaml:"attempts"`
		InitialDelay string `yaml:"initial_delay"`
		MaxDelay     string `yaml:"max_delay"`
	} `yaml:"retry"`
	FailureAlertThreshold int    `yaml:"failure_alert_threshold"`
	CORSAllowedOrigin     string `yaml:"cors_allowed_origin"`
}

// SecurityConfig 图片安全配置结构
type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`    // 最大文件大小（字节）
	MaxPixels      int64    `yaml:"max_pixels"`       // 最大像素数量
	MaxWidth       int      `yaml:"max_width"`        // 最大宽度
	MaxHeight      int      `yaml:"max_height"`       // 最大高度
	AllowedFormats []string `yaml:"allowed_formats"`  // 允许的图片格式
	EnableDeepScan bool     `yaml:"enable_deep_scan"` // 启用深度安全扫描
}

// LoadConfig 从文件加载配置
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, path, err
	}
	return config, path, nil
}

// ParseConfig 解析YAML配置并补齐默认值
func ParseConfig(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	config.ApplyDefaults()
	return config, nil
}

// ApplyDefaults 补齐未配置的字段
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Auth.SecretEnv == "" {
		c.Server.Auth.SecretEnv = DefaultAuthSecretEnv
	}
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "info"
	}
	if c.SelectedModule == nil {
		c.SelectedModule = map[string]string{}
	}
	for name, llm := range c.LLM {
		if llm.APIKeyEnv == "" {
			llm.APIKeyEnv = DefaultAPIKeyEnv
		}
		if llm.VisionModelName == "" {
			llm.VisionModelName = llm.ModelName
		}
		if llm.Timeout == "" {
			llm.Timeout = DefaultLLMTimeout.String()
		}
		c.LLM[name] = llm
	}

	if c.Proxy.Retry.Attempts <= 0 {
		c.Proxy.Retry.Attempts = DefaultRetryAttempts
	}
	if c.Proxy.Retry.InitialDelay == "" {
		c.Proxy.Retry.InitialDelay = DefaultRetryInitialDelay.String()
	}
	if c.Proxy.Retry.MaxDelay == "" {
		c.Proxy.Retry.MaxDelay = DefaultRetryMaxDelay.String()
	}
	if c.Proxy.FailureAlertThreshold <= 0 {
		c.Proxy.FailureAlertThreshold = DefaultFailureAlertThreshold
	}
	if c.Proxy.CORSAllowedOrigin == "" {
		c.Proxy.CORSAllowedOrigin = "*"
	}

	if c.Security.MaxFileSize <= 0 {
		c.Security.MaxFileSize = DefaultMaxFileSize
	}
	if c.Security.MaxWidth <= 0 {
		c.Security.MaxWidth = DefaultMaxDimension
	}
	if c.Security.MaxHeight <= 0 {
		c.Security.MaxHeight = DefaultMaxDimension
	}
	if c.Security.MaxPixels <= 0 {
		c.Security.MaxPixels = DefaultMaxPixels
	}
	if len(c.Security.AllowedFormats) == 0 {
		c.Security.AllowedFormats = []string{"jpeg", "png", "webp", "gif"}
	}
}

// ResolveSecrets 从环境变量读取密钥，缺失时只返回缺失的变量名，不报错
func (c *Config) ResolveSecrets() []string {
	var missing []string
	for name, llm := range c.LLM {
		llm.APIKey = strings.TrimSpace(os.Getenv(llm.APIKeyEnv))
		if llm.APIKey == "" && !strings.EqualFold(llm.Type, "ollama") {
			missing = append(missing, llm.APIKeyEnv)
		}
		c.LLM[name] = llm
	}
	if c.Server.Auth.Enabled {
		c.Server.Auth.Secret = os.Getenv(c.Server.Auth.SecretEnv)
		if c.Server.Auth.Secret == "" {
			missing = append(missing, c.Server.Auth.SecretEnv)
		}
	}
	return missing
}

// SelectedLLM 返回当前选中的LLM配置
func (c *Config) SelectedLLM() (string, LLMConfig, bool) {
	name := c.SelectedModule["LLM"]
	llm, ok := c.LLM[name]
	return name, llm, ok
}

// ParseDuration 解析时长，失败时返回默认值
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
