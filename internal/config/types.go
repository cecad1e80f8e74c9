package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// ServerConfig 描述缓存服务端的运行参数。
type ServerConfig struct {
	ListenHost       string   `mapstructure:"ListenHost"`
	ListenPort       int      `mapstructure:"ListenPort"`
	LogLevel         string   `mapstructure:"LogLevel"`
	LogFilePath      string   `mapstructure:"LogFilePath"`
	LogMaxSize       int      `mapstructure:"LogMaxSize"`
	LogMaxBackups    int      `mapstructure:"LogMaxBackups"`
	LogCompress      bool     `mapstructure:"LogCompress"`
	StoragePath      string   `mapstructure:"StoragePath"`
	CatalogTTL       Duration `mapstructure:"CatalogTTL"`
	CatalogCacheSize int64    `mapstructure:"CatalogCacheSize"`
	BodyLimit        int64    `mapstructure:"BodyLimit"`
	AuthToken        string   `mapstructure:"AuthToken"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Server ServerConfig `mapstructure:",squash"`
}

// ListenAddr 返回 Fiber 监听地址，例如 "0.0.0.0:5000"。
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.ListenHost, s.ListenPort)
}

// AuthMode 输出 `bearer` 或 `open`，供日志字段使用，不暴露凭证本身。
func (s ServerConfig) AuthMode() string {
	if s.AuthToken != "" {
		return "bearer"
	}
	return "open"
}

// ClientConfig 是客户端访问缓存服务所需的注入配置。
type ClientConfig struct {
	ServerURL   string   `mapstructure:"SERVER_URL"`
	AuthToken   string   `mapstructure:"AUTH_TOKEN"`
	Timeout     Duration `mapstructure:"TIMEOUT"`
	MaxRetries  int      `mapstructure:"MAX_RETRIES"`
	RetryDelay  Duration `mapstructure:"RETRY_DELAY"`
	Concurrency int      `mapstructure:"CONCURRENCY"`
}

// ClientOverrides 记录显式给出的字段，nil 表示沿用环境变量或默认值。
type ClientOverrides struct {
	ServerURL  *string
	AuthToken  *string
	Timeout    *Duration
	MaxRetries *int
	RetryDelay *Duration
}

// Merge 以 override 中非 nil 的字段覆盖当前配置，显式的 0 同样生效。
func (c ClientConfig) Merge(override ClientOverrides) ClientConfig {
	merged := c
	if override.ServerURL != nil {
		merged.ServerURL = *override.ServerURL
	}
	if override.AuthToken != nil {
		merged.AuthToken = *override.AuthToken
	}
	if override.Timeout != nil {
		merged.Timeout = *override.Timeout
	}
	if override.MaxRetries != nil {
		merged.MaxRetries = *override.MaxRetries
	}
	if override.RetryDelay != nil {
		merged.RetryDelay = *override.RetryDelay
	}
	return merged
}
