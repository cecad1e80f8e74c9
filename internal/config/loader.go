package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// ServerEnvPrefix 是服务端环境变量前缀，例如 SIMTOOL_CACHE_STORAGEPATH。
	ServerEnvPrefix = "SIMTOOL_CACHE"
	// ClientEnvPrefix 是客户端环境变量前缀，例如 SIM2L_CACHE_SERVER_URL。
	ClientEnvPrefix = "SIM2L_CACHE"

	DefaultServerURL = "http://localhost:5000"
)

// Load 读取 TOML 配置文件（可为空，仅使用默认值与环境变量），同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(ServerEnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyServerDefaults(&cfg.Server)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storage, err := expandHome(cfg.Server.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	absStorage, err := filepath.Abs(storage)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Server.StoragePath = absStorage

	return &cfg, nil
}

// LoadClient 从环境变量读取客户端配置，未设置的字段使用默认值。
func LoadClient() (ClientConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(ClientEnvPrefix)
	v.AutomaticEnv()
	setClientDefaults(v)

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return ClientConfig{}, fmt.Errorf("解析客户端配置失败: %w", err)
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// DefaultClientConfig 返回不读取环境变量的默认客户端配置。
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:   DefaultServerURL,
		Timeout:     Duration(30 * time.Second),
		MaxRetries:  3,
		RetryDelay:  Duration(time.Second),
		Concurrency: 4,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenHost", "0.0.0.0")
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "~/.cache/simtool_cache")
	v.SetDefault("CatalogTTL", "5s")
	v.SetDefault("CatalogCacheSize", 16)
	v.SetDefault("BodyLimit", 1<<30)
	v.SetDefault("AuthToken", "")
}

func setClientDefaults(v *viper.Viper) {
	defaults := DefaultClientConfig()
	v.SetDefault("SERVER_URL", defaults.ServerURL)
	v.SetDefault("AUTH_TOKEN", "")
	v.SetDefault("TIMEOUT", defaults.Timeout.DurationValue().String())
	v.SetDefault("MAX_RETRIES", defaults.MaxRetries)
	v.SetDefault("RETRY_DELAY", defaults.RetryDelay.DurationValue().String())
	v.SetDefault("CONCURRENCY", defaults.Concurrency)
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenPort == 0 {
		s.ListenPort = 5000
	}
	if s.CatalogTTL.DurationValue() < 0 {
		s.CatalogTTL = Duration(0)
	}
	if s.CatalogCacheSize <= 0 {
		s.CatalogCacheSize = 16
	}
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			v = strings.TrimSpace(v)
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
