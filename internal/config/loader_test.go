package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFailsWithInvalidFields(t *testing.T) {
	if _, err := Load(testConfigPath(t, "invalid.toml")); err == nil {
		t.Fatalf("非法字段的配置应返回错误")
	}
}

func TestLoadFailsWithMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("显式指定的配置文件不存在时应报错")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
StoragePath = "./data"
CatalogTTL = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadWithoutFileUsesDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SIMTOOL_CACHE_STORAGEPATH", dir)
	t.Setenv("SIMTOOL_CACHE_LISTENPORT", "6001")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Server.ListenPort != 6001 {
		t.Fatalf("环境变量应覆盖端口，得到 %d", cfg.Server.ListenPort)
	}
	if cfg.Server.StoragePath != dir {
		t.Fatalf("环境变量应覆盖缓存目录，得到 %s", cfg.Server.StoragePath)
	}
	if cfg.Server.CatalogTTL.DurationValue() != 5*time.Second {
		t.Fatalf("CatalogTTL 默认值应为 5s，得到 %v", cfg.Server.CatalogTTL.DurationValue())
	}
	if cfg.Server.AuthMode() != "open" {
		t.Fatalf("未配置凭证时应为 open 模式")
	}
}

func TestLoadClientFromEnv(t *testing.T) {
	t.Setenv("SIM2L_CACHE_SERVER_URL", "https://cache.example.org/")
	t.Setenv("SIM2L_CACHE_AUTH_TOKEN", "secret")
	t.Setenv("SIM2L_CACHE_MAX_RETRIES", "5")
	t.Setenv("SIM2L_CACHE_RETRY_DELAY", "250ms")
	t.Setenv("SIM2L_CACHE_TIMEOUT", "10")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient 返回错误: %v", err)
	}
	if cfg.ServerURL != "https://cache.example.org" {
		t.Fatalf("服务地址应去除结尾斜杠，得到 %s", cfg.ServerURL)
	}
	if cfg.AuthToken != "secret" || cfg.MaxRetries != 5 {
		t.Fatalf("环境变量未生效: %+v", cfg)
	}
	if cfg.RetryDelay.DurationValue() != 250*time.Millisecond {
		t.Fatalf("RetryDelay 解析错误: %v", cfg.RetryDelay.DurationValue())
	}
	if cfg.Timeout.DurationValue() != 10*time.Second {
		t.Fatalf("纯数字 Timeout 应按秒解析，得到 %v", cfg.Timeout.DurationValue())
	}
	if cfg.Concurrency != 4 {
		t.Fatalf("Concurrency 应使用默认值，得到 %d", cfg.Concurrency)
	}
}

func TestLoadClientKeepsZeroRetries(t *testing.T) {
	t.Setenv("SIM2L_CACHE_MAX_RETRIES", "0")
	t.Setenv("SIM2L_CACHE_RETRY_DELAY", "0s")
	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient 返回错误: %v", err)
	}
	if cfg.MaxRetries != 0 || cfg.RetryDelay != 0 {
		t.Fatalf("显式 0 应保留: %+v", cfg)
	}
}

func TestLoadClientRejectsBadURL(t *testing.T) {
	t.Setenv("SIM2L_CACHE_SERVER_URL", "ftp://cache.example.org")
	_, err := LoadClient()
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("非 http 地址应返回 FieldError，得到 %v", err)
	}
	if fieldErr.Field != "Client.ServerURL" || fieldErr.Env != "SIM2L_CACHE_SERVER_URL" {
		t.Fatalf("FieldError 字段不符: %+v", fieldErr)
	}
}
