package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/AsemElenawy/simtool-Nanohub/internal/config"
)

func TestConfigureDefaultsToStdout(t *testing.T) {
	logger, err := InitLogger(config.ServerConfig{LogLevel: "info"})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("未指定文件时应输出到 stdout")
	}
}

func TestInitLoggerEmptyLevelDefaultsToInfo(t *testing.T) {
	logger, err := InitLogger(config.ServerConfig{})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("空级别应默认为 info，得到 %s", logger.GetLevel())
	}
}

func TestInitLoggerFallbackOnPermissionDenied(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	cfg := config.ServerConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "simtool-cache.log"),
	}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("fallback 时应退回 stdout")
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "simtool-cache.log")
	cfg := config.ServerConfig{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestNewCLILoggerWritesText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewCLILogger("warn", &buf)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("hidden")
	logger.WithFields(EntryFields("fetch", "sim/v1/abc")).Warn("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "squid_id=sim/v1/abc") {
		t.Fatalf("CLI 日志输出不符: %s", out)
	}
	if _, err := NewCLILogger("loud", &buf); err == nil {
		t.Fatalf("未知级别应报错")
	}
}
