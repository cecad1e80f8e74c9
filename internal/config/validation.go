package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	s := c.Server
	if s.ListenPort <= 0 || s.ListenPort > 65535 {
		return newFieldError("Server.ListenPort", "必须在 1-65535")
	}
	if strings.TrimSpace(s.StoragePath) == "" {
		return newFieldError("Server.StoragePath", "不能为空")
	}
	if s.LogLevel != "" {
		if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
			return newFieldError("Server.LogLevel", "仅支持 trace/debug/info/warn/error/fatal/panic")
		}
	}
	if s.LogMaxSize < 0 || s.LogMaxBackups < 0 {
		return newFieldError("Server.LogMaxSize/LogMaxBackups", "不能为负数")
	}
	if s.BodyLimit <= 0 {
		return newFieldError("Server.BodyLimit", "必须大于 0")
	}
	if strings.ContainsAny(s.AuthToken, " \t\r\n") {
		return newFieldError("Server.AuthToken", "不能包含空白字符")
	}
	return nil
}

// Validate 校验客户端配置。
func (c ClientConfig) Validate() error {
	if err := validateServerURL(c.ServerURL); err != nil {
		return newClientFieldError("ServerURL", "SERVER_URL", err.Error())
	}
	if c.Timeout.DurationValue() <= 0 {
		return newClientFieldError("Timeout", "TIMEOUT", "必须大于 0")
	}
	if c.MaxRetries < 0 {
		return newClientFieldError("MaxRetries", "MAX_RETRIES", "不能为负数")
	}
	if c.RetryDelay.DurationValue() < 0 {
		return newClientFieldError("RetryDelay", "RETRY_DELAY", "不能为负数")
	}
	if c.Concurrency <= 0 {
		return newClientFieldError("Concurrency", "CONCURRENCY", "必须大于 0")
	}
	return nil
}

func validateServerURL(raw string) error {
	if raw == "" {
		return errors.New("缺少服务地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，服务地址: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("服务地址缺少 Host: %s", raw)
	}
	return nil
}
