package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供访问日志字段。
func RequestFields(method, path string, status int, elapsed time.Duration, requestID string) logrus.Fields {
	return logrus.Fields{
		"action":     "http_request",
		"method":     method,
		"path":       path,
		"status":     status,
		"elapsed_ms": elapsed.Milliseconds(),
		"request_id": requestID,
	}
}

// EntryFields 标识一次缓存条目操作。
func EntryFields(action, squidID string) logrus.Fields {
	return logrus.Fields{
		"action":   action,
		"squid_id": squidID,
	}
}

// AttemptFields 供客户端重试日志复用。
func AttemptFields(operation, endpoint string, attempt, maxAttempts int) logrus.Fields {
	return logrus.Fields{
		"action":       "cache_client",
		"operation":    operation,
		"endpoint":     endpoint,
		"attempt":      attempt,
		"max_attempts": maxAttempts,
	}
}
