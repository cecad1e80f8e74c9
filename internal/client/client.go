package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.trai.ch/zerr"

	"github.com/AsemElenawy/simtool-Nanohub/internal/config"
	"github.com/AsemElenawy/simtool-Nanohub/internal/logging"
)

// SleepFunc 等待 d 或直到 ctx 结束。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client 是缓存服务的 HTTP 客户端，可被多个 goroutine 并发使用。
type Client struct {
	cfg     config.ClientConfig
	baseURL string
	http    *http.Client
	logger  logrus.FieldLogger
	sleep   SleepFunc
}

// Option 调整 Client 的可选行为。
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger 指定日志输出。
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleep 替换重试间隔的等待实现，测试中用于跳过真实等待。
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// New 校验配置并构建客户端。ServerURL、Timeout、Concurrency 为零值时取默认值；
// MaxRetries 与 RetryDelay 原样使用，0 即不重试、不等待。
func New(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	defaults := config.DefaultClientConfig()
	if strings.TrimSpace(cfg.ServerURL) == "" {
		cfg.ServerURL = defaults.ServerURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		baseURL: cfg.ServerURL,
		http:    newHTTPClient(cfg.Timeout.DurationValue()),
		logger:  logrus.StandardLogger(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = withBearer(c.http, cfg.AuthToken)
	return c, nil
}

// Config 返回合并默认值后的有效配置。
func (c *Client) Config() config.ClientConfig {
	return c.cfg
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retry 最多执行 MaxRetries+1 次 fn，仅对可重试错误等待固定间隔后重来。
func (c *Client) retry(ctx context.Context, op, endpoint string, fn func(ctx context.Context) error) error {
	maxAttempts := c.cfg.MaxRetries + 1
	delay := c.cfg.RetryDelay.DurationValue()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
		lastErr = err

		fields := logging.AttemptFields(op, endpoint, attempt, maxAttempts)
		c.logger.WithFields(fields).WithError(err).Warn("cache_request_retry")

		if attempt < maxAttempts {
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	err := zerr.With(fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr), "operation", op)
	err = zerr.With(err, "endpoint", endpoint)
	return zerr.With(err, "attempts", maxAttempts)
}

// bodyFunc 在每次尝试时重新构造请求体，返回 body 与 Content-Type。
type bodyFunc func() (io.Reader, string, error)

// send 发起一次请求；状态码 >= 400 时关闭响应并返回映射后的错误。
func (c *Client) send(ctx context.Context, method, endpoint string, query url.Values, body bodyFunc) (*http.Response, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		var err error
		reader, contentType, err = body()
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, zerr.Wrap(err, "build request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, zerr.With(fmt.Errorf("%w: %w", ErrTransport, err), "endpoint", endpoint)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, statusError(method, endpoint, resp)
	}
	return resp, nil
}

// doJSON 发送可选的 JSON 请求体并将响应解码到 out，JSON 调用受 Timeout 约束。
func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, query url.Values, payload, out any) error {
	var body bodyFunc
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return zerr.Wrap(err, "encode request")
		}
		body = func() (io.Reader, string, error) {
			return bytes.NewReader(encoded), "application/json", nil
		}
	}

	return c.retry(ctx, op, endpoint, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout.DurationValue())
		defer cancel()

		resp, err := c.send(ctx, method, endpoint, query, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return zerr.With(zerr.Wrap(err, "decode response"), "endpoint", endpoint)
		}
		return nil
	})
}
