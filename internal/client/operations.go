package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/AsemElenawy/simtool-Nanohub/internal/logging"
)

const (
	endpointIdentify = "/api/squid/id"
	endpointExists   = "/api/squid/exists"
	endpointFiles    = "/api/squid/files"
	endpointDownload = "/api/files/"
	endpointRun      = "/api/run"
	endpointHealth   = "/health"
)

// RemoteFile 是服务端列出的单个文件。
type RemoteFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// RunResult 是 /api/run 的响应。
type RunResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	SquidID string `json:"squid_id"`
}

type identifyPayload struct {
	ToolName     string `json:"toolName"`
	ToolRevision string `json:"toolRevision"`
	Inputs       any    `json:"inputs"`
}

// GetIdentifier 请求服务端为 (tool, revision, inputs) 计算标识符。
func (c *Client) GetIdentifier(ctx context.Context, toolName, toolRevision string, inputs any) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	payload := identifyPayload{ToolName: toolName, ToolRevision: toolRevision, Inputs: inputs}
	if err := c.doJSON(ctx, "identify", http.MethodPost, endpointIdentify, nil, payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CheckExists 查询条目是否存在，任何失败都以错误返回。
func (c *Client) CheckExists(ctx context.Context, id string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	query := url.Values{"squid_id": {id}}
	if err := c.doJSON(ctx, "exists", http.MethodGet, endpointExists, query, nil, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// Exists 是 CheckExists 的宽松版本：失败时记录告警并返回 false。
func (c *Client) Exists(ctx context.Context, id string) bool {
	exists, err := c.CheckExists(ctx, id)
	if err != nil {
		c.logger.WithFields(logging.EntryFields("exists", id)).WithError(err).Warn("cache_exists_failed")
		return false
	}
	return exists
}

// ListFiles 返回条目下的文件列表，条目不存在时为空。
func (c *Client) ListFiles(ctx context.Context, id string) ([]RemoteFile, error) {
	var resp struct {
		Files []RemoteFile `json:"files"`
	}
	query := url.Values{"squid_id": {id}}
	if err := c.doJSON(ctx, "list", http.MethodGet, endpointFiles, query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Files == nil {
		return []RemoteFile{}, nil
	}
	return resp.Files, nil
}

// Run 调用执行入口。服务端目前只返回标识符。
func (c *Client) Run(ctx context.Context, toolName, toolRevision string, inputs any) (*RunResult, error) {
	var resp RunResult
	payload := identifyPayload{ToolName: toolName, ToolRevision: toolRevision, Inputs: inputs}
	if err := c.doJSON(ctx, "run", http.MethodPost, endpointRun, nil, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health 返回服务端报告的状态字符串。
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, "health", http.MethodGet, endpointHealth, nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
