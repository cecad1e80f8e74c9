package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.trai.ch/zerr"
)

var (
	// ErrNotFound 对应服务端 404。
	ErrNotFound = zerr.New("not found")
	// ErrAccessDenied 对应服务端 403。
	ErrAccessDenied = zerr.New("access denied")
	// ErrInvalidRequest 对应其余 4xx。
	ErrInvalidRequest = zerr.New("invalid request")
	// ErrServer 表示 5xx，可重试。
	ErrServer = zerr.New("server error")
	// ErrTransport 表示连接失败或超时，可重试。
	ErrTransport = zerr.New("transport failure")
	// ErrChecksumMismatch 表示下载内容与 X-Squid-Checksum 不一致，可重试。
	ErrChecksumMismatch = zerr.New("checksum mismatch")
	// ErrRetriesExhausted 表示所有尝试均失败。
	ErrRetriesExhausted = zerr.New("retries exhausted")
	// ErrNoFiles 表示待上传的路径中没有任何文件。
	ErrNoFiles = zerr.New("no files to upload")
	// ErrUnsafePath 表示文件路径会落在目标根目录之外。
	ErrUnsafePath = zerr.New("unsafe path")
)

// transient 判断错误是否值得重试。
func transient(err error) bool {
	return errors.Is(err, ErrServer) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrChecksumMismatch)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// statusError 将非 2xx/3xx 响应映射为哨兵错误，并附带状态码与服务端错误码。
func statusError(method, endpoint string, resp *http.Response) error {
	var base error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		base = ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		base = ErrAccessDenied
	case resp.StatusCode >= http.StatusInternalServerError:
		base = ErrServer
	default:
		base = ErrInvalidRequest
	}

	err := zerr.With(zerr.Wrap(base, fmt.Sprintf("%s %s", method, endpoint)), "status", resp.StatusCode)

	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			err = zerr.With(err, "code", body.Error)
		}
		if body.Detail != "" {
			err = zerr.With(err, "detail", body.Detail)
		}
	}
	return err
}
