package routes

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/AsemElenawy/simtool-Nanohub/internal/cache"
	"github.com/AsemElenawy/simtool-Nanohub/internal/logging"
	"github.com/AsemElenawy/simtool-Nanohub/internal/metrics"
	"github.com/AsemElenawy/simtool-Nanohub/internal/pathcodec"
	"github.com/AsemElenawy/simtool-Nanohub/internal/server"
	"github.com/AsemElenawy/simtool-Nanohub/internal/squid"
)

// Invalidator 在条目内容变化后丢弃目录缓存。
type Invalidator interface {
	Invalidate()
}

// APIDeps 汇总 /api 路由所需的依赖。
type APIDeps struct {
	Store   cache.Store
	Catalog Invalidator
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
}

type apiHandler struct {
	deps APIDeps
}

type fileInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// RegisterAPIRoutes 暴露缓存协议的全部 /api 路由。
func RegisterAPIRoutes(app *fiber.App, deps APIDeps) {
	if app == nil || deps.Store == nil || deps.Logger == nil {
		return
	}
	h := &apiHandler{deps: deps}

	app.Get("/api/squid/id", h.identify)
	app.Post("/api/squid/id", h.identify)
	app.Get("/api/squid/exists", h.exists)
	app.Get("/api/squid/files", h.listFiles)
	app.Put("/api/squid/files", h.uploadFiles)
	app.Get("/api/files/*", h.downloadFile)
	app.Post("/api/run", h.run)
}

func (h *apiHandler) identify(c fiber.Ctx) error {
	params, err := parseIdentifyRequest(c)
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", err)
	}
	id, err := squid.Identify(params.ToolName, params.ToolRevision, params.Inputs)
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", err)
	}
	return c.JSON(fiber.Map{"id": id})
}

func (h *apiHandler) exists(c fiber.Ctx) error {
	id := c.Query("squid_id")
	if id == "" {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", errors.New("squid_id is required"))
	}
	exists, err := h.deps.Store.Exists(c.Context(), id)
	if err != nil {
		return h.writeStoreError(c, "exists", id, err)
	}
	return c.JSON(fiber.Map{"exists": exists})
}

func (h *apiHandler) listFiles(c fiber.Ctx) error {
	id := c.Query("squid_id")
	if id == "" {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", errors.New("squid_id is required"))
	}
	records, err := h.deps.Store.List(c.Context(), id)
	if err != nil {
		return h.writeStoreError(c, "list", id, err)
	}
	files := make([]fileInfo, 0, len(records))
	for _, record := range records {
		files = append(files, fileInfo{
			ID:   record.Handle,
			Name: record.Name,
			Path: record.Path,
			Size: record.SizeBytes,
		})
	}
	return c.JSON(fiber.Map{"files": files})
}

func (h *apiHandler) downloadFile(c fiber.Ctx) error {
	handle, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", err)
	}

	result, err := h.deps.Store.Open(c.Context(), handle)
	if err != nil {
		return h.writeStoreError(c, "download", "", err)
	}
	defer result.Reader.Close()

	sum, err := cache.Checksum(result.Reader)
	if err == nil {
		_, err = result.Reader.Seek(0, io.SeekStart)
	}
	if err != nil {
		return h.writeStoreError(c, "download", result.Entry.ID, fmt.Errorf("%w: checksum: %w", cache.ErrIO, err))
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(cache.ChecksumHeader, sum)
	c.Set("Last-Modified", result.Entry.ModTime.UTC().Format(time.RFC1123))
	if flag := c.Query("download"); flag != "" {
		if download, _ := strconv.ParseBool(flag); download {
			c.Attachment(path.Base(pathcodec.Unflatten(result.Entry.Name)))
		}
	}
	c.Status(fiber.StatusOK)

	written, err := io.Copy(c.Response().BodyWriter(), result.Reader)
	h.deps.Metrics.AddServed(written)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

func (h *apiHandler) uploadFiles(c fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", fmt.Errorf("multipart form required: %w", err))
	}
	id := firstFormValue(form, "squid_id")
	if id == "" {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", errors.New("squid_id is required"))
	}

	uploads, closers, err := collectUploads(form)
	defer func() {
		for _, closer := range closers {
			closer.Close()
		}
	}()
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", err)
	}

	result, err := h.deps.Store.WriteFiles(c.Context(), id, uploads)
	if err != nil {
		return h.writeStoreError(c, "upload", id, err)
	}

	h.deps.Metrics.AddStored(result.Count, result.Bytes, result.Created)
	if h.deps.Catalog != nil {
		h.deps.Catalog.Invalidate()
	}

	fields := logging.EntryFields("upload", id)
	fields["count"] = result.Count
	fields["bytes"] = result.Bytes
	fields["created"] = result.Created
	fields["request_id"] = server.RequestID(c)
	h.deps.Logger.WithFields(fields).Info("entry_stored")

	return c.JSON(fiber.Map{"saved": result.Saved, "count": result.Count})
}

// run 是执行入口的占位实现：只计算标识符，不真正运行模拟。
func (h *apiHandler) run(c fiber.Ctx) error {
	params, err := parseIdentifyRequest(c)
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", err)
	}
	id, err := squid.Identify(params.ToolName, params.ToolRevision, params.Inputs)
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", err)
	}
	h.deps.Logger.WithFields(logging.EntryFields("run", id)).Info("run_requested")
	return c.JSON(fiber.Map{"success": true, "id": id, "squid_id": id})
}

// collectUploads 收集所有文件分段。分段文件名是扁平名，这里还原为逻辑路径交给 Store。
func collectUploads(form *multipart.Form) ([]cache.Upload, []io.Closer, error) {
	var (
		uploads []cache.Upload
		closers []io.Closer
	)
	for _, headers := range form.File {
		for _, header := range headers {
			if header.Filename == "" {
				continue
			}
			f, err := header.Open()
			if err != nil {
				return nil, closers, fmt.Errorf("open part %q: %w", header.Filename, err)
			}
			closers = append(closers, f)
			uploads = append(uploads, cache.Upload{
				Name: pathcodec.Unflatten(header.Filename),
				Body: f,
			})
		}
	}
	if len(uploads) == 0 {
		return nil, closers, errors.New("at least one file part is required")
	}
	return uploads, closers, nil
}

func firstFormValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return firstNonEmpty(values...)
	}
	return ""
}

func (h *apiHandler) writeError(c fiber.Ctx, status int, code string, err error) error {
	payload := fiber.Map{"error": code}
	if err != nil && status < fiber.StatusInternalServerError {
		payload["detail"] = err.Error()
	}
	return c.Status(status).JSON(payload)
}

// writeStoreError 将存储层错误映射为 HTTP 状态码；越界与 IO 故障会被记录。
func (h *apiHandler) writeStoreError(c fiber.Ctx, action, id string, err error) error {
	fields := logging.EntryFields(action, id)
	fields["request_id"] = server.RequestID(c)

	switch {
	case errors.Is(err, cache.ErrInvalidRequest):
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, cache.ErrNotFound):
		return h.writeError(c, fiber.StatusNotFound, "not_found", err)
	case errors.Is(err, cache.ErrAccessDenied):
		h.deps.Metrics.IncAccessDenied()
		h.deps.Logger.WithFields(fields).WithError(err).Warn("access_denied")
		return h.writeError(c, fiber.StatusForbidden, "access_denied", err)
	default:
		h.deps.Logger.WithFields(fields).WithError(err).Error("store_failed")
		return h.writeError(c, fiber.StatusInternalServerError, "io_failure", err)
	}
}
