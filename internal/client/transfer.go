package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/AsemElenawy/simtool-Nanohub/internal/cache"
	"github.com/AsemElenawy/simtool-Nanohub/internal/logging"
	"github.com/AsemElenawy/simtool-Nanohub/internal/pathcodec"
)

// UploadFile 描述一个本地文件及其在条目中的逻辑路径（"/" 分隔）。
type UploadFile struct {
	Name string
	Path string
}

// UploadResult 是上传接口的响应。
type UploadResult struct {
	Saved []string `json:"saved"`
	Count int      `json:"count"`
}

// DownloadFile 下载句柄对应的文件到 dest。内容先写入同目录临时文件，
// 校验 X-Squid-Checksum 后再 rename，失败时不会留下半截文件。
func (c *Client) DownloadFile(ctx context.Context, handle, dest string) (int64, error) {
	endpoint := endpointDownload + url.PathEscape(handle)
	query := url.Values{"download": {"true"}}

	var written int64
	err := c.retry(ctx, "download", endpoint, func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodGet, endpoint, query, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		n, err := writeVerified(resp, dest)
		if err != nil {
			return err
		}
		written = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func writeVerified(resp *http.Response, dest string) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "create destination dir"), "path", dir)
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "create temp file"), "path", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	digest := xxhash.New()
	n, copyErr := io.Copy(io.MultiWriter(tmp, digest), resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		return 0, zerr.With(fmt.Errorf("%w: read body: %w", ErrTransport, copyErr), "path", dest)
	}
	if closeErr != nil {
		return 0, zerr.With(zerr.Wrap(closeErr, "write temp file"), "path", dest)
	}

	if expected := resp.Header.Get(cache.ChecksumHeader); expected != "" {
		if got := cache.FormatChecksum(digest.Sum64()); got != expected {
			err := zerr.With(zerr.Wrap(ErrChecksumMismatch, "verify download"), "expected", expected)
			return 0, zerr.With(zerr.With(err, "got", got), "path", dest)
		}
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "chmod temp file"), "path", dest)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "move download into place"), "path", dest)
	}
	return n, nil
}

// UploadFiles 以单个 multipart 请求上传一批文件，文件名按扁平规则编码。
func (c *Client) UploadFiles(ctx context.Context, id string, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, zerr.With(zerr.Wrap(ErrNoFiles, "upload"), "squid_id", id)
	}
	flat := make([]string, len(files))
	for i, file := range files {
		name, err := pathcodec.Flatten(file.Name)
		if err != nil {
			return nil, zerr.With(fmt.Errorf("%w: %w", ErrUnsafePath, err), "name", file.Name)
		}
		flat[i] = name
	}

	body := func() (io.Reader, string, error) {
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeMultipart(mw, id, flat, files))
		}()
		return pr, mw.FormDataContentType(), nil
	}

	var result UploadResult
	err := c.retry(ctx, "upload", endpointFiles, func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodPut, endpointFiles, nil, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return zerr.With(zerr.Wrap(err, "decode response"), "endpoint", endpointFiles)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := logging.EntryFields("upload", id)
	fields["count"] = result.Count
	c.logger.WithFields(fields).Info("cache_upload_complete")
	return &result, nil
}

func writeMultipart(mw *multipart.Writer, id string, flat []string, files []UploadFile) error {
	if err := mw.WriteField("squid_id", id); err != nil {
		return err
	}
	for i, file := range files {
		part, err := mw.CreateFormFile("files", flat[i])
		if err != nil {
			return err
		}
		f, err := os.Open(file.Path)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return mw.Close()
}

// StoreResult 收集 sourceRoot 下的文件（目录递归展开）并一次性上传。
// 不存在的路径记录告警后跳过；越出 sourceRoot 的路径返回 ErrUnsafePath。
func (c *Client) StoreResult(ctx context.Context, id, sourceRoot string, paths []string) (*UploadResult, error) {
	root, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, zerr.Wrap(err, "resolve source root")
	}

	var files []UploadFile
	seen := make(map[string]struct{})
	add := func(abs string) error {
		rel, err := filepath.Rel(root, abs)
		if err != nil || !filepath.IsLocal(rel) {
			return zerr.With(zerr.Wrap(ErrUnsafePath, "store result"), "path", abs)
		}
		logical := filepath.ToSlash(rel)
		if _, dup := seen[logical]; dup {
			return nil
		}
		seen[logical] = struct{}{}
		files = append(files, UploadFile{Name: logical, Path: abs})
		return nil
	}

	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, abs)
		}
		abs = filepath.Clean(abs)

		info, err := os.Stat(abs)
		if errors.Is(err, fs.ErrNotExist) {
			fields := logging.EntryFields("store", id)
			fields["path"] = abs
			c.logger.WithFields(fields).Warn("cache_store_path_missing")
			continue
		}
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "stat source"), "path", abs)
		}

		if !info.IsDir() {
			if info.Mode().IsRegular() {
				if err := add(abs); err != nil {
					return nil, err
				}
			}
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			return add(path)
		})
		if err != nil {
			if errors.Is(err, ErrUnsafePath) {
				return nil, err
			}
			return nil, zerr.With(zerr.Wrap(err, "walk source"), "path", abs)
		}
	}

	if len(files) == 0 {
		return nil, zerr.With(zerr.Wrap(ErrNoFiles, "store result"), "squid_id", id)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return c.UploadFiles(ctx, id, files)
}

// GetArchivedResult 将条目全部文件还原到 destRoot 下对应的嵌套路径。
// 条目为空或不存在时返回 false；任何文件路径越界都会在下载前拒绝。
func (c *Client) GetArchivedResult(ctx context.Context, id, destRoot string) (bool, error) {
	files, err := c.ListFiles(ctx, id)
	if err != nil {
		return false, err
	}
	if len(files) == 0 {
		return false, nil
	}

	root, err := filepath.Abs(destRoot)
	if err != nil {
		return false, zerr.Wrap(err, "resolve destination root")
	}

	targets := make([]string, len(files))
	for i, file := range files {
		logical := file.Path
		if file.Name != "" {
			logical = pathcodec.Unflatten(file.Name)
		}
		rel := filepath.FromSlash(logical)
		if !filepath.IsLocal(rel) {
			return false, zerr.With(zerr.Wrap(ErrUnsafePath, "restore result"), "path", logical)
		}
		targets[i] = filepath.Join(root, rel)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, file := range files {
		g.Go(func() error {
			_, err := c.DownloadFile(gctx, file.ID, targets[i])
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	fields := logging.EntryFields("fetch", id)
	fields["count"] = len(files)
	fields["dest"] = root
	c.logger.WithFields(fields).Info("cache_restore_complete")
	return true, nil
}
