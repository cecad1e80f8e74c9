package catalog

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AsemElenawy/simtool-Nanohub/internal/cache"
	"github.com/AsemElenawy/simtool-Nanohub/internal/pathcodec"
)

// File 是条目中的单个文件，Path 为相对条目目录的 "/" 路径。
type File struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Logical string `json:"logical_path"`
	Size    int64  `json:"size"`
	Handle  string `json:"handle"`
}

// Entry 汇总一个缓存条目。
type Entry struct {
	ID        string `json:"squid_id"`
	Files     []File `json:"files"`
	FileCount int    `json:"file_count"`
	TotalSize int64  `json:"total_size"`
}

// Catalog 是一次扫描的结果。
type Catalog struct {
	Root       string    `json:"root"`
	Entries    []Entry   `json:"entries"`
	TotalFiles int       `json:"total_files"`
	TotalSize  int64     `json:"total_size"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// Source 抽象出可被缓存包装的扫描器。
type Source interface {
	Scan(ctx context.Context) (*Catalog, error)
}

// Scanner 对缓存根目录做深度优先扫描。
type Scanner struct {
	root   string
	logger logrus.FieldLogger
}

// NewScanner 构造扫描器，logger 为空时使用 logrus 标准 logger。
func NewScanner(root string, logger logrus.FieldLogger) *Scanner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scanner{root: root, logger: logger}
}

// Scan 返回按 ID 排序的条目列表。根目录不存在时返回空目录而非错误；
// 无法读取的子目录记录告警后跳过。
func (s *Scanner) Scan(ctx context.Context) (*Catalog, error) {
	result := &Catalog{
		Root:      s.root,
		Entries:   []Entry{},
		ScannedAt: time.Now().UTC(),
	}

	info, err := os.Stat(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return result, nil
	}

	entries, err := s.scanDir(ctx, s.root, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	for _, entry := range entries {
		result.TotalFiles += entry.FileCount
		result.TotalSize += entry.TotalSize
	}
	result.Entries = entries
	return result, nil
}

// scanDir 中直接含有普通文件的目录即为条目，整个子树作为一份清单，不再下钻；
// 否则继续扫描子目录。根目录下的散落文件不计入任何条目。
func (s *Scanner) scanDir(ctx context.Context, base, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := os.ReadDir(base)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"action": "catalog_scan", "path": base}).
			WithError(err).Warn("catalog_dir_unreadable")
		return nil, nil
	}

	if prefix != "" && hasRegularFile(items) {
		files := s.inventory(base, prefix)
		entry := Entry{ID: prefix, Files: files, FileCount: len(files)}
		for _, file := range files {
			entry.TotalSize += file.Size
		}
		return []Entry{entry}, nil
	}

	var entries []Entry
	for _, item := range items {
		if !item.IsDir() || cache.IsStagingName(item.Name()) {
			continue
		}
		id := item.Name()
		if prefix != "" {
			id = prefix + "/" + item.Name()
		}
		nested, err := s.scanDir(ctx, filepath.Join(base, item.Name()), id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, nested...)
	}
	return entries, nil
}

func hasRegularFile(items []fs.DirEntry) bool {
	for _, item := range items {
		if item.Type().IsRegular() {
			return true
		}
	}
	return false
}

// inventory 收集目录子树中的全部普通文件，按 Path 排序。
func (s *Scanner) inventory(dir, id string) []File {
	var files []File
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.WithFields(logrus.Fields{"action": "catalog_scan", "path": path}).
				WithError(err).Warn("catalog_walk_failed")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		files = append(files, File{
			Name:    d.Name(),
			Path:    rel,
			Logical: pathcodec.Unflatten(rel),
			Size:    info.Size(),
			Handle:  pathcodec.EncodeHandle(id, rel),
		})
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}
