package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/AsemElenawy/simtool-Nanohub/internal/pathcodec"
)

// StagingPrefix 标记批量写入时的暂存目录，列表与目录扫描都会跳过它。
const StagingPrefix = ".staging-"

// IsStagingName 判断目录项是否为暂存目录。
func IsStagingName(name string) bool {
	return strings.HasPrefix(name, StagingPrefix)
}

type stagedFile struct {
	flat  string
	path  string
	bytes int64
}

func (s *fileStore) WriteFiles(ctx context.Context, id string, uploads []Upload) (*WriteResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files to write", ErrInvalidRequest)
	}

	entryDir, err := s.entryDir(id)
	if err != nil {
		return nil, err
	}

	names, err := flattenUploads(uploads)
	if err != nil {
		return nil, err
	}

	unlock := s.lockEntry(id)
	defer unlock()

	parent := filepath.Dir(entryDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, ioError("create entry parent", err)
	}
	if err := s.checkResolved(parent); err != nil {
		return nil, err
	}

	stagingDir := filepath.Join(parent, StagingPrefix+uuid.NewString())
	if err := os.Mkdir(stagingDir, 0o755); err != nil {
		return nil, ioError("create staging dir", err)
	}
	defer os.RemoveAll(stagingDir)

	staged := make([]stagedFile, 0, len(uploads))
	var total int64
	for i, upload := range uploads {
		file, err := stageFile(ctx, stagingDir, names[i], upload)
		if err != nil {
			return nil, err
		}
		staged = append(staged, file)
		total += file.bytes
	}

	created, err := promote(stagingDir, entryDir, staged)
	if err != nil {
		return nil, err
	}

	return &WriteResult{
		ID:      id,
		Saved:   names,
		Count:   len(names),
		Bytes:   total,
		Created: created,
	}, nil
}

// flattenUploads 校验逻辑路径并拒绝同一批次中的重复文件名。
func flattenUploads(uploads []Upload) ([]string, error) {
	names := make([]string, len(uploads))
	seen := make(map[string]struct{}, len(uploads))
	for i, upload := range uploads {
		if upload.Body == nil {
			return nil, fmt.Errorf("%w: %q has no body", ErrInvalidRequest, upload.Name)
		}
		flat, err := pathcodec.Flatten(upload.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if IsStagingName(flat) {
			return nil, fmt.Errorf("%w: %q uses a reserved prefix", ErrInvalidRequest, upload.Name)
		}
		if _, dup := seen[flat]; dup {
			return nil, fmt.Errorf("%w: duplicate file %q", ErrInvalidRequest, upload.Name)
		}
		seen[flat] = struct{}{}
		names[i] = flat
	}
	return names, nil
}

func stageFile(ctx context.Context, stagingDir, flat string, upload Upload) (stagedFile, error) {
	target := filepath.Join(stagingDir, flat)
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return stagedFile{}, ioError("create staged file", err)
	}

	written, err := copyWithContext(ctx, f, upload.Body)
	if err == nil {
		err = f.Sync()
	}
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return stagedFile{}, err
		}
		return stagedFile{}, ioError("write "+flat, err)
	}
	return stagedFile{flat: flat, path: target, bytes: written}, nil
}

// promote 将暂存内容提升为可见条目：条目不存在时整体 rename，读者只会看到完整批次；
// 条目目录已存在（包括空目录）时逐个文件 rename，目录本身始终可见，同名文件后写者覆盖。
func promote(stagingDir, entryDir string, staged []stagedFile) (bool, error) {
	info, err := os.Stat(entryDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.Rename(stagingDir, entryDir); err == nil {
			return true, nil
		}
		// 其他进程可能抢先创建了条目，退回逐文件提升。
		if _, statErr := os.Stat(entryDir); statErr != nil {
			return false, ioError("promote staging dir", statErr)
		}
	case err != nil:
		return false, ioError("stat entry", err)
	case !info.IsDir():
		return false, ioError("stat entry", fmt.Errorf("%s is not a directory", entryDir))
	}

	for _, file := range staged {
		if err := os.Rename(file.path, filepath.Join(entryDir, file.flat)); err != nil {
			return false, ioError("promote "+file.flat, err)
		}
	}
	return false, nil
}
