package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/AsemElenawy/simtool-Nanohub/internal/pathcodec"
	"github.com/AsemElenawy/simtool-Nanohub/internal/squid"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	return &fileStore{
		basePath: resolved,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 串行化同一条目的批量写入，同时复用 basePath。
type fileStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Root() string {
	return s.basePath
}

func (s *fileStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	dir, err := s.entryDir(id)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioError("stat entry", err)
	}
	return info.IsDir(), nil
}

func (s *fileStore) List(ctx context.Context, id string) ([]FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := s.entryDir(id)
	if err != nil {
		return nil, err
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
			return []FileRecord{}, nil
		}
		return nil, ioError("read entry", err)
	}

	records := make([]FileRecord, 0, len(items))
	for _, item := range items {
		if !item.Type().IsRegular() || IsStagingName(item.Name()) {
			continue
		}
		info, err := item.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, ioError("stat file", err)
		}
		records = append(records, FileRecord{
			Handle:    pathcodec.EncodeHandle(id, item.Name()),
			Name:      item.Name(),
			Path:      pathcodec.Unflatten(item.Name()),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}
	return records, nil
}

func (s *fileStore) Open(ctx context.Context, handle string) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	id, key, err := pathcodec.DecodeHandle(handle)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	filePath, err := s.filePath(id, key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
			return nil, ErrNotFound
		}
		return nil, ioError("stat file", err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("open file", err)
	}

	entry := Entry{
		ID:        id,
		Name:      key,
		FilePath:  filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}

	return &ReadResult{
		Entry:  entry,
		Reader: f,
	}, nil
}

func (s *fileStore) lockEntry(id string) func() {
	s.mu.Lock()
	lock := s.locks[id]
	if lock == nil {
		lock = &entryLock{}
		s.locks[id] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// entryDir 校验标识符并返回条目目录。
func (s *fileStore) entryDir(id string) (string, error) {
	parsed, err := squid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return filepath.Join(s.basePath, parsed.Path()), nil
}

// filePath 先做词法越界检查，再解析符号链接复查，任何越界都在读取前拒绝。
func (s *fileStore) filePath(id, key string) (string, error) {
	target := filepath.Join(s.basePath, filepath.FromSlash(id), filepath.FromSlash(key))
	if !within(s.basePath, target) {
		return "", fmt.Errorf("%w: %q escapes cache root", ErrAccessDenied, id+"/"+key)
	}

	dir, err := s.entryDir(id)
	if err != nil {
		return "", err
	}
	if !within(dir, target) || target == dir {
		return "", fmt.Errorf("%w: %q escapes entry %s", ErrAccessDenied, key, id)
	}

	if err := s.checkResolved(target); err != nil {
		return "", err
	}
	return target, nil
}

// checkResolved 对已存在的路径解析符号链接，确认真实位置仍在根目录内。
// 不存在的路径交给调用方按 ErrNotFound 处理。
func (s *fileStore) checkResolved(target string) error {
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
			return nil
		}
		return ioError("resolve path", err)
	}
	if !within(s.basePath, resolved) {
		return fmt.Errorf("%w: %q resolves outside cache root", ErrAccessDenied, target)
	}
	return nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
