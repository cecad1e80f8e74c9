package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理结果缓存的读写。磁盘布局遵循：
//
//	<StoragePath>/<tool>/<revision>/<hash>/<flat-name>    # 扁平化后的结果文件
//
// 条目目录存在即视为条目存在；文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Exists 判断条目目录是否存在，空目录同样视为存在。
	Exists(ctx context.Context, id string) (bool, error)

	// List 返回条目中直接存放的全部文件，条目不存在时返回空切片而非错误。
	List(ctx context.Context, id string) ([]FileRecord, error)

	// Open 解码句柄并返回可流式读取的文件。越界访问返回 ErrAccessDenied，
	// 条目或文件缺失返回 ErrNotFound。
	Open(ctx context.Context, handle string) (*ReadResult, error)

	// WriteFiles 将一批文件先写入暂存目录，全部落盘后再提升到条目目录，
	// 读者不会看到写了一半的文件。
	WriteFiles(ctx context.Context, id string, uploads []Upload) (*WriteResult, error)

	// Root 返回已解析的缓存根目录绝对路径。
	Root() string
}

// Upload 描述一个待写入的文件，Name 为逻辑相对路径（可含 "/"）。
type Upload struct {
	Name string
	Body io.Reader
}

// FileRecord 是 List 返回的单个文件描述。
type FileRecord struct {
	Handle    string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// Entry 表示一次读取命中的文件信息。
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文 Reader，便于 HTTP 层直接将文件流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// WriteResult 汇总一次批量写入。Saved 为落盘的扁平文件名，顺序与请求一致。
type WriteResult struct {
	ID      string   `json:"id"`
	Saved   []string `json:"saved"`
	Count   int      `json:"count"`
	Bytes   int64    `json:"bytes"`
	Created bool     `json:"created"`
}

var (
	// ErrNotFound 表示条目或文件不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrAccessDenied 表示解析后的路径落在缓存根目录之外。
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidRequest 表示标识符、文件名或句柄格式非法。
	ErrInvalidRequest = errors.New("invalid request")
	// ErrIO 表示底层存储故障。
	ErrIO = errors.New("storage failure")
)
