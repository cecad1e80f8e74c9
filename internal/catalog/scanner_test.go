package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AsemElenawy/simtool-Nanohub/internal/pathcodec"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
}

func TestScanReportsEntryPerIdentifier(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sim", "v1", "aaa", "out.txt"), "12345")
	writeFile(t, filepath.Join(root, "sim", "v1", "aaa", "plots_._e.dat"), "123")
	writeFile(t, filepath.Join(root, "sim", "v2", "bbb", "out.txt"), "1")
	if err := os.MkdirAll(filepath.Join(root, "sim", "v3", "empty"), 0o755); err != nil {
		t.Fatalf("创建空条目失败: %v", err)
	}

	catalog, err := NewScanner(root, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan 返回错误: %v", err)
	}
	if len(catalog.Entries) != 2 {
		t.Fatalf("期望 2 个条目，得到 %d: %+v", len(catalog.Entries), catalog.Entries)
	}
	first := catalog.Entries[0]
	if first.ID != "sim/v1/aaa" || first.FileCount != 2 || first.TotalSize != 8 {
		t.Fatalf("第一个条目不符: %+v", first)
	}
	if first.Files[1].Logical != "plots/e.dat" {
		t.Fatalf("逻辑路径未还原: %+v", first.Files[1])
	}
	id, key, err := pathcodec.DecodeHandle(first.Files[0].Handle)
	if err != nil || id != "sim/v1/aaa" || key != "out.txt" {
		t.Fatalf("句柄不符: %s %s %v", id, key, err)
	}
	if catalog.TotalFiles != 3 || catalog.TotalSize != 9 {
		t.Fatalf("汇总不符: files=%d size=%d", catalog.TotalFiles, catalog.TotalSize)
	}
}

func TestScanNestedFilesFormSingleEntry(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sim", "v1", "aaa", "a", "b", "deep.txt"), "x")
	writeFile(t, filepath.Join(root, "sim", "v1", "aaa", "a", "c.txt"), "y")
	writeFile(t, filepath.Join(root, "sim", "v1", "aaa", "top.txt"), "z")

	catalog, err := NewScanner(root, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan 返回错误: %v", err)
	}
	if len(catalog.Entries) != 1 {
		t.Fatalf("嵌套目录应只算一个条目，得到 %d", len(catalog.Entries))
	}
	if catalog.Entries[0].FileCount != 3 {
		t.Fatalf("文件数应为 3，得到 %d", catalog.Entries[0].FileCount)
	}
	if catalog.Entries[0].Files[0].Path != "a/b/deep.txt" {
		t.Fatalf("文件应按路径排序: %+v", catalog.Entries[0].Files)
	}
}

func TestScanStopsAtFirstDirectoryWithFiles(t *testing.T) {
	root := t.TempDir()
	// 祖先目录里的散落文件会让整个子树被视为一个条目。
	writeFile(t, filepath.Join(root, "sim", "stray.txt"), "s")
	writeFile(t, filepath.Join(root, "sim", "v1", "aaa", "out.txt"), "o")
	writeFile(t, filepath.Join(root, "root-level.txt"), "r")

	catalog, err := NewScanner(root, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan 返回错误: %v", err)
	}
	if len(catalog.Entries) != 1 || catalog.Entries[0].ID != "sim" {
		t.Fatalf("期望单个条目 sim，得到 %+v", catalog.Entries)
	}
	if catalog.TotalFiles != 2 {
		t.Fatalf("根目录文件不应计入，得到 %d", catalog.TotalFiles)
	}
}

func TestScanSkipsStagingDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sim", "v1", ".staging-123", "out.txt"), "partial")

	catalog, err := NewScanner(root, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan 返回错误: %v", err)
	}
	if len(catalog.Entries) != 0 {
		t.Fatalf("暂存目录不应出现在目录中: %+v", catalog.Entries)
	}
}

func TestScanMissingRoot(t *testing.T) {
	catalog, err := NewScanner(filepath.Join(t.TempDir(), "absent"), nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("根目录不存在不应报错: %v", err)
	}
	if catalog.Entries == nil || len(catalog.Entries) != 0 {
		t.Fatalf("期望空目录，得到 %+v", catalog.Entries)
	}
}

type countingSource struct {
	calls atomic.Int32
}

func (s *countingSource) Scan(context.Context) (*Catalog, error) {
	n := s.calls.Add(1)
	return &Catalog{TotalFiles: int(n)}, nil
}

func TestCachedMemoizesUntilInvalidated(t *testing.T) {
	source := &countingSource{}
	cached, err := NewCached(source, time.Minute, 16)
	if err != nil {
		t.Fatalf("NewCached 返回错误: %v", err)
	}
	defer cached.Close()

	first, _ := cached.Scan(context.Background())
	second, _ := cached.Scan(context.Background())
	if first.TotalFiles != 1 || second.TotalFiles != 1 {
		t.Fatalf("TTL 内应复用结果: %d %d", first.TotalFiles, second.TotalFiles)
	}

	cached.Invalidate()
	third, _ := cached.Scan(context.Background())
	if third.TotalFiles != 2 {
		t.Fatalf("失效后应重新扫描，得到 %d", third.TotalFiles)
	}
}

func TestCachedDisabledWithZeroTTL(t *testing.T) {
	source := &countingSource{}
	cached, err := NewCached(source, 0, 16)
	if err != nil {
		t.Fatalf("NewCached 返回错误: %v", err)
	}
	defer cached.Close()

	cached.Scan(context.Background())
	cached.Scan(context.Background())
	if source.calls.Load() != 2 {
		t.Fatalf("TTL 为 0 时每次都应扫描，得到 %d 次", source.calls.Load())
	}
}

func TestFormatSize(t *testing.T) {
	testCases := map[int64]string{
		0:               "0.0 B",
		512:             "512.0 B",
		1536:            "1.5 KB",
		5 * 1024 * 1024: "5.0 MB",
		3 << 30:         "3.0 GB",
		2 << 40:         "2.0 TB",
	}
	for in, want := range testCases {
		if got := FormatSize(in); got != want {
			t.Fatalf("FormatSize(%d) 期望 %s，得到 %s", in, want, got)
		}
	}
}
