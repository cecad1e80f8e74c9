package cache

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// ChecksumHeader 携带文件内容的 xxhash64 摘要，客户端据此校验下载完整性。
const ChecksumHeader = "X-Squid-Checksum"

// Checksum 计算 r 的 xxhash64，返回 16 位十六进制字符串。
func Checksum(r io.Reader) (string, error) {
	digest := xxhash.New()
	if _, err := io.Copy(digest, r); err != nil {
		return "", err
	}
	return FormatChecksum(digest.Sum64()), nil
}

// FormatChecksum 统一摘要的文本格式。
func FormatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
