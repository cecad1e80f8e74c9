package squid

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// HashLength 是输入哈希段的固定长度（MD5 十六进制）。
const HashLength = md5.Size * 2

var (
	// ErrInvalidSegment 表示工具名/版本段为空或包含路径不安全字符。
	ErrInvalidSegment = errors.New("invalid identifier segment")
	// ErrInvalidID 表示标识符不是 tool/revision/hash 三段结构。
	ErrInvalidID = errors.New("invalid squid id")
)

// ID 是解析后的 squid 标识符。
type ID struct {
	Tool     string
	Revision string
	Hash     string
}

// String 返回 tool/revision/hash 形式的标识符。
func (id ID) String() string {
	return id.Tool + "/" + id.Revision + "/" + id.Hash
}

// Path 返回相对于缓存根目录的系统路径。
func (id ID) Path() string {
	return filepath.Join(id.Tool, id.Revision, id.Hash)
}

// Identify 根据工具名、版本与输入参数计算确定性的 squid ID。
func Identify(toolName, toolRevision string, inputs any) (string, error) {
	if err := ValidateSegment(toolName); err != nil {
		return "", fmt.Errorf("tool name: %w", err)
	}
	if err := ValidateSegment(toolRevision); err != nil {
		return "", fmt.Errorf("tool revision: %w", err)
	}
	hash, err := HashInputs(inputs)
	if err != nil {
		return "", err
	}
	return ID{Tool: toolName, Revision: toolRevision, Hash: hash}.String(), nil
}

// HashInputs 返回输入参数规范文本的 MD5 十六进制摘要。
func HashInputs(inputs any) (string, error) {
	canonical, err := CanonicalJSON(inputs)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Parse 校验并拆分标识符。哈希段只要求是合法段，不强制 MD5 长度，
// 以兼容手工放入缓存根目录的条目。
func Parse(raw string) (ID, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	for _, part := range parts {
		if err := ValidateSegment(part); err != nil {
			return ID{}, fmt.Errorf("%w: %q: %v", ErrInvalidID, raw, err)
		}
	}
	return ID{Tool: parts[0], Revision: parts[1], Hash: parts[2]}, nil
}

// ValidateSegment 拒绝空段、"."/".." 以及包含分隔符、冒号或 NUL 的段。
func ValidateSegment(segment string) error {
	switch {
	case segment == "":
		return fmt.Errorf("%w: empty", ErrInvalidSegment)
	case segment == "." || segment == "..":
		return fmt.Errorf("%w: %q", ErrInvalidSegment, segment)
	case strings.ContainsAny(segment, "/\\:\x00"):
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidSegment, segment)
	}
	return nil
}
