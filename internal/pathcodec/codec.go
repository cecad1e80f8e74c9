// Package pathcodec maps nested result paths onto the flat file names stored
// inside a cache entry, and packs (identifier, file) pairs into opaque,
// URL-safe handles.
//
// Stored names keep the historical layout: path separators become the
// reserved token "_._". Segments that could make the split ambiguous are
// percent-escaped ("%" and a "." wedged between underscores or segment edges),
// so Unflatten(Flatten(p)) == p for every legal relative path while ordinary
// names are stored byte for byte.
package pathcodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Separator 是扁平文件名中代替路径分隔符的保留标记。
const Separator = "_._"

// handleSep 连接标识符与文件键；标识符中不允许出现冒号。
const handleSep = ":"

var (
	// ErrInvalidPath 表示相对路径为空、绝对路径或包含 "."/".." 段。
	ErrInvalidPath = errors.New("invalid relative path")
	// ErrInvalidHandle 表示句柄无法解码或缺少分隔符，调用方应视为客户端错误。
	ErrInvalidHandle = errors.New("invalid file handle")
)

// Flatten 将相对路径（"/" 或系统分隔符）编码为单个扁平文件名。
func Flatten(rel string) (string, error) {
	segments, err := splitRelative(rel)
	if err != nil {
		return "", err
	}
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = escapeSegment(segment)
	}
	return strings.Join(escaped, Separator), nil
}

// Unflatten 是 Flatten 的逆运算，返回以 "/" 分隔的相对路径。
func Unflatten(flat string) string {
	return strings.Join(Segments(flat), "/")
}

// Segments 按保留标记拆分扁平文件名并还原每一段。
func Segments(flat string) []string {
	parts := strings.Split(flat, Separator)
	for i, part := range parts {
		parts[i] = unescapeSegment(part)
	}
	return parts
}

func splitRelative(rel string) ([]string, error) {
	if rel == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	slashed := filepath.ToSlash(rel)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(rel) {
		return nil, fmt.Errorf("%w: %q is absolute", ErrInvalidPath, rel)
	}
	segments := strings.Split(slashed, "/")
	for _, segment := range segments {
		if segment == "" || segment == "." || segment == ".." {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, rel)
		}
		if strings.ContainsRune(segment, 0) {
			return nil, fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, rel)
		}
	}
	return segments, nil
}

// escapeSegment 保证转义后的段内部不含保留标记，且不以 "._" 开头、不以 "_." 结尾。
func escapeSegment(segment string) string {
	if !strings.ContainsAny(segment, "%.") {
		return segment
	}
	var b strings.Builder
	b.Grow(len(segment) + 4)
	for i := 0; i < len(segment); i++ {
		ch := segment[i]
		switch {
		case ch == '%':
			b.WriteString("%25")
		case ch == '.' && (i == 0 || segment[i-1] == '_') && (i == len(segment)-1 || segment[i+1] == '_'):
			b.WriteString("%2E")
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// unescapeSegment 只还原 %25 与 %2E，其余 "%" 原样保留以兼容历史文件名。
func unescapeSegment(segment string) string {
	if !strings.Contains(segment, "%") {
		return segment
	}
	var b strings.Builder
	b.Grow(len(segment))
	for i := 0; i < len(segment); i++ {
		if segment[i] == '%' && i+2 < len(segment) {
			switch segment[i+1 : i+3] {
			case "25":
				b.WriteByte('%')
				i += 2
				continue
			case "2E", "2e":
				b.WriteByte('.')
				i += 2
				continue
			}
		}
		b.WriteByte(segment[i])
	}
	return b.String()
}

// EncodeHandle 将 "id:key" 编码为 URL 安全的不透明句柄。
func EncodeHandle(id, key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id + handleSep + key))
}

// DecodeHandle 解码句柄，兼容标准/URL 字母表以及有无填充的历史句柄。
func DecodeHandle(handle string) (id, key string, err error) {
	raw, err := decodeBase64(strings.TrimSpace(handle))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}
	decoded := string(raw)
	idx := strings.Index(decoded, handleSep)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: missing separator", ErrInvalidHandle)
	}
	id, key = decoded[:idx], decoded[idx+len(handleSep):]
	if id == "" || key == "" {
		return "", "", fmt.Errorf("%w: empty identifier or key", ErrInvalidHandle)
	}
	return id, key, nil
}

func decodeBase64(handle string) ([]byte, error) {
	if handle == "" {
		return nil, errors.New("empty handle")
	}
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		raw, err := enc.DecodeString(handle)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
