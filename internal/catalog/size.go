package catalog

import "fmt"

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize 以 1024 为进制输出一位小数的可读大小，如 "1.5 KB"。
func FormatSize(bytes int64) string {
	size := float64(bytes)
	for _, unit := range sizeUnits {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}
