package squid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidInputs 表示输入参数无法编码为规范 JSON（例如 NaN、channel、func）。
var ErrInvalidInputs = errors.New("inputs are not JSON representable")

const hexDigits = "0123456789abcdef"

// CanonicalJSON 将输入参数序列化为规范文本：键按字典序排列，分隔符为 ", " 与 ": "，
// 非 ASCII 字符转义为 \uXXXX，与历史缓存中的 json.dumps(sort_keys=True) 输出逐字节一致。
func CanonicalJSON(inputs any) ([]byte, error) {
	if inputs == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	if err := encodeValue(&buf, inputs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeString(buf, val)
	case json.Number:
		return writeNumber(buf, val)
	case float64:
		return writeFloat(buf, val)
	case float32:
		return writeFloat(buf, float64(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case map[string]any:
		return encodeObject(buf, val)
	case map[any]any:
		converted := make(map[string]any, len(val))
		for key, item := range val {
			converted[fmt.Sprint(key)] = item
		}
		return encodeObject(buf, converted)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return encodeReflected(buf, v)
	}
	return nil
}

func encodeObject(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeString(buf, key)
		buf.WriteString(": ")
		if err := encodeValue(buf, m[key]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeReflected 处理结构体、具名 map/slice 等类型：先交给 encoding/json，再以 UseNumber 解回通用结构。
func encodeReflected(buf *bytes.Buffer, v any) error {
	kind := reflect.ValueOf(v).Kind()
	if kind == reflect.Chan || kind == reflect.Func || kind == reflect.Complex64 || kind == reflect.Complex128 {
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidInputs, v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInputs, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInputs, err)
	}
	return encodeValue(buf, generic)
}

// writeNumber 整数字面量原样输出，小数与指数形式按浮点规则重新格式化，
// 使 "1e5"、"1.50" 与原生 float64 得到相同文本。
func writeNumber(buf *bytes.Buffer, n json.Number) error {
	raw := string(n)
	if !json.Valid([]byte(raw)) {
		return fmt.Errorf("%w: bad number %q", ErrInvalidInputs, raw)
	}
	if !strings.ContainsAny(raw, ".eE") {
		if raw == "-0" {
			raw = "0"
		}
		buf.WriteString(raw)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInputs, err)
	}
	return writeFloat(buf, f)
}

func writeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number", ErrInvalidInputs)
	}
	// repr 规则：十进制指数落在 [-4, 16) 时使用定点表示，整数值补 ".0"。
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInputs, err)
	}
	if f != 0 && (exp < -4 || exp >= 16) {
		buf.WriteString(sci)
		return nil
	}
	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	buf.WriteString(fixed)
	if !strings.ContainsRune(fixed, '.') {
		buf.WriteString(".0")
	}
	return nil
}

// writeString 按 ensure_ascii 规则输出 JSON 字符串。
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				writeUnicodeEscape(buf, r)
			case r > 0xffff:
				r -= 0x10000
				writeUnicodeEscape(buf, 0xd800+(r>>10))
				writeUnicodeEscape(buf, 0xdc00+(r&0x3ff))
			default:
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeUnicodeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}
