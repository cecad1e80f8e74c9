package pathcodec

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestFlattenKeepsHistoricalNames(t *testing.T) {
	testCases := []struct {
		rel  string
		want string
	}{
		{"out.txt", "out.txt"},
		{"plots/energy.png", "plots_._energy.png"},
		{"a/b/c.dat", "a_._b_._c.dat"},
		{"under_score/file_name.csv", "under_score_._file_name.csv"},
	}
	for _, tc := range testCases {
		got, err := Flatten(tc.rel)
		if err != nil {
			t.Fatalf("Flatten(%q) 返回错误: %v", tc.rel, err)
		}
		if got != tc.want {
			t.Fatalf("Flatten(%q) 期望 %q，得到 %q", tc.rel, tc.want, got)
		}
		if back := Unflatten(got); back != tc.rel {
			t.Fatalf("Unflatten(%q) 期望 %q，得到 %q", got, tc.rel, back)
		}
	}
}

func TestFlattenRoundTripsAmbiguousSegments(t *testing.T) {
	paths := []string{
		"a_._b",
		"a_._b/c",
		"x_/_y",
		"_/_",
		"._hidden/file",
		"trail_./x",
		"100%/done",
		"literal%2E/x",
		"dots.../..x",
		"a/_._/b",
	}
	seen := make(map[string]string)
	for _, rel := range paths {
		flat, err := Flatten(rel)
		if err != nil {
			t.Fatalf("Flatten(%q) 返回错误: %v", rel, err)
		}
		if back := Unflatten(flat); back != rel {
			t.Fatalf("往返失败: %q -> %q -> %q", rel, flat, back)
		}
		if prev, ok := seen[flat]; ok {
			t.Fatalf("%q 与 %q 编码冲突: %q", prev, rel, flat)
		}
		seen[flat] = rel
	}
}

func TestFlattenRejectsInvalidPaths(t *testing.T) {
	for _, rel := range []string{"", "/abs/file", "a//b", "./a", "a/../b", "a/."} {
		if _, err := Flatten(rel); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("Flatten(%q) 应返回 ErrInvalidPath，得到 %v", rel, err)
		}
	}
}

func TestSegments(t *testing.T) {
	got := Segments("plots_._raw_._e.dat")
	want := []string{"plots", "raw", "e.dat"}
	if len(got) != len(want) {
		t.Fatalf("段数量不符: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("第 %d 段期望 %q，得到 %q", i, want[i], got[i])
		}
	}
}

func TestHandleRoundTrip(t *testing.T) {
	handle := EncodeHandle("sim/v1/abc", "plots_._e.png")
	id, key, err := DecodeHandle(handle)
	if err != nil {
		t.Fatalf("DecodeHandle 返回错误: %v", err)
	}
	if id != "sim/v1/abc" || key != "plots_._e.png" {
		t.Fatalf("句柄解码结果错误: %q %q", id, key)
	}
}

func TestDecodeHandleAcceptsLegacyEncodings(t *testing.T) {
	raw := []byte("sim/v1/abc:out?.txt")
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding} {
		id, key, err := DecodeHandle(enc.EncodeToString(raw))
		if err != nil {
			t.Fatalf("旧格式句柄应可解码: %v", err)
		}
		if id != "sim/v1/abc" || key != "out?.txt" {
			t.Fatalf("旧格式句柄解码错误: %q %q", id, key)
		}
	}
}

func TestDecodeHandleKeyMayContainColon(t *testing.T) {
	_, key, err := DecodeHandle(EncodeHandle("sim/v1/abc", "a:b"))
	if err != nil {
		t.Fatalf("DecodeHandle 返回错误: %v", err)
	}
	if key != "a:b" {
		t.Fatalf("应按第一个冒号拆分，得到 %q", key)
	}
}

func TestDecodeHandleRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"!!!not-base64!!!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte(":key")),
		base64.RawURLEncoding.EncodeToString([]byte("id:")),
	}
	for _, handle := range cases {
		if _, _, err := DecodeHandle(handle); !errors.Is(err, ErrInvalidHandle) {
			t.Fatalf("句柄 %q 应返回 ErrInvalidHandle，得到 %v", handle, err)
		}
	}
}
