package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/AsemElenawy/simtool-Nanohub/internal/cache"
	"github.com/AsemElenawy/simtool-Nanohub/internal/metrics"
	"github.com/AsemElenawy/simtool-Nanohub/internal/pathcodec"
	"github.com/AsemElenawy/simtool-Nanohub/internal/server"
	"github.com/AsemElenawy/simtool-Nanohub/internal/squid"
)

const apiTestID = "sim/v1/0123456789abcdef0123456789abcdef"

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) Invalidate() { c.calls.Add(1) }

type apiFixture struct {
	app     *fiber.App
	store   cache.Store
	catalog *countingInvalidator
	metrics *metrics.Metrics
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := cache.NewStore(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	m := metrics.New()
	app, err := server.NewApp(server.AppOptions{Logger: logger, Metrics: m})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	inv := &countingInvalidator{}
	RegisterAPIRoutes(app, APIDeps{Store: store, Catalog: inv, Logger: logger, Metrics: m})
	RegisterHealthRoutes(app, m)
	return &apiFixture{app: app, store: store, catalog: inv, metrics: m}
}

func (f *apiFixture) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return resp, body
}

func decodeJSON(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid JSON %q: %v", string(body), err)
	}
	return payload
}

func multipartUpload(t *testing.T, id string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if id != "" {
		if err := w.WriteField("squid_id", id); err != nil {
			t.Fatalf("write field failed: %v", err)
		}
	}
	for name, content := range files {
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create part failed: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPut, "/api/squid/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestIdentifyAcceptsBodyAndQuery(t *testing.T) {
	f := newAPIFixture(t)
	want, err := squid.Identify("sim", "v1", map[string]any{"x": 1, "label": "a"})
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}

	bodies := []string{
		`{"toolName":"sim","toolRevision":"v1","inputs":{"label":"a","x":1}}`,
		`{"simtool_name":"sim","simtool_revision":"v1","inputs":{"x":1,"label":"a"}}`,
		`{"toolName":"sim","toolRevision":"v1","inputs":"x: 1\nlabel: a\n"}`,
	}
	for _, raw := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/api/squid/id", strings.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		resp, body := f.do(t, req)
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 for %s, got %d: %s", raw, resp.StatusCode, string(body))
		}
		if got := decodeJSON(t, body)["id"]; got != want {
			t.Fatalf("expected id %s, got %v", want, got)
		}
	}

	query := url.Values{}
	query.Set("toolName", "sim")
	query.Set("toolRevision", "v1")
	query.Set("inputs", `{"x": 1, "label": "a"}`)
	resp, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/squid/id?"+query.Encode(), nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for query form, got %d: %s", resp.StatusCode, string(body))
	}
	if got := decodeJSON(t, body)["id"]; got != want {
		t.Fatalf("query form id mismatch: %v", got)
	}
}

func TestIdentifyRejectsBadRequests(t *testing.T) {
	f := newAPIFixture(t)
	bodies := []string{
		`{"toolRevision":"v1"}`,
		`{"toolName":"a/b","toolRevision":"v1"}`,
		`{not json`,
	}
	for _, raw := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/api/squid/id", strings.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		resp, body := f.do(t, req)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", raw, resp.StatusCode)
		}
		if got := decodeJSON(t, body)["error"]; got != "invalid_request" {
			t.Fatalf("unexpected error code %v", got)
		}
	}
}

func TestExistsLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/squid/exists?squid_id="+url.QueryEscape(apiTestID), nil))
	if resp.StatusCode != fiber.StatusOK || decodeJSON(t, body)["exists"] != false {
		t.Fatalf("expected exists=false, got %d %s", resp.StatusCode, string(body))
	}

	resp, body = f.do(t, multipartUpload(t, apiTestID, map[string]string{"out.txt": "done"}))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("upload failed: %d %s", resp.StatusCode, string(body))
	}

	resp, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/squid/exists?squid_id="+url.QueryEscape(apiTestID), nil))
	if resp.StatusCode != fiber.StatusOK || decodeJSON(t, body)["exists"] != true {
		t.Fatalf("expected exists=true, got %d %s", resp.StatusCode, string(body))
	}
}

func TestExistsRequiresValidID(t *testing.T) {
	f := newAPIFixture(t)
	for _, target := range []string{"/api/squid/exists", "/api/squid/exists?squid_id=only/two", "/api/squid/files"} {
		resp, _ := f.do(t, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", target, resp.StatusCode)
		}
	}
}

func TestUploadListDownload(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, multipartUpload(t, apiTestID, map[string]string{
		"out.txt":            "energy=1.5",
		"plots_._energy.dat": "1 2 3",
	}))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("upload failed: %d %s", resp.StatusCode, string(body))
	}
	if got := decodeJSON(t, body)["count"]; got != float64(2) {
		t.Fatalf("expected count 2, got %v", got)
	}
	if f.catalog.calls.Load() != 1 {
		t.Fatalf("catalog should be invalidated once, got %d", f.catalog.calls.Load())
	}

	resp, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/squid/files?squid_id="+url.QueryEscape(apiTestID), nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("list failed: %d %s", resp.StatusCode, string(body))
	}
	var listing struct {
		Files []fileInfo `json:"files"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		t.Fatalf("decode listing failed: %v", err)
	}
	if len(listing.Files) != 2 {
		t.Fatalf("expected 2 files, got %+v", listing.Files)
	}
	var plot fileInfo
	for _, file := range listing.Files {
		if file.Name == "plots_._energy.dat" {
			plot = file
		}
	}
	if plot.Path != "plots/energy.dat" || plot.Size != 5 {
		t.Fatalf("unexpected file info: %+v", plot)
	}

	resp, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/files/"+plot.ID+"?download=true", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("download failed: %d %s", resp.StatusCode, string(body))
	}
	if string(body) != "1 2 3" {
		t.Fatalf("payload mismatch: %s", string(body))
	}
	sum, _ := cache.Checksum(strings.NewReader("1 2 3"))
	if got := resp.Header.Get(cache.ChecksumHeader); got != sum {
		t.Fatalf("expected checksum %s, got %s", sum, got)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, "energy.dat") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}
}

func TestUploadRejectsBadForms(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, multipartUpload(t, "", map[string]string{"out.txt": "x"}))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without squid_id, got %d", resp.StatusCode)
	}
	if decodeJSON(t, body)["error"] != "invalid_request" {
		t.Fatalf("unexpected body %s", string(body))
	}

	resp, _ = f.do(t, multipartUpload(t, apiTestID, nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without files, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/squid/files", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	resp, _ = f.do(t, req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart body, got %d", resp.StatusCode)
	}
	if f.catalog.calls.Load() != 0 {
		t.Fatalf("failed uploads must not invalidate the catalog")
	}
}

func TestDownloadErrors(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		handle string
		status int
		code   string
	}{
		{pathcodec.EncodeHandle(apiTestID, "missing.txt"), fiber.StatusNotFound, "not_found"},
		{pathcodec.EncodeHandle(apiTestID, "../../../../etc/passwd"), fiber.StatusForbidden, "access_denied"},
		{"@@@", fiber.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		resp, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/files/"+url.PathEscape(tc.handle), nil))
		if resp.StatusCode != tc.status {
			t.Fatalf("handle %q: expected %d, got %d (%s)", tc.handle, tc.status, resp.StatusCode, string(body))
		}
		if got := decodeJSON(t, body)["error"]; got != tc.code {
			t.Fatalf("handle %q: expected code %s, got %v", tc.handle, tc.code, got)
		}
	}
}

func TestRunReturnsIdentifier(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/run",
		strings.NewReader(`{"toolName":"sim","toolRevision":"v1","inputs":"{\"x\": 2}"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, body := f.do(t, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("run failed: %d %s", resp.StatusCode, string(body))
	}
	payload := decodeJSON(t, body)
	want, _ := squid.Identify("sim", "v1", map[string]any{"x": 2})
	if payload["success"] != true || payload["id"] != want || payload["squid_id"] != want {
		t.Fatalf("unexpected run payload: %v", payload)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != fiber.StatusOK || decodeJSON(t, body)["status"] != "healthy" {
		t.Fatalf("unexpected health response: %d %s", resp.StatusCode, string(body))
	}

	f.do(t, multipartUpload(t, apiTestID, map[string]string{"out.txt": "abc"}))

	resp, body = f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("metrics failed: %d", resp.StatusCode)
	}
	text := string(body)
	for _, want := range []string{
		"simtool_cache_stored_files_total 1",
		"simtool_cache_entries_created_total 1",
		`route="/api/squid/files"`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
