package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"printkiosk/internal/applog"
	"printkiosk/internal/config"
	"printkiosk/internal/http/middleware"
	"printkiosk/internal/model"
	"printkiosk/internal/netid"
	"printkiosk/internal/printer"
	"printkiosk/internal/service"
	serviceMocks "printkiosk/internal/service/mocks"
	"printkiosk/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedResolver netid.Identity

func (r fixedResolver) Resolve() netid.Identity { return netid.Identity(r) }

var lanIdentity = fixedResolver{IP: "192.168.1.20"}

// newKioskApp wires the real service over a temp storage directory.
func newKioskApp(t *testing.T, strict bool, p service.Printer) (*fiber.App, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "session_data")
	store, err := storage.NewLocal(config.StorageConfig{Dir: dir})
	require.NoError(t, err)

	if p == nil {
		cfg := config.PrinterConfig{
			Binary: "definitely-not-an-smb-client",
			Host:   "host.docker.internal",
			Share:  "ShopPrinter",
			User:   "Guest",
		}
		p, err = printer.NewBridge(cfg, prometheus.NewRegistry())
		require.NoError(t, err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	RegisterRoutes(app, service.NewKioskService(store, p, applog.Discard()), Options{
		Port:        "5000",
		StrictPrint: strict,
		Resolver:    lanIdentity,
	})
	return app, dir
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func listFiles(t *testing.T, app *fiber.App) []string {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/files", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	return names
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestUploadThenList(t *testing.T) {
	app, _ := newKioskApp(t, false, nil)

	resp, err := app.Test(uploadRequest(t, "a.txt", "hi"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, uploadedFragment, readBody(t, resp))

	assert.Contains(t, listFiles(t, app), "a.txt")
}

func TestUploadOverwrites(t *testing.T) {
	app, _ := newKioskApp(t, false, nil)

	_, err := app.Test(uploadRequest(t, "a.txt", "first"))
	require.NoError(t, err)
	_, err = app.Test(uploadRequest(t, "a.txt", "second"))
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/preview/a.txt", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "second", readBody(t, resp))
	assert.Equal(t, []string{"a.txt"}, listFiles(t, app))
}

func TestUploadNoFile(t *testing.T) {
	app, _ := newKioskApp(t, false, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/upload", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var res errorPayload
	json.NewDecoder(resp.Body).Decode(&res)
	assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
}

func TestUploadStripsClientDirectories(t *testing.T) {
	app, dir := newKioskApp(t, false, nil)

	resp, err := app.Test(uploadRequest(t, "../../escape.txt", "nope"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(filepath.Dir(dir)), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestUploadInvalidName(t *testing.T) {
	app, _ := newKioskApp(t, false, nil)

	resp, err := app.Test(uploadRequest(t, "..", "x"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var res errorPayload
	json.NewDecoder(resp.Body).Decode(&res)
	assert.Equal(t, "INVALID_FILENAME", res.Error.Code)
}

func TestListFiles(t *testing.T) {
	app, dir := newKioskApp(t, false, nil)

	t.Run("empty directory is an empty array", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/files", nil))
		require.NoError(t, err)

		assert.Equal(t, "[]", readBody(t, resp))
		assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	})

	t.Run("matches directory contents and is idempotent", func(t *testing.T) {
		for _, n := range []string{"b.pdf", "a.txt"} {
			_, err := app.Test(uploadRequest(t, n, n))
			require.NoError(t, err)
		}
		// Files placed by hand are listed too; nothing is cached.
		require.NoError(t, os.WriteFile(filepath.Join(dir, "c.png"), []byte("png"), 0o644))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		want := make([]string, 0, len(entries))
		for _, e := range entries {
			want = append(want, e.Name())
		}

		first := listFiles(t, app)
		second := listFiles(t, app)
		assert.Equal(t, want, first)
		assert.Equal(t, first, second)
	})
}

func TestPreviewFile(t *testing.T) {
	app, _ := newKioskApp(t, false, nil)
	_, err := app.Test(uploadRequest(t, "my report.txt", "hello world"))
	require.NoError(t, err)

	t.Run("streams content with inferred type", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/preview/my%20report.txt", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
		assert.Equal(t, "hello world", readBody(t, resp))
	})

	t.Run("range request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/preview/my%20report.txt", nil)
		req.Header.Set("Range", "bytes=0-4")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "hello", readBody(t, resp))
	})

	t.Run("not found", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/preview/never-uploaded.txt", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("encoded traversal is rejected", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/preview/..%2F..%2Fetc%2Fpasswd", nil))
		require.NoError(t, err)

		// Rejected by name validation, or by routing if the path was normalised first.
		assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, resp.StatusCode)
	})
}

func TestPrintFile(t *testing.T) {
	t.Run("reports sent even when file and client are missing", func(t *testing.T) {
		app, _ := newKioskApp(t, false, nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/print?file=ghost.pdf", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, map[string]string{"status": "sent"}, body)
	})

	t.Run("strict mode surfaces the failure", func(t *testing.T) {
		app, _ := newKioskApp(t, true, nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/print?file=ghost.pdf", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "failed", body["status"])
		assert.Equal(t, "ghost.pdf", body["file"])
		assert.NotEmpty(t, body["error"])
	})

	t.Run("strict mode success", func(t *testing.T) {
		var gotArgs []string
		cfg := config.PrinterConfig{Binary: "smbclient", Host: "printer", Share: "ShopPrinter", User: "Guest"}
		bridge, err := printer.NewBridge(cfg, prometheus.NewRegistry(), printer.WithRunner(
			func(_ context.Context, _ string, args ...string) ([]byte, error) {
				gotArgs = args
				return nil, nil
			},
		))
		require.NoError(t, err)
		app, dir := newKioskApp(t, true, bridge)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/print?file=a%20b.pdf", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, gotArgs)
		assert.Equal(t, `print "`+filepath.Join(dir, "a b.pdf")+`"`, gotArgs[len(gotArgs)-1])
	})

	t.Run("every uploaded name can be printed", func(t *testing.T) {
		var gotArgs []string
		cfg := config.PrinterConfig{Binary: "smbclient", Host: "printer", Share: "ShopPrinter", User: "Guest"}
		bridge, err := printer.NewBridge(cfg, prometheus.NewRegistry(), printer.WithRunner(
			func(_ context.Context, _ string, args ...string) ([]byte, error) {
				gotArgs = args
				return nil, nil
			},
		))
		require.NoError(t, err)
		app, dir := newKioskApp(t, true, bridge)

		_, err = app.Test(uploadRequest(t, `q"x;y.txt`, "hi"))
		require.NoError(t, err)
		names := listFiles(t, app)
		require.Equal(t, []string{"q_x_y.txt"}, names)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/print?file="+names[0], nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, gotArgs)
		assert.Equal(t, `print "`+filepath.Join(dir, "q_x_y.txt")+`"`, gotArgs[len(gotArgs)-1])
	})

	t.Run("missing file parameter", func(t *testing.T) {
		app, _ := newKioskApp(t, false, nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/print", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		app, _ := newKioskApp(t, false, nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/print?file=..%2F..%2Fetc%2Fshadow", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_FILENAME", res.Error.Code)
	})
}

func TestIndex(t *testing.T) {
	app, _ := newKioskApp(t, false, nil)

	t.Run("phone gets the upload form", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Mobile Safari/537.36")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := readBody(t, resp)
		assert.Contains(t, body, `name="file"`)
		assert.NotContains(t, body, "192.168.1.20")
	})

	t.Run("desktop gets the dashboard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		body := readBody(t, resp)
		assert.Contains(t, body, "http://192.168.1.20:5000")
		assert.Contains(t, body, `src="/qr.png"`)
	})

	t.Run("fallback address is flagged", func(t *testing.T) {
		a := fiber.New()
		a.Get("/", Index(fixedResolver{IP: "127.0.0.1", Fallback: true}, "5000"))

		resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)

		body := readBody(t, resp)
		assert.Contains(t, body, "http://127.0.0.1:5000")
		assert.Contains(t, body, "No network interface found")
	})
}

func TestIsHandheld(t *testing.T) {
	assert.True(t, isHandheld("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148"))
	assert.True(t, isHandheld("Dalvik/2.1.0 (Linux; U; ANDROID 13)"))
	assert.False(t, isHandheld("Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)"))
	assert.False(t, isHandheld(""))
}

func TestQRCode(t *testing.T) {
	app, _ := newKioskApp(t, false, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/qr.png", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, qrSize, img.Bounds().Dx())
}

func TestHealthCheck(t *testing.T) {
	var logBuf bytes.Buffer
	mockSvc := new(serviceMocks.MockKioskService)
	app := fiber.New()
	app.Get("/health", HealthCheck(mockSvc, applog.New(&logBuf, nil)))

	t.Run("healthy", func(t *testing.T) {
		mockSvc.On("Ping", mock.Anything).Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		mockSvc.On("Ping", mock.Anything).Return(errors.New("stat /session_data: no such file or directory")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
		assert.Contains(t, logBuf.String(), `"level":"warn"`)
		assert.Contains(t, logBuf.String(), "no such file or directory")
	})

	mockSvc.AssertExpectations(t)
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServiceErrors(t *testing.T) {
	var logBuf bytes.Buffer
	log := applog.New(&logBuf, nil)
	mockSvc := new(serviceMocks.MockKioskService)
	app := fiber.New()
	app.Use(middleware.RequestID())
	app.Post("/upload", UploadFile(mockSvc, log))
	app.Get("/files", ListFiles(mockSvc, log))
	app.Get("/print", PrintFile(mockSvc, false, log))

	t.Run("upload storage failure", func(t *testing.T) {
		mockSvc.On("Upload", mock.Anything, mock.Anything, "a.txt", mock.Anything, mock.Anything).
			Return(nil, errors.New("disk full")).Once()

		resp, _ := app.Test(uploadRequest(t, "a.txt", "hi"))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INTERNAL_ERROR", res.Error.Code)
		assert.NotContains(t, res.Error.Message, "disk full")
		assert.Contains(t, logBuf.String(), "disk full")
	})

	t.Run("list failure is logged, not returned", func(t *testing.T) {
		logBuf.Reset()
		mockSvc.On("List", mock.Anything).Return(nil, errors.New("list storage: permission denied")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.NotContains(t, res.Error.Message, "permission denied")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(logBuf.Bytes()), &entry))
		assert.Equal(t, "error", entry["level"])
		assert.Equal(t, "request_failed", entry["msg"])
		assert.Equal(t, "list storage: permission denied", entry["error"])
		assert.Equal(t, http.MethodGet, entry["method"])
		assert.Equal(t, "/files", entry["path"])
		assert.Equal(t, res.RequestID, entry["request_id"])
		assert.NotEmpty(t, entry["request_id"])
	})

	t.Run("print failure hidden in lenient mode", func(t *testing.T) {
		mockSvc.On("Print", mock.Anything, "a.txt").
			Return(&model.PrintResult{File: "a.txt", Status: model.PrintStatusFailed, Error: "exit 1"}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/print?file=a.txt", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	mockSvc.AssertExpectations(t)
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(nil),
	})

	mockSvc := new(serviceMocks.MockKioskService)
	RegisterRoutes(app, mockSvc, Options{Port: "5000", Resolver: lanIdentity})

	t.Run("not found route", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// /files only allows GET
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/files", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})
}

func TestErrorHandler_LogsUnhandledErrors(t *testing.T) {
	var logBuf bytes.Buffer
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(applog.New(&logBuf, nil))})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("template exploded")
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, readBody(t, resp), "template exploded")
	assert.Contains(t, logBuf.String(), `"level":"error"`)
	assert.Contains(t, logBuf.String(), "template exploded")

	logBuf.Reset()
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, logBuf.String())
}
