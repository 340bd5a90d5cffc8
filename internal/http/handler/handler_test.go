package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docpipe/internal/config"
	"docpipe/internal/doccache"
	"docpipe/internal/filestore"
	"docpipe/internal/parser"
	parserMocks "docpipe/internal/parser/mocks"
	"docpipe/internal/pipeline"
	"docpipe/internal/storage"
)

type testEnv struct {
	app    *fiber.App
	files  *filestore.FileStore
	cache  *doccache.Cache
	parser *parserMocks.MockParser
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	files := filestore.New(backend, time.Minute)
	cache := doccache.New(10, time.Minute)
	mParser := new(parserMocks.MockParser)
	pipe := pipeline.New(files, cache, mParser, nil)

	cfg := &config.AppConfig{
		Upload: config.UploadConfig{
			Enabled:       true,
			MaxFileSizeMB: 1,
			TTL:           time.Minute,
		},
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, cfg, files, pipe, nil)

	return &testEnv{app: app, files: files, cache: cache, parser: mParser}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t)

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "note.txt", []byte("hello"))
		req := httptest.NewRequest(http.MethodPost, "/files", body)
		req.Header.Set("Content-Type", ct)

		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var res map[string]any
		decodeJSON(t, resp, &res)
		assert.NotEmpty(t, res["file_id"])
		assert.Equal(t, "note.txt", res["filename"])
		assert.Equal(t, float64(5), res["size"])
	})

	t.Run("missing file field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/files", nil)
		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		decodeJSON(t, resp, &body)
		assert.Equal(t, "FILE_REQUIRED", body.Error.Code)
	})

	t.Run("too large", func(t *testing.T) {
		big := make([]byte, 1<<20+1)
		body, ct := multipartBody(t, "file", "big.bin", big)
		req := httptest.NewRequest(http.MethodPost, "/files", body)
		req.Header.Set("Content-Type", ct)

		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})
}

func TestUploadFile_Disabled(t *testing.T) {
	env := newTestEnv(t)

	cfg := &config.AppConfig{Upload: config.UploadConfig{Enabled: false, MaxFileSizeMB: 1}}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Post("/files", UploadFile(cfg.Upload, env.files))

	body, ct := multipartBody(t, "file", "note.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", ct)

	resp, _ := app.Test(req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var payload errorPayload
	decodeJSON(t, resp, &payload)
	assert.Equal(t, "UPLOADS_DISABLED", payload.Error.Code)
}

func TestGetAndDeleteFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.files.Store(ctx, []byte("hello"), "note.txt")
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/files/"+id, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res map[string]any
		decodeJSON(t, resp, &res)
		assert.Equal(t, "note.txt", res["filename"])
	})

	t.Run("get unknown", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/files/unknown", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var payload errorPayload
		decodeJSON(t, resp, &payload)
		assert.Equal(t, "FILE_NOT_FOUND", payload.Error.Code)
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodDelete, "/files/"+id, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = env.app.Test(httptest.NewRequest(http.MethodDelete, "/files/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestParseFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.files.Store(ctx, []byte("hello"), "note.txt")
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		env.parser.On("Parse", mock.Anything, []byte("hello"), "note.txt",
			parser.Options{EnableOCR: true}).
			Return("handle-H", parser.Metadata{Filename: "note.txt", StructurePreserved: false}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/files/"+id+"/parse",
			bytes.NewReader([]byte(`{"enable_ocr": true}`)))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := env.app.Test(req)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var res pipeline.ParseResult
		decodeJSON(t, resp, &res)
		assert.NotEmpty(t, res.DocID)
		assert.Equal(t, "note.txt", res.Metadata.Filename)
		env.parser.AssertExpectations(t)
	})

	t.Run("missing file", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodPost, "/files/unknown/parse", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("parser unavailable", func(t *testing.T) {
		ocrID, err := env.files.Store(ctx, []byte{0xff}, "scan.jpg")
		require.NoError(t, err)

		env.parser.On("Parse", mock.Anything, mock.Anything, "scan.jpg", mock.Anything).
			Return(nil, parser.Metadata{}, parser.ErrUnavailable).Once()

		resp, _ := env.app.Test(httptest.NewRequest(http.MethodPost, "/files/"+ocrID+"/parse", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var payload errorPayload
		decodeJSON(t, resp, &payload)
		assert.Equal(t, "PARSER_UNAVAILABLE", payload.Error.Code)
	})

	t.Run("parse failure", func(t *testing.T) {
		badID, err := env.files.Store(ctx, []byte("junk"), "bad.pdf")
		require.NoError(t, err)

		env.parser.On("Parse", mock.Anything, mock.Anything, "bad.pdf", mock.Anything).
			Return(nil, parser.Metadata{}, &parser.ParseError{Filename: "bad.pdf", Cause: "corrupt"}).Once()

		resp, _ := env.app.Test(httptest.NewRequest(http.MethodPost, "/files/"+badID+"/parse", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var payload errorPayload
		decodeJSON(t, resp, &payload)
		assert.Equal(t, "PARSE_FAILED", payload.Error.Code)
		assert.Equal(t, "corrupt", payload.Error.Message)
	})
}

func TestExportDocument(t *testing.T) {
	env := newTestEnv(t)

	docID := env.cache.Put("", "note.txt", "handle-H", nil, 0)

	t.Run("computes then memoizes", func(t *testing.T) {
		env.parser.On("Export", mock.Anything, "handle-H", parser.FormatText).
			Return("hello", nil).Once()

		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/export?format=text", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res map[string]any
		decodeJSON(t, resp, &res)
		assert.Equal(t, "hello", res["content"])

		// Second request is served from the format map; Once above would fail
		// the mock if the parser were invoked again.
		resp, _ = env.app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/export?format=text", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		env.parser.AssertExpectations(t)
	})

	t.Run("invalid format", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/export?format=pdf", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		decodeJSON(t, resp, &payload)
		assert.Equal(t, "INVALID_FORMAT", payload.Error.Code)
	})

	t.Run("unknown document", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/documents/unknown/export?format=text", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var payload errorPayload
		decodeJSON(t, resp, &payload)
		assert.Equal(t, "DOCUMENT_NOT_FOUND", payload.Error.Code)
	})
}

func TestExportDocumentAll(t *testing.T) {
	env := newTestEnv(t)

	docID := env.cache.Put("", "note.txt", "handle-H", nil, 0)

	env.parser.On("Export", mock.Anything, "handle-H", parser.FormatText).
		Return("plain", nil).Once()
	env.parser.On("Export", mock.Anything, "handle-H", parser.FormatMarkdown).
		Return("", &parser.ExportError{Format: parser.FormatMarkdown, Cause: "boom"}).Once()

	body := bytes.NewReader([]byte(`{"formats": ["text", "markdown"]}`))
	req := httptest.NewRequest(http.MethodPost, "/documents/"+docID+"/export", body)
	req.Header.Set("Content-Type", "application/json")

	resp, _ := env.app.Test(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res struct {
		Results  map[string]string `json:"results"`
		Failures map[string]string `json:"failures"`
	}
	decodeJSON(t, resp, &res)
	assert.Equal(t, "plain", res.Results["text"])
	assert.Contains(t, res.Failures["markdown"], "boom")
	env.parser.AssertExpectations(t)
}

func TestDocumentLifecycle(t *testing.T) {
	env := newTestEnv(t)

	docID := env.cache.Put("", "note.txt", "handle-H", map[string]string{"text": "x"}, 0)

	t.Run("get summary", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res map[string]any
		decodeJSON(t, resp, &res)
		assert.Equal(t, "note.txt", res["source_name"])
		assert.Equal(t, []any{"text"}, res["formats"])
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = env.app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestStatsAndConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.files.Store(ctx, []byte("a"), "a.txt")
	require.NoError(t, err)
	env.cache.Put("", "a.txt", nil, nil, 0)

	t.Run("stats", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res map[string]any
		decodeJSON(t, resp, &res)
		assert.Contains(t, res, "file_store")
		assert.Contains(t, res, "document_cache")
	})

	t.Run("config", func(t *testing.T) {
		resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/config", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res map[string]any
		decodeJSON(t, resp, &res)
		assert.Equal(t, true, res["enabled"])
		assert.Equal(t, float64(1), res["max_file_size_mb"])
	})
}

func TestOpenAPISpecServedFromBinary(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "openapi: 3.0.3")
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeJSON(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])

	resp, _ = env.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
