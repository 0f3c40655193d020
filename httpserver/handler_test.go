package httpserver

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ruteri/cas-gateway/api"
	"github.com/ruteri/cas-gateway/gateway"
	"github.com/ruteri/cas-gateway/interfaces"
	"github.com/ruteri/cas-gateway/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig() *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr: "127.0.0.1:0",
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// newTestServer returns a router backed by an in-memory embedded store.
func newTestServer(t *testing.T, cfg *api.HTTPServerConfig) http.Handler {
	t.Helper()

	svc, err := gateway.NewFromConfig(storage.Config{Backend: "embedded"}, gateway.Options{Log: cfg.Log})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return newServerFor(t, svc, cfg)
}

func newServerFor(t *testing.T, gw Gateway, cfg *api.HTTPServerConfig) http.Handler {
	t.Helper()
	srv, err := New(cfg, NewHandler(gw, cfg))
	require.NoError(t, err)
	return srv.Handler()
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func uploadFile(t *testing.T, h http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, api.FileFormField, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/file", body)
	req.Header.Set("Content-Type", contentType)
	return do(t, h, req)
}

func decodeCID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.Response[api.UploadResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.CID)
	return resp.Data.CID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorBody {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandleStatus(t *testing.T) {
	h := newTestServer(t, testConfig())

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"data":"Server is up"}`, w.Body.String())
}

func TestFileRoundTrip(t *testing.T) {
	h := newTestServer(t, testConfig())
	content := []byte("id,name\n1,alice\n")

	w := uploadFile(t, h, "people.csv", content)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	cid := decodeCID(t, w)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/file?hash="+cid, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.Response[api.FileResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	decoded, err := base64.StdEncoding.DecodeString(resp.Data.Data)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
	assert.Contains(t, resp.Data.ContentType, "text/csv")
}

func TestHandleUploadFile_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadSize = 32
	h := newTestServer(t, cfg)

	tests := []struct {
		name     string
		filename string
		content  []byte
		wantCode int
	}{
		{name: "csv", filename: "a.csv", content: []byte("a,b"), wantCode: http.StatusCreated},
		{name: "uppercase extension", filename: "IMAGE.PNG", content: []byte("png"), wantCode: http.StatusCreated},
		{name: "txt", filename: "notes.txt", content: []byte("hello"), wantCode: http.StatusCreated},
		{name: "unsupported type", filename: "run.exe", content: []byte("MZ"), wantCode: http.StatusBadRequest},
		{name: "no extension", filename: "README", content: []byte("x"), wantCode: http.StatusBadRequest},
		{name: "too large", filename: "big.txt", content: bytes.Repeat([]byte("x"), 33), wantCode: http.StatusBadRequest},
		{name: "empty", filename: "empty.txt", content: nil, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := uploadFile(t, h, tt.filename, tt.content)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusBadRequest {
				assert.Equal(t, "ValidationError", decodeError(t, w).Kind)
			}
		})
	}
}

func TestHandleUploadFile_MalformedRequests(t *testing.T) {
	h := newTestServer(t, testConfig())

	// Not multipart.
	req := httptest.NewRequest(http.MethodPost, "/file", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	w := do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Wrong field name.
	body, contentType := multipartBody(t, "upload", "a.csv", []byte("a,b"))
	req = httptest.NewRequest(http.MethodPost, "/file", body)
	req.Header.Set("Content-Type", contentType)
	w = do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, `"file"`)
}

func TestRecordRoundTrip(t *testing.T) {
	h := newTestServer(t, testConfig())

	w := do(t, h, httptest.NewRequest(http.MethodPost, "/record", strings.NewReader(`{"title": "doc", "pages": [1, 2, 3]}`)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cid := decodeCID(t, w)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/record?hash="+cid, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"data":{"data":{"title":"doc","pages":[1,2,3]}}}`, w.Body.String())
}

func TestHandleUploadRecord_InvalidJSON(t *testing.T) {
	h := newTestServer(t, testConfig())

	for _, body := range []string{"", "{", "not json"} {
		w := do(t, h, httptest.NewRequest(http.MethodPost, "/record", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.Equal(t, "ValidationError", decodeError(t, w).Kind)
	}
}

func TestHandleGetRecords(t *testing.T) {
	h := newTestServer(t, testConfig())

	var hashes []string
	for i := 0; i < 4; i++ {
		w := do(t, h, httptest.NewRequest(http.MethodPost, "/record", strings.NewReader(fmt.Sprintf(`{"i":%d}`, i))))
		require.Equal(t, http.StatusCreated, w.Code)
		hashes = append(hashes, decodeCID(t, w))
	}

	body, err := json.Marshal(api.BatchRequest{Hashes: hashes})
	require.NoError(t, err)
	w := do(t, h, httptest.NewRequest(http.MethodPost, "/records", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"data":{"data":[{"i":0},{"i":1},{"i":2},{"i":3}]}}`, w.Body.String())

	t.Run("one missing fails the batch", func(t *testing.T) {
		body, err := json.Marshal(api.BatchRequest{Hashes: []string{hashes[0], "bafkreimissing"}})
		require.NoError(t, err)
		w := do(t, h, httptest.NewRequest(http.MethodPost, "/records", bytes.NewReader(body)))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "FetchFailed", decodeError(t, w).Kind)
		assert.NotContains(t, w.Body.String(), `"i"`)
	})

	t.Run("empty batch", func(t *testing.T) {
		w := do(t, h, httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"hashes":[]}`)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{"data":[]}}`, w.Body.String())
	})

	t.Run("missing hashes", func(t *testing.T) {
		w := do(t, h, httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := do(t, h, httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"hashes":"abc"}`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleGetFiles(t *testing.T) {
	h := newTestServer(t, testConfig())

	first := decodeCID(t, uploadFile(t, h, "a.txt", []byte("first")))
	second := decodeCID(t, uploadFile(t, h, "b.txt", []byte("second")))

	body, err := json.Marshal(api.BatchRequest{Hashes: []string{second, first}})
	require.NoError(t, err)
	w := do(t, h, httptest.NewRequest(http.MethodPost, "/files", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.Response[api.FilesResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{
		base64.StdEncoding.EncodeToString([]byte("second")),
		base64.StdEncoding.EncodeToString([]byte("first")),
	}, resp.Data.Data)
}

func TestHandleGet_Errors(t *testing.T) {
	h := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		url      string
		wantCode int
		wantKind string
	}{
		{name: "file without hash", url: "/file", wantCode: http.StatusBadRequest, wantKind: "ValidationError"},
		{name: "record without hash", url: "/record?hash=", wantCode: http.StatusBadRequest, wantKind: "ValidationError"},
		{name: "unknown file", url: "/file?hash=bafkreimissing", wantCode: http.StatusBadGateway, wantKind: "FetchFailed"},
		{name: "unknown record", url: "/record?hash=bafyreimissing", wantCode: http.StatusBadGateway, wantKind: "FetchFailed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantKind, decodeError(t, w).Kind)
		})
	}
}

func TestBackendErrorTextIsNotReturned(t *testing.T) {
	var logs bytes.Buffer
	cfg := testConfig()
	cfg.Log = slog.New(slog.NewTextHandler(&logs, nil))

	backend := &storage.MockStorageBackend{BackendName: "kubo-secret-host:5001"}
	backend.On("FetchFile", mock.Anything, interfaces.Address("bafkreiaddr")).
		Return(nil, fmt.Errorf("%w: dial tcp secret-host:5001: connection refused", interfaces.ErrBackendIO))

	svc, err := gateway.New(backend, gateway.Options{Log: cfg.Log})
	require.NoError(t, err)
	h := newServerFor(t, svc, cfg)

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/file?hash=bafkreiaddr", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-host")
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Contains(t, logs.String(), "connection refused")
}

func TestWriteError_UnknownErrorIs500(t *testing.T) {
	cfg := testConfig()
	handler := NewHandler(nil, cfg)

	w := httptest.NewRecorder()
	handler.writeError(w, errors.New("raw failure with internals"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	body := decodeError(t, w)
	assert.Equal(t, "Unknown", body.Kind)
	assert.Equal(t, "internal server error", body.Message)
}

func TestWriteJSON_EncodingFailureIs500(t *testing.T) {
	var logs bytes.Buffer
	cfg := testConfig()
	cfg.Log = slog.New(slog.NewTextHandler(&logs, nil))
	handler := NewHandler(nil, cfg)

	w := httptest.NewRecorder()
	handler.writeJSON(w, http.StatusOK, api.Response[api.RecordResponse]{
		Data: api.RecordResponse{Data: json.RawMessage("not json at all")},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeError(t, w)
	assert.Equal(t, "Unknown", body.Kind)
	assert.Equal(t, "internal server error", body.Message)
	assert.Contains(t, logs.String(), "Failed to encode response")
}

func TestHealthEndpoints(t *testing.T) {
	cfg := testConfig()
	backend := &storage.MockStorageBackend{}
	backend.On("Available", mock.Anything).Return(true).Once()
	backend.On("Available", mock.Anything).Return(false).Once()

	svc, err := gateway.New(backend, gateway.Options{Log: cfg.Log})
	require.NoError(t, err)
	h := newServerFor(t, svc, cfg)

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"storage unavailable"}`, w.Body.String())

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/drain", nil))
	assert.JSONEq(t, `{"status":"draining"}`, w.Body.String())
	w = do(t, h, httptest.NewRequest(http.MethodGet, "/drain", nil))
	assert.JSONEq(t, `{"status":"already draining"}`, w.Body.String())

	// Draining short-circuits before the backend is probed.
	w = do(t, h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not ready"}`, w.Body.String())

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/undrain", nil))
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
	w = do(t, h, httptest.NewRequest(http.MethodGet, "/undrain", nil))
	assert.JSONEq(t, `{"status":"already ready"}`, w.Body.String())

	backend.AssertExpectations(t)
}
