package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ruteri/cas-gateway/api"
	"github.com/ruteri/cas-gateway/gateway"
	"github.com/ruteri/cas-gateway/interfaces"
)

// multipartOverhead is the room left for multipart boundaries and headers
// on top of the upload size limit.
const multipartOverhead = 64 * 1024

// Gateway is the operation set served over HTTP. It is implemented by
// *gateway.Service.
type Gateway interface {
	UploadFile(ctx context.Context, blob interfaces.FileBlob) (string, error)
	UploadRecord(ctx context.Context, record interfaces.Record) (string, error)
	GetFile(ctx context.Context, addr interfaces.Address) (string, error)
	FileContentType(ctx context.Context, addr interfaces.Address) string
	GetRecord(ctx context.Context, addr interfaces.Address) (interfaces.Record, error)
	GetFiles(ctx context.Context, addrs []interfaces.Address) ([]string, error)
	GetRecords(ctx context.Context, addrs []interfaces.Address) ([]interfaces.Record, error)
	Available(ctx context.Context) bool
}

// Handler processes HTTP requests for the gateway routes.
type Handler struct {
	gw            Gateway
	maxUploadSize int64
	fileType      *regexp.Regexp
	log           *slog.Logger
}

// NewHandler creates a handler over gw. Upload limits are taken from cfg,
// falling back to api.DefaultMaxUploadSize and api.DefaultAllowedExtensions.
func NewHandler(gw Gateway, cfg *api.HTTPServerConfig) *Handler {
	maxUploadSize := cfg.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = api.DefaultMaxUploadSize
	}

	extensions := cfg.AllowedExtensions
	if len(extensions) == 0 {
		extensions = api.DefaultAllowedExtensions
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		gw:            gw,
		maxUploadSize: maxUploadSize,
		fileType:      fileTypePattern(extensions),
		log:           log,
	}
}

// fileTypePattern matches a file name or media type ending in one of the
// extensions, case-insensitively.
func fileTypePattern(extensions []string) *regexp.Regexp {
	quoted := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		quoted = append(quoted, regexp.QuoteMeta(strings.TrimPrefix(ext, ".")))
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)$`)
}

// HandleStatus reports that the server is up.
//
// URL format: GET /
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusCreated, api.Response[string]{Data: api.StatusMessage})
}

// HandleUploadFile stores the uploaded file and returns its address.
//
// URL format: POST /file
// Request body: multipart/form-data with the file in the "file" field.
// The file must not exceed the upload limit and its name or media type
// must end in one of the allowed extensions.
func (h *Handler) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeValidationError(w, fmt.Sprintf("file exceeds maximum size of %d bytes", h.maxUploadSize))
			return
		}
		h.writeValidationError(w, "request must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(api.FileFormField)
	if err != nil {
		h.writeValidationError(w, fmt.Sprintf("missing %q form field", api.FileFormField))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		h.writeValidationError(w, fmt.Sprintf("file exceeds maximum size of %d bytes", h.maxUploadSize))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !h.fileType.MatchString(header.Filename) && !h.fileType.MatchString(contentType) {
		h.writeValidationError(w, "unsupported file type")
		return
	}
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			contentType = byExt
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error("Failed to read uploaded file", "err", err, "filename", header.Filename)
		h.writeValidationError(w, "could not read uploaded file")
		return
	}

	cid, err := h.gw.UploadFile(r.Context(), interfaces.FileBlob{
		Data:        data,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, api.Response[api.UploadResponse]{Data: api.UploadResponse{CID: cid}})
}

// HandleUploadRecord stores the JSON request body as a record and returns
// its address.
//
// URL format: POST /record
func (h *Handler) HandleUploadRecord(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	cid, err := h.gw.UploadRecord(r.Context(), interfaces.Record(body))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, api.Response[api.UploadResponse]{Data: api.UploadResponse{CID: cid}})
}

// HandleGetFile returns the file at ?hash= as base64.
//
// URL format: GET /file?hash=<cid>
func (h *Handler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	addr := interfaces.Address(r.URL.Query().Get(api.HashQueryParam))

	data, err := h.gw.GetFile(r.Context(), addr)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.Response[api.FileResponse]{Data: api.FileResponse{
		Data:        data,
		ContentType: h.gw.FileContentType(r.Context(), addr),
	}})
}

// HandleGetRecord returns the record at ?hash=.
//
// URL format: GET /record?hash=<cid>
func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	addr := interfaces.Address(r.URL.Query().Get(api.HashQueryParam))

	record, err := h.gw.GetRecord(r.Context(), addr)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.Response[api.RecordResponse]{Data: api.RecordResponse{Data: json.RawMessage(record)}})
}

// HandleGetRecords returns the records for every hash, in request order.
// A single failing hash fails the whole request.
//
// URL format: POST /records
// Request body: {"hashes": ["<cid>", ...]}
func (h *Handler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	addrs, ok := h.readBatch(w, r)
	if !ok {
		return
	}

	records, err := h.gw.GetRecords(r.Context(), addrs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := api.RecordsResponse{Data: make([]json.RawMessage, len(records))}
	for i, record := range records {
		resp.Data[i] = json.RawMessage(record)
	}
	h.writeJSON(w, http.StatusOK, api.Response[api.RecordsResponse]{Data: resp})
}

// HandleGetFiles returns the base64 content for every hash, in request order.
//
// URL format: POST /files
// Request body: {"hashes": ["<cid>", ...]}
func (h *Handler) HandleGetFiles(w http.ResponseWriter, r *http.Request) {
	addrs, ok := h.readBatch(w, r)
	if !ok {
		return
	}

	files, err := h.gw.GetFiles(r.Context(), addrs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if files == nil {
		files = []string{}
	}
	h.writeJSON(w, http.StatusOK, api.Response[api.FilesResponse]{Data: api.FilesResponse{Data: files}})
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeValidationError(w, fmt.Sprintf("request body exceeds maximum size of %d bytes", h.maxUploadSize))
			return nil, false
		}
		h.log.Error("Failed to read request body", "err", err)
		h.writeValidationError(w, "could not read request body")
		return nil, false
	}
	return body, true
}

func (h *Handler) readBatch(w http.ResponseWriter, r *http.Request) ([]interfaces.Address, bool) {
	body, ok := h.readBody(w, r)
	if !ok {
		return nil, false
	}

	var req api.BatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeValidationError(w, "request body must be {\"hashes\": [...]}")
		return nil, false
	}
	if req.Hashes == nil {
		h.writeValidationError(w, "hashes is required")
		return nil, false
	}

	addrs := make([]interfaces.Address, len(req.Hashes))
	for i, hash := range req.Hashes {
		addrs[i] = interfaces.Address(hash)
	}
	return addrs, true
}

// writeError maps a gateway error onto the error envelope. The service has
// already logged the backend detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := gateway.KindOf(err)

	status := http.StatusInternalServerError
	message := err.Error()
	switch kind {
	case gateway.KindValidation:
		status = http.StatusBadRequest
	case gateway.KindUploadFailed, gateway.KindFetchFailed:
		status = http.StatusBadGateway
	case gateway.KindConfiguration:
	default:
		h.log.Error("Unexpected error from gateway", "err", err)
		message = "internal server error"
	}

	h.writeJSON(w, status, api.ErrorResponse{Error: api.ErrorBody{Kind: kind.String(), Message: message}})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: api.ErrorBody{
		Kind:    gateway.KindValidation.String(),
		Message: message,
	}})
}

// writeJSON encodes v before writing the status, so an encoding failure
// still reaches the client as a 500.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to encode response", slog.Int("status", status), "err", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(api.ErrorResponse{Error: api.ErrorBody{
			Kind:    gateway.KindUnknown.String(),
			Message: "internal server error",
		}})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
