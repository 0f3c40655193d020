package api

import (
	"encoding/json"
)

// FileFormField is the multipart field carrying an uploaded file.
const FileFormField = "file"

// HashQueryParam names the address query parameter of the fetch routes.
const HashQueryParam = "hash"

// DefaultMaxUploadSize is the largest file accepted by POST /file (2 MiB).
const DefaultMaxUploadSize = 2 * 1024 * 1024

// DefaultAllowedExtensions are the file types accepted by POST /file.
var DefaultAllowedExtensions = []string{"csv", "png", "jpeg", "jpg", "txt"}

// StatusMessage is the body of GET /.
const StatusMessage = "Server is up"

// Response is the success envelope of every gateway route.
type Response[T any] struct {
	Data T `json:"data"`
}

// UploadResponse is returned by POST /file and POST /record.
type UploadResponse struct {
	// CID is the content address of the stored object.
	CID string `json:"cid"`
}

// FileResponse is returned by GET /file.
type FileResponse struct {
	// Data is the file content in standard base64.
	Data string `json:"data"`

	// ContentType is the MIME type given at upload, when the backend keeps it.
	ContentType string `json:"content_type,omitempty"`
}

// RecordResponse is returned by GET /record.
type RecordResponse struct {
	Data json.RawMessage `json:"data"`
}

// RecordsResponse is returned by POST /records, in request order.
type RecordsResponse struct {
	Data []json.RawMessage `json:"data"`
}

// FilesResponse is returned by POST /files, in request order.
type FilesResponse struct {
	Data []string `json:"data"`
}

// BatchRequest is the body of POST /records and POST /files.
type BatchRequest struct {
	Hashes []string `json:"hashes"`
}

// ErrorResponse is the failure envelope of every gateway route.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the gateway error kind and its caller-facing message.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
