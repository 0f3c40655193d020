package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Address is the content identifier returned by an upload. The gateway treats
// it as an opaque lookup key; both backends use the textual CID form.
type Address string

// String returns the address text.
func (a Address) String() string {
	return string(a)
}

// Empty reports whether the address carries no identifier.
func (a Address) Empty() bool {
	return strings.TrimSpace(string(a)) == ""
}

// Record is an arbitrary JSON value stored and retrieved as a unit.
// The raw bytes are kept so numbers and nesting survive a round trip untouched.
type Record = json.RawMessage

// NewRecord marshals v into a Record.
func NewRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not marshal record: %w", err)
	}
	return Record(data), nil
}

// CompactRecord validates record and strips insignificant whitespace.
func CompactRecord(record Record) (Record, error) {
	if !json.Valid(record) {
		return nil, ErrDeserialization
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return Record(buf.Bytes()), nil
}

// FileBlob is raw binary content submitted for upload together with its
// MIME type hint and size.
type FileBlob struct {
	Data        []byte
	ContentType string
	Size        int64
}

// NewFileBlob creates a blob whose size is taken from data.
func NewFileBlob(data []byte, contentType string) FileBlob {
	return FileBlob{
		Data:        data,
		ContentType: contentType,
		Size:        int64(len(data)),
	}
}

// BackendKind identifies one of the recognized storage backends.
type BackendKind string

const (
	// KuboBackend talks to a remote IPFS (Kubo) node over its RPC API.
	KuboBackend BackendKind = "kubo"
	// EmbeddedBackend runs an in-process block store.
	EmbeddedBackend BackendKind = "embedded"
)

// BackendKinds lists every recognized backend identifier.
var BackendKinds = []BackendKind{KuboBackend, EmbeddedBackend}

// ParseBackendKind resolves a configuration value to a BackendKind.
// Matching ignores case and surrounding whitespace.
func ParseBackendKind(value string) (BackendKind, error) {
	normalized := BackendKind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range BackendKinds {
		if normalized == kind {
			return kind, nil
		}
	}
	if normalized == "" {
		return "", fmt.Errorf("%w: no backend configured", ErrUnknownBackend)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, value)
}

// String returns the configuration identifier.
func (k BackendKind) String() string {
	return string(k)
}

var (
	// ErrContentNotFound is returned when the address is unknown to the backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrBackendIO is returned when the storage layer fails mid-operation.
	ErrBackendIO = errors.New("storage backend i/o error")

	// ErrDeserialization is returned when stored bytes are not valid JSON.
	ErrDeserialization = errors.New("stored content is not valid JSON")

	// ErrUnknownBackend is returned when the configured backend identifier
	// is not one of BackendKinds.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// StorageBackend provides content-addressed storage for files and records.
// Implementations must be safe for concurrent use.
type StorageBackend interface {
	// UploadFile stores raw content and returns its address.
	UploadFile(ctx context.Context, data []byte, contentType string) (Address, error)

	// UploadRecord stores a JSON value and returns its address.
	UploadRecord(ctx context.Context, record Record) (Address, error)

	// FetchFile retrieves raw content by address.
	FetchFile(ctx context.Context, addr Address) ([]byte, error)

	// FetchRecord retrieves a JSON value by address.
	FetchRecord(ctx context.Context, addr Address) (Record, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string
}

// ContentTypeResolver is implemented by backends that keep the MIME type
// given at upload.
type ContentTypeResolver interface {
	ContentType(ctx context.Context, addr Address) (string, error)
}
