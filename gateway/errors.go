package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/cas-gateway/interfaces"
)

// Kind classifies a caller-facing gateway error.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors not produced by the gateway.
	KindUnknown Kind = iota
	// KindUploadFailed means the backend could not store the content.
	KindUploadFailed
	// KindFetchFailed means the backend could not return the content,
	// including when the address is unknown.
	KindFetchFailed
	// KindConfiguration means the service could not be constructed.
	KindConfiguration
	// KindValidation means the request was rejected before reaching the backend.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindUploadFailed:
		return "UploadFailed"
	case KindFetchFailed:
		return "FetchFailed"
	case KindConfiguration:
		return "ConfigurationError"
	case KindValidation:
		return "ValidationError"
	default:
		return "Unknown"
	}
}

// summary is the only text a caller ever sees for a kind.
func (k Kind) summary() string {
	switch k {
	case KindUploadFailed:
		return "failed to upload content to storage"
	case KindFetchFailed:
		return "failed to fetch content from storage"
	case KindConfiguration:
		return "invalid gateway configuration"
	case KindValidation:
		return "invalid request"
	default:
		return "unexpected gateway error"
	}
}

// Error is the caller-facing error returned by every Service operation.
// The backend error that caused it is retained for logging only: it is not
// part of Error() and cannot be reached with errors.Unwrap.
type Error struct {
	Kind Kind

	// Op is the gateway operation, e.g. "getRecord".
	Op string

	// Address is the address involved, when there is one.
	Address interfaces.Address

	// Detail is gateway-authored context (validation reasons, configuration
	// problems). It never contains backend error text.
	Detail string

	cause error
}

// Kind sentinels for errors.Is matching.
var (
	ErrUploadFailed  = &Error{Kind: KindUploadFailed}
	ErrFetchFailed   = &Error{Kind: KindFetchFailed}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrValidation    = &Error{Kind: KindValidation}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.summary())
	if e.Op != "" {
		fmt.Fprintf(&b, " (op=%s", e.Op)
		if !e.Address.Empty() {
			fmt.Fprintf(&b, " address=%s", e.Address)
		}
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, gateway.ErrFetchFailed).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the gateway kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, addr interfaces.Address, detail string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Address: addr,
		Detail:  detail,
		cause:   cause,
	}
}

func validationError(op string, addr interfaces.Address, detail string) *Error {
	return newError(KindValidation, op, addr, detail, nil)
}

// causeClass names the backend failure for the log side channel, where the
// NotFound distinction absorbed into FetchFailed can still be recovered.
func causeClass(err error) string {
	switch {
	case errors.Is(err, interfaces.ErrContentNotFound):
		return "not_found"
	case errors.Is(err, interfaces.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, interfaces.ErrDeserialization):
		return "deserialization"
	case errors.Is(err, interfaces.ErrBackendIO):
		return "io"
	case errors.Is(err, interfaces.ErrUnknownBackend):
		return "unknown_backend"
	default:
		return "other"
	}
}
