package gateway

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ruteri/cas-gateway/interfaces"
	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := newError(KindFetchFailed, opGetRecord, "bafyaddr", "", interfaces.ErrContentNotFound)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.NotErrorIs(t, err, ErrUploadFailed)
	assert.NotErrorIs(t, err, interfaces.ErrContentNotFound)

	wrapped := fmt.Errorf("handler: %w", err)
	assert.ErrorIs(t, wrapped, ErrFetchFailed)
	assert.Equal(t, KindFetchFailed, KindOf(wrapped))
}

func TestError_MessageHidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.7:5001: connection refused")
	err := newError(KindUploadFailed, opUploadFile, "", "", cause)

	assert.NotContains(t, err.Error(), "connection refused")
	assert.NotContains(t, err.Error(), "10.0.0.7")
	assert.Nil(t, errors.Unwrap(err))
	assert.Equal(t, "failed to upload content to storage (op=uploadFile)", err.Error())
}

func TestError_MessageIncludesAddressAndDetail(t *testing.T) {
	err := newError(KindFetchFailed, opGetFile, "bafyaddr", "", nil)
	assert.Equal(t, "failed to fetch content from storage (op=getFile address=bafyaddr)", err.Error())

	err = validationError(opGetRecord, "", "address is required")
	assert.Equal(t, "invalid request (op=getRecord): address is required", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindValidation, KindOf(ErrValidation))
	assert.Equal(t, KindConfiguration, KindOf(ErrConfiguration))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "UploadFailed", KindUploadFailed.String())
	assert.Equal(t, "FetchFailed", KindFetchFailed.String())
	assert.Equal(t, "ConfigurationError", KindConfiguration.String())
	assert.Equal(t, "ValidationError", KindValidation.String())
	assert.Equal(t, "Unknown", KindUnknown.String())
}

func TestCauseClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("cat: %w", interfaces.ErrContentNotFound), "not_found"},
		{interfaces.ErrBackendUnavailable, "unavailable"},
		{interfaces.ErrDeserialization, "deserialization"},
		{interfaces.ErrBackendIO, "io"},
		{interfaces.ErrUnknownBackend, "unknown_backend"},
		{errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, causeClass(tt.err))
		})
	}
}
