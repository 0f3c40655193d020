package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackendKind(t *testing.T) {
	tests := []struct {
		value   string
		want    BackendKind
		wantErr bool
	}{
		{value: "kubo", want: KuboBackend},
		{value: "Embedded", want: EmbeddedBackend},
		{value: "  KUBO\n", want: KuboBackend},
		{value: "", wantErr: true},
		{value: "UNKNOWN", wantErr: true},
		{value: "helia", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseBackendKind(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownBackend)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompactRecord(t *testing.T) {
	got, err := CompactRecord(Record("{\n  \"a\": [1, 2],\n  \"b\": {\"c\": null}\n}"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2],"b":{"c":null}}`, string(got))

	_, err = CompactRecord(Record(`{"a":`))
	assert.ErrorIs(t, err, ErrDeserialization)

	_, err = CompactRecord(nil)
	assert.ErrorIs(t, err, ErrDeserialization)
}

func TestAddressEmpty(t *testing.T) {
	assert.True(t, Address("").Empty())
	assert.True(t, Address("  ").Empty())
	assert.False(t, Address("bafkqaaa").Empty())
}

func TestNewFileBlob(t *testing.T) {
	blob := NewFileBlob([]byte("abc"), "text/plain")
	assert.Equal(t, int64(3), blob.Size)
	assert.Equal(t, "text/plain", blob.ContentType)
}
