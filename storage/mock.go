package storage

import (
	"context"

	"github.com/ruteri/cas-gateway/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockStorageBackend implements interfaces.StorageBackend for testing
type MockStorageBackend struct {
	mock.Mock
	BackendName string
}

// UploadFile mocks the UploadFile method
func (m *MockStorageBackend) UploadFile(ctx context.Context, data []byte, contentType string) (interfaces.Address, error) {
	args := m.Called(ctx, data, contentType)
	return args.Get(0).(interfaces.Address), args.Error(1)
}

// UploadRecord mocks the UploadRecord method
func (m *MockStorageBackend) UploadRecord(ctx context.Context, record interfaces.Record) (interfaces.Address, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(interfaces.Address), args.Error(1)
}

// FetchFile mocks the FetchFile method
func (m *MockStorageBackend) FetchFile(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// FetchRecord mocks the FetchRecord method
func (m *MockStorageBackend) FetchRecord(ctx context.Context, addr interfaces.Address) (interfaces.Record, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(interfaces.Record), args.Error(1)
}

// Available mocks the Available method
func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// Name returns the configured backend name
func (m *MockStorageBackend) Name() string {
	if m.BackendName == "" {
		return "mock"
	}
	return m.BackendName
}
