// Package gateway is the uniform entry point over the content-addressed
// storage backends.
//
// A Service is bound to exactly one interfaces.StorageBackend when it is
// constructed, either directly with New or by identifier with
// NewFromConfig. Every operation validates its input, delegates to the
// bound backend and translates backend failures into a *Error of a fixed
// kind:
//
//   - UploadFile, UploadRecord fail with KindUploadFailed
//   - GetFile, GetRecord, GetFiles, GetRecords fail with KindFetchFailed
//   - construction fails with KindConfiguration
//   - malformed input fails with KindValidation without touching the backend
//
// The backend's own error text never reaches the caller. It is logged
// together with the operation, the address and the backend name.
//
// Batch fetches run concurrently, return results in input order and fail
// as a whole on the first failing address.
package gateway
