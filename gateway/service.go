package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/cas-gateway/interfaces"
	"github.com/ruteri/cas-gateway/metrics"
	"github.com/ruteri/cas-gateway/storage"
	"golang.org/x/sync/errgroup"
)

const (
	opUploadFile   = "uploadFile"
	opUploadRecord = "uploadRecord"
	opGetFile      = "getFile"
	opGetRecord    = "getRecord"
	opGetFiles     = "getFiles"
	opGetRecords   = "getRecords"
	opNew          = "new"

	defaultContentType = "application/octet-stream"
)

// Options configures a Service.
type Options struct {
	Log *slog.Logger

	// MaxConcurrency bounds the fan-out of batch fetches.
	// Zero or less starts one fetch per address.
	MaxConcurrency int
}

// Service exposes the uniform gateway operations over a single backend
// chosen at construction. The binding never changes afterwards, so the
// service is safe for concurrent use without locking.
type Service struct {
	backend        interfaces.StorageBackend
	maxConcurrency int
	log            *slog.Logger
}

// New binds the service to an already selected backend.
func New(backend interfaces.StorageBackend, opts Options) (*Service, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if backend == nil {
		return nil, newError(KindConfiguration, opNew, "", "no storage backend bound", nil)
	}

	return &Service{
		backend:        backend,
		maxConcurrency: opts.MaxConcurrency,
		log:            opts.Log.With("backend", backend.Name()),
	}, nil
}

// NewFromConfig selects the backend named by cfg.Backend and binds the
// service to it. Unrecognized identifiers and backend construction failures
// are reported as ConfigurationError before any request is served.
func NewFromConfig(cfg storage.Config, opts Options) (*Service, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	backend, err := storage.Select(cfg, opts.Log)
	if err != nil {
		detail := "storage backend could not be initialized"
		if errors.Is(err, interfaces.ErrUnknownBackend) {
			detail = "unknown storage backend"
		}
		opts.Log.Error("Failed to configure gateway",
			slog.String("op", opNew),
			slog.String("backend", cfg.Backend),
			slog.Any("expected", interfaces.BackendKinds),
			slog.String("cause", causeClass(err)),
			"err", err)
		return nil, newError(KindConfiguration, opNew, "", detail, err)
	}

	return New(backend, opts)
}

// BackendName returns the name of the bound backend.
func (s *Service) BackendName() string {
	return s.backend.Name()
}

// Available reports whether the bound backend is reachable.
func (s *Service) Available(ctx context.Context) bool {
	return s.backend.Available(ctx)
}

// Close releases the bound backend when it holds resources.
func (s *Service) Close() error {
	if closer, ok := s.backend.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// UploadFile stores blob and returns its address as text.
func (s *Service) UploadFile(ctx context.Context, blob interfaces.FileBlob) (string, error) {
	start := time.Now()
	addr, err := s.uploadFile(ctx, blob)
	s.observe(opUploadFile, start, err)
	return addr.String(), err
}

func (s *Service) uploadFile(ctx context.Context, blob interfaces.FileBlob) (interfaces.Address, error) {
	if len(blob.Data) == 0 {
		return "", validationError(opUploadFile, "", "file is empty")
	}
	if blob.Size > 0 && blob.Size != int64(len(blob.Data)) {
		return "", validationError(opUploadFile, "", "declared size does not match content")
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	addr, err := s.backend.UploadFile(ctx, blob.Data, contentType)
	if err != nil {
		return "", s.fail(ctx, KindUploadFailed, opUploadFile, "", err)
	}
	return addr, nil
}

// UploadRecord stores record and returns its address as text.
func (s *Service) UploadRecord(ctx context.Context, record interfaces.Record) (string, error) {
	start := time.Now()
	addr, err := s.uploadRecord(ctx, record)
	s.observe(opUploadRecord, start, err)
	return addr.String(), err
}

func (s *Service) uploadRecord(ctx context.Context, record interfaces.Record) (interfaces.Address, error) {
	compact, err := interfaces.CompactRecord(record)
	if err != nil {
		return "", validationError(opUploadRecord, "", "record is not valid JSON")
	}

	addr, err := s.backend.UploadRecord(ctx, compact)
	if err != nil {
		return "", s.fail(ctx, KindUploadFailed, opUploadRecord, "", err)
	}
	return addr, nil
}

// GetFile returns the content at addr encoded as standard base64.
func (s *Service) GetFile(ctx context.Context, addr interfaces.Address) (string, error) {
	start := time.Now()
	data, err := s.fetchFile(ctx, opGetFile, addr, nil)
	s.observe(opGetFile, start, err)
	if err != nil {
		return "", err
	}
	return data, nil
}

// FileContentType returns the MIME type given when addr was uploaded, or ""
// when the backend keeps none.
func (s *Service) FileContentType(ctx context.Context, addr interfaces.Address) string {
	resolver, ok := s.backend.(interfaces.ContentTypeResolver)
	if !ok || addr.Empty() {
		return ""
	}

	contentType, err := resolver.ContentType(ctx, addr)
	if err != nil {
		s.log.Debug("Content type unavailable", slog.String("address", addr.String()), "err", err)
		return ""
	}
	return contentType
}

// GetRecord returns the record at addr.
func (s *Service) GetRecord(ctx context.Context, addr interfaces.Address) (interfaces.Record, error) {
	start := time.Now()
	record, err := s.fetchRecord(ctx, opGetRecord, addr, nil)
	s.observe(opGetRecord, start, err)
	return record, err
}

// GetFiles fetches every address concurrently and returns the base64
// contents in input order. The first failure fails the whole batch.
func (s *Service) GetFiles(ctx context.Context, addrs []interfaces.Address) ([]string, error) {
	start := time.Now()
	files, err := fanOut(ctx, s, opGetFiles, addrs, func(gctx context.Context, addr interfaces.Address) (string, error) {
		return s.fetchFile(gctx, opGetFiles, addr, ctx)
	})
	s.observe(opGetFiles, start, err)
	return files, err
}

// GetRecords fetches every address concurrently and returns the records in
// input order. The first failure fails the whole batch; no partial result
// is returned.
func (s *Service) GetRecords(ctx context.Context, addrs []interfaces.Address) ([]interfaces.Record, error) {
	start := time.Now()
	records, err := fanOut(ctx, s, opGetRecords, addrs, func(gctx context.Context, addr interfaces.Address) (interfaces.Record, error) {
		return s.fetchRecord(gctx, opGetRecords, addr, ctx)
	})
	s.observe(opGetRecords, start, err)
	return records, err
}

// fetchFile and fetchRecord take the batch's own context as parent when
// called from fanOut, and nil otherwise.
func (s *Service) fetchFile(ctx context.Context, op string, addr interfaces.Address, parent context.Context) (string, error) {
	if addr.Empty() {
		return "", validationError(op, "", "address is required")
	}

	data, err := s.backend.FetchFile(ctx, addr)
	if err != nil {
		return "", s.failFetch(ctx, parent, op, addr, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *Service) fetchRecord(ctx context.Context, op string, addr interfaces.Address, parent context.Context) (interfaces.Record, error) {
	if addr.Empty() {
		return nil, validationError(op, "", "address is required")
	}

	record, err := s.backend.FetchRecord(ctx, addr)
	if err != nil {
		return nil, s.failFetch(ctx, parent, op, addr, err)
	}
	return record, nil
}

// fanOut runs fetch for every address and assembles results by input index.
// The shared context is cancelled on the first failure.
func fanOut[T any](ctx context.Context, s *Service, op string, addrs []interfaces.Address, fetch func(context.Context, interfaces.Address) (T, error)) ([]T, error) {
	metrics.BatchSize.Observe(float64(len(addrs)))

	for i, addr := range addrs {
		if addr.Empty() {
			return nil, validationError(op, "", fmt.Sprintf("address at index %d is empty", i))
		}
	}

	results := make([]T, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			result, err := fetch(gctx, addr)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// failFetch is fail for fetches. A batch item whose group was cancelled by a
// failing sibling, while the batch itself is still live, is logged at Debug.
func (s *Service) failFetch(ctx, parent context.Context, op string, addr interfaces.Address, cause error) *Error {
	if parent != nil && ctx.Err() != nil && parent.Err() == nil {
		s.log.Debug("Backend call cancelled", s.failAttrs(KindFetchFailed, op, addr, cause)...)
		return newError(KindFetchFailed, op, addr, "", cause)
	}
	return s.fail(ctx, KindFetchFailed, op, addr, cause)
}

// fail logs the backend error with its context and returns a new
// caller-facing error that carries none of the backend's text.
func (s *Service) fail(ctx context.Context, kind Kind, op string, addr interfaces.Address, cause error) *Error {
	s.log.ErrorContext(ctx, "Backend call failed", s.failAttrs(kind, op, addr, cause)...)
	return newError(kind, op, addr, "", cause)
}

func (s *Service) failAttrs(kind Kind, op string, addr interfaces.Address, cause error) []any {
	attrs := []any{
		slog.String("op", op),
		slog.String("kind", kind.String()),
		slog.String("cause", causeClass(cause)),
		"err", cause,
	}
	if !addr.Empty() {
		attrs = append(attrs, slog.String("address", addr.String()))
	}
	return attrs
}

func (s *Service) observe(op string, start time.Time, err error) {
	switch {
	case err == nil:
		metrics.ObserveOperation(op, metrics.OutcomeSuccess, start)
	case KindOf(err) == KindValidation:
		metrics.ObserveOperation(op, metrics.OutcomeInvalid, start)
	default:
		metrics.ObserveOperation(op, metrics.OutcomeFailure, start)
	}
}
