package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/cas-gateway/interfaces"
)

// KuboConfig configures a KuboBackend.
type KuboConfig struct {
	// APIAddr is the Kubo RPC address, e.g. "127.0.0.1:5001" or
	// "/ip4/127.0.0.1/tcp/5001".
	APIAddr string

	// Timeout bounds every RPC call. Zero leaves the shell default.
	Timeout time.Duration

	// Pin keeps uploaded content pinned on the node.
	Pin bool
}

// KuboBackend implements a storage backend on a remote IPFS (Kubo) node.
// Files and records are both added as UnixFS files; the CIDv1 returned by
// the node is the address.
type KuboBackend struct {
	shell   *shell.Shell
	apiAddr string
	pin     bool
	log     *slog.Logger
}

// NewKuboBackend creates a new Kubo storage backend for the node at cfg.APIAddr.
// No connection is made until the first call.
func NewKuboBackend(cfg KuboConfig, log *slog.Logger) (*KuboBackend, error) {
	if cfg.APIAddr == "" {
		return nil, fmt.Errorf("kubo api address is required")
	}

	sh := shell.NewShell(cfg.APIAddr)
	if cfg.Timeout > 0 {
		sh.SetTimeout(cfg.Timeout)
	}

	return &KuboBackend{
		shell:   sh,
		apiAddr: cfg.APIAddr,
		pin:     cfg.Pin,
		log:     log,
	}, nil
}

// UploadFile adds data to the node and returns its CID.
// Returns ErrBackendUnavailable if the node is not accessible.
func (b *KuboBackend) UploadFile(ctx context.Context, data []byte, contentType string) (interfaces.Address, error) {
	return b.add(ctx, data, contentType)
}

// UploadRecord adds the compacted record to the node and returns its CID.
func (b *KuboBackend) UploadRecord(ctx context.Context, record interfaces.Record) (interfaces.Address, error) {
	compact, err := interfaces.CompactRecord(record)
	if err != nil {
		return "", err
	}
	return b.add(ctx, compact, "application/json")
}

// FetchFile retrieves content from the node by its CID.
// Returns ErrContentNotFound if the content doesn't exist or ErrBackendUnavailable
// if the node is not accessible.
func (b *KuboBackend) FetchFile(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	return b.cat(ctx, addr)
}

// FetchRecord retrieves content by CID and checks that it holds JSON.
func (b *KuboBackend) FetchRecord(ctx context.Context, addr interfaces.Address) (interfaces.Record, error) {
	data, err := b.cat(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrDeserialization, addr)
	}
	return interfaces.Record(data), nil
}

// Available checks if the node is accessible.
func (b *KuboBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *KuboBackend) Name() string {
	return fmt.Sprintf("kubo-%s", b.apiAddr)
}

func (b *KuboBackend) add(ctx context.Context, data []byte, contentType string) (interfaces.Address, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}

	if !b.shell.IsUp() {
		b.log.Warn("Kubo node unavailable", slog.String("apiAddr", b.apiAddr))
		return "", interfaces.ErrBackendUnavailable
	}

	// go-ipfs-api does not take a context for add; cancellation is bounded
	// by the shell timeout instead.
	id, err := b.shell.Add(bytes.NewReader(data), shell.Pin(b.pin), shell.CidVersion(1))
	if err != nil {
		b.log.Error("Failed to add data to Kubo",
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return "", fmt.Errorf("%w: failed to add data to kubo: %v", interfaces.ErrBackendIO, err)
	}

	b.log.Debug("Stored content in Kubo",
		slog.String("cid", id),
		slog.String("contentType", contentType),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return interfaces.Address(id), nil
}

func (b *KuboBackend) cat(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	start := time.Now()

	// Anything that is not a CID cannot be known to the node.
	id, err := cid.Decode(addr.String())
	if err != nil {
		b.log.Debug("Undecodable address", slog.String("address", addr.String()), "err", err)
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, addr)
	}
	path := "/ipfs/" + id.String()

	if !b.shell.IsUp() {
		b.log.Warn("Kubo node unavailable", slog.String("apiAddr", b.apiAddr))
		return nil, interfaces.ErrBackendUnavailable
	}

	resp, err := b.shell.Request("cat", path).Send(ctx)
	if err != nil {
		b.log.Error("Failed to fetch data from Kubo",
			slog.String("path", path),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: failed to fetch data from kubo: %v", interfaces.ErrBackendIO, err)
	}
	defer resp.Close()

	if resp.Error != nil {
		if isKuboNotFound(resp.Error) {
			b.log.Debug("Content not found in Kubo",
				slog.String("path", path),
				slog.Duration("duration", time.Since(start)))
			return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, addr)
		}
		b.log.Error("Kubo rejected cat",
			slog.String("path", path),
			"err", resp.Error,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendIO, resp.Error)
	}

	data, err := io.ReadAll(resp.Output)
	if err != nil {
		b.log.Error("Failed to read data from Kubo",
			slog.String("path", path),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: failed to read data from kubo: %v", interfaces.ErrBackendIO, err)
	}

	b.log.Debug("Fetched content from Kubo",
		slog.String("path", path),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

func isKuboNotFound(err error) bool {
	var shellErr *shell.Error
	if !errors.As(err, &shellErr) {
		return false
	}
	msg := strings.ToLower(shellErr.Message)
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "no link named") ||
		strings.Contains(msg, "block was not found locally")
}
