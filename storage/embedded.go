package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/ruteri/cas-gateway/interfaces"
	"go.uber.org/atomic"
)

// jsonCodec is the multicodec code for plain JSON content.
const jsonCodec uint64 = 0x0200

var (
	prefixBlock = []byte("b/")
	prefixMeta  = []byte("m/")
)

// EmbeddedConfig configures an EmbeddedBackend.
type EmbeddedConfig struct {
	// Dir is the pebble directory. An empty Dir keeps blocks in memory.
	Dir string

	// Compress enables zstd compression of stored blocks.
	Compress bool

	// CompressionLevel is a zstd level (1-22). Ignored unless Compress is set.
	CompressionLevel int
}

// EmbeddedBackend implements an in-process content-addressed node.
// Blocks are stored in pebble keyed by the binary CID; addresses are CIDv1
// over a sha2-256 multihash, with the raw codec for files and the json codec
// for records.
type EmbeddedBackend struct {
	db     *pebble.DB
	codec  *blockCodec
	dir    string
	closed atomic.Bool
	log    *slog.Logger
}

// NewEmbeddedBackend opens (or creates) the block store described by cfg.
func NewEmbeddedBackend(cfg EmbeddedConfig, log *slog.Logger) (*EmbeddedBackend, error) {
	opts := &pebble.Options{}
	dir := cfg.Dir
	if dir == "" {
		opts.FS = vfs.NewMem()
		dir = "mem"
	}

	codec, err := newBlockCodec(cfg.Compress, cfg.CompressionLevel)
	if err != nil {
		return nil, err
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		codec.close()
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}

	return &EmbeddedBackend{
		db:    db,
		codec: codec,
		dir:   dir,
		log:   log,
	}, nil
}

// UploadFile stores data as a raw block and returns its CID.
func (b *EmbeddedBackend) UploadFile(ctx context.Context, data []byte, contentType string) (interfaces.Address, error) {
	return b.put(ctx, cid.Raw, data, contentType)
}

// UploadRecord stores the compacted record as a json block and returns its CID.
func (b *EmbeddedBackend) UploadRecord(ctx context.Context, record interfaces.Record) (interfaces.Address, error) {
	compact, err := interfaces.CompactRecord(record)
	if err != nil {
		return "", err
	}
	return b.put(ctx, jsonCodec, compact, "application/json")
}

// FetchFile retrieves a block by address.
// Returns ErrContentNotFound for unknown or undecodable addresses.
func (b *EmbeddedBackend) FetchFile(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	return b.get(ctx, addr)
}

// FetchRecord retrieves a block by address and checks that it holds JSON.
func (b *EmbeddedBackend) FetchRecord(ctx context.Context, addr interfaces.Address) (interfaces.Record, error) {
	data, err := b.get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrDeserialization, addr)
	}
	return interfaces.Record(data), nil
}

// ContentType returns the MIME type recorded when addr was uploaded.
func (b *EmbeddedBackend) ContentType(ctx context.Context, addr interfaces.Address) (string, error) {
	if b.closed.Load() {
		return "", interfaces.ErrBackendUnavailable
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}

	id, err := cid.Decode(addr.String())
	if err != nil {
		return "", interfaces.ErrContentNotFound
	}

	val, closer, err := b.db.Get(metaKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", interfaces.ErrContentNotFound
		}
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}
	defer closer.Close()

	return string(val), nil
}

// Available reports whether the block store is open.
func (b *EmbeddedBackend) Available(ctx context.Context) bool {
	return !b.closed.Load()
}

// Name returns a unique identifier for this storage backend.
func (b *EmbeddedBackend) Name() string {
	return fmt.Sprintf("embedded-%s", b.dir)
}

// Close flushes and closes the block store.
func (b *EmbeddedBackend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	defer b.codec.close()
	return b.db.Close()
}

func (b *EmbeddedBackend) put(ctx context.Context, codec uint64, data []byte, contentType string) (interfaces.Address, error) {
	start := time.Now()

	if b.closed.Load() {
		return "", interfaces.ErrBackendUnavailable
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}

	id, err := buildCID(codec, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}

	batch := b.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(blockKey(id), b.codec.encode(data), nil); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}
	if err := batch.Set(metaKey(id), []byte(contentType), nil); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		b.log.Error("Failed to commit block",
			slog.String("cid", id.String()),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}

	b.log.Debug("Stored block",
		slog.String("cid", id.String()),
		slog.String("contentType", contentType),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return interfaces.Address(id.String()), nil
}

func (b *EmbeddedBackend) get(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	start := time.Now()

	if b.closed.Load() {
		return nil, interfaces.ErrBackendUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}

	id, err := cid.Decode(addr.String())
	if err != nil {
		b.log.Debug("Undecodable address", slog.String("address", addr.String()), "err", err)
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, addr)
	}

	stored, closer, err := b.db.Get(blockKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, addr)
		}
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}
	data, err := b.codec.decode(stored)
	closer.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt block %s: %v", interfaces.ErrBackendIO, addr, err)
	}

	if err := verifyCID(id, data); err != nil {
		b.log.Error("Block failed verification", slog.String("cid", id.String()), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendIO, err)
	}

	b.log.Debug("Fetched block",
		slog.String("cid", id.String()),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

func buildCID(codec uint64, data []byte) (cid.Cid, error) {
	hash, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to compute multihash: %w", err)
	}
	return cid.NewCidV1(codec, hash), nil
}

func verifyCID(id cid.Cid, data []byte) error {
	prefix := id.Prefix()
	hash, err := multihash.Sum(data, prefix.MhType, prefix.MhLength)
	if err != nil {
		return fmt.Errorf("failed to compute multihash for verification: %w", err)
	}
	if !bytes.Equal(id.Hash(), hash) {
		return fmt.Errorf("cid mismatch for %s", id)
	}
	return nil
}

func blockKey(id cid.Cid) []byte {
	return append(append([]byte{}, prefixBlock...), id.Bytes()...)
}

func metaKey(id cid.Cid) []byte {
	return append(append([]byte{}, prefixMeta...), id.Bytes()...)
}
