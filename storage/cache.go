package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/ruteri/cas-gateway/interfaces"
)

// CachedBackend wraps a backend with a read-through cache. Addressed content
// is immutable, so cached entries never need invalidation.
type CachedBackend struct {
	source interfaces.StorageBackend
	cache  datastore.Datastore
	log    *slog.Logger
}

// NewMemoryCache returns a thread-safe in-memory datastore for WrapWithCache.
func NewMemoryCache() datastore.Datastore {
	return dssync.MutexWrap(datastore.NewMapDatastore())
}

// WrapWithCache returns source unchanged when cache is nil.
func WrapWithCache(source interfaces.StorageBackend, cache datastore.Datastore, log *slog.Logger) interfaces.StorageBackend {
	if cache == nil {
		return source
	}

	return &CachedBackend{
		source: source,
		cache:  cache,
		log:    log,
	}
}

func (c *CachedBackend) UploadFile(ctx context.Context, data []byte, contentType string) (interfaces.Address, error) {
	addr, err := c.source.UploadFile(ctx, data, contentType)
	if err != nil {
		return "", err
	}

	if key, ok := fileCacheKey(addr); ok {
		c.cacheWrite(ctx, key, data)
	}
	return addr, nil
}

func (c *CachedBackend) UploadRecord(ctx context.Context, record interfaces.Record) (interfaces.Address, error) {
	addr, err := c.source.UploadRecord(ctx, record)
	if err != nil {
		return "", err
	}

	// Cache what the backend would return, not the caller's formatting.
	key, ok := recordCacheKey(addr)
	if compact, err := interfaces.CompactRecord(record); ok && err == nil {
		c.cacheWrite(ctx, key, compact)
	}
	return addr, nil
}

func (c *CachedBackend) FetchFile(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	key, ok := fileCacheKey(addr)
	if !ok {
		return c.source.FetchFile(ctx, addr)
	}
	if data, ok := c.cacheRead(ctx, key); ok {
		return data, nil
	}

	data, err := c.source.FetchFile(ctx, addr)
	if err != nil {
		return nil, err
	}

	c.cacheWrite(ctx, key, data)
	return data, nil
}

func (c *CachedBackend) FetchRecord(ctx context.Context, addr interfaces.Address) (interfaces.Record, error) {
	key, ok := recordCacheKey(addr)
	if !ok {
		return c.source.FetchRecord(ctx, addr)
	}
	if data, ok := c.cacheRead(ctx, key); ok {
		if !json.Valid(data) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrDeserialization, addr)
		}
		return interfaces.Record(data), nil
	}

	record, err := c.source.FetchRecord(ctx, addr)
	if err != nil {
		return nil, err
	}

	c.cacheWrite(ctx, key, record)
	return record, nil
}

// ContentType asks the wrapped backend for the upload MIME type. It is not cached.
func (c *CachedBackend) ContentType(ctx context.Context, addr interfaces.Address) (string, error) {
	resolver, ok := c.source.(interfaces.ContentTypeResolver)
	if !ok {
		return "", interfaces.ErrContentNotFound
	}
	return resolver.ContentType(ctx, addr)
}

func (c *CachedBackend) Available(ctx context.Context) bool {
	return c.source.Available(ctx)
}

func (c *CachedBackend) Name() string {
	return "cached-" + c.source.Name()
}

// Close closes the wrapped backend when it holds resources.
func (c *CachedBackend) Close() error {
	if closer, ok := c.source.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *CachedBackend) cacheRead(ctx context.Context, key datastore.Key) ([]byte, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if err != datastore.ErrNotFound {
			c.log.Debug("Cache read failed", slog.String("key", key.String()), "err", err)
		}
		return nil, false
	}
	return data, true
}

// cacheWrite is best-effort; a failed write only costs a future backend hit.
func (c *CachedBackend) cacheWrite(ctx context.Context, key datastore.Key, data []byte) {
	if err := c.cache.Put(ctx, key, data); err != nil {
		c.log.Debug("Cache write failed", slog.String("key", key.String()), "err", err)
	}
}

// Keys are built from the canonical CID text. Addresses that do not parse
// as a CID get no key and go straight to the backend.
func fileCacheKey(addr interfaces.Address) (datastore.Key, bool) {
	return cacheKey("file", addr)
}

func recordCacheKey(addr interfaces.Address) (datastore.Key, bool) {
	return cacheKey("record", addr)
}

func cacheKey(kind string, addr interfaces.Address) (datastore.Key, bool) {
	id, err := cid.Decode(addr.String())
	if err != nil {
		return datastore.Key{}, false
	}
	return datastore.KeyWithNamespaces([]string{"cache", kind, id.String()}), true
}
