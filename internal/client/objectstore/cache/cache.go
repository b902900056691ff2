package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/beanbocchi/nimbus/internal/client/objectstore"
	"github.com/beanbocchi/nimbus/internal/utils/ioutil"
)

// EvictionPolicy decides which cached objects to drop.
type EvictionPolicy interface {
	// OnAccess is called when a cached key is read.
	OnAccess(key string)
	// OnAdd is called after key was cached and returns the keys to evict.
	OnAdd(key string, size int64) []string
	// OnRemove is called when key leaves the cache.
	OnRemove(key string)
}

type CacheConfig struct {
	// Cache is the fast store objects are kept in, usually local disk.
	Cache objectstore.Client
	// Primary is the store of record, e.g. Storj or S3.
	Primary        objectstore.Client
	EvictionPolicy EvictionPolicy
	Logger         *slog.Logger
}

// CacheClient is a read-through cache in front of a primary store.
type CacheClient struct {
	cache          objectstore.Client
	primary        objectstore.Client
	evictionPolicy EvictionPolicy
	log            *slog.Logger
}

func NewCacheClient(cfg CacheConfig) (*CacheClient, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache storage client is required")
	}
	if cfg.Primary == nil {
		return nil, fmt.Errorf("primary storage client is required")
	}
	if cfg.EvictionPolicy == nil {
		return nil, fmt.Errorf("eviction policy is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &CacheClient{
		cache:          cfg.Cache,
		primary:        cfg.Primary,
		evictionPolicy: cfg.EvictionPolicy,
		log:            cfg.Logger.With("component", "blob-cache"),
	}, nil
}

// Upload stages content in the cache, then copies it to the primary from
// there. The upload fails only if the primary write fails.
func (c *CacheClient) Upload(ctx context.Context, key string, content io.Reader) error {
	counter := ioutil.NewSizeReader(content)
	if err := c.cache.Upload(ctx, key, counter); err != nil {
		return fmt.Errorf("stage in cache: %w", err)
	}

	staged, err := c.cache.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("reopen staged object: %w", err)
	}
	defer staged.Close()

	if err := c.primary.Upload(ctx, key, staged); err != nil {
		if delErr := c.cache.Delete(ctx, key); delErr != nil {
			c.log.Warn("failed to drop staged object", "key", key, "error", delErr)
		}
		return fmt.Errorf("upload to primary: %w", err)
	}

	c.evict(ctx, c.evictionPolicy.OnAdd(key, counter.Size))
	return nil
}

// Download serves from the cache, filling it from the primary on a miss.
func (c *CacheClient) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := c.cache.Download(ctx, key)
	if err == nil {
		c.evictionPolicy.OnAccess(key)
		return reader, nil
	}

	primaryReader, err := c.primary.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get from primary: %w", err)
	}
	defer primaryReader.Close()

	counter := ioutil.NewSizeReader(primaryReader)
	if err := c.cache.Upload(ctx, key, counter); err != nil {
		return nil, fmt.Errorf("fill cache: %w", err)
	}
	c.evict(ctx, c.evictionPolicy.OnAdd(key, counter.Size))

	return c.cache.Download(ctx, key)
}

func (c *CacheClient) Delete(ctx context.Context, key string) error {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.log.Warn("failed to delete from cache", "key", key, "error", err)
	} else {
		c.evictionPolicy.OnRemove(key)
	}

	if err := c.primary.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete from primary: %w", err)
	}
	return nil
}

func (c *CacheClient) evict(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.log.Warn("failed to evict", "key", key, "error", err)
			continue
		}
		c.log.Debug("evicted", "key", key)
	}
}
