package sync

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/beanbocchi/nimbus/internal/client/objectstore"
	"github.com/beanbocchi/nimbus/internal/utils/ioutil"
)

// SyncClient serializes writers per key. Readers share the key and hold its
// read lock until they close what they were given.
type SyncClient struct {
	client objectstore.Client
	locks  sync.Map // map[string]*sync.RWMutex
}

func NewSyncClient(client objectstore.Client) (*SyncClient, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	return &SyncClient{client: client}, nil
}

func (c *SyncClient) getLock(key string) *sync.RWMutex {
	lock, _ := c.locks.LoadOrStore(key, &sync.RWMutex{})
	return lock.(*sync.RWMutex)
}

func (c *SyncClient) Upload(ctx context.Context, key string, content io.Reader) error {
	lock := c.getLock(key)
	lock.Lock()
	defer lock.Unlock()

	return c.client.Upload(ctx, key, content)
}

func (c *SyncClient) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return c.DownloadRange(ctx, key, 0, -1)
}

// DownloadRange opens part of key under its read lock.
func (c *SyncClient) DownloadRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	lock := c.getLock(key)
	lock.RLock()

	rc, err := objectstore.ReadRange(ctx, c.client, key, offset, length)
	if err != nil {
		lock.RUnlock()
		return nil, fmt.Errorf("download: %w", err)
	}

	return ioutil.NewLockedReadCloser(rc, lock), nil
}

// Delete waits for open readers of key before removing it.
func (c *SyncClient) Delete(ctx context.Context, key string) error {
	lock := c.getLock(key)
	lock.Lock()
	defer lock.Unlock()

	return c.client.Delete(ctx, key)
}
