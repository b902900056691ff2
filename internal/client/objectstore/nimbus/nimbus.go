// Package nimbus adapts a bucket of the nimbus.io service to the
// objectstore.Client interface.
package nimbus

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/beanbocchi/nimbus/internal/client/objectstore"
	"github.com/beanbocchi/nimbus/pkg/httpclient"
	"github.com/beanbocchi/nimbus/pkg/sdk"
)

type ClientImpl struct {
	bucket *sdk.Bucket
}

func NewClient(bucket *sdk.Bucket) *ClientImpl {
	return &ClientImpl{bucket: bucket}
}

func (c *ClientImpl) Upload(ctx context.Context, key string, content io.Reader) error {
	if _, err := c.bucket.NewKey(key).WriteFrom(ctx, content, sdk.WriteOptions{Replace: true}); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}

func (c *ClientImpl) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return c.open(ctx, key, sdk.Slice{})
}

func (c *ClientImpl) DownloadRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	slice := sdk.SliceFrom(offset)
	if length >= 0 {
		slice = sdk.SliceOf(offset, length)
	}
	return c.open(ctx, key, slice)
}

func (c *ClientImpl) open(ctx context.Context, key string, slice sdk.Slice) (io.ReadCloser, error) {
	rc, _, err := c.bucket.NewKey(key).Open(ctx, sdk.ReadOptions{Slice: slice})
	if err != nil {
		return nil, mapError(key, err)
	}
	return rc, nil
}

func (c *ClientImpl) Delete(ctx context.Context, key string) error {
	if err := c.bucket.NewKey(key).Delete(ctx, ""); err != nil {
		return mapError(key, err)
	}
	return nil
}

func mapError(key string, err error) error {
	if httpclient.HasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s", objectstore.ErrNotFound, key)
	}
	return err
}
