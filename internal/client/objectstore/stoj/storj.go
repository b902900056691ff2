package stoj

import (
	"context"
	"errors"
	"fmt"
	"io"

	"storj.io/uplink"

	"github.com/beanbocchi/nimbus/internal/client/objectstore"
)

type ClientImpl struct {
	project *uplink.Project
	bucket  string
}

type StorjConfig struct {
	// AccessGrant is the serialized Storj access grant
	AccessGrant string
	// Bucket is the bucket name where objects are stored
	Bucket string
	// EnsureBucket creates the bucket when it does not exist yet
	EnsureBucket bool
}

// NewClient opens a Storj project bound to one bucket.
func NewClient(ctx context.Context, cfg StorjConfig) (*ClientImpl, error) {
	if cfg.AccessGrant == "" {
		return nil, fmt.Errorf("access grant is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	access, err := uplink.ParseAccess(cfg.AccessGrant)
	if err != nil {
		return nil, fmt.Errorf("parse access grant: %w", err)
	}

	project, err := uplink.OpenProject(ctx, access)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}

	if cfg.EnsureBucket {
		if _, err := project.EnsureBucket(ctx, cfg.Bucket); err != nil {
			project.Close()
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
	}

	return &ClientImpl{
		project: project,
		bucket:  cfg.Bucket,
	}, nil
}

func (c *ClientImpl) Close() error {
	if c.project != nil {
		return c.project.Close()
	}
	return nil
}

func (c *ClientImpl) Upload(ctx context.Context, key string, content io.Reader) error {
	upload, err := c.project.UploadObject(ctx, c.bucket, key, nil)
	if err != nil {
		return fmt.Errorf("initiate upload: %w", err)
	}

	if _, err := io.Copy(upload, content); err != nil {
		_ = upload.Abort()
		return fmt.Errorf("write data: %w", err)
	}

	if err := upload.Commit(); err != nil {
		return fmt.Errorf("commit upload: %w", err)
	}
	return nil
}

func (c *ClientImpl) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return c.DownloadRange(ctx, key, 0, -1)
}

// DownloadRange reads length bytes from offset; a negative length reads to
// the end of the object.
func (c *ClientImpl) DownloadRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	download, err := c.project.DownloadObject(ctx, c.bucket, key, &uplink.DownloadOptions{
		Offset: offset,
		Length: length,
	})
	if err != nil {
		return nil, mapError(key, err)
	}
	return download, nil
}

func (c *ClientImpl) Delete(ctx context.Context, key string) error {
	if _, err := c.project.DeleteObject(ctx, c.bucket, key); err != nil {
		return fmt.Errorf("delete object: %w", mapError(key, err))
	}
	return nil
}

func mapError(key string, err error) error {
	if errors.Is(err, uplink.ErrObjectNotFound) || errors.Is(err, uplink.ErrBucketNotFound) {
		return fmt.Errorf("%w: %s", objectstore.ErrNotFound, key)
	}
	return fmt.Errorf("download object: %w", err)
}
