package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is wrapped by Download when the key does not exist.
var ErrNotFound = errors.New("object not found")

type Client interface {
	Upload(ctx context.Context, key string, content io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// RangeDownloader is implemented by stores that can serve part of an
// object without reading what precedes it.
type RangeDownloader interface {
	DownloadRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
}

// ReadRange opens length bytes of key starting at offset. A negative length
// reads through the end of the object.
func ReadRange(ctx context.Context, c Client, key string, offset, length int64) (io.ReadCloser, error) {
	if rd, ok := c.(RangeDownloader); ok {
		return rd.DownloadRange(ctx, key, offset, length)
	}

	rc, err := c.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := io.CopyN(io.Discard, rc, offset); err != nil {
			rc.Close()
			return nil, fmt.Errorf("skip to offset %d: %w", offset, err)
		}
	}
	return LimitReadCloser(rc, length), nil
}

// LimitReadCloser caps rc at n bytes; a negative n leaves it unbounded.
func LimitReadCloser(rc io.ReadCloser, n int64) io.ReadCloser {
	if n < 0 {
		return rc
	}
	return &limitedReadCloser{Reader: io.LimitReader(rc, n), Closer: rc}
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}

// Copy streams srcKey from src into dstKey of dst.
func Copy(ctx context.Context, dst Client, dstKey string, src Client, srcKey string) error {
	rc, err := src.Download(ctx, srcKey)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcKey, err)
	}
	defer rc.Close()

	if err := dst.Upload(ctx, dstKey, rc); err != nil {
		return fmt.Errorf("write %s: %w", dstKey, err)
	}
	return nil
}
