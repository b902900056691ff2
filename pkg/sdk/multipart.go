package sdk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/nimbus/pkg/httpclient"
	"github.com/beanbocchi/nimbus/pkg/response"
)

// MultipartUpload is a conjoined upload: parts are archived independently
// and joined into one version by Complete.
type MultipartUpload struct {
	bucket  *Bucket
	id      string
	keyName string

	CreateTimestamp   time.Time
	AbortTimestamp    null.Time
	CompleteTimestamp null.Time
	DeleteTimestamp   null.Time

	log *slog.Logger
}

func newMultipartUpload(bucket *Bucket, c response.Conjoined) (*MultipartUpload, error) {
	u := &MultipartUpload{
		bucket:  bucket,
		id:      c.ConjoinedIdentifier,
		keyName: c.Key,
		log:     bucket.log.With("component", "multipart", "key", c.Key, "upload", c.ConjoinedIdentifier),
	}

	created, err := parseOptionalTime(c.CreateTimestamp)
	if err != nil {
		return nil, fmt.Errorf("upload %s: create timestamp: %w", c.ConjoinedIdentifier, err)
	}
	u.CreateTimestamp = created

	for _, field := range []struct {
		value string
		dst   *null.Time
	}{
		{c.AbortTimestamp, &u.AbortTimestamp},
		{c.CompleteTimestamp, &u.CompleteTimestamp},
		{c.DeleteTimestamp, &u.DeleteTimestamp},
	} {
		if field.value == "" {
			continue
		}
		ts, err := ParseHTTPTime(field.value)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", c.ConjoinedIdentifier, err)
		}
		*field.dst = null.TimeFrom(ts)
	}

	return u, nil
}

func (u *MultipartUpload) ID() string      { return u.id }
func (u *MultipartUpload) KeyName() string { return u.keyName }
func (u *MultipartUpload) Bucket() *Bucket { return u.bucket }
func (u *MultipartUpload) String() string  { return u.keyName + "@" + u.id }

// UploadPart archives r as part number part, numbered from 1.
func (u *MultipartUpload) UploadPart(ctx context.Context, part int, r io.Reader, opts WriteOptions) (string, error) {
	if part < 1 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidPartNumber, part)
	}
	opts.MultipartID, opts.PartNumber = u.id, part
	u.log.Info("uploading part", "part", part)
	return u.bucket.NewKey(u.keyName).WriteFrom(ctx, r, opts)
}

// Complete joins the uploaded parts into a new version of the key.
func (u *MultipartUpload) Complete(ctx context.Context) error {
	if err := u.action(ctx, "finish"); err != nil {
		return err
	}
	u.CompleteTimestamp = null.TimeFrom(time.Now())
	return nil
}

// Cancel abandons the upload and discards its parts.
func (u *MultipartUpload) Cancel(ctx context.Context) error {
	if err := u.action(ctx, "abort"); err != nil {
		return err
	}
	u.AbortTimestamp = null.TimeFrom(time.Now())
	return nil
}

func (u *MultipartUpload) action(ctx context.Context, action string) error {
	uri := httpclient.ComputeURI([]string{"conjoined", u.keyName}, httpclient.Params{
		"action":               action,
		"conjoined_identifier": u.id,
	})
	u.log.Info("updating upload", "action", action, "uri", uri)

	resp, err := u.bucket.do(ctx, &httpclient.Request{
		Method:         http.MethodPost,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return err
	}
	return discard(resp)
}
