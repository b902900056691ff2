package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/nimbus/internal/client/objectstore"
	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/model"
)

type RetrieveParams struct {
	KeyParams
	// Range is a Range header value, e.g. "bytes=0-99".
	Range             string
	IfModifiedSince   null.Time
	IfUnmodifiedSince null.Time
}

// Retrieval is an open read of one version. Partial is set when a range was
// served; Offset and Length then describe it.
type Retrieval struct {
	Version db.Version
	Body    io.ReadCloser
	Offset  int64
	Length  int64
	Partial bool
}

// LastModified is the version's timestamp at the one second resolution
// HTTP dates carry.
func LastModified(v db.Version) time.Time {
	return time.Unix(0, v.CreatedAt).UTC().Truncate(time.Second)
}

// Stat resolves a version and applies the conditional headers to it.
func (s *Service) Stat(ctx context.Context, params RetrieveParams) (db.Version, error) {
	version, err := s.resolveVersion(ctx, params.KeyParams)
	if err != nil {
		return db.Version{}, err
	}

	modified := LastModified(version)
	if t := params.IfModifiedSince; t.Valid && !modified.After(t.Time) {
		return db.Version{}, model.ErrNotModified.Fmt(params.Key, t.Time.Format(time.RFC1123))
	}
	if t := params.IfUnmodifiedSince; t.Valid && modified.After(t.Time) {
		return db.Version{}, model.ErrPreconditionFailed.Fmt(params.Key, t.Time.Format(time.RFC1123))
	}
	return version, nil
}

// Retrieve opens the content of a version, or the byte range asked for.
func (s *Service) Retrieve(ctx context.Context, params RetrieveParams) (*Retrieval, error) {
	version, err := s.Stat(ctx, params)
	if err != nil {
		return nil, err
	}

	offset, length, partial, err := ParseRange(params.Range, version.Size)
	if err != nil {
		return nil, err
	}

	body, err := objectstore.ReadRange(ctx, s.blobs, version.ObjectKey, offset, length)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", version.ObjectKey, err)
	}

	s.log.Debug("retrieving", "collection", version.Collection, "key", version.Key, "version", version.ID, "offset", offset, "length", length)
	return &Retrieval{
		Version: version,
		Body:    body,
		Offset:  offset,
		Length:  length,
		Partial: partial,
	}, nil
}

// ParseRange resolves a single "bytes=" range against an object of size
// bytes. An empty header selects the whole object.
func ParseRange(header string, size int64) (offset, length int64, partial bool, err error) {
	if header == "" {
		return 0, size, false, nil
	}
	invalid := model.ErrInvalidRange.Fmt(header, size)

	byteRange, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(byteRange, ",") {
		return 0, 0, false, invalid
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(byteRange), "-")
	if !ok {
		return 0, 0, false, invalid
	}

	if startStr == "" {
		// suffix range: the last n bytes
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 || size == 0 {
			return 0, 0, false, invalid
		}
		n = min(n, size)
		return size - n, n, true, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false, invalid
	}
	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return 0, 0, false, invalid
		}
		end = min(end, size-1)
	}
	return start, end - start + 1, true, nil
}
