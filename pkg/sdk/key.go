package sdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/nimbus/internal/utils/blake3"
	"github.com/beanbocchi/nimbus/internal/utils/ioutil"
	"github.com/beanbocchi/nimbus/internal/utils/progressr"
	"github.com/beanbocchi/nimbus/pkg/httpclient"
	"github.com/beanbocchi/nimbus/pkg/response"
)

const (
	// readChunkSize is the unit retrievals are read and reported in.
	readChunkSize = 64 * 1024

	HeaderMetaPrefix = response.HeaderMetaPrefix
	HeaderVersionID  = response.HeaderVersionID
)

// ProgressFunc receives the bytes transferred so far and the expected
// total, zero when unknown.
type ProgressFunc = progressr.Func

// WriteOptions tunes an upload.
type WriteOptions struct {
	// Replace is advisory. The service always stores a new version; the
	// flag is only logged.
	Replace bool
	// Size is the expected content length, used as the progress total.
	Size     int64
	Progress ProgressFunc
	// MultipartID and PartNumber upload the content as one part of a
	// conjoined upload.
	MultipartID string
	PartNumber  int
}

// ReadOptions tunes a retrieval.
type ReadOptions struct {
	VersionID string
	Slice     Slice
	Condition Condition
	Progress  ProgressFunc
}

// Key is a handle for one named object in a bucket. Its version id, size
// and digest reflect the last write or retrieval made through the handle.
type Key struct {
	bucket       *Bucket
	name         string
	versionID    string
	lastModified time.Time
	size         int64
	digest       string
	metadata     map[string]string
	log          *slog.Logger
}

// NewKey creates a key handle. bucket may be nil, in which case every
// operation fails with ErrNoBucket.
func NewKey(bucket *Bucket, name string) *Key {
	return newKey(bucket, name)
}

func newKey(bucket *Bucket, name string) *Key {
	k := &Key{
		bucket:   bucket,
		name:     name,
		metadata: map[string]string{},
	}
	k.setLogger()
	return k
}

func (k *Key) setLogger() {
	base := slog.Default()
	if k.bucket != nil {
		base = k.bucket.log
	}
	k.log = base.With("component", "key", "key", k.name)
}

func (k *Key) Name() string { return k.name }

func (k *Key) SetName(name string) {
	k.name = name
	k.setLogger()
}

func (k *Key) Bucket() *Bucket         { return k.bucket }
func (k *Key) VersionID() string       { return k.versionID }
func (k *Key) LastModified() time.Time { return k.lastModified }
func (k *Key) Size() int64             { return k.size }
func (k *Key) String() string          { return k.name }

// ETag is the version id; the service has no separate entity tag.
func (k *Key) ETag() string { return k.versionID }

// Digest is the hex blake3 digest of the content last written through this
// handle.
func (k *Key) Digest() string { return k.digest }

func (k *Key) check() error {
	if k.bucket == nil {
		return ErrNoBucket
	}
	if k.name == "" {
		return ErrNoName
	}
	return nil
}

// Exists probes the key with HEAD. Not found resolves to false, as do
// not-modified and precondition-failed when a condition is given.
func (k *Key) Exists(ctx context.Context, cond Condition) (bool, error) {
	if err := k.check(); err != nil {
		return false, err
	}
	if err := cond.validate(); err != nil {
		return false, err
	}

	header := http.Header{}
	cond.apply(header)
	uri := httpclient.ComputeURI([]string{"data", k.name}, nil)
	k.log.Info("probing", "uri", uri)

	resp, err := k.bucket.do(ctx, &httpclient.Request{
		Method:         http.MethodHead,
		URI:            uri,
		Header:         header,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		if httpclient.HasStatus(err, http.StatusNotFound) ||
			(cond.IsSet() && httpclient.HasStatus(err, http.StatusNotModified, http.StatusPreconditionFailed)) {
			return false, nil
		}
		return false, err
	}
	return true, discard(resp)
}

// WriteBytes uploads data as a new version of the key.
func (k *Key) WriteBytes(ctx context.Context, data []byte, opts WriteOptions) (string, error) {
	if opts.Size <= 0 {
		opts.Size = int64(len(data))
	}
	return k.WriteFrom(ctx, bytes.NewReader(data), opts)
}

// WriteFrom streams r to the service as a new version of the key and
// returns the version id.
func (k *Key) WriteFrom(ctx context.Context, r io.Reader, opts WriteOptions) (string, error) {
	if err := k.check(); err != nil {
		return "", err
	}

	params := httpclient.Params{}
	if opts.MultipartID != "" {
		if opts.PartNumber < 1 {
			return "", fmt.Errorf("%w: got %d", ErrInvalidPartNumber, opts.PartNumber)
		}
		params["conjoined_identifier"] = opts.MultipartID
		params["conjoined_part"] = strconv.Itoa(opts.PartNumber)
	}

	header := http.Header{"Content-Type": {"application/octet-stream"}}
	for name, value := range k.metadata {
		header.Set(HeaderMetaPrefix+name, value)
	}

	digester := blake3.NewDigester()
	counter := ioutil.NewSizeReader(io.TeeReader(r, digester))
	body := progressr.NewReader(counter, opts.Size, opts.Progress)

	uri := httpclient.ComputeURI([]string{"data", k.name}, params)
	k.log.Info("archiving", "uri", uri, "replace", opts.Replace, "metadata", len(k.metadata))

	body.Start()
	resp, err := k.bucket.do(ctx, &httpclient.Request{
		Method:         http.MethodPost,
		URI:            uri,
		Header:         header,
		Body:           body,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return "", err
	}

	archived, err := decodeJSON[response.Archived](resp)
	if err != nil {
		return "", err
	}
	body.Finish()

	k.versionID = archived.VersionIdentifier
	k.size = counter.Size
	k.digest = digester.Hex()
	k.observeTime(resp.Header)
	return k.versionID, nil
}

// ReadBytes retrieves the content into memory. data is nil unless the
// outcome is Retrieved.
func (k *Key) ReadBytes(ctx context.Context, opts ReadOptions) ([]byte, Outcome, error) {
	var buf bytes.Buffer
	outcome, err := k.ReadTo(ctx, &buf, opts)
	if err != nil || outcome != Retrieved {
		return nil, outcome, err
	}
	return buf.Bytes(), outcome, nil
}

// ReadTo streams the content into w in chunks, reporting progress after
// each one.
func (k *Key) ReadTo(ctx context.Context, w io.Writer, opts ReadOptions) (Outcome, error) {
	resp, outcome, err := k.Open(ctx, opts)
	if err != nil || outcome != Retrieved {
		return outcome, err
	}
	defer resp.Close()

	total := opts.Slice.Size.ValueOrZero()
	if r, ok := resp.(*httpclient.Response); ok {
		if length, err := strconv.ParseInt(r.Header.Get("Content-Length"), 10, 64); err == nil {
			total = length
		}
	}
	tracker := progressr.NewTracker(total, opts.Progress)

	n, err := copyChunks(w, resp, tracker, k.log)
	if err != nil {
		return Retrieved, err
	}
	k.log.Info("retrieved", "bytes", n)
	return Retrieved, nil
}

// Open starts a retrieval and hands back the response body. The reader is
// nil unless the outcome is Retrieved; the caller must close it.
func (k *Key) Open(ctx context.Context, opts ReadOptions) (io.ReadCloser, Outcome, error) {
	if err := k.check(); err != nil {
		return nil, Retrieved, err
	}
	if err := opts.Condition.validate(); err != nil {
		return nil, Retrieved, err
	}
	if err := opts.Slice.validate(); err != nil {
		return nil, Retrieved, err
	}
	if opts.Slice.Empty() {
		k.log.Debug("empty slice, skipping request")
		return io.NopCloser(strings.NewReader("")), Retrieved, nil
	}

	resp, outcome, err := k.open(ctx, opts)
	if err != nil || resp == nil {
		return nil, outcome, err
	}
	return resp, Retrieved, nil
}

// Resume continues an interrupted retrieval into w, treating everything
// already in w as the leading bytes of the slice. w must be an io.Seeker.
func (k *Key) Resume(ctx context.Context, w io.Writer, opts ReadOptions) (Outcome, error) {
	seeker, ok := w.(io.Seeker)
	if !ok {
		return Retrieved, ErrNotSeekable
	}
	written, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return Retrieved, fmt.Errorf("seek sink: %w", err)
	}
	return k.ResumeFrom(ctx, w, written, opts)
}

// ResumeFrom continues a retrieval of which written bytes already reached
// the sink. When no slice size is set and the sink already holds the whole
// object, the service rejects the range and the retrieval counts as done.
func (k *Key) ResumeFrom(ctx context.Context, w io.Writer, written int64, opts ReadOptions) (Outcome, error) {
	slice, err := opts.Slice.Resume(written)
	if err != nil {
		return Retrieved, err
	}
	k.log.Info("resuming retrieval", "written", written)
	openEnded := written > 0 && !slice.Size.Valid
	opts.Slice = slice

	outcome, err := k.ReadTo(ctx, w, opts)
	if openEnded && httpclient.HasStatus(err, http.StatusRequestedRangeNotSatisfiable) {
		k.log.Info("retrieval already complete", "written", written)
		return Retrieved, nil
	}
	return outcome, err
}

func (k *Key) open(ctx context.Context, opts ReadOptions) (*httpclient.Response, Outcome, error) {
	header := http.Header{}
	if value, ok := opts.Slice.RangeHeader(); ok {
		header.Set(headerRange, value)
	}
	opts.Condition.apply(header)

	uri := httpclient.ComputeURI([]string{"data", k.name}, httpclient.Params{"version_identifier": opts.VersionID})
	k.log.Info("retrieving", "uri", uri, "range", header.Get(headerRange))

	resp, err := k.bucket.do(ctx, &httpclient.Request{
		Method:         http.MethodGet,
		URI:            uri,
		Header:         header,
		ExpectedStatus: opts.Slice.ExpectedStatus(),
	})
	if err != nil {
		if outcome, ok := opts.Condition.outcomeOf(err); ok {
			k.log.Info("precondition outcome", "outcome", outcome)
			return nil, outcome, nil
		}
		return nil, Retrieved, err
	}

	if versionID := resp.Header.Get(HeaderVersionID); versionID != "" {
		k.versionID = versionID
	}
	k.observeTime(resp.Header)
	return resp, Retrieved, nil
}

func (k *Key) observeTime(header http.Header) {
	if ts, err := ParseHTTPTime(header.Get("Last-Modified")); err == nil {
		k.lastModified = ts
	}
}

func copyChunks(dst io.Writer, src io.Reader, tracker *progressr.Tracker, log *slog.Logger) (int64, error) {
	buf := make([]byte, readChunkSize)
	var total int64

	tracker.Start()
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("write sink: %w", werr)
			}
			total += int64(n)
			tracker.Add(n)
			log.Debug("read chunk", "bytes", n, "total", total)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("read body: %w", err)
		}
	}
	tracker.Finish()

	return total, nil
}

// Delete removes the key, or one version of it when versionID is set.
func (k *Key) Delete(ctx context.Context, versionID string) error {
	if err := k.check(); err != nil {
		return err
	}

	uri := httpclient.ComputeURI([]string{"data", k.name}, httpclient.Params{"version_identifier": versionID})
	k.log.Info("deleting", "uri", uri)

	resp, err := k.bucket.do(ctx, &httpclient.Request{
		Method:         http.MethodDelete,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return err
	}
	return discard(resp)
}

// SetMetadata stages one metadata entry for the next write. Names are
// case-insensitive and stored lower-cased.
func (k *Key) SetMetadata(name, value string) {
	k.metadata[strings.ToLower(name)] = value
}

// UpdateMetadata stages every entry of m.
func (k *Key) UpdateMetadata(m map[string]string) {
	for name, value := range m {
		k.SetMetadata(name, value)
	}
}

// LocalMetadata returns a copy of the staged and fetched metadata.
func (k *Key) LocalMetadata() map[string]string {
	return maps.Clone(k.metadata)
}

// Metadata looks name up locally, then on the service. The result is null
// when the key or the entry does not exist.
func (k *Key) Metadata(ctx context.Context, name string) (null.String, error) {
	name = strings.ToLower(name)
	if value, ok := k.metadata[name]; ok {
		return null.StringFrom(value), nil
	}
	if err := k.check(); err != nil {
		return null.String{}, err
	}

	uri := httpclient.ComputeURI([]string{"data", k.name}, httpclient.Params{
		"action":             "meta",
		"version_identifier": k.versionID,
	})
	k.log.Info("fetching metadata", "uri", uri)

	resp, err := k.bucket.do(ctx, &httpclient.Request{
		Method:         http.MethodGet,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		if httpclient.HasStatus(err, http.StatusNotFound) {
			return null.String{}, nil
		}
		return null.String{}, err
	}

	remote, err := decodeJSON[map[string]string](resp)
	if err != nil {
		return null.String{}, err
	}
	k.UpdateMetadata(remote)

	if value, ok := k.metadata[name]; ok {
		return null.StringFrom(value), nil
	}
	return null.String{}, nil
}
