package sdk

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/beanbocchi/nimbus/internal/model"
	"github.com/beanbocchi/nimbus/pkg/httpclient"
	"github.com/beanbocchi/nimbus/pkg/response"
	"github.com/beanbocchi/nimbus/pkg/validator"
)

// ListParams selects one page of a key listing. A zero MaxKeys means the
// service maximum.
type ListParams struct {
	MaxKeys   int `validate:"gte=0,lte=1000"`
	Prefix    string
	Marker    string
	Delimiter string
}

// VersionListParams selects one page of a version listing.
type VersionListParams struct {
	MaxKeys         int `validate:"gte=0,lte=1000"`
	Prefix          string
	KeyMarker       string `validate:"required_with=VersionIDMarker"`
	VersionIDMarker string
	Delimiter       string
}

// UploadListParams selects one page of in-progress multipart uploads.
type UploadListParams struct {
	MaxUploads     int    `validate:"gte=0,lte=1000"`
	KeyMarker      string `validate:"required_with=UploadIDMarker"`
	UploadIDMarker string
}

func maxKeys(n int) string {
	if n <= 0 {
		n = model.DefaultMaxKeys
	}
	return strconv.Itoa(n)
}

// Bucket is a handle for one collection.
type Bucket struct {
	client     *Client
	name       string
	versioning bool
	log        *slog.Logger
}

func newBucket(client *Client, name string, versioning bool) *Bucket {
	return &Bucket{
		client:     client,
		name:       name,
		versioning: versioning,
		log:        client.log.With("component", "bucket", "bucket", name),
	}
}

func (b *Bucket) Name() string     { return b.name }
func (b *Bucket) Versioning() bool { return b.versioning }
func (b *Bucket) Client() *Client  { return b.client }
func (b *Bucket) String() string   { return b.name }

func (b *Bucket) host() string {
	return b.name + "." + b.client.domain
}

// do sends a collection scoped request to the bucket's virtual host.
func (b *Bucket) do(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	req.Host = b.host()
	return b.client.transport.Do(ctx, req)
}

// NewKey returns an unsaved key handle in this bucket.
func (b *Bucket) NewKey(name string) *Key {
	return newKey(b, name)
}

// GetKey returns a handle for an existing key, optionally pinned to a
// version. It does not contact the service.
func (b *Bucket) GetKey(name, versionID string) *Key {
	k := newKey(b, name)
	k.versionID = versionID
	return k
}

// ListPage fetches a single page of keys, or of prefixes when a delimiter
// is given.
func (b *Bucket) ListPage(ctx context.Context, params ListParams) (*TruncatableList[ListEntry], error) {
	if err := validator.Validate(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidListParams, err)
	}

	uri := httpclient.ComputeURI([]string{"data", ""}, httpclient.Params{
		"max_keys":  maxKeys(params.MaxKeys),
		"prefix":    params.Prefix,
		"marker":    params.Marker,
		"delimiter": params.Delimiter,
	})
	return b.fetchListing(ctx, uri)
}

// ListVersionsPage fetches a single page of key versions.
func (b *Bucket) ListVersionsPage(ctx context.Context, params VersionListParams) (*TruncatableList[ListEntry], error) {
	if err := validator.Validate(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidListParams, err)
	}

	uri := httpclient.ComputeURI(nil, httpclient.Params{
		"versions":          "true",
		"max_keys":          maxKeys(params.MaxKeys),
		"prefix":            params.Prefix,
		"key_marker":        params.KeyMarker,
		"version_id_marker": params.VersionIDMarker,
		"delimiter":         params.Delimiter,
	})
	return b.fetchListing(ctx, uri)
}

func (b *Bucket) fetchListing(ctx context.Context, uri string) (*TruncatableList[ListEntry], error) {
	b.log.Info("listing", "uri", uri)

	resp, err := b.do(ctx, &httpclient.Request{
		Method:         http.MethodGet,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}

	body, err := resp.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return b.parseListing(body)
}

func (b *Bucket) parseListing(body []byte) (*TruncatableList[ListEntry], error) {
	var listing response.KeyListing
	if err := sonic.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	result := &TruncatableList[ListEntry]{Truncated: listing.Truncated}
	switch {
	case listing.KeyData != nil:
		for _, entry := range *listing.KeyData {
			k := newKey(b, entry.Key)
			k.versionID = entry.VersionIdentifier
			if entry.Timestamp != "" {
				ts, err := ParseHTTPTime(entry.Timestamp)
				if err != nil {
					return nil, fmt.Errorf("key %q: parse timestamp: %w", entry.Key, err)
				}
				k.lastModified = ts
			}
			result.Entries = append(result.Entries, k)
		}
	case listing.Prefixes != nil:
		for _, prefix := range *listing.Prefixes {
			result.Entries = append(result.Entries, &Prefix{bucket: b, name: prefix})
		}
	default:
		return nil, fmt.Errorf("%w: %.200s", ErrUnexpectedListing, body)
	}

	return result, nil
}

// List walks every key or prefix matching params, starting after
// params.Marker. params.MaxKeys sets the page size.
func (b *Bucket) List(params ListParams) *ResultSet[ListEntry] {
	fetch := func(ctx context.Context, marker Marker) (*TruncatableList[ListEntry], error) {
		page := params
		page.Marker = marker.Name
		return b.ListPage(ctx, page)
	}
	advance := func(last ListEntry) Marker {
		return Marker{Name: last.Name()}
	}
	return newResultSet(fetch, advance, Marker{Name: params.Marker}, params.Delimiter != "",
		b.log.With("component", "resultset", "listing", "keys"))
}

// ListVersions walks every version matching params. Continuation uses the
// last entry's key name and version id together.
func (b *Bucket) ListVersions(params VersionListParams) *ResultSet[ListEntry] {
	fetch := func(ctx context.Context, marker Marker) (*TruncatableList[ListEntry], error) {
		page := params
		page.KeyMarker, page.VersionIDMarker = marker.Name, marker.Secondary
		return b.ListVersionsPage(ctx, page)
	}
	advance := func(last ListEntry) Marker {
		if k, ok := last.(*Key); ok {
			return Marker{Name: k.Name(), Secondary: k.VersionID()}
		}
		return Marker{Name: last.Name()}
	}
	start := Marker{Name: params.KeyMarker, Secondary: params.VersionIDMarker}
	return newResultSet(fetch, advance, start, params.Delimiter != "",
		b.log.With("component", "resultset", "listing", "versions"))
}

// ListUploadsPage fetches a single page of in-progress multipart uploads.
func (b *Bucket) ListUploadsPage(ctx context.Context, params UploadListParams) (*TruncatableList[*MultipartUpload], error) {
	if err := validator.Validate(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidListParams, err)
	}

	uri := httpclient.ComputeURI([]string{"conjoined", ""}, httpclient.Params{
		"max_conjoined":               maxKeys(params.MaxUploads),
		"key_marker":                  params.KeyMarker,
		"conjoined_identifier_marker": params.UploadIDMarker,
	})
	b.log.Info("listing uploads", "uri", uri)

	resp, err := b.do(ctx, &httpclient.Request{
		Method:         http.MethodGet,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}

	listing, err := decodeJSON[response.ConjoinedListing](resp)
	if err != nil {
		return nil, err
	}

	result := &TruncatableList[*MultipartUpload]{Truncated: listing.Truncated}
	for _, conjoined := range listing.ConjoinedList {
		upload, err := newMultipartUpload(b, conjoined)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, upload)
	}
	return result, nil
}

// ListUploads walks every in-progress multipart upload.
func (b *Bucket) ListUploads(params UploadListParams) *ResultSet[*MultipartUpload] {
	fetch := func(ctx context.Context, marker Marker) (*TruncatableList[*MultipartUpload], error) {
		page := params
		page.KeyMarker, page.UploadIDMarker = marker.Name, marker.Secondary
		return b.ListUploadsPage(ctx, page)
	}
	advance := func(last *MultipartUpload) Marker {
		return Marker{Name: last.KeyName(), Secondary: last.ID()}
	}
	start := Marker{Name: params.KeyMarker, Secondary: params.UploadIDMarker}
	return newResultSet(fetch, advance, start, false,
		b.log.With("component", "resultset", "listing", "uploads"))
}

// InitiateMultipartUpload starts a conjoined upload for keyName.
func (b *Bucket) InitiateMultipartUpload(ctx context.Context, keyName string) (*MultipartUpload, error) {
	if keyName == "" {
		return nil, ErrNoName
	}

	uri := httpclient.ComputeURI([]string{"conjoined", keyName}, httpclient.Params{"action": "start"})
	b.log.Info("starting multipart upload", "key", keyName, "uri", uri)

	resp, err := b.do(ctx, &httpclient.Request{
		Method:         http.MethodPost,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}

	conjoined, err := decodeJSON[response.Conjoined](resp)
	if err != nil {
		return nil, err
	}
	return newMultipartUpload(b, conjoined)
}

// ConfigureVersioning turns versioning on or off for the collection.
func (b *Bucket) ConfigureVersioning(ctx context.Context, enabled bool) error {
	uri := b.client.accountURI([]string{b.name}, httpclient.Params{"versioning": strconv.FormatBool(enabled)})
	b.log.Info("configuring versioning", "enabled", enabled, "uri", uri)

	resp, err := b.client.do(ctx, &httpclient.Request{
		Method:         http.MethodPut,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return err
	}
	if err := discard(resp); err != nil {
		return err
	}

	b.versioning = enabled
	return nil
}

// ConfigureAccessControl replaces the collection's access control document
// and returns the stored document as echoed by the service.
func (b *Bucket) ConfigureAccessControl(ctx context.Context, accessControl []byte) (map[string]any, error) {
	uri := b.client.accountURI([]string{b.name}, httpclient.Params{"access_control": "update"})
	b.log.Info("configuring access control", "uri", uri)

	resp, err := b.client.do(ctx, &httpclient.Request{
		Method:         http.MethodPut,
		URI:            uri,
		Header:         http.Header{"Content-Type": {"application/json"}},
		Body:           bytes.NewReader(accessControl),
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}
	return decodeJSON[map[string]any](resp)
}

// SpaceUsed reports what the collection currently stores.
func (b *Bucket) SpaceUsed(ctx context.Context) (*response.SpaceUsage, error) {
	uri := b.client.accountURI([]string{b.name}, httpclient.Params{"action": "space_usage"})
	b.log.Info("querying space usage", "uri", uri)

	resp, err := b.client.do(ctx, &httpclient.Request{
		Method:         http.MethodGet,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}

	usage, err := decodeJSON[response.SpaceUsage](resp)
	if err != nil {
		return nil, err
	}
	return &usage, nil
}
