package sdk

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beanbocchi/nimbus/pkg/auth"
	"github.com/beanbocchi/nimbus/pkg/httpclient"
	"github.com/beanbocchi/nimbus/pkg/response"
)

const (
	defaultBucketPrefix = "dd-"
	uniqueBucketPrefix  = "rr-"
	// yyyymmddHHMMSSffffff
	uniqueBucketTimeFormat = "20060102150405.000000"
)

// Config describes how to reach the service.
type Config struct {
	// Endpoint is the base URL requests are dialed at.
	Endpoint string
	// Domain is the service domain collection hosts live under. Empty means
	// the endpoint's host name.
	Domain   string
	Identity auth.Identity
	Timeout  time.Duration
}

type Option func(*Client)

// WithLogger sets the logger every handle derives its own logger from.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithTransport replaces the HTTP transport, e.g. with a fake in tests.
func WithTransport(transport httpclient.Requester) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithClock overrides the clock used to name unique buckets.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client is the account level entry point of the SDK.
type Client struct {
	transport httpclient.Requester
	identity  auth.Identity
	domain    string
	now       func() time.Time
	log       *slog.Logger
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		identity: cfg.Identity,
		domain:   cfg.Domain,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.domain == "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		c.domain = u.Hostname()
	}
	if c.domain == "" {
		return nil, fmt.Errorf("%w: no service domain", ErrPrecondition)
	}

	if c.transport == nil {
		httpOpts := []httpclient.Option{
			httpclient.WithIdentity(cfg.Identity),
			httpclient.WithLogger(c.log.With("component", "transport")),
		}
		if cfg.Timeout > 0 {
			httpOpts = append(httpOpts, httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		transport, err := httpclient.New(cfg.Endpoint, httpOpts...)
		if err != nil {
			return nil, err
		}
		c.transport = transport
	}

	c.log = c.log.With("component", "client", "user", c.identity.UserName)
	return c, nil
}

func (c *Client) UserName() string { return c.identity.UserName }
func (c *Client) Domain() string   { return c.domain }

// DefaultBucket returns the bucket every account is created with.
func (c *Client) DefaultBucket() *Bucket {
	return c.GetBucket(defaultBucketPrefix + c.identity.UserName)
}

// GetBucket returns a handle for name without contacting the service.
func (c *Client) GetBucket(name string) *Bucket {
	return newBucket(c, name, false)
}

// CreateBucket creates a collection. accessControl is an optional JSON
// document sent as the request body.
func (c *Client) CreateBucket(ctx context.Context, name string, accessControl []byte) (*Bucket, error) {
	if name == "" {
		return nil, ErrNoName
	}

	uri := c.accountURI(nil, httpclient.Params{"action": "create", "name": name})
	c.log.Info("creating bucket", "bucket", name, "uri", uri)

	req := &httpclient.Request{
		Method:         http.MethodPost,
		URI:            uri,
		ExpectedStatus: http.StatusCreated,
	}
	if len(accessControl) > 0 {
		req.Body = bytes.NewReader(accessControl)
		req.Header = http.Header{"Content-Type": {"application/json"}}
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	collection, err := decodeJSON[response.Collection](resp)
	if err != nil {
		return nil, err
	}
	return newBucket(c, name, collection.Versioning), nil
}

// CreateUniqueBucket creates a bucket named after the user and the current
// UTC time down to the microsecond.
func (c *Client) CreateUniqueBucket(ctx context.Context, accessControl []byte) (*Bucket, error) {
	return c.CreateBucket(ctx, c.UniqueBucketName(), accessControl)
}

// UniqueBucketName is the name CreateUniqueBucket would use right now.
func (c *Client) UniqueBucketName() string {
	stamp := strings.Replace(c.now().UTC().Format(uniqueBucketTimeFormat), ".", "", 1)
	return uniqueBucketPrefix + c.identity.UserName + "-" + stamp
}

// GetAllBuckets lists the account's collections.
func (c *Client) GetAllBuckets(ctx context.Context) ([]*Bucket, error) {
	uri := c.accountURI(nil, nil)
	c.log.Info("listing buckets", "uri", uri)

	resp, err := c.do(ctx, &httpclient.Request{
		Method:         http.MethodGet,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}

	collections, err := decodeJSON[[]response.Collection](resp)
	if err != nil {
		return nil, err
	}

	buckets := make([]*Bucket, 0, len(collections))
	for _, collection := range collections {
		buckets = append(buckets, newBucket(c, collection.Name, collection.Versioning))
	}
	return buckets, nil
}

// DeleteBucket removes an empty collection. A leading slash is ignored.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ErrNoName
	}

	uri := c.accountURI([]string{name}, nil)
	c.log.Info("deleting bucket", "bucket", name, "uri", uri)

	resp, err := c.do(ctx, &httpclient.Request{
		Method:         http.MethodDelete,
		URI:            uri,
		ExpectedStatus: http.StatusOK,
	})
	if err != nil {
		return err
	}
	return discard(resp)
}

// Close exists for symmetry with connection oriented clients. Every call
// opens and closes its own request, so there is nothing to release.
func (c *Client) Close() error {
	c.log.Debug("closing client")
	return nil
}

func (c *Client) accountURI(segments []string, params httpclient.Params) string {
	return httpclient.ComputeURI(append([]string{"customers", c.identity.UserName, "collections"}, segments...), params)
}

// do sends an account scoped request to the bare service domain.
func (c *Client) do(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	req.Host = c.domain
	return c.transport.Do(ctx, req)
}
