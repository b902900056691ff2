package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beanbocchi/nimbus/pkg/auth"
	"github.com/beanbocchi/nimbus/pkg/response"
)

// errorBodyLimit caps how much of an error body is kept for the message.
const errorBodyLimit = 4096

// Request is one call against the service.
type Request struct {
	Method string
	// Host is the virtual host the request is addressed to. Empty means the
	// endpoint's own host.
	Host   string
	URI    string
	Header http.Header
	Body   io.Reader
	// ExpectedStatus is the only status accepted as success. Zero accepts
	// any 2xx.
	ExpectedStatus int
}

// Response is an open response; callers must Close it.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

func (r *Response) Read(p []byte) (int, error) {
	return r.Body.Read(p)
}

func (r *Response) Close() error {
	return r.Body.Close()
}

// ReadAll drains and closes the body.
func (r *Response) ReadAll() ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// Requester is the transport capability the SDK is built on.
type Requester interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Client is the net/http implementation of Requester. It signs every request
// when an identity is configured.
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
	identity   auth.Identity
	now        func() time.Time
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithIdentity(identity auth.Identity) Option {
	return func(c *Client) {
		c.identity = identity
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client that dials endpoint, e.g. "https://nimbus.io".
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute URL", endpoint)
	}

	c := &Client{
		endpoint: u,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Endpoint returns the base URL requests are dialed at.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	target := c.endpoint.Scheme + "://" + c.endpoint.Host + c.endpoint.Path + req.URI

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if req.Host != "" {
		httpReq.Host = req.Host
	}
	for name, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}
	if c.identity.Complete() {
		auth.SignRequest(httpReq, c.identity, httpReq.URL.RequestURI(), c.now())
	}

	c.log.Debug("sending request", "method", req.Method, "host", httpReq.Host, "uri", req.URI)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if !statusAccepted(resp.StatusCode, req.ExpectedStatus) {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		httpErr := &HTTPError{
			Status: resp.StatusCode,
			Method: req.Method,
			URI:    req.URI,
		}
		if len(body) > 0 {
			httpErr.Message = response.ErrorMessage(body)
		}
		return nil, httpErr
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   resp.Body,
	}, nil
}

func statusAccepted(status, expected int) bool {
	if expected != 0 {
		return status == expected
	}
	return status >= 200 && status < 300
}
