package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beanbocchi/nimbus/pkg/auth"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New("nimbus.io")
	require.Error(t, err)

	c, err := New("http://127.0.0.1:8080/")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8080", c.Endpoint())
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("virtual host and headers", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Host != "bucket-1.nimbus.test" || r.Header.Get("Range") != "bytes=0-9" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusPartialContent)
			io.WriteString(w, "0123456789")
		})

		resp, err := c.Do(ctx, &Request{
			Method:         http.MethodGet,
			Host:           "bucket-1.nimbus.test",
			URI:            "/data/k",
			Header:         http.Header{"Range": []string{"bytes=0-9"}},
			ExpectedStatus: http.StatusPartialContent,
		})
		require.NoError(t, err)
		body, err := resp.ReadAll()
		require.NoError(t, err)
		require.Equal(t, "0123456789", string(body))
	})

	t.Run("expected status mismatch is an HTTPError", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		_, err := c.Do(ctx, &Request{
			Method:         http.MethodGet,
			URI:            "/data/k",
			ExpectedStatus: http.StatusPartialContent,
		})
		status, ok := StatusOf(err)
		require.True(t, ok)
		require.Equal(t, http.StatusOK, status)
	})

	t.Run("error envelope message is surfaced", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"code":"key.not_found","message":"Key k not found"}}`)
		})

		_, err := c.Do(ctx, &Request{Method: http.MethodGet, URI: "/data/k"})
		require.True(t, HasStatus(err, http.StatusNotFound))
		require.True(t, strings.Contains(err.Error(), "Key k not found"))
	})

	t.Run("requests are signed", func(t *testing.T) {
		id := auth.Identity{UserName: "alice", AuthKeyID: "1", AuthKey: "secret"}
		now := time.Unix(1_700_000_000, 0)
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, err := auth.Verify(r, func(string) (auth.Identity, bool) { return id, true }, 0, now)
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}, WithIdentity(id), WithClock(func() time.Time { return now }))

		resp, err := c.Do(ctx, &Request{Method: http.MethodDelete, URI: "/data/a%20b?version_identifier=v"})
		require.NoError(t, err)
		require.NoError(t, resp.Close())
	})
}
