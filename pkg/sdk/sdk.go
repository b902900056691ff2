// Package sdk is a client for the nimbus.io object storage service.
//
// A Client scopes account level calls to one user. Buckets, keys and
// multipart uploads are lightweight handles that issue requests through the
// client's transport; none of them hold a connection between calls.
package sdk

import (
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"

	"github.com/beanbocchi/nimbus/pkg/httpclient"
)

// decodeJSON drains and closes resp, decoding its body into T.
func decodeJSON[T any](resp *httpclient.Response) (T, error) {
	var v T
	body, err := resp.ReadAll()
	if err != nil {
		return v, fmt.Errorf("read response: %w", err)
	}
	if err := sonic.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

// discard drains and closes resp so the connection can be reused.
func discard(resp *httpclient.Response) error {
	_, err := io.Copy(io.Discard, resp.Body)
	if closeErr := resp.Close(); err == nil {
		err = closeErr
	}
	return err
}

func parseOptionalTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return ParseHTTPTime(value)
}
