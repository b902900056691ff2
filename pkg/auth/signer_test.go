package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testIdentity = Identity{
	UserName:  "motoboto-test-01",
	AuthKeyID: "43",
	AuthKey:   "oMDMm54A4F5+ukVSSoZTOlDVAIhlywJI+x4lsLjLWfA",
}

func lookupTestIdentity(keyID string) (Identity, bool) {
	if keyID == testIdentity.AuthKeyID {
		return testIdentity, true
	}
	return Identity{}, false
}

func signedRequest(t *testing.T, method, uri string, now time.Time) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, uri, nil)
	SignRequest(req, testIdentity, uri, now)
	return req
}

func TestVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	t.Run("round trip", func(t *testing.T) {
		req := signedRequest(t, http.MethodGet, "/data/?max_keys=1000&prefix=aaa", now)
		id, err := Verify(req, lookupTestIdentity, time.Minute, now)
		require.NoError(t, err)
		require.Equal(t, testIdentity.UserName, id.UserName)
	})

	t.Run("tampered uri", func(t *testing.T) {
		req := signedRequest(t, http.MethodGet, "/data/a", now)
		req.RequestURI = "/data/b"
		_, err := Verify(req, lookupTestIdentity, time.Minute, now)
		require.True(t, errors.Is(err, ErrSignatureMismatch))
	})

	t.Run("unknown key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/data/a", nil)
		SignRequest(req, Identity{UserName: "x", AuthKeyID: "99", AuthKey: "k"}, "/data/a", now)
		_, err := Verify(req, lookupTestIdentity, time.Minute, now)
		require.ErrorIs(t, err, ErrUnknownKey)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/data/a", nil)
		_, err := Verify(req, lookupTestIdentity, time.Minute, now)
		require.ErrorIs(t, err, ErrMissingAuthorization)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req := signedRequest(t, http.MethodDelete, "/data/a", now.Add(-time.Hour))
		_, err := Verify(req, lookupTestIdentity, time.Minute, now)
		require.ErrorIs(t, err, ErrClockSkew)
	})

	t.Run("malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/data/a", nil)
		req.Header.Set(HeaderAuthorization, "Basic Zm9vOmJhcg==")
		_, err := Verify(req, lookupTestIdentity, 0, now)
		require.ErrorIs(t, err, ErrMalformedAuthorization)
	})
}

func TestIdentityComplete(t *testing.T) {
	require.True(t, testIdentity.Complete())
	require.False(t, Identity{UserName: "a", AuthKeyID: "b"}.Complete())
}
