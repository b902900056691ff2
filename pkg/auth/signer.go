package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderTimestamp     = "X-Nimbus-Io-Timestamp"
	HeaderAuthorization = "Authorization"

	schemePrefix = "NIMBUS.IO "
)

var (
	ErrMissingAuthorization   = errors.New("missing authorization header")
	ErrMalformedAuthorization = errors.New("malformed authorization header")
	ErrUnknownKey             = errors.New("unknown auth key id")
	ErrSignatureMismatch      = errors.New("signature mismatch")
	ErrClockSkew              = errors.New("request timestamp outside allowed skew")
)

// Identity is the triple a user presents to the service.
type Identity struct {
	UserName  string `yaml:"userName" mapstructure:"userName"`
	AuthKeyID string `yaml:"authKeyId" mapstructure:"authKeyId"`
	AuthKey   string `yaml:"authKey" mapstructure:"authKey"`
}

// Complete reports whether all three fields are set.
func (i Identity) Complete() bool {
	return i.UserName != "" && i.AuthKeyID != "" && i.AuthKey != ""
}

// Signature computes the hex HMAC-SHA256 of the canonical request string.
func Signature(id Identity, method, uri string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(id.AuthKey))
	fmt.Fprintf(mac, "%s\n%s\n%d\n%s", id.UserName, method, timestamp, uri)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest stamps the timestamp and authorization headers onto req.
// uri must be the request-target exactly as it goes on the wire.
func SignRequest(req *http.Request, id Identity, uri string, now time.Time) {
	ts := now.Unix()
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderAuthorization, fmt.Sprintf("%s%s:%s", schemePrefix, id.AuthKeyID, Signature(id, req.Method, uri, ts)))
}

// KeyLookup resolves an auth key id to the identity that owns it.
type KeyLookup func(keyID string) (Identity, bool)

// Verify checks the signature on an incoming request. A zero skew disables
// the timestamp window check.
func Verify(r *http.Request, lookup KeyLookup, skew time.Duration, now time.Time) (Identity, error) {
	header := r.Header.Get(HeaderAuthorization)
	if header == "" {
		return Identity{}, ErrMissingAuthorization
	}
	if !strings.HasPrefix(header, schemePrefix) {
		return Identity{}, ErrMalformedAuthorization
	}

	keyID, sig, ok := strings.Cut(strings.TrimPrefix(header, schemePrefix), ":")
	if !ok || keyID == "" || sig == "" {
		return Identity{}, ErrMalformedAuthorization
	}

	ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad timestamp", ErrMalformedAuthorization)
	}
	if skew > 0 {
		delta := now.Sub(time.Unix(ts, 0))
		if delta < -skew || delta > skew {
			return Identity{}, ErrClockSkew
		}
	}

	id, found := lookup(keyID)
	if !found {
		return Identity{}, ErrUnknownKey
	}

	want := Signature(id, r.Method, r.RequestURI, ts)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return Identity{}, ErrSignatureMismatch
	}

	return id, nil
}
