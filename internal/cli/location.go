package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/beanbocchi/nimbus/internal/client/objectstore"
	"github.com/beanbocchi/nimbus/internal/client/objectstore/local"
	"github.com/beanbocchi/nimbus/internal/client/objectstore/nimbus"
	"github.com/beanbocchi/nimbus/internal/client/objectstore/s3"
	"github.com/beanbocchi/nimbus/internal/client/objectstore/stoj"
)

const (
	SchemeFile   = "file"
	SchemeStdio  = "-"
	SchemeNimbus = "nimbus.io"
	SchemeS3     = "s3"
	SchemeStorj  = "storj"
)

// Location is one side of a copy: a local path, standard input/output, or
// scheme://bucket/key.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	switch l.Scheme {
	case SchemeStdio:
		return "-"
	case SchemeFile:
		return l.Key
	default:
		return l.Scheme + "://" + l.Bucket + "/" + l.Key
	}
}

// Remote reports whether the location lives in a bucket.
func (l Location) Remote() bool {
	return l.Scheme != SchemeFile && l.Scheme != SchemeStdio
}

// ParseLocation parses a copy source or destination. Anything without a
// known scheme is a local path.
func ParseLocation(s string) (Location, error) {
	if s == "" {
		return Location{}, usagef("empty location")
	}
	if s == "-" {
		return Location{Scheme: SchemeStdio}, nil
	}

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Location{Scheme: SchemeFile, Key: s}, nil
	}
	switch scheme {
	case SchemeNimbus, SchemeS3, SchemeStorj:
	default:
		return Location{}, usagef("unsupported scheme %q in %q", scheme, s)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, usagef("missing bucket in %q", s)
	}
	return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// destination fills in the key of dst from src when dst names a bucket or
// a directory.
func destination(src, dst Location) (Location, error) {
	base := path.Base(filepath.ToSlash(src.Key))
	switch {
	case dst.Scheme == SchemeStdio:
		return dst, nil
	case dst.Scheme == SchemeFile:
		if info, err := os.Stat(dst.Key); err == nil && info.IsDir() {
			if src.Scheme == SchemeStdio {
				return Location{}, usagef("cannot name a file read from standard input")
			}
			dst.Key = filepath.Join(dst.Key, base)
		}
		return dst, nil
	case dst.Key == "" || strings.HasSuffix(dst.Key, "/"):
		if src.Scheme == SchemeStdio {
			return Location{}, usagef("destination %s needs a key", dst)
		}
		dst.Key += base
		return dst, nil
	default:
		return dst, nil
	}
}

// store opens the object store behind loc. The returned key addresses loc
// within it; release frees the store.
func (app *App) store(ctx context.Context, loc Location) (store objectstore.Client, key string, release func() error, err error) {
	noop := func() error { return nil }

	switch loc.Scheme {
	case SchemeStdio:
		return &stdioStore{in: app.Stdin, out: app.Stdout}, "-", noop, nil

	case SchemeFile:
		abs, err := filepath.Abs(loc.Key)
		if err != nil {
			return nil, "", nil, fmt.Errorf("resolve %s: %w", loc.Key, err)
		}
		store, err := local.NewClient(local.LocalConfig{Root: filepath.Dir(abs)})
		if err != nil {
			return nil, "", nil, err
		}
		return store, filepath.Base(abs), noop, nil

	case SchemeNimbus:
		client, err := app.Client()
		if err != nil {
			return nil, "", nil, err
		}
		return nimbus.NewClient(client.GetBucket(loc.Bucket)), loc.Key, noop, nil

	case SchemeS3:
		cfg, err := app.config()
		if err != nil {
			return nil, "", nil, err
		}
		s3cfg := cfg.Objectstore.S3
		store, err := s3.NewClient(ctx, s3.S3Config{
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			Region:          s3cfg.Region,
			Secure:          s3cfg.Secure,
			Bucket:          loc.Bucket,
		})
		if err != nil {
			return nil, "", nil, err
		}
		return store, loc.Key, noop, nil

	case SchemeStorj:
		cfg, err := app.config()
		if err != nil {
			return nil, "", nil, err
		}
		store, err := stoj.NewClient(ctx, stoj.StorjConfig{
			AccessGrant: cfg.Objectstore.Storj.AccessGrant,
			Bucket:      loc.Bucket,
		})
		if err != nil {
			return nil, "", nil, err
		}
		return store, loc.Key, store.Close, nil
	}
	return nil, "", nil, usagef("unsupported location %s", loc)
}

// stdioStore reads from standard input and writes to standard output.
type stdioStore struct {
	in  io.Reader
	out io.Writer
}

func (s *stdioStore) Upload(ctx context.Context, key string, content io.Reader) error {
	_, err := io.Copy(s.out, content)
	return err
}

func (s *stdioStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(s.in), nil
}

func (s *stdioStore) Delete(ctx context.Context, key string) error {
	return usagef("standard input cannot be removed")
}
