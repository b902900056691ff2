package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/beanbocchi/nimbus/config"
	"github.com/beanbocchi/nimbus/internal/client/objectstore"
	"github.com/beanbocchi/nimbus/internal/client/objectstore/cache"
	"github.com/beanbocchi/nimbus/internal/client/objectstore/local"
	"github.com/beanbocchi/nimbus/internal/client/objectstore/s3"
	"github.com/beanbocchi/nimbus/internal/client/objectstore/stoj"
	"github.com/beanbocchi/nimbus/internal/client/objectstore/sync"
	"github.com/beanbocchi/nimbus/pkg/sqlc"
)

const jobBuffer = 256

// Service implements the nimbus.io collection, data and conjoined APIs on
// a sqlite catalog and a blob store.
type Service struct {
	blobs   objectstore.Client
	storage *sqlc.Storage
	maxKeys int32
	log     *slog.Logger
	now     func() time.Time

	jobs      chan func()
	jobsWG    gosync.WaitGroup
	closeOnce gosync.Once
	closers   []func() error
}

type Option func(*Service)

// WithBlobStore replaces the configured blob store.
func WithBlobStore(blobs objectstore.Client) Option {
	return func(s *Service) { s.blobs = blobs }
}

// WithClock overrides the time source used for version timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(ctx context.Context, cfg *config.Config, conn *sql.DB, opts ...Option) (*Service, error) {
	s := &Service{
		storage: sqlc.NewStorage(conn),
		maxKeys: cfg.Emulator.MaxKeys,
		log:     slog.Default(),
		now:     time.Now,
		jobs:    make(chan func(), jobBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "service")

	if s.blobs == nil {
		blobs, closers, err := newBlobStore(ctx, cfg, s.log)
		if err != nil {
			return nil, err
		}
		s.blobs, s.closers = blobs, closers
	}

	s.jobsWG.Add(1)
	go func() {
		defer s.jobsWG.Done()
		for job := range s.jobs {
			job()
		}
	}()

	return s, nil
}

// newBlobStore builds the content store: plain files under the data dir, or
// a remote primary fronted by a local LRU cache.
func newBlobStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (objectstore.Client, []func() error, error) {
	blobs := cfg.Emulator.Blobs
	var closers []func() error

	if blobs.Primary == "local" || blobs.Primary == "" {
		store, err := local.NewClient(local.LocalConfig{Root: filepath.Join(cfg.Emulator.DataDir, "blobs")})
		if err != nil {
			return nil, nil, fmt.Errorf("create local store: %w", err)
		}
		synced, err := sync.NewSyncClient(store)
		return synced, nil, err
	}

	var primary objectstore.Client
	switch blobs.Primary {
	case "storj":
		store, err := stoj.NewClient(ctx, stoj.StorjConfig{
			AccessGrant:  cfg.Objectstore.Storj.AccessGrant,
			Bucket:       blobs.Bucket,
			EnsureBucket: true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create storj store: %w", err)
		}
		primary = store
		closers = append(closers, store.Close)
	case "s3":
		s3cfg := cfg.Objectstore.S3
		store, err := s3.NewClient(ctx, s3.S3Config{
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			Region:          s3cfg.Region,
			Secure:          s3cfg.Secure,
			Bucket:          blobs.Bucket,
			EnsureBucket:    true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create s3 store: %w", err)
		}
		primary = store
	default:
		return nil, nil, fmt.Errorf("unknown blob primary %q", blobs.Primary)
	}

	cacheStore, err := local.NewClient(local.LocalConfig{Root: filepath.Join(cfg.Emulator.DataDir, "cache")})
	if err != nil {
		return nil, nil, fmt.Errorf("create cache store: %w", err)
	}

	cached, err := cache.NewCacheClient(cache.CacheConfig{
		Cache:          cacheStore,
		Primary:        primary,
		EvictionPolicy: cache.NewLRUEvictionPolicy(blobs.CacheSizeBytes),
		Logger:         log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create cache: %w", err)
	}
	log.Info("blob store ready", "primary", blobs.Primary, "bucket", blobs.Bucket, "cacheSizeBytes", blobs.CacheSizeBytes)

	synced, err := sync.NewSyncClient(cached)
	return synced, closers, err
}

// Close drains queued background work and releases remote stores.
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		close(s.jobs)
		s.jobsWG.Wait()
		for _, closer := range s.closers {
			errs = append(errs, closer())
		}
	})
	return errors.Join(errs...)
}

// discardBlobs deletes blobs in the background once their catalog rows are
// gone.
func (s *Service) discardBlobs(keys ...string) {
	if len(keys) == 0 {
		return
	}
	s.jobs <- func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		for _, key := range keys {
			if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
				s.log.Warn("failed to delete blob", "key", key, "error", err)
			}
		}
	}
}

func (s *Service) timestamp() int64 {
	return s.now().UnixNano()
}

func versionBlobKey(collection, versionID string) string {
	return collection + "/" + versionID
}

func partBlobKey(collection, conjoinedID string, part int64) string {
	return fmt.Sprintf("%s/conjoined/%s/%d", collection, conjoinedID, part)
}

// DefaultCollection is the collection every user owns from the start.
func DefaultCollection(user string) string {
	return "dd-" + user
}
