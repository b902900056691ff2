package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/model"
	"github.com/beanbocchi/nimbus/internal/utils/blake3"
	"github.com/beanbocchi/nimbus/internal/utils/ioutil"
	"github.com/beanbocchi/nimbus/pkg/sqlc"
	"github.com/beanbocchi/nimbus/pkg/validator"
)

type ArchiveParams struct {
	Owner      string `validate:"required"`
	Collection string `validate:"required"`
	Key        string `validate:"required"`
	Body       io.Reader
	// Metadata names are stored lower-cased.
	Metadata map[string]string
	// ConjoinedID and Part store the body as one part of a conjoined upload
	// instead of as a new version.
	ConjoinedID string
	Part        int64 `validate:"omitempty,gte=1"`
}

type ArchiveResult struct {
	VersionID    string
	Size         int64
	Digest       string
	LastModified time.Time
}

// Archive stores Body as the newest version of Key. Without versioning the
// older versions are dropped.
func (s *Service) Archive(ctx context.Context, params ArchiveParams) (ArchiveResult, error) {
	if err := validator.Validate(params); err != nil {
		return ArchiveResult{}, err
	}
	collection, err := s.Collection(ctx, params.Owner, params.Collection)
	if err != nil {
		return ArchiveResult{}, err
	}
	if params.ConjoinedID != "" {
		return s.archivePart(ctx, collection, params)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("new version id: %w", err)
	}
	versionID := id.String()
	blobKey := versionBlobKey(collection.Name, versionID)

	size, digest, err := s.storeBlob(ctx, blobKey, params.Body)
	if err != nil {
		return ArchiveResult{}, err
	}

	var (
		created    db.Version
		superseded []string
	)
	err = s.storage.WithTx(ctx, func(tx *sqlc.TxStorage) error {
		created, err = tx.CreateVersion(ctx, db.CreateVersionParams{
			ID:         versionID,
			Collection: collection.Name,
			Key:        params.Key,
			Size:       size,
			Digest:     digest,
			ObjectKey:  blobKey,
			CreatedAt:  s.timestamp(),
		})
		if err != nil {
			return fmt.Errorf("create version: %w", err)
		}

		for name, value := range params.Metadata {
			if err := tx.CreateVersionMetadata(ctx, db.CreateVersionMetadataParams{
				VersionID: versionID,
				Name:      strings.ToLower(name),
				Value:     value,
			}); err != nil {
				return fmt.Errorf("create metadata: %w", err)
			}
		}

		if collection.Versioning {
			return nil
		}
		superseded, err = dropVersions(ctx, tx, collection.Name, params.Key, versionID)
		return err
	})
	if err != nil {
		s.discardBlobs(blobKey)
		return ArchiveResult{}, err
	}
	s.discardBlobs(superseded...)

	s.log.Info("archived", "collection", collection.Name, "key", params.Key, "version", versionID, "size", size)
	return ArchiveResult{VersionID: versionID, Size: size, Digest: digest, LastModified: LastModified(created)}, nil
}

func (s *Service) archivePart(ctx context.Context, collection db.Collection, params ArchiveParams) (ArchiveResult, error) {
	if params.Part < 1 {
		return ArchiveResult{}, model.ErrValidation.Fmt("conjoined_part must be at least 1")
	}
	conjoined, err := s.activeConjoined(ctx, collection.Name, params.Key, params.ConjoinedID)
	if err != nil {
		return ArchiveResult{}, err
	}

	blobKey := partBlobKey(collection.Name, conjoined.ID, params.Part)
	size, digest, err := s.storeBlob(ctx, blobKey, params.Body)
	if err != nil {
		return ArchiveResult{}, err
	}

	if err := s.storage.UpsertConjoinedPart(ctx, db.UpsertConjoinedPartParams{
		ConjoinedID: conjoined.ID,
		Part:        params.Part,
		Size:        size,
		Digest:      digest,
		ObjectKey:   blobKey,
	}); err != nil {
		return ArchiveResult{}, fmt.Errorf("record part: %w", err)
	}

	s.log.Info("archived part", "collection", collection.Name, "key", params.Key, "conjoined", conjoined.ID, "part", params.Part, "size", size)
	return ArchiveResult{VersionID: conjoined.ID, Size: size, Digest: digest, LastModified: s.now().UTC().Truncate(time.Second)}, nil
}

// storeBlob uploads body under key and returns its size and blake3 digest.
func (s *Service) storeBlob(ctx context.Context, key string, body io.Reader) (int64, string, error) {
	if body == nil {
		body = strings.NewReader("")
	}
	digester := blake3.NewDigester()
	counter := ioutil.NewSizeReader(io.TeeReader(body, digester))
	if err := s.blobs.Upload(ctx, key, counter); err != nil {
		return 0, "", fmt.Errorf("store blob: %w", err)
	}
	return counter.Size, digester.Hex(), nil
}

// dropVersions deletes every version of key except keep and returns the
// blobs they referenced.
func dropVersions(ctx context.Context, q *sqlc.TxStorage, collection, key, keep string) ([]string, error) {
	versions, err := q.ListKeyVersions(ctx, db.ListKeyVersionsParams{Collection: collection, Key: key})
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	var blobs []string
	for _, v := range versions {
		if v.ID == keep {
			continue
		}
		if err := q.DeleteVersion(ctx, v.ID); err != nil {
			return nil, fmt.Errorf("delete version %s: %w", v.ID, err)
		}
		if v.ObjectKey != "" {
			blobs = append(blobs, v.ObjectKey)
		}
	}
	return blobs, nil
}

type KeyParams struct {
	Owner      string `validate:"required"`
	Collection string `validate:"required"`
	Key        string `validate:"required"`
	VersionID  string
}

// resolveVersion returns the requested version, or the newest one when no
// version id is given. Delete markers count as missing.
func (s *Service) resolveVersion(ctx context.Context, params KeyParams) (db.Version, error) {
	if err := validator.Validate(params); err != nil {
		return db.Version{}, err
	}
	if _, err := s.Collection(ctx, params.Owner, params.Collection); err != nil {
		return db.Version{}, err
	}

	var (
		version db.Version
		err     error
	)
	if params.VersionID != "" {
		version, err = s.storage.GetVersion(ctx, db.GetVersionParams{
			Collection: params.Collection,
			Key:        params.Key,
			ID:         params.VersionID,
		})
		if errors.Is(err, sql.ErrNoRows) || (err == nil && version.IsDeleteMarker) {
			return db.Version{}, model.ErrVersionNotFound.Fmt(params.VersionID, params.Key)
		}
	} else {
		version, err = s.storage.GetLatestVersion(ctx, db.GetLatestVersionParams{
			Collection: params.Collection,
			Key:        params.Key,
		})
		if errors.Is(err, sql.ErrNoRows) || (err == nil && version.IsDeleteMarker) {
			return db.Version{}, model.ErrKeyNotFound.Fmt(params.Key)
		}
	}
	if err != nil {
		return db.Version{}, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

// DeleteKey removes one version when VersionID is set. Otherwise a
// versioned collection gets a delete marker and an unversioned one loses
// every version of the key.
func (s *Service) DeleteKey(ctx context.Context, params KeyParams) error {
	collection, err := s.Collection(ctx, params.Owner, params.Collection)
	if err != nil {
		return err
	}

	if params.VersionID != "" {
		version, err := s.resolveVersion(ctx, params)
		if err != nil {
			return err
		}
		if err := s.storage.DeleteVersion(ctx, version.ID); err != nil {
			return fmt.Errorf("delete version: %w", err)
		}
		s.discardBlobs(version.ObjectKey)
		s.log.Info("version deleted", "collection", collection.Name, "key", params.Key, "version", version.ID)
		return nil
	}

	if _, err := s.resolveVersion(ctx, params); err != nil {
		return err
	}

	if collection.Versioning {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("new version id: %w", err)
		}
		if _, err := s.storage.CreateVersion(ctx, db.CreateVersionParams{
			ID:             id.String(),
			Collection:     collection.Name,
			Key:            params.Key,
			IsDeleteMarker: true,
			CreatedAt:      s.timestamp(),
		}); err != nil {
			return fmt.Errorf("create delete marker: %w", err)
		}
		s.log.Info("key marked deleted", "collection", collection.Name, "key", params.Key)
		return nil
	}

	var blobs []string
	err = s.storage.WithTx(ctx, func(tx *sqlc.TxStorage) error {
		blobs, err = dropVersions(ctx, tx, collection.Name, params.Key, "")
		return err
	})
	if err != nil {
		return err
	}
	s.discardBlobs(blobs...)
	s.log.Info("key deleted", "collection", collection.Name, "key", params.Key)
	return nil
}

// Metadata returns the metadata stored with a version.
func (s *Service) Metadata(ctx context.Context, params KeyParams) (map[string]string, error) {
	version, err := s.resolveVersion(ctx, params)
	if err != nil {
		return nil, err
	}

	rows, err := s.storage.ListVersionMetadata(ctx, version.ID)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	meta := make(map[string]string, len(rows))
	for _, row := range rows {
		meta[row.Name] = row.Value
	}
	return meta, nil
}
