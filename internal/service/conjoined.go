package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/aws/smithy-go/ptr"
	"github.com/google/uuid"

	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/model"
	"github.com/beanbocchi/nimbus/pkg/sqlc"
	"github.com/beanbocchi/nimbus/pkg/validator"
)

type ConjoinedParams struct {
	Owner       string `validate:"required"`
	Collection  string `validate:"required"`
	Key         string `validate:"required"`
	ConjoinedID string
}

// StartConjoined opens a multipart upload for Key. Its identifier becomes
// the version id of the key once the upload is finished.
func (s *Service) StartConjoined(ctx context.Context, params ConjoinedParams) (db.Conjoined, error) {
	if err := validator.Validate(params); err != nil {
		return db.Conjoined{}, err
	}
	if _, err := s.Collection(ctx, params.Owner, params.Collection); err != nil {
		return db.Conjoined{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return db.Conjoined{}, fmt.Errorf("new conjoined id: %w", err)
	}

	conjoined, err := s.storage.CreateConjoined(ctx, db.CreateConjoinedParams{
		ID:         id.String(),
		Collection: params.Collection,
		Key:        params.Key,
		CreatedAt:  s.timestamp(),
	})
	if err != nil {
		return db.Conjoined{}, fmt.Errorf("create conjoined: %w", err)
	}

	s.log.Info("conjoined started", "collection", params.Collection, "key", params.Key, "conjoined", conjoined.ID)
	return conjoined, nil
}

func (s *Service) activeConjoined(ctx context.Context, collection, key, id string) (db.Conjoined, error) {
	conjoined, err := s.storage.GetConjoined(ctx, db.GetConjoinedParams{Collection: collection, ID: id})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Conjoined{}, model.ErrUploadNotFound.Fmt(id)
		}
		return db.Conjoined{}, fmt.Errorf("get conjoined: %w", err)
	}
	if conjoined.Key != key {
		return db.Conjoined{}, model.ErrUploadNotFound.Fmt(id)
	}
	if conjoined.AbortedAt.Valid || conjoined.CompletedAt.Valid {
		return db.Conjoined{}, model.ErrUploadClosed.Fmt(id)
	}
	return conjoined, nil
}

// FinishConjoined joins the parts in part order into a new version.
func (s *Service) FinishConjoined(ctx context.Context, params ConjoinedParams) (db.Conjoined, error) {
	collection, err := s.Collection(ctx, params.Owner, params.Collection)
	if err != nil {
		return db.Conjoined{}, err
	}
	conjoined, err := s.activeConjoined(ctx, collection.Name, params.Key, params.ConjoinedID)
	if err != nil {
		return db.Conjoined{}, err
	}

	parts, err := s.storage.ListConjoinedParts(ctx, conjoined.ID)
	if err != nil {
		return db.Conjoined{}, fmt.Errorf("list parts: %w", err)
	}

	blobKey := versionBlobKey(collection.Name, conjoined.ID)
	joined := &partsReader{ctx: ctx, s: s, parts: parts}
	size, digest, err := s.storeBlob(ctx, blobKey, joined)
	joined.Close()
	if err != nil {
		return db.Conjoined{}, err
	}

	var finished db.Conjoined
	var superseded []string
	err = s.storage.WithTx(ctx, func(tx *sqlc.TxStorage) error {
		now := s.timestamp()
		if _, err := tx.CreateVersion(ctx, db.CreateVersionParams{
			ID:         conjoined.ID,
			Collection: collection.Name,
			Key:        conjoined.Key,
			Size:       size,
			Digest:     digest,
			ObjectKey:  blobKey,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("create version: %w", err)
		}

		finished, err = tx.UpdateConjoined(ctx, db.UpdateConjoinedParams{
			ID:          conjoined.ID,
			CompletedAt: ptr.Int64(now),
		})
		if err != nil {
			return fmt.Errorf("complete conjoined: %w", err)
		}
		if err := tx.DeleteConjoinedParts(ctx, conjoined.ID); err != nil {
			return fmt.Errorf("delete parts: %w", err)
		}

		if !collection.Versioning {
			superseded, err = dropVersions(ctx, tx, collection.Name, conjoined.Key, conjoined.ID)
		}
		return err
	})
	if err != nil {
		s.discardBlobs(blobKey)
		return db.Conjoined{}, err
	}

	s.discardBlobs(append(superseded, partKeys(parts)...)...)
	s.log.Info("conjoined finished", "collection", collection.Name, "key", conjoined.Key, "conjoined", conjoined.ID, "parts", len(parts), "size", size)
	return finished, nil
}

// AbortConjoined abandons the upload and discards its parts.
func (s *Service) AbortConjoined(ctx context.Context, params ConjoinedParams) (db.Conjoined, error) {
	if _, err := s.Collection(ctx, params.Owner, params.Collection); err != nil {
		return db.Conjoined{}, err
	}
	conjoined, err := s.activeConjoined(ctx, params.Collection, params.Key, params.ConjoinedID)
	if err != nil {
		return db.Conjoined{}, err
	}

	var aborted db.Conjoined
	var parts []db.ConjoinedPart
	err = s.storage.WithTx(ctx, func(tx *sqlc.TxStorage) error {
		parts, err = tx.ListConjoinedParts(ctx, conjoined.ID)
		if err != nil {
			return fmt.Errorf("list parts: %w", err)
		}
		if err := tx.DeleteConjoinedParts(ctx, conjoined.ID); err != nil {
			return fmt.Errorf("delete parts: %w", err)
		}
		aborted, err = tx.UpdateConjoined(ctx, db.UpdateConjoinedParams{
			ID:        conjoined.ID,
			AbortedAt: ptr.Int64(s.timestamp()),
		})
		if err != nil {
			return fmt.Errorf("abort conjoined: %w", err)
		}
		return nil
	})
	if err != nil {
		return db.Conjoined{}, err
	}

	s.discardBlobs(partKeys(parts)...)
	s.log.Info("conjoined aborted", "collection", params.Collection, "key", params.Key, "conjoined", conjoined.ID)
	return aborted, nil
}

type ListConjoinedParams struct {
	Owner        string `validate:"required"`
	Collection   string `validate:"required"`
	KeyMarker    string
	IDMarker     string
	MaxConjoined int32 `validate:"omitempty,gt=0,lte=1000"`
}

// ListConjoined pages through uploads that are neither finished nor
// aborted, ordered by key and then identifier.
func (s *Service) ListConjoined(ctx context.Context, params ListConjoinedParams) (model.PaginateResult[db.Conjoined], error) {
	if _, err := s.Collection(ctx, params.Owner, params.Collection); err != nil {
		return model.PaginateResult[db.Conjoined]{}, err
	}
	limit := s.limit(&model.PaginationParams{MaxKeys: params.MaxConjoined})

	rows, err := s.storage.ListActiveConjoined(ctx, db.ListActiveConjoinedParams{
		Collection: params.Collection,
		KeyMarker:  params.KeyMarker,
		IDMarker:   params.IDMarker,
		Limit:      int64(limit) + 1,
	})
	if err != nil {
		return model.PaginateResult[db.Conjoined]{}, fmt.Errorf("list conjoined: %w", err)
	}
	return model.Paginate(rows, limit), nil
}

func partKeys(parts []db.ConjoinedPart) []string {
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		keys = append(keys, part.ObjectKey)
	}
	return keys
}

// partsReader streams the parts back to back, opening each one only when
// the previous is exhausted.
type partsReader struct {
	ctx     context.Context
	s       *Service
	parts   []db.ConjoinedPart
	current io.ReadCloser
}

func (r *partsReader) Read(p []byte) (int, error) {
	for {
		if r.current == nil {
			if len(r.parts) == 0 {
				return 0, io.EOF
			}
			rc, err := r.s.blobs.Download(r.ctx, r.parts[0].ObjectKey)
			if err != nil {
				return 0, fmt.Errorf("open part %d: %w", r.parts[0].Part, err)
			}
			r.current, r.parts = rc, r.parts[1:]
		}

		n, err := r.current.Read(p)
		if errors.Is(err, io.EOF) {
			r.current.Close()
			r.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *partsReader) Close() error {
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}
