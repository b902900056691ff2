package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/smithy-go/ptr"
	"github.com/bytedance/sonic"

	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/model"
	"github.com/beanbocchi/nimbus/pkg/sqlc"
	"github.com/beanbocchi/nimbus/pkg/validator"
)

type CreateCollectionParams struct {
	Owner         string `validate:"required"`
	Name          string `validate:"required,collection_name"`
	Versioning    bool
	AccessControl []byte
}

func (s *Service) CreateCollection(ctx context.Context, params CreateCollectionParams) (db.Collection, error) {
	if err := validator.Validate(params); err != nil {
		return db.Collection{}, err
	}
	accessControl, err := accessControlValue(params.AccessControl)
	if err != nil {
		return db.Collection{}, err
	}

	if _, err := s.storage.GetCollection(ctx, params.Name); err == nil {
		return db.Collection{}, model.ErrCollectionExists.Fmt(params.Name)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return db.Collection{}, fmt.Errorf("get collection: %w", err)
	}

	collection, err := s.storage.CreateCollection(ctx, db.CreateCollectionParams{
		Name:          params.Name,
		Owner:         params.Owner,
		Versioning:    params.Versioning,
		AccessControl: accessControl,
		CreatedAt:     s.timestamp(),
	})
	if err != nil {
		return db.Collection{}, fmt.Errorf("create collection: %w", err)
	}

	s.log.Info("collection created", "collection", collection.Name, "owner", collection.Owner)
	return collection, nil
}

// EnsureCollection creates the collection unless owner already has it.
func (s *Service) EnsureCollection(ctx context.Context, owner, name string) (db.Collection, error) {
	collection, err := s.storage.GetCollection(ctx, name)
	if err == nil {
		if collection.Owner != owner {
			return db.Collection{}, model.ErrCollectionExists.Fmt(name)
		}
		return collection, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return db.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return s.CreateCollection(ctx, CreateCollectionParams{Owner: owner, Name: name})
}

func (s *Service) ListCollections(ctx context.Context, owner string) ([]db.Collection, error) {
	collections, err := s.storage.ListCollections(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return collections, nil
}

// Collection fetches name on behalf of owner. Collections of other users
// are reported as missing.
func (s *Service) Collection(ctx context.Context, owner, name string) (db.Collection, error) {
	collection, err := s.storage.GetCollection(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Collection{}, model.ErrCollectionNotFound.Fmt(name)
		}
		return db.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	if collection.Owner != owner {
		return db.Collection{}, model.ErrCollectionNotFound.Fmt(name)
	}
	return collection, nil
}

type UpdateCollectionParams struct {
	Owner         string `validate:"required"`
	Name          string `validate:"required"`
	Versioning    *bool
	AccessControl []byte
}

func (s *Service) UpdateCollection(ctx context.Context, params UpdateCollectionParams) (db.Collection, error) {
	if _, err := s.Collection(ctx, params.Owner, params.Name); err != nil {
		return db.Collection{}, err
	}

	update := db.UpdateCollectionParams{
		Name:       params.Name,
		Versioning: params.Versioning,
	}
	if params.AccessControl != nil {
		accessControl, err := accessControlValue(params.AccessControl)
		if err != nil {
			return db.Collection{}, err
		}
		update.AccessControl = ptr.String(accessControl.String)
	}

	collection, err := s.storage.UpdateCollection(ctx, update)
	if err != nil {
		return db.Collection{}, fmt.Errorf("update collection: %w", err)
	}
	return collection, nil
}

type DeleteCollectionParams struct {
	Owner string `validate:"required"`
	Name  string `validate:"required"`
}

// DeleteCollection removes an empty collection. The owner's default
// collection cannot be removed.
func (s *Service) DeleteCollection(ctx context.Context, params DeleteCollectionParams) error {
	if params.Name == DefaultCollection(params.Owner) {
		return model.ErrCollectionReserved.Fmt(params.Name)
	}
	if _, err := s.Collection(ctx, params.Owner, params.Name); err != nil {
		return err
	}

	return s.storage.WithTx(ctx, func(tx *sqlc.TxStorage) error {
		usage, err := tx.GetCollectionUsage(ctx, params.Name)
		if err != nil {
			return fmt.Errorf("get usage: %w", err)
		}
		if usage.VersionCount > 0 || usage.UploadsActive > 0 {
			return model.ErrCollectionNotEmpty.Fmt(params.Name)
		}

		// delete markers and finished uploads may remain
		if err := tx.DeleteCollectionVersions(ctx, params.Name); err != nil {
			return fmt.Errorf("delete versions: %w", err)
		}
		if err := tx.DeleteCollectionConjoined(ctx, params.Name); err != nil {
			return fmt.Errorf("delete conjoined: %w", err)
		}
		if err := tx.DeleteCollection(ctx, params.Name); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		s.log.Info("collection deleted", "collection", params.Name)
		return nil
	})
}

func (s *Service) SpaceUsage(ctx context.Context, owner, name string) (db.GetCollectionUsageRow, error) {
	if _, err := s.Collection(ctx, owner, name); err != nil {
		return db.GetCollectionUsageRow{}, err
	}
	usage, err := s.storage.GetCollectionUsage(ctx, name)
	if err != nil {
		return db.GetCollectionUsageRow{}, fmt.Errorf("get usage: %w", err)
	}
	return usage, nil
}

// accessControlValue checks that a non-empty document is JSON.
func accessControlValue(doc []byte) (sql.NullString, error) {
	if len(doc) == 0 {
		return sql.NullString{}, nil
	}
	if !sonic.Valid(doc) {
		return sql.NullString{}, model.ErrValidation.Fmt("access control must be a JSON document")
	}
	return sql.NullString{String: string(doc), Valid: true}, nil
}
