package db

import (
	"context"
)

const versionColumns = `id, collection, key, size, digest, object_key, is_delete_marker, created_at`

func scanVersion(row interface{ Scan(...any) error }) (Version, error) {
	var i Version
	err := row.Scan(
		&i.ID,
		&i.Collection,
		&i.Key,
		&i.Size,
		&i.Digest,
		&i.ObjectKey,
		&i.IsDeleteMarker,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) queryVersions(ctx context.Context, query string, args ...any) ([]Version, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Version
	for rows.Next() {
		i, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createVersion = `-- name: CreateVersion :one
INSERT INTO versions (id, collection, key, size, digest, object_key, is_delete_marker, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + versionColumns

type CreateVersionParams struct {
	ID             string
	Collection     string
	Key            string
	Size           int64
	Digest         string
	ObjectKey      string
	IsDeleteMarker bool
	CreatedAt      int64
}

func (q *Queries) CreateVersion(ctx context.Context, arg CreateVersionParams) (Version, error) {
	row := q.db.QueryRowContext(ctx, createVersion,
		arg.ID,
		arg.Collection,
		arg.Key,
		arg.Size,
		arg.Digest,
		arg.ObjectKey,
		arg.IsDeleteMarker,
		arg.CreatedAt,
	)
	return scanVersion(row)
}

const getLatestVersion = `-- name: GetLatestVersion :one
SELECT ` + versionColumns + ` FROM versions
WHERE collection = ? AND key = ?
ORDER BY id DESC
LIMIT 1
`

type GetLatestVersionParams struct {
	Collection string
	Key        string
}

// GetLatestVersion may return a delete marker.
func (q *Queries) GetLatestVersion(ctx context.Context, arg GetLatestVersionParams) (Version, error) {
	row := q.db.QueryRowContext(ctx, getLatestVersion, arg.Collection, arg.Key)
	return scanVersion(row)
}

const getVersion = `-- name: GetVersion :one
SELECT ` + versionColumns + ` FROM versions
WHERE collection = ? AND key = ? AND id = ?
`

type GetVersionParams struct {
	Collection string
	Key        string
	ID         string
}

func (q *Queries) GetVersion(ctx context.Context, arg GetVersionParams) (Version, error) {
	row := q.db.QueryRowContext(ctx, getVersion, arg.Collection, arg.Key, arg.ID)
	return scanVersion(row)
}

const listKeyVersions = `-- name: ListKeyVersions :many
SELECT ` + versionColumns + ` FROM versions
WHERE collection = ? AND key = ?
ORDER BY id DESC
`

type ListKeyVersionsParams struct {
	Collection string
	Key        string
}

func (q *Queries) ListKeyVersions(ctx context.Context, arg ListKeyVersionsParams) ([]Version, error) {
	return q.queryVersions(ctx, listKeyVersions, arg.Collection, arg.Key)
}

const listLatestVersions = `-- name: ListLatestVersions :many
SELECT ` + versionColumns + ` FROM versions v
WHERE v.collection = ?
  AND substr(v.key, 1, length(?)) = ?
  AND v.key > ?
  AND v.is_delete_marker = 0
  AND v.id = (SELECT max(w.id) FROM versions w WHERE w.collection = v.collection AND w.key = v.key)
ORDER BY v.key
LIMIT ?
`

type ListLatestVersionsParams struct {
	Collection string
	Prefix     string
	Marker     string
	Limit      int64
}

// ListLatestVersions returns the newest live version of every key after
// Marker. A negative Limit means no limit.
func (q *Queries) ListLatestVersions(ctx context.Context, arg ListLatestVersionsParams) ([]Version, error) {
	return q.queryVersions(ctx, listLatestVersions,
		arg.Collection,
		arg.Prefix,
		arg.Prefix,
		arg.Marker,
		arg.Limit,
	)
}

const listVersions = `-- name: ListVersions :many
SELECT ` + versionColumns + ` FROM versions
WHERE collection = ?
  AND substr(key, 1, length(?)) = ?
  AND is_delete_marker = 0
  AND (key > ? OR (key = ? AND ? <> '' AND id < ?))
ORDER BY key, id DESC
LIMIT ?
`

type ListVersionsParams struct {
	Collection      string
	Prefix          string
	KeyMarker       string
	VersionIDMarker string
	Limit           int64
}

// ListVersions returns versions ordered by key, newest first within a key,
// strictly after the (KeyMarker, VersionIDMarker) pair.
func (q *Queries) ListVersions(ctx context.Context, arg ListVersionsParams) ([]Version, error) {
	return q.queryVersions(ctx, listVersions,
		arg.Collection,
		arg.Prefix,
		arg.Prefix,
		arg.KeyMarker,
		arg.KeyMarker,
		arg.VersionIDMarker,
		arg.VersionIDMarker,
		arg.Limit,
	)
}

const countVersions = `-- name: CountVersions :one
SELECT count(*) FROM versions WHERE collection = ? AND is_delete_marker = 0
`

func (q *Queries) CountVersions(ctx context.Context, collection string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countVersions, collection)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteVersion = `-- name: DeleteVersion :exec
DELETE FROM versions WHERE id = ?
`

func (q *Queries) DeleteVersion(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteVersion, id)
	return err
}

const deleteCollectionVersions = `-- name: DeleteCollectionVersions :exec
DELETE FROM versions WHERE collection = ?
`

func (q *Queries) DeleteCollectionVersions(ctx context.Context, collection string) error {
	_, err := q.db.ExecContext(ctx, deleteCollectionVersions, collection)
	return err
}

const createVersionMetadata = `-- name: CreateVersionMetadata :exec
INSERT INTO version_metadata (version_id, name, value) VALUES (?, ?, ?)
ON CONFLICT (version_id, name) DO UPDATE SET value = excluded.value
`

type CreateVersionMetadataParams struct {
	VersionID string
	Name      string
	Value     string
}

func (q *Queries) CreateVersionMetadata(ctx context.Context, arg CreateVersionMetadataParams) error {
	_, err := q.db.ExecContext(ctx, createVersionMetadata, arg.VersionID, arg.Name, arg.Value)
	return err
}

const listVersionMetadata = `-- name: ListVersionMetadata :many
SELECT version_id, name, value FROM version_metadata
WHERE version_id = ?
ORDER BY name
`

func (q *Queries) ListVersionMetadata(ctx context.Context, versionID string) ([]VersionMetadatum, error) {
	rows, err := q.db.QueryContext(ctx, listVersionMetadata, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VersionMetadatum
	for rows.Next() {
		var i VersionMetadatum
		if err := rows.Scan(&i.VersionID, &i.Name, &i.Value); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
