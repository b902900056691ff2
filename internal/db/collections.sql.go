package db

import (
	"context"
	"database/sql"
)

const createCollection = `-- name: CreateCollection :one
INSERT INTO collections (name, owner, versioning, access_control, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING name, owner, versioning, access_control, created_at
`

type CreateCollectionParams struct {
	Name          string
	Owner         string
	Versioning    bool
	AccessControl sql.NullString
	CreatedAt     int64
}

func (q *Queries) CreateCollection(ctx context.Context, arg CreateCollectionParams) (Collection, error) {
	row := q.db.QueryRowContext(ctx, createCollection,
		arg.Name,
		arg.Owner,
		arg.Versioning,
		arg.AccessControl,
		arg.CreatedAt,
	)
	var i Collection
	err := row.Scan(
		&i.Name,
		&i.Owner,
		&i.Versioning,
		&i.AccessControl,
		&i.CreatedAt,
	)
	return i, err
}

const getCollection = `-- name: GetCollection :one
SELECT name, owner, versioning, access_control, created_at FROM collections
WHERE name = ?
`

func (q *Queries) GetCollection(ctx context.Context, name string) (Collection, error) {
	row := q.db.QueryRowContext(ctx, getCollection, name)
	var i Collection
	err := row.Scan(
		&i.Name,
		&i.Owner,
		&i.Versioning,
		&i.AccessControl,
		&i.CreatedAt,
	)
	return i, err
}

const listCollections = `-- name: ListCollections :many
SELECT name, owner, versioning, access_control, created_at FROM collections
WHERE owner = ?
ORDER BY name
`

func (q *Queries) ListCollections(ctx context.Context, owner string) ([]Collection, error) {
	rows, err := q.db.QueryContext(ctx, listCollections, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Collection
	for rows.Next() {
		var i Collection
		if err := rows.Scan(
			&i.Name,
			&i.Owner,
			&i.Versioning,
			&i.AccessControl,
			&i.CreatedAt,
		); err != nil {
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

const updateCollection = `-- name: UpdateCollection :one
UPDATE collections
SET versioning = COALESCE(?, versioning),
    access_control = COALESCE(?, access_control)
WHERE name = ?
RETURNING name, owner, versioning, access_control, created_at
`

type UpdateCollectionParams struct {
	Name          string
	Versioning    *bool
	AccessControl *string
}

func (q *Queries) UpdateCollection(ctx context.Context, arg UpdateCollectionParams) (Collection, error) {
	row := q.db.QueryRowContext(ctx, updateCollection, arg.Versioning, arg.AccessControl, arg.Name)
	var i Collection
	err := row.Scan(
		&i.Name,
		&i.Owner,
		&i.Versioning,
		&i.AccessControl,
		&i.CreatedAt,
	)
	return i, err
}

const deleteCollection = `-- name: DeleteCollection :exec
DELETE FROM collections WHERE name = ?
`

func (q *Queries) DeleteCollection(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, deleteCollection, name)
	return err
}

const getCollectionUsage = `-- name: GetCollectionUsage :one
SELECT
    (SELECT count(DISTINCT v.key) FROM versions v
     WHERE v.collection = ?1 AND v.is_delete_marker = 0
       AND v.id = (SELECT max(w.id) FROM versions w WHERE w.collection = v.collection AND w.key = v.key)) AS key_count,
    (SELECT count(*) FROM versions WHERE collection = ?1 AND is_delete_marker = 0) AS version_count,
    (SELECT coalesce(sum(size), 0) FROM versions WHERE collection = ?1) AS bytes_stored,
    (SELECT count(*) FROM conjoined
     WHERE collection = ?1 AND aborted_at IS NULL AND completed_at IS NULL) AS uploads_active
`

type GetCollectionUsageRow struct {
	KeyCount      int64
	VersionCount  int64
	BytesStored   int64
	UploadsActive int64
}

func (q *Queries) GetCollectionUsage(ctx context.Context, collection string) (GetCollectionUsageRow, error) {
	row := q.db.QueryRowContext(ctx, getCollectionUsage, collection)
	var i GetCollectionUsageRow
	err := row.Scan(
		&i.KeyCount,
		&i.VersionCount,
		&i.BytesStored,
		&i.UploadsActive,
	)
	return i, err
}
