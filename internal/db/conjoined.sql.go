package db

import (
	"context"
)

const conjoinedColumns = `id, collection, key, created_at, aborted_at, completed_at, deleted_at`

func scanConjoined(row interface{ Scan(...any) error }) (Conjoined, error) {
	var i Conjoined
	err := row.Scan(
		&i.ID,
		&i.Collection,
		&i.Key,
		&i.CreatedAt,
		&i.AbortedAt,
		&i.CompletedAt,
		&i.DeletedAt,
	)
	return i, err
}

const createConjoined = `-- name: CreateConjoined :one
INSERT INTO conjoined (id, collection, key, created_at)
VALUES (?, ?, ?, ?)
RETURNING ` + conjoinedColumns

type CreateConjoinedParams struct {
	ID         string
	Collection string
	Key        string
	CreatedAt  int64
}

func (q *Queries) CreateConjoined(ctx context.Context, arg CreateConjoinedParams) (Conjoined, error) {
	row := q.db.QueryRowContext(ctx, createConjoined, arg.ID, arg.Collection, arg.Key, arg.CreatedAt)
	return scanConjoined(row)
}

const getConjoined = `-- name: GetConjoined :one
SELECT ` + conjoinedColumns + ` FROM conjoined
WHERE collection = ? AND id = ?
`

type GetConjoinedParams struct {
	Collection string
	ID         string
}

func (q *Queries) GetConjoined(ctx context.Context, arg GetConjoinedParams) (Conjoined, error) {
	row := q.db.QueryRowContext(ctx, getConjoined, arg.Collection, arg.ID)
	return scanConjoined(row)
}

const listActiveConjoined = `-- name: ListActiveConjoined :many
SELECT ` + conjoinedColumns + ` FROM conjoined
WHERE collection = ?
  AND aborted_at IS NULL
  AND completed_at IS NULL
  AND (key > ? OR (key = ? AND ? <> '' AND id > ?))
ORDER BY key, id
LIMIT ?
`

type ListActiveConjoinedParams struct {
	Collection string
	KeyMarker  string
	IDMarker   string
	Limit      int64
}

func (q *Queries) ListActiveConjoined(ctx context.Context, arg ListActiveConjoinedParams) ([]Conjoined, error) {
	rows, err := q.db.QueryContext(ctx, listActiveConjoined,
		arg.Collection,
		arg.KeyMarker,
		arg.KeyMarker,
		arg.IDMarker,
		arg.IDMarker,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Conjoined
	for rows.Next() {
		i, err := scanConjoined(rows)
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

const updateConjoined = `-- name: UpdateConjoined :one
UPDATE conjoined
SET aborted_at = COALESCE(?, aborted_at),
    completed_at = COALESCE(?, completed_at),
    deleted_at = COALESCE(?, deleted_at)
WHERE id = ?
RETURNING ` + conjoinedColumns

type UpdateConjoinedParams struct {
	ID          string
	AbortedAt   *int64
	CompletedAt *int64
	DeletedAt   *int64
}

func (q *Queries) UpdateConjoined(ctx context.Context, arg UpdateConjoinedParams) (Conjoined, error) {
	row := q.db.QueryRowContext(ctx, updateConjoined, arg.AbortedAt, arg.CompletedAt, arg.DeletedAt, arg.ID)
	return scanConjoined(row)
}

const deleteCollectionConjoined = `-- name: DeleteCollectionConjoined :exec
DELETE FROM conjoined WHERE collection = ?
`

func (q *Queries) DeleteCollectionConjoined(ctx context.Context, collection string) error {
	_, err := q.db.ExecContext(ctx, deleteCollectionConjoined, collection)
	return err
}

const upsertConjoinedPart = `-- name: UpsertConjoinedPart :exec
INSERT INTO conjoined_parts (conjoined_id, part, size, digest, object_key)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (conjoined_id, part) DO UPDATE
SET size = excluded.size, digest = excluded.digest, object_key = excluded.object_key
`

type UpsertConjoinedPartParams struct {
	ConjoinedID string
	Part        int64
	Size        int64
	Digest      string
	ObjectKey   string
}

func (q *Queries) UpsertConjoinedPart(ctx context.Context, arg UpsertConjoinedPartParams) error {
	_, err := q.db.ExecContext(ctx, upsertConjoinedPart,
		arg.ConjoinedID,
		arg.Part,
		arg.Size,
		arg.Digest,
		arg.ObjectKey,
	)
	return err
}

const listConjoinedParts = `-- name: ListConjoinedParts :many
SELECT conjoined_id, part, size, digest, object_key FROM conjoined_parts
WHERE conjoined_id = ?
ORDER BY part
`

func (q *Queries) ListConjoinedParts(ctx context.Context, conjoinedID string) ([]ConjoinedPart, error) {
	rows, err := q.db.QueryContext(ctx, listConjoinedParts, conjoinedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ConjoinedPart
	for rows.Next() {
		var i ConjoinedPart
		if err := rows.Scan(
			&i.ConjoinedID,
			&i.Part,
			&i.Size,
			&i.Digest,
			&i.ObjectKey,
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

const deleteConjoinedParts = `-- name: DeleteConjoinedParts :exec
DELETE FROM conjoined_parts WHERE conjoined_id = ?
`

func (q *Queries) DeleteConjoinedParts(ctx context.Context, conjoinedID string) error {
	_, err := q.db.ExecContext(ctx, deleteConjoinedParts, conjoinedID)
	return err
}
