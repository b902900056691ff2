package db

import (
	"database/sql"
)

// Timestamps are stored as unix nanoseconds.

type Collection struct {
	Name          string
	Owner         string
	Versioning    bool
	AccessControl sql.NullString
	CreatedAt     int64
}

type Version struct {
	ID             string
	Collection     string
	Key            string
	Size           int64
	Digest         string
	ObjectKey      string
	IsDeleteMarker bool
	CreatedAt      int64
}

type VersionMetadatum struct {
	VersionID string
	Name      string
	Value     string
}

type Conjoined struct {
	ID          string
	Collection  string
	Key         string
	CreatedAt   int64
	AbortedAt   sql.NullInt64
	CompletedAt sql.NullInt64
	DeletedAt   sql.NullInt64
}

type ConjoinedPart struct {
	ConjoinedID string
	Part        int64
	Size        int64
	Digest      string
	ObjectKey   string
}
