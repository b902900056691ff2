package model

import (
	"github.com/guregu/null/v6"
)

const (
	DefaultMaxKeys = 1000
	MaxMaxKeys     = 1000
)

// PaginationParams represents the marker-based pagination parameters shared
// by every listing on the service.
type PaginationParams struct {
	Prefix    null.String `query:"prefix"`
	Delimiter null.String `query:"delimiter"`
	Marker    null.String `query:"marker"`
	MaxKeys   int32       `query:"max_keys" validate:"omitempty,gt=0,lte=1000"`
}

func (p *PaginationParams) GetLimit() int32 {
	if p.MaxKeys <= 0 {
		p.MaxKeys = DefaultMaxKeys // default limit
	}
	if p.MaxKeys > MaxMaxKeys {
		p.MaxKeys = MaxMaxKeys
	}
	return p.MaxKeys
}

// Rollup reports whether the listing collapses names into common prefixes.
func (p *PaginationParams) Rollup() bool {
	return p.Delimiter.Valid && p.Delimiter.String != ""
}

// PaginateResult represents one page of a marker-paginated result set
type PaginateResult[T any] struct {
	Data      []T
	Truncated bool
}

// Paginate trims rows fetched with limit+1 to limit and reports whether the
// extra row was present.
func Paginate[T any](rows []T, limit int32) PaginateResult[T] {
	if limit > 0 && int32(len(rows)) > limit {
		return PaginateResult[T]{Data: rows[:limit], Truncated: true}
	}
	return PaginateResult[T]{Data: rows}
}
