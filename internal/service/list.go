package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/beanbocchi/nimbus/internal/db"
	"github.com/beanbocchi/nimbus/internal/model"
)

type ListKeysParams struct {
	Owner      string `validate:"required"`
	Collection string `validate:"required"`
	model.PaginationParams
}

// Listing is one page of a key or version listing. Rollup listings carry
// Prefixes, flat ones carry Versions.
type Listing struct {
	Versions  []db.Version
	Prefixes  []string
	Rollup    bool
	Truncated bool
}

func (s *Service) limit(p *model.PaginationParams) int32 {
	return min(p.GetLimit(), s.maxKeys)
}

// ListKeys lists the newest live version of every key after the marker.
func (s *Service) ListKeys(ctx context.Context, params ListKeysParams) (Listing, error) {
	if _, err := s.Collection(ctx, params.Owner, params.Collection); err != nil {
		return Listing{}, err
	}
	limit := s.limit(&params.PaginationParams)

	query := db.ListLatestVersionsParams{
		Collection: params.Collection,
		Prefix:     params.Prefix.ValueOrZero(),
		Marker:     params.Marker.ValueOrZero(),
		Limit:      int64(limit) + 1,
	}
	if params.Rollup() {
		query.Limit = -1
	}

	versions, err := s.storage.ListLatestVersions(ctx, query)
	if err != nil {
		return Listing{}, fmt.Errorf("list keys: %w", err)
	}
	return page(versions, params.PaginationParams, limit), nil
}

type ListVersionsParams struct {
	Owner      string `validate:"required"`
	Collection string `validate:"required"`
	// Marker is the key marker; VersionIDMarker narrows it to the versions
	// of that key older than the given one.
	model.PaginationParams
	VersionIDMarker string
}

// ListVersions lists every live version, newest first within a key.
func (s *Service) ListVersions(ctx context.Context, params ListVersionsParams) (Listing, error) {
	if _, err := s.Collection(ctx, params.Owner, params.Collection); err != nil {
		return Listing{}, err
	}
	limit := s.limit(&params.PaginationParams)

	query := db.ListVersionsParams{
		Collection:      params.Collection,
		Prefix:          params.Prefix.ValueOrZero(),
		KeyMarker:       params.Marker.ValueOrZero(),
		VersionIDMarker: params.VersionIDMarker,
		Limit:           int64(limit) + 1,
	}
	if params.Rollup() {
		query.Limit = -1
	}

	versions, err := s.storage.ListVersions(ctx, query)
	if err != nil {
		return Listing{}, fmt.Errorf("list versions: %w", err)
	}
	return page(versions, params.PaginationParams, limit), nil
}

func page(versions []db.Version, params model.PaginationParams, limit int32) Listing {
	if !params.Rollup() {
		result := model.Paginate(versions, limit)
		return Listing{Versions: result.Data, Truncated: result.Truncated}
	}

	names := make([]string, 0, len(versions))
	for _, v := range versions {
		names = append(names, v.Key)
	}
	result := model.Paginate(Rollup(names, params.Prefix.ValueOrZero(), params.Delimiter.String), limit)
	return Listing{Prefixes: result.Data, Rollup: true, Truncated: result.Truncated}
}

// Rollup collapses names into their common prefixes: everything up to and
// including the first delimiter after prefix. A name with no delimiter past
// the prefix is kept whole. The result is sorted and distinct.
func Rollup(names []string, prefix, delimiter string) []string {
	prefixes := make([]string, 0, len(names))
	for _, name := range names {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		if i := strings.Index(rest, delimiter); i >= 0 {
			name = prefix + rest[:i+len(delimiter)]
		}
		prefixes = append(prefixes, name)
	}
	slices.Sort(prefixes)
	return slices.Compact(prefixes)
}
