package sdk

import (
	"context"
	"errors"
	"iter"
	"log/slog"
)

// Done is returned by ResultSet.Next once every entry has been yielded.
var Done = errors.New("no more entries")

// Marker is the continuation cursor passed to the service on each page.
// Secondary carries the version id or upload id for listings that need a
// compound marker.
type Marker struct {
	Name      string
	Secondary string
}

type pageFunc[T any] func(ctx context.Context, marker Marker) (*TruncatableList[T], error)

// ResultSet lazily walks a paginated listing. Pages are fetched on demand
// and every entry is yielded exactly once, in service order. A ResultSet is
// single use and not safe for concurrent callers.
type ResultSet[T any] struct {
	fetch   pageFunc[T]
	advance func(last T) Marker
	// rollup listings are served in one response and never continued.
	rollup bool
	log    *slog.Logger

	marker Marker
	page   []T
	pos    int
	pages  int
	done   bool
	err    error
}

func newResultSet[T any](fetch pageFunc[T], advance func(T) Marker, start Marker, rollup bool, log *slog.Logger) *ResultSet[T] {
	return &ResultSet[T]{
		fetch:   fetch,
		advance: advance,
		rollup:  rollup,
		log:     log,
		marker:  start,
	}
}

// Next returns the next entry, fetching a new page when the current one is
// exhausted. It returns Done at the end; any other error ends the walk and
// is returned again on later calls.
func (rs *ResultSet[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for rs.pos >= len(rs.page) {
		if rs.err != nil {
			return zero, rs.err
		}
		if rs.done {
			return zero, Done
		}
		if err := rs.fetchPage(ctx); err != nil {
			rs.err, rs.page = err, nil
			return zero, err
		}
	}

	entry := rs.page[rs.pos]
	rs.pos++
	return entry, nil
}

func (rs *ResultSet[T]) fetchPage(ctx context.Context) error {
	page, err := rs.fetch(ctx, rs.marker)
	if err != nil {
		return err
	}
	rs.pages++
	rs.page, rs.pos = page.Entries, 0

	last, ok := page.Last()
	switch {
	case !ok, rs.rollup, !page.Truncated:
		rs.done = true
	default:
		next := rs.advance(last)
		if next == rs.marker {
			return ErrStalledListing
		}
		rs.marker = next
	}

	rs.log.Debug("fetched listing page",
		"page", rs.pages,
		"entries", len(page.Entries),
		"truncated", page.Truncated,
		"done", rs.done,
	)
	return nil
}

// All adapts the result set to a range-over-func iterator. Iteration stops
// after the first error is yielded.
func (rs *ResultSet[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			entry, err := rs.Next(ctx)
			if errors.Is(err, Done) {
				return
			}
			if !yield(entry, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the remaining entries into a slice.
func (rs *ResultSet[T]) Collect(ctx context.Context) ([]T, error) {
	var entries []T
	for entry, err := range rs.All(ctx) {
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Pages reports how many pages have been fetched so far.
func (rs *ResultSet[T]) Pages() int {
	return rs.pages
}
