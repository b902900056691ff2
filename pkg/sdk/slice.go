package sdk

import (
	"fmt"
	"net/http"
	"time"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/nimbus/pkg/httpclient"
)

const (
	headerRange             = "Range"
	headerIfModifiedSince   = "If-Modified-Since"
	headerIfUnmodifiedSince = "If-Unmodified-Since"
)

// Slice addresses a byte range of a key's content. An unset Offset means the
// start of the content and an unset Size means through the end.
type Slice struct {
	Offset null.Int64
	Size   null.Int64
}

// SliceOf is a convenience constructor for a fully specified slice.
func SliceOf(offset, size int64) Slice {
	return Slice{Offset: null.IntFrom(offset), Size: null.IntFrom(size)}
}

// SliceFrom addresses everything from offset to the end.
func SliceFrom(offset int64) Slice {
	return Slice{Offset: null.IntFrom(offset)}
}

func (s Slice) validate() error {
	if s.Offset.Valid && s.Offset.Int64 < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrInvalidSlice, s.Offset.Int64)
	}
	if s.Size.Valid && s.Size.Int64 < 0 {
		return fmt.Errorf("%w: negative size %d", ErrInvalidSlice, s.Size.Int64)
	}
	return nil
}

// Empty reports whether the slice explicitly asks for zero bytes.
func (s Slice) Empty() bool {
	return s.Size.Valid && s.Size.Int64 == 0
}

// Resume shifts the slice past written bytes that are already on the sink.
func (s Slice) Resume(written int64) (Slice, error) {
	if err := s.validate(); err != nil {
		return Slice{}, err
	}
	if written < 0 {
		return Slice{}, fmt.Errorf("%w: negative bytes written %d", ErrInvalidSlice, written)
	}

	resumed := Slice{Offset: null.IntFrom(s.Offset.ValueOrZero() + written)}
	if s.Size.Valid {
		if written >= s.Size.Int64 {
			return Slice{}, fmt.Errorf("%w: %d written, slice size %d", ErrResumeBeyondSlice, written, s.Size.Int64)
		}
		resumed.Size = null.IntFrom(s.Size.Int64 - written)
	}

	return resumed, nil
}

// RangeHeader renders the slice as an HTTP Range value. ok is false when the
// whole object is requested.
func (s Slice) RangeHeader() (value string, ok bool) {
	switch {
	case s.Size.Valid:
		offset := s.Offset.ValueOrZero()
		return fmt.Sprintf("bytes=%d-%d", offset, offset+s.Size.Int64-1), true
	case s.Offset.Valid:
		return fmt.Sprintf("bytes=%d-", s.Offset.Int64), true
	default:
		return "", false
	}
}

// ExpectedStatus is the only success status for a retrieval of this slice.
func (s Slice) ExpectedStatus() int {
	if _, ok := s.RangeHeader(); ok {
		return http.StatusPartialContent
	}
	return http.StatusOK
}

// Condition restricts a probe or retrieval by modification time. At most
// one of the two fields may be set.
type Condition struct {
	ModifiedSince   null.Time
	UnmodifiedSince null.Time
}

// ModifiedSince builds a condition satisfied when the key changed after t.
func ModifiedSince(t time.Time) Condition {
	return Condition{ModifiedSince: null.TimeFrom(t)}
}

// UnmodifiedSince builds a condition satisfied when the key did not change
// after t.
func UnmodifiedSince(t time.Time) Condition {
	return Condition{UnmodifiedSince: null.TimeFrom(t)}
}

func (c Condition) validate() error {
	if c.ModifiedSince.Valid && c.UnmodifiedSince.Valid {
		return ErrConflictingConditions
	}
	return nil
}

// IsSet reports whether either precondition is present.
func (c Condition) IsSet() bool {
	return c.ModifiedSince.Valid || c.UnmodifiedSince.Valid
}

func (c Condition) apply(header http.Header) {
	if c.ModifiedSince.Valid {
		header.Set(headerIfModifiedSince, FormatHTTPTime(c.ModifiedSince.Time))
	}
	if c.UnmodifiedSince.Valid {
		header.Set(headerIfUnmodifiedSince, FormatHTTPTime(c.UnmodifiedSince.Time))
	}
}

// outcomeOf maps a transport error to the outcome it stands for under this
// condition. ok is false for errors that are real failures.
func (c Condition) outcomeOf(err error) (Outcome, bool) {
	switch {
	case c.ModifiedSince.Valid && httpclient.HasStatus(err, http.StatusNotModified):
		return Unchanged, true
	case c.UnmodifiedSince.Valid && httpclient.HasStatus(err, http.StatusPreconditionFailed):
		return Changed, true
	default:
		return Retrieved, false
	}
}

// FormatHTTPTime renders t in the HTTP-date format the service expects.
func FormatHTTPTime(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// ParseHTTPTime parses an HTTP-date as sent by the service.
func ParseHTTPTime(value string) (time.Time, error) {
	return time.Parse(http.TimeFormat, value)
}
