package sdk

import (
	"errors"
	"fmt"
)

// ErrPrecondition is wrapped by every error raised before a request is sent.
var ErrPrecondition = errors.New("precondition violated")

var (
	ErrNoBucket              = fmt.Errorf("%w: no bucket", ErrPrecondition)
	ErrNoName                = fmt.Errorf("%w: no name", ErrPrecondition)
	ErrConflictingConditions = fmt.Errorf("%w: cannot specify both modified since and unmodified since", ErrPrecondition)
	ErrInvalidSlice          = fmt.Errorf("%w: invalid slice", ErrPrecondition)
	ErrResumeBeyondSlice     = fmt.Errorf("%w: bytes already written reach the end of the slice", ErrPrecondition)
	ErrInvalidListParams     = fmt.Errorf("%w: invalid listing parameters", ErrPrecondition)
	ErrInvalidPartNumber     = fmt.Errorf("%w: part numbers start at 1", ErrPrecondition)
	ErrNotSeekable           = fmt.Errorf("%w: resumable retrieval needs a seekable sink", ErrPrecondition)
)

// ErrUnexpectedListing means a listing body had neither keys nor prefixes.
var ErrUnexpectedListing = errors.New("unexpected listing response")

// ErrStalledListing means a truncated page did not move the marker forward.
var ErrStalledListing = errors.New("truncated listing did not advance")

// Outcome is the result of a retrieval that may carry a time precondition.
type Outcome int

const (
	// Retrieved means the content was transferred.
	Retrieved Outcome = iota
	// Unchanged means the key was not modified after the modified-since time.
	Unchanged
	// Changed means the key was modified after the unmodified-since time.
	Changed
)

func (o Outcome) String() string {
	switch o {
	case Retrieved:
		return "retrieved"
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}
