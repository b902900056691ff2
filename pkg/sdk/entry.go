package sdk

// ListEntry is one item of a key or version listing: either a *Key or a
// *Prefix. Listings with a delimiter yield only prefixes.
type ListEntry interface {
	Name() string
	isListEntry()
}

// Prefix is a rolled-up group of key names sharing a common prefix.
type Prefix struct {
	bucket *Bucket
	name   string
}

func (p *Prefix) Name() string    { return p.name }
func (p *Prefix) Bucket() *Bucket { return p.bucket }
func (p *Prefix) String() string  { return "Prefix(" + p.name + ")" }
func (*Prefix) isListEntry()      {}

func (*Key) isListEntry() {}

// TruncatableList is one page of a listing. Truncated reports that the
// service holds more entries past the last one.
type TruncatableList[T any] struct {
	Entries   []T
	Truncated bool
}

func (l *TruncatableList[T]) Len() int {
	return len(l.Entries)
}

// Last returns the final entry of the page.
func (l *TruncatableList[T]) Last() (T, bool) {
	if len(l.Entries) == 0 {
		var zero T
		return zero, false
	}
	return l.Entries[len(l.Entries)-1], true
}
