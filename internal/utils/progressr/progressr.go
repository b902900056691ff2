package progressr

import (
	"io"
	"sync/atomic"
)

// Func receives the bytes transferred so far and the expected total. A
// total of zero means the size is unknown.
type Func func(done, total int64)

// Tracker counts transferred bytes and forwards every change to a Func.
type Tracker struct {
	total   int64
	current atomic.Int64
	notify  Func
}

func NewTracker(total int64, notify Func) *Tracker {
	return &Tracker{total: total, notify: notify}
}

// Start fires the initial zero-progress notification.
func (t *Tracker) Start() {
	t.fire(0)
}

func (t *Tracker) Add(n int) {
	if n <= 0 {
		return
	}
	t.fire(t.current.Add(int64(n)))
}

// Finish fires the final notification. An unknown total becomes the byte
// count actually seen.
func (t *Tracker) Finish() {
	done := t.current.Load()
	if t.total <= 0 {
		t.total = done
	}
	t.fire(done)
}

func (t *Tracker) Current() int64 {
	return t.current.Load()
}

func (t *Tracker) Progress() float64 {
	if t.total <= 0 {
		return 0
	}
	return float64(t.current.Load()) / float64(t.total)
}

func (t *Tracker) fire(done int64) {
	if t.notify != nil {
		t.notify(done, t.total)
	}
}

// Reader reports every chunk read from the wrapped reader.
type Reader struct {
	io.Reader
	*Tracker
}

func NewReader(reader io.Reader, total int64, notify Func) *Reader {
	return &Reader{
		Reader:  reader,
		Tracker: NewTracker(total, notify),
	}
}

func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.Reader.Read(b)
	p.Add(n)
	return n, err
}
