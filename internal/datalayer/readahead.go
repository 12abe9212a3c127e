package datalayer

import (
	"errors"
	"io"
	"sync"
)

// DefaultReadAhead is the window size used when NewReadAheadReaderAt is
// given a non-positive size.
const DefaultReadAhead = 64 << 10

// ReadAheadReaderAt serves small reads from a window filled by one large
// ReadAt on the underlying source. A read that falls outside the window
// refills it starting at the read offset. Reads larger than the window go
// straight to the source.
type ReadAheadReaderAt struct {
	src io.ReaderAt

	mu      sync.Mutex
	window  []byte
	start   int64
	n       int
	fillErr error
	filled  bool
}

func NewReadAheadReaderAt(src io.ReaderAt, size int) *ReadAheadReaderAt {
	if size <= 0 {
		size = DefaultReadAhead
	}
	return &ReadAheadReaderAt{src: src, window: make([]byte, size)}
}

var _ io.ReaderAt = (*ReadAheadReaderAt)(nil)

func (r *ReadAheadReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("datalayer: negative offset")
	}
	if len(p) > len(r.window) {
		return r.src.ReadAt(p, off)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.covers(off, len(p)) {
		r.fill(off)
	}

	var c int
	if off >= r.start && off < r.start+int64(r.n) {
		c = copy(p, r.window[off-r.start:r.n])
	}
	if c < len(p) {
		if r.fillErr != nil {
			return c, r.fillErr
		}
		return c, io.EOF
	}
	return c, nil
}

// covers reports whether the window can answer a read of n bytes at off:
// either it holds all of them, or it stops at the end of the source and off
// falls inside it. Other fill errors are retried on the next read.
func (r *ReadAheadReaderAt) covers(off int64, n int) bool {
	if !r.filled || off < r.start {
		return false
	}
	end := r.start + int64(r.n)
	if off+int64(n) <= end {
		return true
	}
	return errors.Is(r.fillErr, io.EOF) && off <= end
}

func (r *ReadAheadReaderAt) fill(off int64) {
	n, err := r.src.ReadAt(r.window, off)
	if n == len(r.window) {
		err = nil
	}
	r.start, r.n, r.fillErr, r.filled = off, n, err, true
}
