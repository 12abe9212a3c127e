package media

import (
	"errors"
	"sync"
)

var (
	// ErrNoBuffer is returned by Acquire when every buffer in the group is
	// held by a caller.
	ErrNoBuffer = errors.New("media: no buffer available")

	// ErrGroupClosed is returned by Acquire after the group is closed.
	ErrGroupClosed = errors.New("media: buffer group closed")
)

// Buffer is a fixed-capacity byte region with a settable logical range and
// attached metadata. Buffers are obtained from a BufferGroup and must be
// returned with Release.
type Buffer struct {
	data   []byte
	offset int
	length int
	meta   MetaData
	group  *BufferGroup
	held   bool
}

// Data returns the whole backing region, ignoring the logical range.
func (b *Buffer) Data() []byte {
	return b.data
}

// Cap returns the capacity of the backing region.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// SetRange sets the logical extent to data[offset:offset+length]. It panics
// if the range does not fit the buffer.
func (b *Buffer) SetRange(offset, length int) {
	if offset < 0 || length < 0 || offset+length > len(b.data) {
		panic("media: buffer range out of bounds")
	}
	b.offset = offset
	b.length = length
}

// Range returns the logical extent.
func (b *Buffer) Range() (offset, length int) {
	return b.offset, b.length
}

// Bytes returns the bytes in the logical range.
func (b *Buffer) Bytes() []byte {
	return b.data[b.offset : b.offset+b.length]
}

// Meta returns the metadata attached to the buffer.
func (b *Buffer) Meta() *MetaData {
	return &b.meta
}

// Release hands the buffer back to its group. Releasing a buffer twice is a
// no-op.
func (b *Buffer) Release() {
	if b.group == nil {
		return
	}
	b.group.release(b)
}

// BufferGroup is a fixed set of reusable buffers.
type BufferGroup struct {
	mu     sync.Mutex
	free   []*Buffer
	all    []*Buffer
	closed bool
}

// NewBufferGroup returns an empty group. Buffers are added with Add.
func NewBufferGroup() *BufferGroup {
	return &BufferGroup{}
}

// Add allocates a buffer of the given capacity and places it in the group.
func (g *BufferGroup) Add(capacity int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := &Buffer{data: make([]byte, capacity), group: g}
	g.all = append(g.all, b)
	g.free = append(g.free, b)
}

// Acquire takes a free buffer out of the group. The returned buffer has an
// empty range and no metadata. Acquire never blocks.
func (g *BufferGroup) Acquire() (*Buffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrGroupClosed
	}
	if len(g.free) == 0 {
		return nil, ErrNoBuffer
	}

	b := g.free[len(g.free)-1]
	g.free = g.free[:len(g.free)-1]
	b.held = true
	b.offset, b.length = 0, 0
	b.meta.Clear()
	return b, nil
}

// Available returns the number of buffers that can currently be acquired.
func (g *BufferGroup) Available() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0
	}
	return len(g.free)
}

// Close drops every buffer. Buffers still held by callers stay valid for
// reading; their Release becomes a no-op.
func (g *BufferGroup) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, b := range g.all {
		b.group = nil
	}
	g.all = nil
	g.free = nil
	g.closed = true
}

func (g *BufferGroup) release(b *Buffer) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !b.held || g.closed {
		return
	}
	b.held = false
	g.free = append(g.free, b)
}
