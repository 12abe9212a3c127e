package amr

import (
	"fmt"
	"io"
	"time"

	"github.com/glizzus/amrprobe/internal/media"
)

const (
	// bufferSize fits the largest frame: 61 bytes for WB type 8.
	bufferSize = 128

	// Reserved header bits: the leading padding bit and the two trailing
	// padding bits.
	headerReservedMask = 0x83

	timeScale = 1000
)

// FrameSource is the capability exposed by a track: a startable, forward
// only sequence of frames.
type FrameSource interface {
	Start() error
	Stop() error
	Read() (*Frame, error)
	Format() Format
}

// Frame is one AMR frame, header byte included, held in a pooled buffer.
// Call Release once the bytes are no longer needed; the reader cannot
// produce another frame until then.
type Frame struct {
	buf    *media.Buffer
	offset int64
	timeUs int64
}

// Bytes returns the frame, header byte first. The slice is only valid until
// Release.
func (f *Frame) Bytes() []byte {
	return f.buf.Bytes()
}

// Offset is the position of the frame header in the source.
func (f *Frame) Offset() int64 {
	return f.offset
}

// Type returns the frame-type field of the header.
func (f *Frame) Type() uint8 {
	return (f.buf.Bytes()[0] >> 3) & 0x0F
}

// Meta returns the buffer metadata carrying media.KeyTimeUnits and
// media.KeyTimeScale.
func (f *Frame) Meta() *media.MetaData {
	return f.buf.Meta()
}

// TimeUnits is the presentation time in units of TimeScale.
func (f *Frame) TimeUnits() int32 {
	v, _ := f.buf.Meta().Int32(media.KeyTimeUnits)
	return v
}

func (f *Frame) TimeScale() int32 {
	v, _ := f.buf.Meta().Int32(media.KeyTimeScale)
	return v
}

// Timestamp is the presentation time of the frame.
func (f *Frame) Timestamp() time.Duration {
	return time.Duration(f.timeUs) * time.Microsecond
}

// Release returns the frame's buffer to the reader's pool.
func (f *Frame) Release() {
	f.buf.Release()
}

// FrameReader reads frames from a single AMR track. It is not safe for
// concurrent use.
//
// Calling Read or Stop on a reader that is not started, or Start on one that
// is, panics.
type FrameReader struct {
	src  io.ReaderAt
	kind Kind

	offset  int64
	timeUs  int64
	started bool
	group   *media.BufferGroup
}

// NewFrameReader returns a reader over src, which must hold a stream of the
// given kind starting at offset 0.
func NewFrameReader(src io.ReaderAt, kind Kind) *FrameReader {
	return &FrameReader{
		src:    src,
		kind:   kind,
		offset: kind.DataOffset(),
	}
}

var _ FrameSource = (*FrameReader)(nil)
var _ io.Closer = (*FrameReader)(nil)

func (r *FrameReader) Kind() Kind {
	return r.kind
}

// Format returns the track format.
func (r *FrameReader) Format() Format {
	return DescribeFormat(r.kind)
}

// Offset returns the position of the next frame header.
func (r *FrameReader) Offset() int64 {
	return r.offset
}

// Elapsed returns the presentation time of the next frame.
func (r *FrameReader) Elapsed() time.Duration {
	return time.Duration(r.timeUs) * time.Microsecond
}

func (r *FrameReader) Started() bool {
	return r.started
}

// Start rewinds the reader to the first frame and allocates its buffer.
func (r *FrameReader) Start() error {
	if r.started {
		panic("amr: Start called on a started FrameReader")
	}

	r.offset = r.kind.DataOffset()
	r.timeUs = 0
	r.group = media.NewBufferGroup()
	r.group.Add(bufferSize)
	r.started = true
	return nil
}

// Stop releases the reader's buffer. Frames not yet released stay readable.
func (r *FrameReader) Stop() error {
	if !r.started {
		panic("amr: Stop called on a FrameReader that is not started")
	}

	r.group.Close()
	r.group = nil
	r.started = false
	return nil
}

// Close stops the reader if it is started.
func (r *FrameReader) Close() error {
	if !r.started {
		return nil
	}
	return r.Stop()
}

// Read returns the next frame. It returns an error wrapping ErrIO at the end
// of the stream or on a short read, and one wrapping ErrMalformed when the
// frame header is invalid. Errors from the buffer pool are returned as is.
func (r *FrameReader) Read() (*Frame, error) {
	if !r.started {
		panic("amr: Read called on a FrameReader that is not started")
	}

	var header [1]byte
	if n, err := r.src.ReadAt(header[:], r.offset); n < 1 {
		return nil, readError(r.offset, err)
	}

	buf, err := r.group.Acquire()
	if err != nil {
		return nil, err
	}
	keep := false
	defer func() {
		if !keep {
			buf.Release()
		}
	}()

	if header[0]&headerReservedMask != 0 {
		return nil, fmt.Errorf("%w at offset %d: padding bits must be 0 (header 0x%02x)", ErrMalformed, r.offset, header[0])
	}

	ft := (header[0] >> 3) & 0x0F
	size, ok := FrameSize(r.kind, ft)
	if !ok {
		return nil, fmt.Errorf("%w at offset %d: frame type %d out of range for %s", ErrMalformed, r.offset, ft, r.kind)
	}

	n, err := r.src.ReadAt(buf.Data()[:size], r.offset)
	if n != size {
		return nil, readError(r.offset, err)
	}

	buf.SetRange(0, size)
	buf.Meta().SetInt32(media.KeyTimeUnits, int32((r.timeUs+500)/1000))
	buf.Meta().SetInt32(media.KeyTimeScale, timeScale)

	frame := &Frame{buf: buf, offset: r.offset, timeUs: r.timeUs}
	r.offset += int64(size)
	r.timeUs += FrameDurationUs

	keep = true
	return frame, nil
}

func readError(offset int64, cause error) error {
	if cause == nil {
		cause = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w at offset %d: %w", ErrIO, offset, cause)
}
