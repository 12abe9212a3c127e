package amr_test

import (
	"bytes"
	"io"

	"github.com/glizzus/amrprobe/internal/amr"
)

// buildStream returns a storage-format stream of the given kind holding one
// frame per entry in types. Payload bytes are filled with the frame index so
// frames can be told apart.
func buildStream(kind amr.Kind, types ...uint8) []byte {
	var b bytes.Buffer
	b.WriteString(kind.Magic())
	for i, ft := range types {
		size, ok := amr.FrameSize(kind, ft)
		if !ok {
			panic("buildStream: invalid frame type")
		}
		b.WriteByte(ft<<3 | 0x04)
		b.Write(bytes.Repeat([]byte{byte(i + 1)}, size-1))
	}
	return b.Bytes()
}

// recordingReader wraps a ReaderAt and remembers the offset of every read.
type recordingReader struct {
	r       io.ReaderAt
	offsets []int64
}

func (r *recordingReader) ReadAt(p []byte, off int64) (int, error) {
	r.offsets = append(r.offsets, off)
	return r.r.ReadAt(p, off)
}

// failingReader fails every read.
type failingReader struct {
	err error
}

func (r failingReader) ReadAt(p []byte, off int64) (int, error) {
	return 0, r.err
}
