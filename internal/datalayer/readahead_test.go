package datalayer_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/glizzus/amrprobe/internal/amr"
	"github.com/glizzus/amrprobe/internal/config"
	"github.com/glizzus/amrprobe/internal/datalayer"
	"github.com/google/go-cmp/cmp"
)

// countingReaderAt records every read that reaches the source.
type countingReaderAt struct {
	r       io.ReaderAt
	offsets []int64
	failAt  int // 1-based call that fails; 0 never fails
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	c.offsets = append(c.offsets, off)
	if c.failAt == len(c.offsets) {
		return 0, errors.New("connection reset")
	}
	return c.r.ReadAt(p, off)
}

func amrStream(frames int) []byte {
	var b bytes.Buffer
	b.WriteString(amr.NarrowBand.Magic())
	for range frames {
		// Type 7 frames are 32 bytes including the header.
		b.WriteByte(7 << 3)
		b.Write(make([]byte, 31))
	}
	return b.Bytes()
}

func TestReadAheadFrameWalkUsesOneSourceRead(t *testing.T) {
	data := amrStream(10)
	src := &countingReaderAt{r: bytes.NewReader(data)}
	ra := datalayer.NewReadAheadReaderAt(src, 4096)

	track, ok := amr.NewExtractor(ra).Track(0)
	if !ok {
		t.Fatal("expected an AMR track")
	}
	if err := track.Start(); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	defer track.Close()

	frames := 0
	for {
		frame, err := track.Read()
		if err != nil {
			if !errors.Is(err, amr.ErrIO) || !errors.Is(err, io.EOF) {
				t.Fatalf("Read() error = %v, want ErrIO wrapping io.EOF", err)
			}
			break
		}
		frames++
		frame.Release()
	}

	if frames != 10 {
		t.Errorf("read %d frames, want 10", frames)
	}
	if diff := cmp.Diff([]int64{0}, src.offsets); diff != "" {
		t.Errorf("source reads mismatch (-want +got):\n%s", diff)
	}
}

func TestReadAheadReaderAt(t *testing.T) {
	data := []byte("0123456789abcdefghij")

	t.Run("refills outside the window", func(t *testing.T) {
		src := &countingReaderAt{r: bytes.NewReader(data)}
		ra := datalayer.NewReadAheadReaderAt(src, 8)

		buf := make([]byte, 4)
		for _, off := range []int64{0, 4, 10, 14} {
			if _, err := ra.ReadAt(buf, off); err != nil {
				t.Fatalf("ReadAt(%d) returned error: %v", off, err)
			}
			if want := string(data[off : off+4]); string(buf) != want {
				t.Errorf("ReadAt(%d) = %q, want %q", off, buf, want)
			}
		}
		if diff := cmp.Diff([]int64{0, 10}, src.offsets); diff != "" {
			t.Errorf("source reads mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("short read at the end", func(t *testing.T) {
		src := &countingReaderAt{r: bytes.NewReader(data)}
		ra := datalayer.NewReadAheadReaderAt(src, 8)

		buf := make([]byte, 6)
		n, err := ra.ReadAt(buf, 16)
		if n != 4 || !errors.Is(err, io.EOF) {
			t.Fatalf("ReadAt(16) = (%d, %v), want (4, io.EOF)", n, err)
		}
		if string(buf[:n]) != "ghij" {
			t.Errorf("ReadAt(16) = %q, want %q", buf[:n], "ghij")
		}

		n, err = ra.ReadAt(buf[:1], 20)
		if n != 0 || !errors.Is(err, io.EOF) {
			t.Errorf("ReadAt(20) = (%d, %v), want (0, io.EOF)", n, err)
		}
		if len(src.offsets) != 1 {
			t.Errorf("expected the end of the source to be served from the window, got reads at %v", src.offsets)
		}
	})

	t.Run("large reads bypass the window", func(t *testing.T) {
		src := &countingReaderAt{r: bytes.NewReader(data)}
		ra := datalayer.NewReadAheadReaderAt(src, 4)

		buf := make([]byte, 10)
		if _, err := ra.ReadAt(buf, 2); err != nil {
			t.Fatalf("ReadAt returned error: %v", err)
		}
		if string(buf) != "23456789ab" {
			t.Errorf("ReadAt = %q", buf)
		}
	})

	t.Run("source errors are retried", func(t *testing.T) {
		src := &countingReaderAt{r: bytes.NewReader(data), failAt: 1}
		ra := datalayer.NewReadAheadReaderAt(src, 8)

		buf := make([]byte, 2)
		if _, err := ra.ReadAt(buf, 0); err == nil || errors.Is(err, io.EOF) {
			t.Fatalf("ReadAt() error = %v, want the source error", err)
		}
		if _, err := ra.ReadAt(buf, 0); err != nil {
			t.Fatalf("second ReadAt() returned error: %v", err)
		}
		if string(buf) != "01" {
			t.Errorf("ReadAt = %q, want %q", buf, "01")
		}
	})
}

func TestMinioStorageObjectKey(t *testing.T) {
	s, err := datalayer.NewMinioStorage(&config.MinioConfig{
		Endpoint: "localhost:9000",
		Username: "minio",
		Password: "minio123",
		Bucket:   "amrprobe",
		Prefix:   "uploads",
	})
	if err != nil {
		t.Fatalf("NewMinioStorage() returned error: %v", err)
	}
	if s.Bucket() != "amrprobe" || s.Prefix() != "uploads" {
		t.Errorf("Bucket(), Prefix() = %q, %q", s.Bucket(), s.Prefix())
	}
	if got := s.ObjectKey("/call.amr"); got != "uploads/call.amr" {
		t.Errorf("ObjectKey() = %q, want %q", got, "uploads/call.amr")
	}
}
