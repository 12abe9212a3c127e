package media_test

import (
	"errors"
	"testing"

	"github.com/glizzus/amrprobe/internal/media"
)

func TestBufferGroupAcquireRelease(t *testing.T) {
	g := media.NewBufferGroup()
	g.Add(128)

	b, err := g.Acquire()
	if err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}
	if b.Cap() != 128 {
		t.Errorf("Cap() = %d, want 128", b.Cap())
	}

	if _, err := g.Acquire(); !errors.Is(err, media.ErrNoBuffer) {
		t.Errorf("second Acquire() error = %v, want %v", err, media.ErrNoBuffer)
	}

	b.Release()
	if g.Available() != 1 {
		t.Errorf("Available() = %d after release, want 1", g.Available())
	}

	// A second release must not put the buffer in the free list twice.
	b.Release()
	if g.Available() != 1 {
		t.Errorf("Available() = %d after double release, want 1", g.Available())
	}
}

func TestBufferAcquireResetsState(t *testing.T) {
	g := media.NewBufferGroup()
	g.Add(16)

	b, err := g.Acquire()
	if err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}
	b.SetRange(2, 4)
	b.Meta().SetInt32(media.KeyTimeUnits, 40)
	b.Release()

	b, err = g.Acquire()
	if err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}
	if off, n := b.Range(); off != 0 || n != 0 {
		t.Errorf("Range() = (%d, %d), want (0, 0)", off, n)
	}
	if b.Meta().Len() != 0 {
		t.Errorf("Meta().Len() = %d, want 0", b.Meta().Len())
	}
}

func TestBufferSetRange(t *testing.T) {
	g := media.NewBufferGroup()
	g.Add(8)
	b, _ := g.Acquire()

	copy(b.Data(), []byte{0, 1, 2, 3, 4, 5, 6, 7})
	b.SetRange(3, 2)
	if got := b.Bytes(); len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("Bytes() = %v, want [3 4]", got)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("SetRange past capacity did not panic")
		}
	}()
	b.SetRange(4, 5)
}

func TestBufferGroupClose(t *testing.T) {
	g := media.NewBufferGroup()
	g.Add(8)

	b, _ := g.Acquire()
	g.Close()

	if _, err := g.Acquire(); !errors.Is(err, media.ErrGroupClosed) {
		t.Errorf("Acquire() after Close error = %v, want %v", err, media.ErrGroupClosed)
	}
	// Releasing a buffer that outlived its group is harmless.
	b.Release()
	if g.Available() != 0 {
		t.Errorf("Available() = %d after Close, want 0", g.Available())
	}
}
