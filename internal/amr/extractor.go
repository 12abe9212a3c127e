package amr

import "io"

// Extractor exposes the single audio track of an AMR stream. A source that
// does not sniff as AMR yields an extractor with no tracks.
type Extractor struct {
	src  io.ReaderAt
	kind Kind
	ok   bool
}

// NewExtractor sniffs src once and remembers the result.
func NewExtractor(src io.ReaderAt) *Extractor {
	kind, _, ok := Sniff(src)
	return &Extractor{src: src, kind: kind, ok: ok}
}

// Kind returns the sniffed stream kind. ok is false if src is not AMR.
func (e *Extractor) Kind() (kind Kind, ok bool) {
	return e.kind, e.ok
}

// CountTracks returns 1 for an AMR stream and 0 otherwise.
func (e *Extractor) CountTracks() int {
	if !e.ok {
		return 0
	}
	return 1
}

// Track returns a new, unstarted reader for track index.
func (e *Extractor) Track(index int) (*FrameReader, bool) {
	if !e.ok || index != 0 {
		return nil, false
	}
	return NewFrameReader(e.src, e.kind), true
}

// TrackFormat returns the format of track index.
func (e *Extractor) TrackFormat(index int) (Format, bool) {
	if !e.ok || index != 0 {
		return Format{}, false
	}
	return DescribeFormat(e.kind), true
}
