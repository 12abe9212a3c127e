package amr

import "errors"

var (
	// ErrIO is returned when the source yields fewer bytes than a frame
	// needs. End of stream is reported the same way.
	ErrIO = errors.New("amr: i/o error")

	// ErrMalformed is returned when a frame header breaks the format. The
	// stream cannot be read past that point.
	ErrMalformed = errors.New("amr: malformed frame")
)
