// Package probe walks an AMR stream from start to end and summarises it.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/glizzus/amrprobe/internal/amr"
	"github.com/glizzus/amrprobe/internal/observe"
)

// ErrNotAMR is returned when the source does not start with an AMR magic.
var ErrNotAMR = errors.New("source is not an AMR stream")

// Error reports a probe failure for a named object.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var _ error = (*Error)(nil)

// Options tunes a probe. The zero value is usable.
type Options struct {
	Logger  *slog.Logger
	Metrics *observe.Metrics

	// Visit, if set, is called with every frame before it is released.
	// Returning an error stops the probe with that error.
	Visit func(*amr.Frame) error

	// MaxFrames stops the probe after this many frames when positive.
	MaxFrames int
}

// Result summarises a stream.
type Result struct {
	Kind     amr.Kind
	Format   amr.Format
	Frames   int
	Bytes    int64
	Duration time.Duration

	// FrameTypes counts frames per frame-type code.
	FrameTypes map[uint8]int

	// EndOffset is where reading stopped.
	EndOffset int64

	// Malformed is set when reading stopped on an invalid frame header at
	// EndOffset.
	Malformed bool

	// Trailing is set when bytes remain at EndOffset that do not form a
	// complete frame.
	Trailing bool
}

// Probe reads every frame of src. Reaching the end of the source, including
// a partial trailing frame, is not an error; neither is a malformed frame,
// which is reported in the Result. Source failures other than end of file
// are returned.
func Probe(ctx context.Context, src io.ReaderAt, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	met := opts.Metrics
	if met == nil {
		met = observe.DefaultMetrics()
	}

	begin := time.Now()
	res, err := probe(ctx, src, opts, log)

	status, kind := "ok", res.Kind.String()
	switch {
	case errors.Is(err, ErrNotAMR):
		status, kind = "not_amr", "none"
	case err != nil:
		status = "error"
	case res.Malformed:
		status = "malformed"
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	)
	met.Probes.Add(ctx, 1, attrs)
	met.ProbeDuration.Record(ctx, time.Since(begin).Seconds(), attrs)
	if res.Frames > 0 {
		kindAttr := metric.WithAttributes(attribute.String("kind", kind))
		met.Frames.Add(ctx, int64(res.Frames), kindAttr)
		met.FrameBytes.Add(ctx, res.Bytes, kindAttr)
	}

	return res, err
}

func probe(ctx context.Context, src io.ReaderAt, opts Options, log *slog.Logger) (Result, error) {
	extractor := amr.NewExtractor(src)
	kind, ok := extractor.Kind()
	if !ok {
		return Result{}, ErrNotAMR
	}
	track, _ := extractor.Track(0)

	res := Result{
		Kind:       kind,
		Format:     track.Format(),
		FrameTypes: make(map[uint8]int),
	}

	if err := track.Start(); err != nil {
		return res, fmt.Errorf("failed to start track: %w", err)
	}
	defer func() {
		if err := track.Stop(); err != nil {
			log.Warn("failed to stop track", slog.Any("error", err))
		}
	}()

	for opts.MaxFrames <= 0 || res.Frames < opts.MaxFrames {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		frame, err := track.Read()
		if err != nil {
			res.EndOffset = track.Offset()
			res.Duration = track.Elapsed()
			switch {
			case errors.Is(err, amr.ErrMalformed):
				res.Malformed = true
				log.Warn("stopped on malformed frame",
					slog.String("kind", res.Kind.String()),
					slog.Int64("offset", res.EndOffset),
					slog.Any("error", err),
				)
				return res, nil
			case errors.Is(err, amr.ErrIO) && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)):
				res.Trailing = hasByteAt(src, res.EndOffset)
				return res, nil
			default:
				return res, fmt.Errorf("failed to read frame at offset %d: %w", res.EndOffset, err)
			}
		}

		res.Frames++
		res.Bytes += int64(len(frame.Bytes()))
		res.FrameTypes[frame.Type()]++

		if opts.Visit != nil {
			if err := opts.Visit(frame); err != nil {
				frame.Release()
				res.EndOffset = track.Offset()
				res.Duration = track.Elapsed()
				return res, err
			}
		}
		frame.Release()
	}

	res.EndOffset = track.Offset()
	res.Duration = track.Elapsed()
	return res, nil
}

func hasByteAt(src io.ReaderAt, offset int64) bool {
	var b [1]byte
	n, _ := src.ReadAt(b[:], offset)
	return n == 1
}
