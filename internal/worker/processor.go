package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/glizzus/amrprobe/internal/datalayer"
	"github.com/glizzus/amrprobe/internal/generator"
	"github.com/glizzus/amrprobe/internal/observe"
	"github.com/glizzus/amrprobe/internal/probe"
	"github.com/glizzus/amrprobe/internal/repository"
)

// Outcome describes what Handle did with a job.
type Outcome int

const (
	OutcomeSaved Outcome = iota
	OutcomeSkipped
	OutcomeNotAMR
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNotAMR:
		return "not_amr"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Processor probes stored objects and records the results.
type Processor struct {
	Source    datalayer.BlobSource
	Tracks    repository.TrackPersister
	Blacklist Blacklist
	IDs       generator.Generator[string]
	Metrics   *observe.Metrics
	Logger    *slog.Logger

	// MaxFrames is passed through to probe.Options.
	MaxFrames int
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Handle probes the job's object. Blacklisted keys are skipped. Objects that
// are not AMR are left unrecorded; malformed streams are recorded and then
// blacklisted so they are not probed again.
func (p *Processor) Handle(ctx context.Context, job ProbeJob) (Outcome, error) {
	log := p.logger().With(job.LogAttrs()...)

	blacklisted, err := p.Blacklist.IsBlacklisted(ctx, job.ObjectKey)
	if err != nil {
		return 0, &probe.Error{Key: job.ObjectKey, Err: err}
	}
	if blacklisted {
		log.InfoContext(ctx, "skipping blacklisted object")
		return OutcomeSkipped, nil
	}

	blob, err := p.Source.Open(ctx, job.ObjectKey)
	if err != nil {
		return 0, &probe.Error{Key: job.ObjectKey, Err: err}
	}
	defer func() {
		if err := blob.Close(); err != nil {
			log.WarnContext(ctx, "failed to close object", slog.Any("error", err))
		}
	}()

	src := datalayer.NewReadAheadReaderAt(blob, datalayer.DefaultReadAhead)
	res, err := probe.Probe(ctx, src, probe.Options{
		Logger:    log,
		Metrics:   p.Metrics,
		MaxFrames: p.MaxFrames,
	})
	if err != nil {
		if errors.Is(err, probe.ErrNotAMR) {
			log.InfoContext(ctx, "object is not an AMR stream")
			return OutcomeNotAMR, nil
		}
		return 0, &probe.Error{Key: job.ObjectKey, Err: err}
	}

	id, err := p.IDs.Next()
	if err != nil {
		return 0, &probe.Error{Key: job.ObjectKey, Err: fmt.Errorf("failed to generate track ID: %w", err)}
	}

	track := TrackFromResult(id, job.ObjectKey, res)
	if _, err := p.Tracks.Save(ctx, track); err != nil {
		return 0, &probe.Error{Key: job.ObjectKey, Err: err}
	}

	log.InfoContext(ctx, "probed object",
		slog.String("kind", track.Kind),
		slog.Int("frames", track.FrameCount),
		slog.Int64("durationMs", track.DurationMs),
		slog.Bool("malformed", track.Malformed),
		slog.Bool("trailing", track.Trailing),
	)

	if res.Malformed {
		if err := p.Blacklist.AddToBlacklist(ctx, job.ObjectKey); err != nil {
			return OutcomeSaved, &probe.Error{Key: job.ObjectKey, Err: err}
		}
	}
	return OutcomeSaved, nil
}

// TrackFromResult converts a probe result into its stored form.
func TrackFromResult(id, objectKey string, res probe.Result) repository.Track {
	return repository.Track{
		ID:           id,
		ObjectKey:    objectKey,
		Kind:         res.Kind.String(),
		MIMEType:     res.Format.MIMEType,
		SampleRate:   res.Format.SampleRate,
		ChannelCount: res.Format.ChannelCount,
		FrameCount:   res.Frames,
		ByteCount:    res.Bytes,
		DurationMs:   res.Duration.Milliseconds(),
		EndOffset:    res.EndOffset,
		Malformed:    res.Malformed,
		Trailing:     res.Trailing,
		FrameTypes:   res.FrameTypes,
	}
}

// Scan enqueues a probe job for every object under prefix and returns how
// many were enqueued.
func Scan(ctx context.Context, source datalayer.BlobSource, jobs JobHandler, prefix string) (int, error) {
	keys, err := source.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	batch := make([]ProbeJob, len(keys))
	for i, key := range keys {
		batch[i] = ProbeJob{ObjectKey: key}
	}
	if err := jobs.HandleJobs(ctx, batch...); err != nil {
		return 0, fmt.Errorf("failed to enqueue probe jobs: %w", err)
	}
	return len(keys), nil
}
