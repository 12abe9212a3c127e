package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTrackNotFound = errors.New("track not found")

// Track is the stored probe result for one object.
type Track struct {
	ID           string
	ObjectKey    string
	Kind         string
	MIMEType     string
	SampleRate   int32
	ChannelCount int32
	FrameCount   int
	ByteCount    int64
	DurationMs   int64
	EndOffset    int64
	Malformed    bool
	Trailing     bool
	ProbedAt     time.Time

	// FrameTypes counts frames per frame-type code. It is only populated
	// by Get.
	FrameTypes map[uint8]int
}

type TrackPersister interface {
	Save(ctx context.Context, track Track) (string, error)
}

type TrackRepository interface {
	TrackPersister
	Get(ctx context.Context, objectKey string) (Track, error)
	List(ctx context.Context) ([]Track, error)
}

type PostgresTrackRepository struct {
	db *pgxpool.Pool
}

func NewPostgresTrackRepository(db *pgxpool.Pool) *PostgresTrackRepository {
	return &PostgresTrackRepository{db: db}
}

var _ TrackRepository = (*PostgresTrackRepository)(nil)

func TrackToRowParams(track Track) []any {
	return []any{
		track.ID,
		track.ObjectKey,
		track.Kind,
		track.MIMEType,
		track.SampleRate,
		track.ChannelCount,
		track.FrameCount,
		track.ByteCount,
		track.DurationMs,
		track.EndOffset,
		track.Malformed,
		track.Trailing,
	}
}

// Save upserts the track by object key and replaces its frame-type counts.
// It returns the stored ID, which is the existing one when the object was
// probed before.
func (r *PostgresTrackRepository) Save(ctx context.Context, track Track) (string, error) {
	const trackQuery = `
	INSERT INTO amr_track (
		id, object_key, kind, mime_type, sample_rate, channel_count,
		frame_count, byte_count, duration_ms, end_offset, malformed, trailing
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (object_key) DO UPDATE SET
		kind = EXCLUDED.kind,
		mime_type = EXCLUDED.mime_type,
		sample_rate = EXCLUDED.sample_rate,
		channel_count = EXCLUDED.channel_count,
		frame_count = EXCLUDED.frame_count,
		byte_count = EXCLUDED.byte_count,
		duration_ms = EXCLUDED.duration_ms,
		end_offset = EXCLUDED.end_offset,
		malformed = EXCLUDED.malformed,
		trailing = EXCLUDED.trailing,
		probed_at = now()
	RETURNING id
	`

	const clearFrameTypesQuery = `DELETE FROM amr_track_frame_type WHERE track_id = $1`

	const frameTypesQuery = `
	INSERT INTO amr_track_frame_type (track_id, frame_type, frame_count)
	SELECT $1::uuid, unnest($2::smallint[]), unnest($3::integer[])
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Warn("failed to rollback transaction", slog.Any("error", err))
		}
	}()

	var id string
	if err := tx.QueryRow(ctx, trackQuery, TrackToRowParams(track)...).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to execute track query: %w", err)
	}

	if _, err := tx.Exec(ctx, clearFrameTypesQuery, id); err != nil {
		return "", fmt.Errorf("failed to clear frame types: %w", err)
	}

	if len(track.FrameTypes) > 0 {
		types := make([]int16, 0, len(track.FrameTypes))
		counts := make([]int32, 0, len(track.FrameTypes))
		for ft, n := range track.FrameTypes {
			types = append(types, int16(ft))
			counts = append(counts, int32(n))
		}
		if _, err := tx.Exec(ctx, frameTypesQuery, id, types, counts); err != nil {
			return "", fmt.Errorf("failed to execute frame types query: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

const selectTrackColumns = `
	SELECT id, object_key, kind, mime_type, sample_rate, channel_count,
		frame_count, byte_count, duration_ms, end_offset, malformed, trailing, probed_at
	FROM amr_track
`

func scanTrack(row pgx.Row) (Track, error) {
	var t Track
	err := row.Scan(
		&t.ID,
		&t.ObjectKey,
		&t.Kind,
		&t.MIMEType,
		&t.SampleRate,
		&t.ChannelCount,
		&t.FrameCount,
		&t.ByteCount,
		&t.DurationMs,
		&t.EndOffset,
		&t.Malformed,
		&t.Trailing,
		&t.ProbedAt,
	)
	return t, err
}

func (r *PostgresTrackRepository) Get(ctx context.Context, objectKey string) (Track, error) {
	track, err := scanTrack(r.db.QueryRow(ctx, selectTrackColumns+`WHERE object_key = $1`, objectKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, objectKey)
		}
		return Track{}, fmt.Errorf("failed to query track: %w", err)
	}

	rows, err := r.db.Query(ctx, `
	SELECT frame_type, frame_count FROM amr_track_frame_type WHERE track_id = $1
	`, track.ID)
	if err != nil {
		return Track{}, fmt.Errorf("failed to query frame types: %w", err)
	}
	defer rows.Close()

	track.FrameTypes = make(map[uint8]int)
	for rows.Next() {
		var ft int16
		var n int32
		if err := rows.Scan(&ft, &n); err != nil {
			return Track{}, fmt.Errorf("failed to scan frame type: %w", err)
		}
		track.FrameTypes[uint8(ft)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return Track{}, fmt.Errorf("failed to read frame types: %w", err)
	}

	return track, nil
}

func (r *PostgresTrackRepository) List(ctx context.Context) ([]Track, error) {
	rows, err := r.db.Query(ctx, selectTrackColumns+`ORDER BY probed_at DESC, object_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tracks: %w", err)
	}
	return tracks, nil
}
