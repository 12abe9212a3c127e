package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobStream     = "amr_probe_jobs"
	jobGroup      = "amr_probe_group"
	blacklistKey  = "amr_probe_blacklist"
	busyGroupText = "BUSYGROUP"
)

// ProbeJob asks a worker to probe one stored object.
type ProbeJob struct {
	ObjectKey  string
	EnqueuedAt time.Time

	// MessageID is the Redis stream entry the job was read from. It is empty
	// for jobs that have not been through a stream.
	MessageID string
}

func (j ProbeJob) LogAttrs() []any {
	return []any{
		slog.String("objectKey", j.ObjectKey),
		slog.String("enqueuedAt", j.EnqueuedAt.Format(time.RFC3339)),
		slog.String("messageID", j.MessageID),
	}
}

type JobHandler interface {
	HandleJobs(ctx context.Context, jobs ...ProbeJob) error
}

type PrintingJobHandler struct{}

func (h *PrintingJobHandler) HandleJobs(ctx context.Context, jobs ...ProbeJob) error {
	for _, job := range jobs {
		slog.InfoContext(ctx, "Handling probe job", job.LogAttrs()...)
	}
	return nil
}

// RedisJobHandler enqueues jobs on the probe stream.
type RedisJobHandler struct {
	client *redis.Client
}

func NewRedisJobHandler(client *redis.Client) (*RedisJobHandler, error) {
	if err := ensureGroup(context.Background(), client); err != nil {
		return nil, err
	}
	return &RedisJobHandler{client: client}, nil
}

func ensureGroup(ctx context.Context, client *redis.Client) error {
	err := client.XGroupCreateMkStream(ctx, jobStream, jobGroup, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) && !strings.HasPrefix(err.Error(), busyGroupText) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (h *RedisJobHandler) HandleJobs(ctx context.Context, jobs ...ProbeJob) error {
	_, err := h.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, job := range jobs {
			enqueuedAt := job.EnqueuedAt
			if enqueuedAt.IsZero() {
				enqueuedAt = time.Now()
			}
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: jobStream,
				Values: map[string]any{
					"objectKey":  job.ObjectKey,
					"enqueuedAt": enqueuedAt.UTC().Format(time.RFC3339Nano),
				},
			})
		}
		return nil
	})
	return err
}

var (
	_ JobHandler = (*PrintingJobHandler)(nil)
	_ JobHandler = (*RedisJobHandler)(nil)
)

// RedisJobReceiver reads jobs from the probe stream as one consumer of the
// worker group. Entries another consumer read but never acknowledged are
// taken over once they have been idle for claimIdle.
type RedisJobReceiver struct {
	client    *redis.Client
	consumer  string
	count     int64
	block     time.Duration
	claimIdle time.Duration
}

// NewRedisJobReceiver creates the group if needed. A zero claimIdle turns
// off reclaiming.
func NewRedisJobReceiver(client *redis.Client, consumer string, count int64, block, claimIdle time.Duration) (*RedisJobReceiver, error) {
	if err := ensureGroup(context.Background(), client); err != nil {
		return nil, err
	}
	return &RedisJobReceiver{
		client:    client,
		consumer:  consumer,
		count:     count,
		block:     block,
		claimIdle: claimIdle,
	}, nil
}

// ReceiveJobs returns stale pending jobs first. Otherwise it blocks up to
// the configured duration for new jobs and returns an empty slice when none
// arrive in time.
func (r *RedisJobReceiver) ReceiveJobs(ctx context.Context) ([]ProbeJob, error) {
	claimed, err := r.claimStale(ctx)
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		return r.toJobs(ctx, claimed)
	}

	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    jobGroup,
		Consumer: r.consumer,
		Streams:  []string{jobStream, ">"},
		Count:    r.count,
		Block:    r.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read probe jobs: %w", err)
	}

	var msgs []redis.XMessage
	for _, stream := range streams {
		msgs = append(msgs, stream.Messages...)
	}
	return r.toJobs(ctx, msgs)
}

func (r *RedisJobReceiver) claimStale(ctx context.Context) ([]redis.XMessage, error) {
	if r.claimIdle <= 0 {
		return nil, nil
	}
	msgs, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   jobStream,
		Group:    jobGroup,
		Consumer: r.consumer,
		MinIdle:  r.claimIdle,
		Start:    "0-0",
		Count:    r.count,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to claim stale probe jobs: %w", err)
	}
	if len(msgs) > 0 {
		slog.InfoContext(ctx, "claimed stale probe jobs",
			slog.String("consumer", r.consumer),
			slog.Int("count", len(msgs)),
		)
	}
	return msgs, nil
}

func (r *RedisJobReceiver) toJobs(ctx context.Context, msgs []redis.XMessage) ([]ProbeJob, error) {
	var jobs []ProbeJob
	for _, msg := range msgs {
		job, err := jobFromMessage(msg)
		if err != nil {
			slog.WarnContext(ctx, "dropping malformed probe job",
				slog.String("messageID", msg.ID),
				slog.Any("error", err),
			)
			if err := r.Ack(ctx, msg.ID); err != nil {
				return nil, err
			}
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Ack marks stream entries as processed.
func (r *RedisJobReceiver) Ack(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, jobStream, jobGroup, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to ack probe jobs: %w", err)
	}
	return nil
}

func jobFromMessage(msg redis.XMessage) (ProbeJob, error) {
	key, _ := msg.Values["objectKey"].(string)
	if key == "" {
		return ProbeJob{}, fmt.Errorf("message %s has no objectKey", msg.ID)
	}
	job := ProbeJob{ObjectKey: key, MessageID: msg.ID}
	if raw, ok := msg.Values["enqueuedAt"].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return ProbeJob{}, fmt.Errorf("message %s has invalid enqueuedAt: %w", msg.ID, err)
		}
		job.EnqueuedAt = t
	}
	return job, nil
}

type BlacklistAdder interface {
	AddToBlacklist(ctx context.Context, objectKey string) error
}

type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, objectKey string) (bool, error)
}

type Blacklist interface {
	BlacklistAdder
	BlacklistChecker
}

// RedisBlacklist keeps object keys known to hold malformed streams.
type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func (b *RedisBlacklist) AddToBlacklist(ctx context.Context, objectKey string) error {
	_, err := b.client.SAdd(ctx, blacklistKey, objectKey).Result()
	if err != nil {
		return fmt.Errorf("failed to add %s to blacklist: %w", objectKey, err)
	}
	return nil
}

func (b *RedisBlacklist) IsBlacklisted(ctx context.Context, objectKey string) (bool, error) {
	ok, err := b.client.SIsMember(ctx, blacklistKey, objectKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist for %s: %w", objectKey, err)
	}
	return ok, nil
}

type MemoryBlacklist struct {
	mu        sync.RWMutex
	blacklist map[string]struct{}
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{
		blacklist: make(map[string]struct{}),
	}
}

func (b *MemoryBlacklist) AddToBlacklist(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blacklist[objectKey] = struct{}{}
	return nil
}

func (b *MemoryBlacklist) IsBlacklisted(ctx context.Context, objectKey string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blacklist[objectKey]
	return ok, nil
}

var (
	_ Blacklist = (*RedisBlacklist)(nil)
	_ Blacklist = (*MemoryBlacklist)(nil)
)
