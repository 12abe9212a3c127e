package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glizzus/amrprobe/internal/config"
	"github.com/glizzus/amrprobe/internal/datalayer"
	"github.com/glizzus/amrprobe/internal/generator"
	"github.com/glizzus/amrprobe/internal/repository"
	"github.com/glizzus/amrprobe/internal/schedule"
	"github.com/glizzus/amrprobe/internal/worker"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

var dryRun = flag.Bool("dry-run", false, "Log probe results and rescanned keys instead of saving or enqueuing them")

type loggingPersister struct{}

func (loggingPersister) Save(ctx context.Context, track repository.Track) (string, error) {
	slog.InfoContext(ctx, "Dry run mode: track would be saved",
		slog.String("objectKey", track.ObjectKey),
		slog.String("kind", track.Kind),
		slog.Int("frames", track.FrameCount),
		slog.Int64("durationMs", track.DurationMs),
	)
	return track.ID, nil
}

func runWorkerForever(ctx context.Context) error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	workerConfig, err := config.NewWorkerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load worker config: %w", err)
	}
	slog.SetLogLoggerLevel(workerConfig.Level())

	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	storage, err := datalayer.NewMinioStorageFromEnv()
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	var tracks repository.TrackPersister = loggingPersister{}
	if !*dryRun {
		pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
		if err != nil {
			return fmt.Errorf("failed to create postgres pool: %w", err)
		}
		defer pool.Close()
		if err := datalayer.MigratePostgres(pool); err != nil {
			return fmt.Errorf("failed to migrate postgres: %w", err)
		}
		tracks = repository.NewPostgresTrackRepository(pool)
	}

	consumer := workerConfig.Consumer
	if consumer == "" {
		consumer, err = os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
	}

	jobReceiver, err := worker.NewRedisJobReceiver(rdb, consumer, workerConfig.BatchSize, workerConfig.Block, workerConfig.ClaimIdle)
	if err != nil {
		return err
	}
	var jobHandler worker.JobHandler = &worker.PrintingJobHandler{}
	if !*dryRun {
		jobHandler, err = worker.NewRedisJobHandler(rdb)
		if err != nil {
			return err
		}
	}

	processor := &worker.Processor{
		Source:    storage,
		Tracks:    tracks,
		Blacklist: worker.NewRedisBlacklist(rdb),
		IDs:       &generator.UUIDV4Generator{},
		MaxFrames: workerConfig.MaxFrames,
	}

	slog.Info("Starting worker",
		slog.String("consumer", consumer),
		slog.String("bucket", storage.Bucket()),
		slog.String("prefix", storage.Prefix()),
		slog.Bool("dryRun", *dryRun),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			jobs, err := jobReceiver.ReceiveJobs(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to receive jobs: %w", err)
			}

			for _, job := range jobs {
				outcome, err := processor.Handle(ctx, job)
				if err != nil {
					attrs := append(job.LogAttrs(), slog.Any("error", err))
					slog.Error("failed to process probe job", attrs...)
					// Unacknowledged entries are reclaimed after ClaimIdle.
					continue
				}
				slog.Debug("processed probe job", append(job.LogAttrs(), slog.String("outcome", outcome.String()))...)
				if err := jobReceiver.Ack(ctx, job.MessageID); err != nil {
					return err
				}
			}
		}
	})

	if workerConfig.ScanCron != "" {
		next, err := schedule.NextRunTimes(workerConfig.ScanCron, 3)
		if err != nil {
			return fmt.Errorf("failed to compute rescan times: %w", err)
		}
		upcoming := make([]string, len(next))
		for i, t := range next {
			upcoming[i] = t.Format(time.RFC3339)
		}
		slog.Info("Scheduled bucket rescans",
			slog.String("cron", workerConfig.ScanCron),
			slog.Any("next", upcoming),
		)

		g.Go(func() error {
			err := schedule.RunOnCron(ctx, workerConfig.ScanCron, func(ctx context.Context) {
				n, err := worker.Scan(ctx, storage, jobHandler, storage.Prefix())
				if err != nil {
					slog.Error("failed to rescan bucket", slog.Any("error", err))
					return
				}
				slog.Info("Rescanned bucket", slog.Int("enqueued", n))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runWorkerForever(ctx); err != nil {
		slog.Error("Worker encountered an error", slog.Any("error", err))
		os.Exit(1)
	}
}
