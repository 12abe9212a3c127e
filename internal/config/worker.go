package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glizzus/amrprobe/internal/schedule"
	"github.com/sethvargo/go-envconfig"
)

type WorkerConfig struct {
	// Consumer names this worker in the Redis consumer group. Defaults to
	// the hostname.
	Consumer string `env:"WORKER_CONSUMER"`

	// ScanCron schedules listing the bucket and enqueuing every object.
	// Empty disables rescans.
	ScanCron string `env:"WORKER_SCAN_CRON, default=@hourly"`

	BatchSize int64         `env:"WORKER_BATCH_SIZE, default=16"`
	Block     time.Duration `env:"WORKER_BLOCK, default=5s"`

	// ClaimIdle is how long a job may sit unacknowledged with another
	// consumer before this one takes it over. 0 disables reclaiming.
	ClaimIdle time.Duration `env:"WORKER_CLAIM_IDLE, default=1m"`

	// MaxFrames caps how many frames one probe reads; 0 reads everything.
	MaxFrames int `env:"WORKER_MAX_FRAMES, default=0"`

	LogLevel string `env:"LOG_LEVEL, default=info"`
}

func NewWorkerConfigFromEnv() (*WorkerConfig, error) {
	return newWorkerConfig(context.Background(), nil)
}

func newWorkerConfig(ctx context.Context, lookuper envconfig.Lookuper) (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}
	if cfg.ScanCron != "" {
		if err := schedule.ValidateCron(cfg.ScanCron); err != nil {
			return nil, fmt.Errorf("invalid WORKER_SCAN_CRON: %w", err)
		}
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	return &cfg, nil
}

// Level parses LogLevel, falling back to info.
func (c *WorkerConfig) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
