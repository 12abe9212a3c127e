package config

import (
	"context"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

type MinioConfig struct {
	Endpoint string `env:"MINIO_ENDPOINT, required"`
	Username string `env:"MINIO_USERNAME, required"`
	Password string `env:"MINIO_PASSWORD, required"`
	Bucket   string `env:"MINIO_BUCKET, default=amrprobe"`
	Secure   bool   `env:"MINIO_SECURE, default=false"`

	// Prefix is the key prefix under which AMR uploads are stored and
	// scanned.
	Prefix string `env:"MINIO_PREFIX, default=amr"`
}

func NewMinioConfigFromEnv() (*MinioConfig, error) {
	return newMinioConfig(context.Background(), nil)
}

func newMinioConfig(ctx context.Context, lookuper envconfig.Lookuper) (*MinioConfig, error) {
	var cfg MinioConfig
	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &cfg, nil
}

// ObjectKey joins name onto the configured prefix.
func (c *MinioConfig) ObjectKey(name string) string {
	if c.Prefix == "" {
		return name
	}
	return c.Prefix + "/" + strings.TrimLeft(name, "/")
}
