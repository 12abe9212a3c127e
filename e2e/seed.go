package e2e

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glizzus/amrprobe/internal/amr"
	"github.com/glizzus/amrprobe/internal/datalayer"
	"github.com/glizzus/amrprobe/internal/generator"
	"github.com/glizzus/amrprobe/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var seedOnce sync.Once

// Stream builds a storage-format AMR stream with one zero-payload frame per
// entry in types.
func Stream(kind amr.Kind, types ...uint8) []byte {
	var b bytes.Buffer
	b.WriteString(kind.Magic())
	for _, ft := range types {
		size, ok := amr.FrameSize(kind, ft)
		if !ok {
			panic(fmt.Sprintf("invalid frame type %d for %s", ft, kind))
		}
		b.WriteByte(ft << 3)
		b.Write(make([]byte, size-1))
	}
	return b.Bytes()
}

// SeedGlobalNoise fills the track table with unrelated rows once per run.
func SeedGlobalNoise(t *testing.T, repo *repository.PostgresTrackRepository) {
	t.Helper()
	seedOnce.Do(func() {
		uuidGen := generator.UUIDV4Generator{}
		for i := range 100 {
			id, _ := uuidGen.Next()

			track := repository.Track{
				ID:           id,
				ObjectKey:    fmt.Sprintf("noise/%03d.amr", i),
				Kind:         amr.NarrowBand.String(),
				MIMEType:     amr.MIMETypeNB,
				SampleRate:   8000,
				ChannelCount: 1,
				FrameCount:   i,
				ByteCount:    int64(i) * 32,
				DurationMs:   int64(i) * 20,
				EndOffset:    6 + int64(i)*32,
				FrameTypes:   map[uint8]int{7: i},
			}

			if _, err := repo.Save(t.Context(), track); err != nil {
				t.Fatalf("failed to save Track: %v", err)
			}
		}
	})
}

var (
	once              sync.Once
	postgresContainer *postgres.PostgresContainer
	connStr           string
	startErr          error
	pool              *pgxpool.Pool
	wg                sync.WaitGroup
)

// UsePostgres signals that the test is using Postgres as its database.
// This will either provision or reuse a Postgres container for the test.
// Do not expect a clean state in the database; it is shared across tests
// to simulate real-world usage.
func UsePostgres(t *testing.T) string {
	t.Helper()

	once.Do(func() {
		ctx := context.Background()
		postgresContainer, startErr = postgres.Run(
			ctx,
			"postgres",
			postgres.WithDatabase("amrprobe"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if startErr != nil {
			return
		}
		connStr, startErr = postgresContainer.ConnectionString(ctx)
		if startErr != nil {
			return
		}

		pool, startErr = pgxpool.New(ctx, connStr)
		if startErr != nil {
			return
		}
		defer pool.Close()

		startErr = datalayer.MigratePostgres(pool)
	})

	if startErr != nil {
		t.Fatalf("failed to start postgres container: %v", startErr)
	}
	wg.Add(1)
	t.Cleanup(wg.Done)

	return connStr
}

// GetRepository creates a new PostgresTrackRepository for testing.
// It uses the provided connection string to connect to the database.
// It performs no modifications or migrations on the database schema.
func GetRepository(t *testing.T, connStr string) *repository.PostgresTrackRepository {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}

	t.Cleanup(pool.Close)
	return repository.NewPostgresTrackRepository(pool)
}

func TerminatePostgresForE2E() {
	wg.Wait()
	if postgresContainer != nil {
		err := postgresContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate postgres container: %v", err)
		}
	}
}

var (
	redisOnce      sync.Once
	redisContainer *tcredis.RedisContainer
	redisURL       string
	redisErr       error
	redisWG        sync.WaitGroup
)

// UseRedis provisions or reuses a Redis container and returns a client
// connected to it. Like UsePostgres, state is shared across tests.
func UseRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisOnce.Do(func() {
		ctx := context.Background()
		redisContainer, redisErr = tcredis.Run(ctx, "redis:7")
		if redisErr != nil {
			return
		}
		redisURL, redisErr = redisContainer.ConnectionString(ctx)
	})

	if redisErr != nil {
		t.Fatalf("failed to start redis container: %v", redisErr)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("failed to parse redis URL %s: %v", redisURL, err)
	}
	client := redis.NewClient(opts)

	redisWG.Add(1)
	t.Cleanup(func() {
		_ = client.Close()
		redisWG.Done()
	})
	return client
}

func TerminateRedisForE2E() {
	redisWG.Wait()
	if redisContainer != nil {
		err := redisContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate redis container: %v", err)
		}
	}
}
