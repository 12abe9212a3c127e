package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"sort"
	"text/tabwriter"

	"github.com/glizzus/amrprobe/internal/amr"
	"github.com/glizzus/amrprobe/internal/config"
	"github.com/glizzus/amrprobe/internal/datalayer"
	"github.com/glizzus/amrprobe/internal/probe"
	"github.com/glizzus/amrprobe/internal/repository"
	"github.com/glizzus/amrprobe/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

func openFile(c *cli.Context) (*os.File, error) {
	name := c.Args().First()
	if name == "" {
		return nil, cli.Exit("Please provide a file to read", 1)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, cli.Exit("Failed to open file: "+err.Error(), 1)
	}
	return f, nil
}

func openRepository(ctx context.Context) (*repository.PostgresTrackRepository, *pgxpool.Pool, error) {
	pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := datalayer.MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	return repository.NewPostgresTrackRepository(pool), pool, nil
}

func printTrack(c *cli.Context, track repository.Track) {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", track.ID)
	fmt.Fprintf(w, "object\t%s\n", track.ObjectKey)
	fmt.Fprintf(w, "kind\t%s (%s, %d Hz, %d ch)\n", track.Kind, track.MIMEType, track.SampleRate, track.ChannelCount)
	fmt.Fprintf(w, "frames\t%d (%d bytes)\n", track.FrameCount, track.ByteCount)
	fmt.Fprintf(w, "duration\t%d ms\n", track.DurationMs)
	fmt.Fprintf(w, "end offset\t%d\n", track.EndOffset)
	fmt.Fprintf(w, "malformed\t%t\n", track.Malformed)
	fmt.Fprintf(w, "trailing\t%t\n", track.Trailing)
	fmt.Fprintf(w, "probed at\t%s\n", track.ProbedAt.Format("2006-01-02 15:04:05"))
	printFrameTypes(w, track.FrameTypes)
	w.Flush()
}

func printFrameTypes(w *tabwriter.Writer, types map[uint8]int) {
	fts := make([]int, 0, len(types))
	for ft := range types {
		fts = append(fts, int(ft))
	}
	sort.Ints(fts)
	for _, ft := range fts {
		fmt.Fprintf(w, "  FT %d\t%d\n", ft, types[uint8(ft)])
	}
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	app := &cli.App{
		Name:        "amrprobe",
		Usage:       "Inspect AMR streams",
		Description: "A development CLI for sniffing, walking and probing AMR files, locally or through the worker",
		Commands: []*cli.Command{
			{
				Name:      "sniff",
				Usage:     "Report whether a file is AMR-NB or AMR-WB",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					f, err := openFile(c)
					if err != nil {
						return err
					}
					defer f.Close()

					kind, confidence, ok := amr.Sniff(f)
					if !ok {
						return cli.Exit("not an AMR stream", 2)
					}
					format := amr.DescribeFormat(kind)
					fmt.Fprintf(c.App.Writer, "%s %s %d Hz (confidence %.1f)\n",
						kind, format.MIMEType, format.SampleRate, confidence)
					return nil
				},
			},
			{
				Name:      "frames",
				Usage:     "List every frame of a file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Stop after this many frames; 0 lists all",
					},
				},
				Action: func(c *cli.Context) error {
					f, err := openFile(c)
					if err != nil {
						return err
					}
					defer f.Close()

					w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "#\toffset\tft\tsize\ttime")
					n := 0
					res, err := probe.Probe(c.Context, f, probe.Options{
						MaxFrames: c.Int("limit"),
						Visit: func(frame *amr.Frame) error {
							n++
							_, err := fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\n",
								n, frame.Offset(), frame.Type(), len(frame.Bytes()), frame.Timestamp())
							return err
						},
					})
					w.Flush()
					if err != nil {
						return cli.Exit("Failed to read frames: "+err.Error(), 1)
					}
					if res.Malformed {
						fmt.Fprintf(c.App.ErrWriter, "stopped on malformed frame at offset %d\n", res.EndOffset)
					}
					return nil
				},
			},
			{
				Name:      "probe",
				Usage:     "Summarise a file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					f, err := openFile(c)
					if err != nil {
						return err
					}
					defer f.Close()

					res, err := probe.Probe(c.Context, f, probe.Options{})
					if err != nil {
						return cli.Exit("Failed to probe file: "+err.Error(), 1)
					}
					printTrack(c, worker.TrackFromResult("-", f.Name(), res))
					return nil
				},
			},
			{
				Name:      "upload",
				Usage:     "Upload a file to object storage and queue it for probing",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Object name under the configured prefix; defaults to the file's base name",
					},
					&cli.BoolFlag{
						Name:  "no-enqueue",
						Usage: "Upload without queueing a probe job",
					},
				},
				Action: func(c *cli.Context) error {
					f, err := openFile(c)
					if err != nil {
						return err
					}
					defer f.Close()

					info, err := f.Stat()
					if err != nil {
						return cli.Exit("Failed to stat file: "+err.Error(), 1)
					}

					contentType := "application/octet-stream"
					if kind, _, ok := amr.Sniff(f); ok {
						contentType = kind.MIMEType()
					}

					storage, err := datalayer.NewMinioStorageFromEnv()
					if err != nil {
						return cli.Exit("Failed to create minio client: "+err.Error(), 1)
					}
					if err := storage.EnsureBucket(c.Context); err != nil {
						return cli.Exit("Failed to create bucket: "+err.Error(), 1)
					}

					name := c.String("name")
					if name == "" {
						name = path.Base(f.Name())
					}
					key := storage.ObjectKey(name)
					if err := storage.Put(c.Context, key, f, datalayer.PutOptions{
						Size:        info.Size(),
						ContentType: contentType,
					}); err != nil {
						return cli.Exit("Failed to upload file: "+err.Error(), 1)
					}
					log.Printf("Uploaded %s (%s)", key, contentType)

					if c.Bool("no-enqueue") {
						return nil
					}

					redisConfig, err := config.NewRedisConfigFromEnv()
					if err != nil {
						return cli.Exit("Failed to load redis config: "+err.Error(), 1)
					}
					rdb := redis.NewClient(&redis.Options{
						Addr:     redisConfig.Addr,
						Password: redisConfig.Password,
						DB:       redisConfig.DB,
					})
					defer rdb.Close()

					jobs, err := worker.NewRedisJobHandler(rdb)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					if err := jobs.HandleJobs(c.Context, worker.ProbeJob{ObjectKey: key}); err != nil {
						return cli.Exit("Failed to enqueue probe job: "+err.Error(), 1)
					}
					log.Printf("Queued %s for probing", key)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List probed tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Only list tracks of this kind (AMR-NB, AMR-WB or their MIME type)",
					},
				},
				Action: func(c *cli.Context) error {
					keep := func(repository.Track) bool { return true }
					if raw := c.String("kind"); raw != "" {
						kind, err := amr.ParseKind(raw)
						if err != nil {
							return cli.Exit(err.Error(), 1)
						}
						keep = func(t repository.Track) bool { return t.Kind == kind.String() }
					}

					repo, pool, err := openRepository(c.Context)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					defer pool.Close()

					tracks, err := repo.List(c.Context)
					if err != nil {
						return cli.Exit("Failed to retrieve tracks: "+err.Error(), 1)
					}

					if len(tracks) == 0 {
						log.Println("No probed tracks found.")
						return nil
					}

					w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "object\tkind\tframes\tduration\tmalformed")
					for _, track := range tracks {
						if !keep(track) {
							continue
						}
						fmt.Fprintf(w, "%s\t%s\t%d\t%dms\t%t\n",
							track.ObjectKey, track.Kind, track.FrameCount, track.DurationMs, track.Malformed)
					}
					return w.Flush()
				},
			},
			{
				Name:      "show",
				Usage:     "Show the probe result for one object",
				ArgsUsage: "<object-key>",
				Action: func(c *cli.Context) error {
					key := c.Args().First()
					if key == "" {
						return cli.Exit("Please provide an object key", 1)
					}

					repo, pool, err := openRepository(c.Context)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					defer pool.Close()

					track, err := repo.Get(c.Context, key)
					if err != nil {
						return cli.Exit("Failed to retrieve track: "+err.Error(), 1)
					}
					printTrack(c, track)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
