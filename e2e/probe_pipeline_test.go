package e2e_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/glizzus/amrprobe/e2e"
	"github.com/glizzus/amrprobe/internal/amr"
	"github.com/glizzus/amrprobe/internal/datalayer"
	"github.com/glizzus/amrprobe/internal/generator"
	"github.com/glizzus/amrprobe/internal/repository"
	"github.com/glizzus/amrprobe/internal/worker"
)

func TestProbePipeline(t *testing.T) {
	connStr := e2e.UsePostgres(t)
	repo := e2e.GetRepository(t, connStr)
	e2e.SeedGlobalNoise(t, repo)
	rdb := e2e.UseRedis(t)

	storage := datalayer.NewMemoryStorage()
	objects := map[string][]byte{
		"pipeline/nb.amr":  e2e.Stream(amr.NarrowBand, 7, 7, 7, 2),
		"pipeline/wb.amr":  e2e.Stream(amr.WideBand, 8, 0),
		"pipeline/bad.amr": append(e2e.Stream(amr.NarrowBand, 5), 0x83),
		"pipeline/txt.amr": []byte("plain text, not audio"),
	}
	for key, data := range objects {
		if err := storage.Put(t.Context(), key, bytes.NewReader(data), datalayer.PutOptions{Size: int64(len(data))}); err != nil {
			t.Fatalf("failed to put %s: %v", key, err)
		}
	}

	jobHandler, err := worker.NewRedisJobHandler(rdb)
	if err != nil {
		t.Fatalf("failed to create job handler: %v", err)
	}
	n, err := worker.Scan(t.Context(), storage, jobHandler, "pipeline/")
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if n != len(objects) {
		t.Fatalf("expected %d jobs enqueued, got %d", len(objects), n)
	}

	receiver, err := worker.NewRedisJobReceiver(rdb, "e2e", 10, time.Second, 0)
	if err != nil {
		t.Fatalf("failed to create job receiver: %v", err)
	}
	blacklist := worker.NewRedisBlacklist(rdb)
	processor := &worker.Processor{
		Source:    storage,
		Tracks:    repo,
		Blacklist: blacklist,
		IDs:       &generator.UUIDV4Generator{},
	}

	outcomes := make(map[string]worker.Outcome)
	for len(outcomes) < len(objects) {
		jobs, err := receiver.ReceiveJobs(t.Context())
		if err != nil {
			t.Fatalf("ReceiveJobs returned error: %v", err)
		}
		if len(jobs) == 0 {
			t.Fatalf("timed out waiting for jobs, have %d of %d", len(outcomes), len(objects))
		}
		for _, job := range jobs {
			if job.MessageID == "" {
				t.Errorf("job for %s has no message ID", job.ObjectKey)
			}
			outcome, err := processor.Handle(t.Context(), job)
			if err != nil {
				t.Fatalf("Handle(%s) returned error: %v", job.ObjectKey, err)
			}
			outcomes[job.ObjectKey] = outcome
			if err := receiver.Ack(t.Context(), job.MessageID); err != nil {
				t.Fatalf("Ack returned error: %v", err)
			}
		}
	}

	expectedOutcomes := map[string]worker.Outcome{
		"pipeline/nb.amr":  worker.OutcomeSaved,
		"pipeline/wb.amr":  worker.OutcomeSaved,
		"pipeline/bad.amr": worker.OutcomeSaved,
		"pipeline/txt.amr": worker.OutcomeNotAMR,
	}
	if diff := cmp.Diff(expectedOutcomes, outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	ignore := cmpopts.IgnoreFields(repository.Track{}, "ID", "ProbedAt")

	nb, err := repo.Get(t.Context(), "pipeline/nb.amr")
	if err != nil {
		t.Fatalf("failed to get nb track: %v", err)
	}
	expectedNB := repository.Track{
		ObjectKey:    "pipeline/nb.amr",
		Kind:         "AMR-NB",
		MIMEType:     amr.MIMETypeNB,
		SampleRate:   8000,
		ChannelCount: 1,
		FrameCount:   4,
		ByteCount:    3*32 + 16,
		DurationMs:   80,
		EndOffset:    6 + 3*32 + 16,
		FrameTypes:   map[uint8]int{7: 3, 2: 1},
	}
	if diff := cmp.Diff(expectedNB, nb, ignore); diff != "" {
		t.Errorf("nb track mismatch (-want +got):\n%s", diff)
	}

	wb, err := repo.Get(t.Context(), "pipeline/wb.amr")
	if err != nil {
		t.Fatalf("failed to get wb track: %v", err)
	}
	expectedWB := repository.Track{
		ObjectKey:    "pipeline/wb.amr",
		Kind:         "AMR-WB",
		MIMEType:     amr.MIMETypeWB,
		SampleRate:   16000,
		ChannelCount: 1,
		FrameCount:   2,
		ByteCount:    61 + 18,
		DurationMs:   40,
		EndOffset:    9 + 61 + 18,
		FrameTypes:   map[uint8]int{8: 1, 0: 1},
	}
	if diff := cmp.Diff(expectedWB, wb, ignore); diff != "" {
		t.Errorf("wb track mismatch (-want +got):\n%s", diff)
	}

	bad, err := repo.Get(t.Context(), "pipeline/bad.amr")
	if err != nil {
		t.Fatalf("failed to get malformed track: %v", err)
	}
	if !bad.Malformed || bad.FrameCount != 1 || bad.EndOffset != 6+21 {
		t.Errorf("unexpected malformed track: %+v", bad)
	}
	blacklisted, err := blacklist.IsBlacklisted(t.Context(), "pipeline/bad.amr")
	if err != nil {
		t.Fatalf("IsBlacklisted returned error: %v", err)
	}
	if !blacklisted {
		t.Error("malformed object should be blacklisted")
	}

	if _, err := repo.Get(t.Context(), "pipeline/txt.amr"); err == nil {
		t.Error("non-AMR object should not have a track")
	}
}

func TestReceiverReclaimsStaleJobs(t *testing.T) {
	rdb := e2e.UseRedis(t)

	jobHandler, err := worker.NewRedisJobHandler(rdb)
	if err != nil {
		t.Fatalf("failed to create job handler: %v", err)
	}
	if err := jobHandler.HandleJobs(t.Context(), worker.ProbeJob{ObjectKey: "reclaim/a.amr"}); err != nil {
		t.Fatalf("HandleJobs returned error: %v", err)
	}

	crashed, err := worker.NewRedisJobReceiver(rdb, "crashed", 10, time.Second, 0)
	if err != nil {
		t.Fatalf("failed to create job receiver: %v", err)
	}
	taken, err := crashed.ReceiveJobs(t.Context())
	if err != nil {
		t.Fatalf("ReceiveJobs returned error: %v", err)
	}
	if len(taken) != 1 || taken[0].ObjectKey != "reclaim/a.amr" {
		t.Fatalf("expected the reclaim/a.amr job, got %+v", taken)
	}

	// The first consumer never acknowledges.
	time.Sleep(50 * time.Millisecond)

	healthy, err := worker.NewRedisJobReceiver(rdb, "healthy", 10, 100*time.Millisecond, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create job receiver: %v", err)
	}
	reclaimed, err := healthy.ReceiveJobs(t.Context())
	if err != nil {
		t.Fatalf("ReceiveJobs returned error: %v", err)
	}
	if diff := cmp.Diff(taken, reclaimed); diff != "" {
		t.Fatalf("reclaimed jobs mismatch (-want +got):\n%s", diff)
	}
	if err := healthy.Ack(t.Context(), reclaimed[0].MessageID); err != nil {
		t.Fatalf("Ack returned error: %v", err)
	}

	rest, err := healthy.ReceiveJobs(t.Context())
	if err != nil {
		t.Fatalf("ReceiveJobs returned error: %v", err)
	}
	if len(rest) != 0 {
		t.Errorf("expected no jobs after ack, got %+v", rest)
	}
}
