package schedule_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/amrprobe/internal/schedule"
)

func TestNextRunTimesAfter(t *testing.T) {
	after := time.Date(2024, 2, 28, 22, 40, 0, 0, time.UTC)

	tests := []struct {
		cron string
		n    int
		want []time.Time
	}{
		{
			cron: "@hourly",
			n:    3,
			want: []time.Time{
				time.Date(2024, 2, 28, 23, 0, 0, 0, time.UTC),
				time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 2, 29, 1, 0, 0, 0, time.UTC),
			},
		},
		{
			cron: "*/15 * * * *",
			n:    2,
			want: []time.Time{
				time.Date(2024, 2, 28, 22, 45, 0, 0, time.UTC),
				time.Date(2024, 2, 28, 23, 0, 0, 0, time.UTC),
			},
		},
		{
			cron: "30 2 * * *",
			n:    2,
			want: []time.Time{
				time.Date(2024, 2, 29, 2, 30, 0, 0, time.UTC),
				time.Date(2024, 3, 1, 2, 30, 0, 0, time.UTC),
			},
		},
		{
			cron: "0 4 * * 0",
			n:    1,
			want: []time.Time{
				time.Date(2024, 3, 3, 4, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.cron, func(t *testing.T) {
			got, err := schedule.NextRunTimesAfter(tc.cron, after, tc.n)
			if err != nil {
				t.Fatalf("NextRunTimesAfter(%q) returned error: %v", tc.cron, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("run times mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNextRunTimesAfterErrors(t *testing.T) {
	tests := map[string]struct {
		cron string
		n    int
	}{
		"unparseable":  {cron: "every now and then", n: 1},
		"zero count":   {cron: "@hourly", n: 0},
		"negative":     {cron: "@hourly", n: -2},
		"empty string": {cron: "", n: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := schedule.NextRunTimesAfter(tc.cron, time.Now(), tc.n)
			if err == nil {
				t.Fatalf("expected error, got %v", got)
			}
		})
	}
}

func TestNextRunTimesIsUTC(t *testing.T) {
	got, err := schedule.NextRunTimes("*/5 * * * *", 2)
	if err != nil {
		t.Fatalf("NextRunTimes returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 run times, got %d", len(got))
	}
	for _, ts := range got {
		if ts.Location() != time.UTC {
			t.Errorf("expected UTC, got %s", ts.Location())
		}
	}
	if !got[0].Before(got[1]) {
		t.Errorf("run times out of order: %v", got)
	}
}

func TestValidateCron(t *testing.T) {
	if err := schedule.ValidateCron("@daily"); err != nil {
		t.Errorf("ValidateCron(@daily) returned error: %v", err)
	}
	if err := schedule.ValidateCron("61 * * * *"); err == nil {
		t.Error("ValidateCron accepted minute 61")
	}
}
