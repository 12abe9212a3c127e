package schedule_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glizzus/amrprobe/internal/schedule"
)

func TestRunOnCronInvalidExpression(t *testing.T) {
	err := schedule.RunOnCron(t.Context(), "invalid cron", func(context.Context) {
		t.Errorf("execute called for an invalid expression")
	})
	if err == nil {
		t.Fatalf("RunOnCron() expected error")
	}
}

func TestRunOnCronStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	// Midnight on the first of January is never reached within the test.
	err := schedule.RunOnCron(ctx, "0 0 1 1 *", func(context.Context) {
		t.Errorf("execute called before the first tick")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunOnCron() error = %v, want %v", err, context.DeadlineExceeded)
	}
}
