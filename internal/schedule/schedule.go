package schedule

import (
	"context"
	"fmt"
	"time"
)

// RunOnCron calls execute at every time matched by cron until ctx is done.
// Runs do not overlap; a tick missed while execute is running is skipped.
// It returns ctx.Err() on cancellation.
func RunOnCron(ctx context.Context, cron string, execute func(ctx context.Context)) error {
	expr, err := parse(cron)
	if err != nil {
		return err
	}

	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("cron expression %q has no upcoming run", cron)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			execute(ctx)
		}
	}
}
