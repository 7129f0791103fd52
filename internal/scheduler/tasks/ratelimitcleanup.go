package tasks

import (
	"context"

	"github.com/slipstream/imagefetch/internal/scheduler"
)

// Cleaner drops idle rate limit state.
type Cleaner interface {
	Cleanup()
}

// RegisterRateLimitCleanupTask registers the hourly purge of idle proxy clients.
func RegisterRateLimitCleanupTask(sched *scheduler.Scheduler, limiter Cleaner) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "ratelimit-cleanup",
		Name:        "Rate Limit Cleanup",
		Description: "Forgets image proxy clients that have been idle",
		Cron:        "0 * * * *",
		Func: func(context.Context) error {
			limiter.Cleanup()
			return nil
		},
	})
}
