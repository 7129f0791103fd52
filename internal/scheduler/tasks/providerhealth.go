package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/imagefetch/internal/config"
	"github.com/slipstream/imagefetch/internal/metadata/tmdb"
	"github.com/slipstream/imagefetch/internal/scheduler"
)

// ProviderHealthTaskID is the scheduler and health item ID of the TMDB check.
const ProviderHealthTaskID = "tmdb-health"

const providerHealthTimeout = 30 * time.Second

// ProviderTester verifies connectivity to the image provider.
type ProviderTester interface {
	Name() string
	Test(ctx context.Context, cfg config.TMDBConfig) error
}

// HealthReporter receives provider health transitions.
type HealthReporter interface {
	RegisterItem(id, name string)
	SetError(id, message string)
	SetWarning(id, message string)
	ClearStatus(id string)
}

// ProviderHealthTask periodically checks that TMDB accepts the configured API key.
type ProviderHealthTask struct {
	provider ProviderTester
	store    *config.Store
	health   HealthReporter
	logger   zerolog.Logger
}

// NewProviderHealthTask creates a new provider health check task.
func NewProviderHealthTask(provider ProviderTester, store *config.Store, health HealthReporter, logger zerolog.Logger) *ProviderHealthTask {
	health.RegisterItem(ProviderHealthTaskID, provider.Name())
	return &ProviderHealthTask{
		provider: provider,
		store:    store,
		health:   health,
		logger:   logger.With().Str("task", ProviderHealthTaskID).Logger(),
	}
}

// Run executes the provider health check. A missing API key is reported
// as a warning and does not fail the task.
func (t *ProviderHealthTask) Run(ctx context.Context) error {
	err := t.provider.Test(ctx, t.store.Snapshot())
	if err == nil {
		t.health.ClearStatus(ProviderHealthTaskID)
		return nil
	}

	switch tmdb.KindOf(err) {
	case tmdb.ConfigurationMissing:
		t.health.SetWarning(ProviderHealthTaskID, "API key is not configured")
		return nil
	case tmdb.OperationCancelled:
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil
		}
		t.health.SetError(ProviderHealthTaskID, "TMDB did not respond in time")
		return err
	}

	t.health.SetError(ProviderHealthTaskID, err.Error())
	return err
}

// RegisterProviderHealthTask registers the TMDB connectivity check with the scheduler.
func RegisterProviderHealthTask(sched *scheduler.Scheduler, task *ProviderHealthTask, cfg *config.HealthConfig) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ProviderHealthTaskID,
		Name:        "TMDB Health Check",
		Description: "Verifies the TMDB API key against the configuration endpoint",
		Cron:        cfg.Cron,
		Timeout:     providerHealthTimeout,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
