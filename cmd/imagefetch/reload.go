package main

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/slipstream/imagefetch/internal/config"
)

// reloadLogger reports config reloads. The watcher can fire before the logger
// is built, so the logger is published atomically and events before that are
// dropped.
type reloadLogger struct {
	logger atomic.Pointer[zerolog.Logger]
}

func (r *reloadLogger) setLogger(l zerolog.Logger) {
	r.logger.Store(&l)
}

func (r *reloadLogger) onChange(updated *config.Config) {
	l := r.logger.Load()
	if l == nil {
		return
	}
	l.Info().
		Bool("apiKeyConfigured", updated.TMDB.APIKey != "").
		Str("imageLanguages", updated.TMDB.ImageLanguages).
		Bool("debugLogging", updated.TMDB.DebugLogging).
		Msg("configuration reloaded")
}

func (r *reloadLogger) onError(err error) {
	l := r.logger.Load()
	if l == nil {
		return
	}
	l.Error().Err(err).Msg("failed to reload configuration")
}
