package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/imagefetch/internal/config"
	"github.com/slipstream/imagefetch/internal/health"
	"github.com/slipstream/imagefetch/internal/scheduler/tasks"
)

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version          string             `json:"version"`
	Provider         string             `json:"provider"`
	APIKeyConfigured bool               `json:"apiKeyConfigured"`
	ImageLanguages   string             `json:"imageLanguages"`
	DebugLogging     bool               `json:"debugLogging"`
	ProviderHealth   *health.HealthItem `json:"providerHealth,omitempty"`
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	cfg := s.deps.Store.Snapshot()

	languages := cfg.ImageLanguages
	if strings.TrimSpace(languages) == "" {
		languages = config.DefaultImageLanguages
	}

	resp := StatusResponse{
		Version:          config.Version,
		Provider:         s.deps.Provider.Name(),
		APIKeyConfigured: strings.TrimSpace(cfg.APIKey) != "",
		ImageLanguages:   languages,
		DebugLogging:     cfg.DebugLogging,
	}
	if s.deps.Health != nil {
		resp.ProviderHealth = s.deps.Health.GetItem(tasks.ProviderHealthTaskID)
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getHealth(c echo.Context) error {
	if s.deps.Health == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"items":   []health.HealthItem{},
			"summary": health.HealthSummary{},
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":   s.deps.Health.GetAll(),
		"summary": s.deps.Health.GetSummary(),
	})
}
