package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/slipstream/imagefetch/internal/config"
	"github.com/slipstream/imagefetch/internal/metadata"
)

// proxiedHeaders are copied from the upstream image response.
var proxiedHeaders = []string{
	echo.HeaderContentLength,
	"Cache-Control",
	"ETag",
	echo.HeaderLastModified,
}

// ImageHandlers serves remote image lookups for host items.
type ImageHandlers struct {
	provider metadata.ImageProvider
	store    *config.Store
	metrics  ProxyRecorder
	logger   zerolog.Logger
}

// NewImageHandlers creates image handlers. metrics may be nil.
func NewImageHandlers(provider metadata.ImageProvider, store *config.Store, metrics ProxyRecorder, logger zerolog.Logger) *ImageHandlers {
	return &ImageHandlers{
		provider: provider,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetImages returns image candidates for an item.
// Lookup failures are logged by the provider and answered with an empty list.
// GET /api/v1/images/:kind/:id
func (h *ImageHandlers) GetImages(c echo.Context) error {
	item := metadata.Item{
		Kind: metadata.ParseMediaKind(c.Param("kind")),
		Name: c.QueryParam("name"),
		ProviderIDs: map[string]string{
			metadata.ProviderKeyTMDB: c.Param("id"),
		},
	}

	images := h.provider.GetImages(c.Request().Context(), item, h.store.Snapshot())
	if images == nil {
		images = []metadata.RemoteImage{}
	}
	return c.JSON(http.StatusOK, images)
}

// GetSupportedTypes reports whether a media kind is supported and which
// image roles the provider produces.
// GET /api/v1/images/types/:kind
func (h *ImageHandlers) GetSupportedTypes(c echo.Context) error {
	item := metadata.Item{Kind: metadata.ParseMediaKind(c.Param("kind"))}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"provider":  h.provider.Name(),
		"kind":      item.Kind,
		"supported": h.provider.Supports(item),
		"types":     h.provider.SupportedImageTypes(item),
	})
}

// Proxy streams an image from the configured image origin.
// GET /api/v1/images/proxy?url=
func (h *ImageHandlers) Proxy(c echo.Context) error {
	raw := c.QueryParam("url")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	if !h.isImageOrigin(raw) {
		return echo.NewHTTPError(http.StatusBadRequest, "url is not a TMDB image")
	}

	resp, err := h.provider.GetImageResponse(c.Request().Context(), raw)
	if err != nil {
		h.observe(0)
		h.logger.Warn().Err(err).Str("url", raw).Msg("Failed to fetch image")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch image")
	}
	defer resp.Body.Close()

	h.observe(resp.StatusCode)

	header := c.Response().Header()
	for _, name := range proxiedHeaders {
		if v := resp.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}

	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	return c.Stream(resp.StatusCode, contentType, resp.Body)
}

func (h *ImageHandlers) observe(statusCode int) {
	if h.metrics != nil {
		h.metrics.ObserveProxy(statusCode)
	}
}

func (h *ImageHandlers) isImageOrigin(raw string) bool {
	target, err := url.Parse(raw)
	if err != nil || target.Host == "" {
		return false
	}

	origin := h.store.Snapshot().ImageBaseURL
	if origin == "" {
		origin = config.Default().TMDB.ImageBaseURL
	}
	base, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return false
	}

	return strings.EqualFold(target.Scheme, base.Scheme) &&
		strings.EqualFold(target.Host, base.Host) &&
		strings.HasPrefix(target.Path, base.Path+"/")
}
