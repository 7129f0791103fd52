package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/imagefetch/internal/config"
	"github.com/slipstream/imagefetch/internal/metadata"
)

const (
	providerName          = "TheMovieDb"
	defaultImageLanguages = config.DefaultImageLanguages
	defaultBaseURL        = "https://api.themoviedb.org"
	defaultImageBaseURL   = "https://image.tmdb.org"

	// maxErrorBody bounds how much of a rejected response is kept for logging.
	maxErrorBody = 1024
)

// MetricsRecorder receives one observation per image fetch.
type MetricsRecorder interface {
	ObserveFetch(outcome string, candidates int, elapsed time.Duration)
}

// Provider fetches image candidates from TMDB.
// It holds no per-call state and is safe for concurrent use.
type Provider struct {
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    MetricsRecorder
}

// NewProvider creates a new TMDB image provider using the host's HTTP client.
func NewProvider(httpClient *http.Client, logger zerolog.Logger) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{
		httpClient: httpClient,
		logger:     logger.With().Str("component", "tmdb").Logger(),
	}
}

// SetMetrics sets the recorder for fetch outcomes.
func (p *Provider) SetMetrics(m MetricsRecorder) {
	p.metrics = m
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Supports reports whether images can be fetched for item.
func (p *Provider) Supports(item metadata.Item) bool {
	return metadata.Supports(item)
}

// SupportedImageTypes returns the image roles TMDB can provide.
func (p *Provider) SupportedImageTypes(item metadata.Item) []metadata.ImageType {
	return metadata.SupportedImageTypes(item)
}

// GetImages returns image candidates for item using the configuration snapshot cfg.
// Every failure is logged once and produces an empty slice.
func (p *Provider) GetImages(ctx context.Context, item metadata.Item, cfg config.TMDBConfig) []metadata.RemoteImage {
	if !p.Supports(item) {
		p.logger.Debug().
			Str("item", item.Name).
			Str("kind", string(item.Kind)).
			Msg("Item kind not supported for images")
		return []metadata.RemoteImage{}
	}

	start := time.Now()
	images, err := p.Fetch(ctx, item, cfg)
	elapsed := time.Since(start)

	if err != nil {
		p.observe(KindOf(err).String(), 0, elapsed)
		p.logFailure(item, err)
		return []metadata.RemoteImage{}
	}

	p.observe("success", len(images), elapsed)
	return images
}

// Fetch performs the image lookup and reports failures as *FetchError.
func (p *Provider) Fetch(ctx context.Context, item metadata.Item, cfg config.TMDBConfig) ([]metadata.RemoteImage, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &FetchError{Kind: ConfigurationMissing}
	}

	id, ok := item.ProviderID(metadata.ProviderKeyTMDB)
	if !ok {
		return nil, &FetchError{Kind: IdentifierMissing}
	}

	req := BuildRequest(baseURL(cfg), item.Kind, id, ParseLanguagePreference(cfg.ImageLanguages), cfg.APIKey)

	var response ImagesResponse
	if err := p.doRequest(ctx, req, &response); err != nil {
		return nil, err
	}

	images := toRemoteImages(response, imageBaseURL(cfg))

	if cfg.DebugLogging {
		p.logger.Debug().
			Str("item", item.Name).
			Str("url", req.Redacted()).
			Int("count", len(images)).
			Msg("Fetched TMDB images")
	}

	return images, nil
}

// Test verifies the API key against the TMDB configuration endpoint.
func (p *Provider) Test(ctx context.Context, cfg config.TMDBConfig) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &FetchError{Kind: ConfigurationMissing}
	}

	req := Request{
		Endpoint: strings.TrimRight(baseURL(cfg), "/") + "/3/configuration",
		APIKey:   cfg.APIKey,
	}

	var result ConfigurationResponse
	return p.doRequest(ctx, req, &result)
}

// GetImageResponse fetches an image URL through the shared HTTP client.
// The caller must close the response body.
func (p *Provider) GetImageResponse(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return p.httpClient.Do(req)
}

// imageURL returns the image URL for path at size, e.g. "w500" or "original".
// An empty path still yields the bare size prefix.
func imageURL(imageOrigin, size, path string) string {
	return strings.TrimRight(imageOrigin, "/") + "/t/p/" + size + path
}

// doRequest performs a single GET and decodes the JSON response.
func (p *Provider) doRequest(ctx context.Context, r Request, result interface{}) error {
	redacted := r.Redacted()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL(), nil)
	if err != nil {
		return &FetchError{Kind: TransportFailure, URL: redacted, Err: redact(err, r)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		kind := TransportFailure
		if isCancellation(ctx, err) {
			kind = OperationCancelled
		}
		return &FetchError{Kind: kind, URL: redacted, Err: redact(err, r)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &FetchError{
			Kind:       UpstreamRejected,
			URL:        redacted,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	dec := json.NewDecoder(resp.Body)
	err = dec.Decode(result)
	if err == nil {
		// The body must hold exactly one JSON value.
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = errTrailingData
		}
	}
	if err != nil {
		kind := MalformedResponse
		if isCancellation(ctx, err) {
			kind = OperationCancelled
		}
		return &FetchError{Kind: kind, URL: redacted, Err: redact(err, r)}
	}

	return nil
}

func (p *Provider) observe(outcome string, candidates int, elapsed time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveFetch(outcome, candidates, elapsed)
	}
}

func (p *Provider) logFailure(item metadata.Item, err error) {
	var fe *FetchError
	if !errors.As(err, &fe) {
		p.logger.Error().Err(err).Str("item", item.Name).Msg("TMDB image lookup failed")
		return
	}

	event := p.logger.WithLevel(fe.Kind.Severity()).
		Str("kind", fe.Kind.String()).
		Str("item", item.Name)
	if fe.URL != "" {
		event = event.Str("url", fe.URL)
	}
	if fe.StatusCode != 0 {
		event = event.Int("status", fe.StatusCode).Str("body", fe.Body)
	}
	if fe.Err != nil {
		event = event.Err(fe.Err)
	}
	event.Msg(failureMessage(fe.Kind))
}

func failureMessage(kind ErrorKind) string {
	switch kind {
	case ConfigurationMissing:
		return "TMDB API key is not configured, skipping image lookup"
	case IdentifierMissing:
		return "Item has no TMDB id, skipping image lookup"
	case OperationCancelled:
		return "TMDB image request cancelled"
	case UpstreamRejected:
		return "TMDB API returned an error status"
	case MalformedResponse:
		return "Failed to decode TMDB image response"
	default:
		return "TMDB image request failed"
	}
}

// toRemoteImages maps posters, backdrops and logos in upstream order.
func toRemoteImages(response ImagesResponse, imageOrigin string) []metadata.RemoteImage {
	images := make([]metadata.RemoteImage, 0, len(response.Posters)+len(response.Backdrops)+len(response.Logos))
	images = appendImages(images, response.Posters, metadata.ImageTypePrimary, imageOrigin)
	images = appendImages(images, response.Backdrops, metadata.ImageTypeBackdrop, imageOrigin)
	images = appendImages(images, response.Logos, metadata.ImageTypeLogo, imageOrigin)
	return images
}

func appendImages(dst []metadata.RemoteImage, src []Image, imageType metadata.ImageType, imageOrigin string) []metadata.RemoteImage {
	for _, img := range src {
		dst = append(dst, metadata.RemoteImage{
			ProviderName:    providerName,
			URL:             imageURL(imageOrigin, "original", img.FilePath),
			Type:            imageType,
			Language:        img.ISO639_1,
			Width:           img.Width,
			Height:          img.Height,
			CommunityRating: img.VoteAverage,
			VoteCount:       img.VoteCount,
		})
	}
	return dst
}

func isCancellation(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}

// redact strips the API key from err, including the URL carried by *url.Error.
func redact(err error, r Request) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = r.Redacted()
	}
	if r.APIKey == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, r.APIKey) && !strings.Contains(msg, url.QueryEscape(r.APIKey)) {
		return err
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(r.APIKey), redactedKey)
	msg = strings.ReplaceAll(msg, r.APIKey, redactedKey)
	return errors.New(msg)
}

func baseURL(cfg config.TMDBConfig) string {
	if cfg.BaseURL == "" {
		return defaultBaseURL
	}
	return cfg.BaseURL
}

func imageBaseURL(cfg config.TMDBConfig) string {
	if cfg.ImageBaseURL == "" {
		return defaultImageBaseURL
	}
	return cfg.ImageBaseURL
}
