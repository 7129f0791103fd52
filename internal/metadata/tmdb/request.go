package tmdb

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/slipstream/imagefetch/internal/metadata"
)

const redactedKey = "***"

// LanguagePreference is an ordered list of image language tokens.
// Tokens are forwarded to TMDB as-is; "null" selects textless images.
type LanguagePreference []string

// ParseLanguagePreference splits a comma-delimited preference string.
// A blank value yields the default preference.
func ParseLanguagePreference(s string) LanguagePreference {
	if strings.TrimSpace(s) == "" {
		s = defaultImageLanguages
	}
	return LanguagePreference(strings.Split(s, ","))
}

// String joins the preference with the literal delimiter.
func (p LanguagePreference) String() string {
	return strings.Join(p, ",")
}

// Request describes a single TMDB images request.
type Request struct {
	Endpoint  string
	APIKey    string
	Languages LanguagePreference
}

// EndpointSegment maps a media kind to its TMDB path segment.
func EndpointSegment(kind metadata.MediaKind) string {
	if kind == metadata.MediaKindMovie {
		return "movie"
	}
	return "tv"
}

// BuildRequest formats the images request for an item. Inputs are not validated.
func BuildRequest(origin string, kind metadata.MediaKind, externalID string, languages LanguagePreference, apiKey string) Request {
	return Request{
		Endpoint: fmt.Sprintf("%s/3/%s/%s/images",
			strings.TrimRight(origin, "/"), EndpointSegment(kind), url.PathEscape(externalID)),
		APIKey:    apiKey,
		Languages: languages,
	}
}

// URL returns the full request URL including the API key.
func (r Request) URL() string {
	return r.format(url.QueryEscape(r.APIKey))
}

// Redacted returns the request URL with the API key masked.
func (r Request) Redacted() string {
	return r.format(redactedKey)
}

// format keeps the language delimiter literal; url.Values would encode it as %2C.
func (r Request) format(key string) string {
	if len(r.Languages) == 0 {
		return fmt.Sprintf("%s?api_key=%s", r.Endpoint, key)
	}
	langs := make([]string, len(r.Languages))
	for i, l := range r.Languages {
		langs[i] = url.QueryEscape(l)
	}
	return fmt.Sprintf("%s?api_key=%s&include_image_language=%s", r.Endpoint, key, strings.Join(langs, ","))
}
