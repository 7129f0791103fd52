package metadata

import "strings"

// ProviderKeyTMDB is the provider-id key under which hosts store TMDB ids.
const ProviderKeyTMDB = "Tmdb"

// ImageType represents the role an image fills in the host UI.
type ImageType string

const (
	ImageTypePrimary  ImageType = "Primary"
	ImageTypeBackdrop ImageType = "Backdrop"
	ImageTypeLogo     ImageType = "Logo"
)

// MediaKind represents the type of media an item is.
type MediaKind string

const (
	MediaKindMovie   MediaKind = "movie"
	MediaKindSeries  MediaKind = "series"
	MediaKindSeason  MediaKind = "season"
	MediaKindEpisode MediaKind = "episode"
	MediaKindPerson  MediaKind = "person"
)

// ParseMediaKind maps a loose kind name to a MediaKind.
// Unknown names are returned lower-cased so Supports rejects them.
func ParseMediaKind(s string) MediaKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return MediaKindMovie
	case "series", "tv", "show":
		return MediaKindSeries
	default:
		return MediaKind(strings.ToLower(strings.TrimSpace(s)))
	}
}

// Item is a host media object as seen by image providers.
type Item struct {
	Kind        MediaKind         `json:"kind"`
	Name        string            `json:"name"`
	ProviderIDs map[string]string `json:"providerIds,omitempty"`
}

// ProviderID returns the external id stored under key.
// Blank ids are reported as absent.
func (i Item) ProviderID(key string) (string, bool) {
	if i.ProviderIDs == nil {
		return "", false
	}
	id, ok := i.ProviderIDs[key]
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// RemoteImage is an image candidate offered to the host.
type RemoteImage struct {
	ProviderName    string    `json:"providerName"`
	URL             string    `json:"url"`
	Type            ImageType `json:"type"`
	Language        *string   `json:"language"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	CommunityRating float64   `json:"communityRating"`
	VoteCount       int       `json:"voteCount"`
}
