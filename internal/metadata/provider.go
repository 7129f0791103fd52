package metadata

import (
	"context"
	"net/http"

	"github.com/slipstream/imagefetch/internal/config"
)

// ImageProvider defines the interface for remote image providers.
type ImageProvider interface {
	// Name returns the provider name.
	Name() string

	// Supports reports whether the provider can produce images for item.
	Supports(item Item) bool

	// SupportedImageTypes lists the image roles the provider can produce.
	SupportedImageTypes(item Item) []ImageType

	// GetImages returns image candidates for item. Failures yield an empty slice.
	GetImages(ctx context.Context, item Item, cfg config.TMDBConfig) []RemoteImage

	// GetImageResponse fetches the raw bytes behind an image URL.
	GetImageResponse(ctx context.Context, url string) (*http.Response, error)
}

var supportedImageTypes = []ImageType{
	ImageTypePrimary,
	ImageTypeBackdrop,
	ImageTypeLogo,
}

// Supports returns true for movies and series.
func Supports(item Item) bool {
	switch item.Kind {
	case MediaKindMovie, MediaKindSeries:
		return true
	default:
		return false
	}
}

// SupportedImageTypes returns the fixed set of producible image roles.
func SupportedImageTypes(Item) []ImageType {
	types := make([]ImageType, len(supportedImageTypes))
	copy(types, supportedImageTypes)
	return types
}
