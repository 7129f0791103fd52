package config

// Embedded API key injected at build time via ldflags.
// It serves as a default and can be overridden by environment
// variables or config file.
//
// Build with:
//   go build -ldflags "-X 'github.com/slipstream/imagefetch/internal/config.EmbeddedTMDBKey=xxx'"
var EmbeddedTMDBKey string

// Version is set at build time.
var Version = "dev"

// ApplyEmbedded fills an empty TMDB API key from the build-time default.
func (c *Config) ApplyEmbedded() {
	if c.TMDB.APIKey == "" && EmbeddedTMDBKey != "" {
		c.TMDB.APIKey = EmbeddedTMDBKey
	}
}
