package tmdb

// ImagesResponse is the response from the TMDB /images endpoint.
// Any of the arrays may be absent.
type ImagesResponse struct {
	ID        int     `json:"id"`
	Posters   []Image `json:"posters"`
	Backdrops []Image `json:"backdrops"`
	Logos     []Image `json:"logos"`
}

// Image is a single image record from TMDB.
type Image struct {
	FilePath    string  `json:"file_path"`
	ISO639_1    *string `json:"iso_639_1"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

// ConfigurationResponse is the subset of /configuration used for connectivity checks.
type ConfigurationResponse struct {
	Images struct {
		BaseURL       string `json:"base_url"`
		SecureBaseURL string `json:"secure_base_url"`
	} `json:"images"`
}

// ErrorResponse is the error body TMDB returns with non-2xx statuses.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}
